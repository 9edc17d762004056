package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

const (
	StatsDBVersion   = "1.0.0"
	MaxRecentRecords = 100
)

// Database 是保存在单个 JSON 文件中的运行统计
type Database struct {
	filePath string
	data     *StatisticsDB
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewDatabase 打开统计数据库，文件不存在时创建
func NewDatabase(filePath string, logger *zap.Logger) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := &Database{
		filePath: filePath,
		logger:   logger,
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	if err := db.load(); err != nil {
		return nil, fmt.Errorf("failed to load stats database: %w", err)
	}

	return db, nil
}

func newStatisticsDB() *StatisticsDB {
	now := time.Now()
	return &StatisticsDB{
		Version:     StatsDBVersion,
		CreatedAt:   now,
		LastUpdated: now,
		KindStats:   make(map[string]*KindStats),
		RecentRuns:  make([]*RunRecord, 0),
	}
}

// load 加载统计数据
func (db *Database) load() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, err := os.Stat(db.filePath); os.IsNotExist(err) {
		db.data = newStatisticsDB()
		return db.saveUnsafe()
	}

	data, err := os.ReadFile(db.filePath)
	if err != nil {
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	var statsDB StatisticsDB
	if err := json.Unmarshal(data, &statsDB); err != nil {
		return fmt.Errorf("failed to parse stats file: %w", err)
	}

	if statsDB.KindStats == nil {
		statsDB.KindStats = make(map[string]*KindStats)
	}
	if statsDB.RecentRuns == nil {
		statsDB.RecentRuns = make([]*RunRecord, 0)
	}

	db.data = &statsDB
	db.logger.Debug("loaded statistics database",
		zap.String("path", db.filePath),
		zap.String("version", statsDB.Version),
		zap.Int64("total_runs", statsDB.TotalRuns))

	return nil
}

// Path 返回数据库文件路径
func (db *Database) Path() string { return db.filePath }

// Save 保存统计数据
func (db *Database) Save() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.saveUnsafe()
}

// saveUnsafe 需要已持有锁
func (db *Database) saveUnsafe() error {
	db.data.LastUpdated = time.Now()

	data, err := json.MarshalIndent(db.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}
	if err := backend.WriteFileAtomic(db.filePath, data); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}

// AddRunRecord 记录一次运行并保存
func (db *Database) AddRunRecord(record *RunRecord) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	d := db.data
	d.TotalRuns++
	d.TotalPages += int64(record.Summary.Pages)
	d.TotalWords += int64(record.Counters.Words)
	d.TotalAugmented += int64(record.Counters.Augmented)
	d.TotalBoxes += int64(record.Summary.Boxes)
	d.TotalOCRCalls += int64(record.Counters.OCRCalls)
	d.TotalDegraded += int64(record.Summary.Degraded)
	d.TotalBytesIn += record.InputBytes
	d.TotalBytesOut += record.OutputBytes
	d.TotalDuration += record.Duration
	if record.Failed() {
		d.TotalErrors++
	}

	ks, exists := d.KindStats[record.Kind]
	if !exists {
		ks = &KindStats{Kind: record.Kind}
		d.KindStats[record.Kind] = ks
	}

	successes := int64(ks.SuccessRate*float64(ks.RunCount) + 0.5)
	ks.RunCount++
	ks.PageCount += int64(record.Summary.Pages)
	ks.AugmentedWords += int64(record.Counters.Augmented)
	ks.LastUsed = record.Timestamp
	ks.AverageFileSize += (record.InputBytes - ks.AverageFileSize) / ks.RunCount
	ks.AverageDuration += (record.Duration - ks.AverageDuration) / time.Duration(ks.RunCount)
	if !record.Failed() {
		successes++
	}
	ks.SuccessRate = float64(successes) / float64(ks.RunCount)

	d.RecentRuns = append(d.RecentRuns, record)
	if len(d.RecentRuns) > MaxRecentRecords {
		sort.Slice(d.RecentRuns, func(i, j int) bool {
			return d.RecentRuns[i].Timestamp.After(d.RecentRuns[j].Timestamp)
		})
		d.RecentRuns = d.RecentRuns[:MaxRecentRecords]
	}

	db.updatePerformanceStats(record)

	db.logger.Debug("recorded run",
		zap.String("id", record.ID),
		zap.String("status", record.Status),
		zap.Duration("duration", record.Duration))
	return db.saveUnsafe()
}

// updatePerformanceStats 只统计成功且耗时非零的运行
func (db *Database) updatePerformanceStats(record *RunRecord) {
	if record.Failed() || record.Duration <= 0 {
		return
	}
	p := &db.data.PerformanceStats
	n := float64(db.data.TotalRuns - db.data.TotalErrors)
	if n < 1 {
		n = 1
	}

	secs := record.Duration.Seconds()
	p.AveragePagesPerSecond += (float64(record.Summary.Pages)/secs - p.AveragePagesPerSecond) / n
	p.AverageWordsPerSecond += (float64(record.Counters.Words)/secs - p.AverageWordsPerSecond) / n

	if p.FastestRun == 0 || record.Duration < p.FastestRun {
		p.FastestRun = record.Duration
	}
	if record.Duration > p.SlowestRun {
		p.SlowestRun = record.Duration
	}
}

// GetStats 返回统计数据的深拷贝
func (db *Database) GetStats() *StatisticsDB {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	data, _ := json.Marshal(db.data)
	var copy StatisticsDB
	_ = json.Unmarshal(data, &copy)

	return &copy
}

// GetRecentRuns 返回最近的运行记录，最新的在前；limit <= 0 表示全部
func (db *Database) GetRecentRuns(limit int) []*RunRecord {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if limit <= 0 || limit > len(db.data.RecentRuns) {
		limit = len(db.data.RecentRuns)
	}

	sorted := make([]*RunRecord, len(db.data.RecentRuns))
	copy(sorted, db.data.RecentRuns)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	return sorted[:limit]
}

// Reset 清空所有统计
func (db *Database) Reset() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.data = newStatisticsDB()
	db.logger.Info("statistics reset", zap.String("path", db.filePath))
	return db.saveUnsafe()
}

// Export 把统计数据写到另一个文件
func (db *Database) Export(path string) error {
	db.mutex.RLock()
	data, err := json.MarshalIndent(db.data, "", "  ")
	db.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to export stats: %w", err)
	}
	return nil
}

package stats

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerdneilsfield/go-glance/pkg/augment"
	"github.com/nerdneilsfield/go-glance/pkg/traverse"
)

// 运行状态
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StatisticsDB 统计数据库结构
type StatisticsDB struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// 总体统计
	TotalRuns      int64         `json:"total_runs"`
	TotalPages     int64         `json:"total_pages"`
	TotalWords     int64         `json:"total_words"`
	TotalAugmented int64         `json:"total_augmented"`
	TotalBoxes     int64         `json:"total_boxes"`
	TotalOCRCalls  int64         `json:"total_ocr_calls"`
	TotalDegraded  int64         `json:"total_degraded"`
	TotalErrors    int64         `json:"total_errors"`
	TotalBytesIn   int64         `json:"total_bytes_in"`
	TotalBytesOut  int64         `json:"total_bytes_out"`
	TotalDuration  time.Duration `json:"total_duration"`

	// 按文档类型（pdf / epub）统计
	KindStats map[string]*KindStats `json:"kind_stats"`

	// 最近的运行记录
	RecentRuns []*RunRecord `json:"recent_runs"`

	// 性能统计
	PerformanceStats PerformanceStatistics `json:"performance_stats"`
}

// KindStats 单一文档类型的统计
type KindStats struct {
	Kind            string        `json:"kind"`
	RunCount        int64         `json:"run_count"`
	PageCount       int64         `json:"page_count"`
	AugmentedWords  int64         `json:"augmented_words"`
	AverageFileSize int64         `json:"average_file_size"`
	AverageDuration time.Duration `json:"average_duration"`
	SuccessRate     float64       `json:"success_rate"`
	LastUsed        time.Time     `json:"last_used"`
}

// RunRecord 一次增强运行的记录
type RunRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	InputFile  string    `json:"input_file"`
	OutputFile string    `json:"output_file"`
	Kind       string    `json:"kind"`

	Summary  traverse.Summary `json:"summary"`
	Counters augment.Counters `json:"counters"`

	InputBytes  int64         `json:"input_bytes"`
	OutputBytes int64         `json:"output_bytes"`
	Duration    time.Duration `json:"duration"`
	Status      string        `json:"status"`

	// 错误信息
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewRunRecord 创建带唯一 ID 的运行记录
func NewRunRecord(input, kind string) *RunRecord {
	return &RunRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		InputFile: input,
		Kind:      kind,
		Status:    StatusCompleted,
	}
}

// Fail 把记录标记为失败
func (r *RunRecord) Fail(err error) {
	r.Status = StatusFailed
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Failed 判断运行是否失败
func (r *RunRecord) Failed() bool {
	return r.Status == StatusFailed
}

// PerformanceStatistics 性能统计
type PerformanceStatistics struct {
	AveragePagesPerSecond float64       `json:"average_pages_per_second"`
	AverageWordsPerSecond float64       `json:"average_words_per_second"`
	FastestRun            time.Duration `json:"fastest_run"`
	SlowestRun            time.Duration `json:"slowest_run"`
}

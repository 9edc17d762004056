package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Visualizer 在终端中展示运行统计
type Visualizer struct {
	db  *Database
	out io.Writer
}

// NewVisualizer 创建可视化器，输出到 stdout
func NewVisualizer(db *Database) *Visualizer {
	return &Visualizer{db: db, out: os.Stdout}
}

// SetOutput 改变输出位置
func (v *Visualizer) SetOutput(w io.Writer) { v.out = w }

// ShowOverview 显示总览
func (v *Visualizer) ShowOverview() {
	stats := v.db.GetStats()

	title := color.New(color.FgCyan, color.Bold)
	title.Fprintln(v.out, "Augmentation Statistics Overview")
	title.Fprintln(v.out, strings.Repeat("=", 50))

	fmt.Fprintln(v.out)
	v.printSection("Overall", [][]string{
		{"Runs", humanize.Comma(stats.TotalRuns)},
		{"Failed Runs", humanize.Comma(stats.TotalErrors)},
		{"Pages", humanize.Comma(stats.TotalPages)},
		{"Words Seen", humanize.Comma(stats.TotalWords)},
		{"Words Augmented", fmt.Sprintf("%s (%s)", humanize.Comma(stats.TotalAugmented), percent(stats.TotalAugmented, stats.TotalWords))},
		{"Overlay Boxes", humanize.Comma(stats.TotalBoxes)},
		{"OCR Calls", humanize.Comma(stats.TotalOCRCalls)},
		{"Degraded Elements", humanize.Comma(stats.TotalDegraded)},
		{"Input Size", humanize.Bytes(uint64(stats.TotalBytesIn))},
		{"Output Size", humanize.Bytes(uint64(stats.TotalBytesOut))},
		{"Total Duration", formatDuration(stats.TotalDuration)},
		{"Database Created", formatTime(stats.CreatedAt)},
		{"Last Updated", formatTime(stats.LastUpdated)},
	})

	fmt.Fprintln(v.out)
	v.printSection("Performance", [][]string{
		{"Avg Pages/Second", fmt.Sprintf("%.2f", stats.PerformanceStats.AveragePagesPerSecond)},
		{"Avg Words/Second", fmt.Sprintf("%.0f", stats.PerformanceStats.AverageWordsPerSecond)},
		{"Fastest Run", formatDuration(stats.PerformanceStats.FastestRun)},
		{"Slowest Run", formatDuration(stats.PerformanceStats.SlowestRun)},
	})
}

// ShowKindStats 按文档类型显示统计
func (v *Visualizer) ShowKindStats() {
	stats := v.db.GetStats()

	title := color.New(color.FgGreen, color.Bold)
	title.Fprintln(v.out, "Document Types")
	title.Fprintln(v.out, strings.Repeat("=", 50))

	if len(stats.KindStats) == 0 {
		fmt.Fprintln(v.out, "No runs recorded yet.")
		return
	}

	kinds := make([]*KindStats, 0, len(stats.KindStats))
	for _, k := range stats.KindStats {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if kinds[i].RunCount != kinds[j].RunCount {
			return kinds[i].RunCount > kinds[j].RunCount
		}
		return kinds[i].Kind < kinds[j].Kind
	})

	fmt.Fprintln(v.out)
	for i, k := range kinds {
		if i > 0 {
			fmt.Fprintln(v.out)
		}
		v.printSection(strings.ToUpper(k.Kind), [][]string{
			{"Runs", humanize.Comma(k.RunCount)},
			{"Pages", humanize.Comma(k.PageCount)},
			{"Words Augmented", humanize.Comma(k.AugmentedWords)},
			{"Avg File Size", humanize.Bytes(uint64(k.AverageFileSize))},
			{"Success Rate", fmt.Sprintf("%.1f%%", k.SuccessRate*100)},
			{"Avg Duration", formatDuration(k.AverageDuration)},
			{"Last Used", formatTime(k.LastUsed)},
		})
	}
}

// ShowRecentRuns 显示最近的运行
func (v *Visualizer) ShowRecentRuns(limit int) {
	records := v.db.GetRecentRuns(limit)

	title := color.New(color.FgBlue, color.Bold)
	title.Fprintf(v.out, "Recent Runs (Last %d)\n", len(records))
	title.Fprintln(v.out, strings.Repeat("=", 50))

	if len(records) == 0 {
		fmt.Fprintln(v.out, "No runs recorded yet.")
		return
	}

	for i, r := range records {
		if i > 0 {
			fmt.Fprintln(v.out)
		}

		status := "OK  "
		if r.Failed() {
			status = "FAIL"
		}
		heading := fmt.Sprintf("[%s] %s", status, filepath.Base(r.InputFile))
		if len(heading) > 60 {
			heading = heading[:57] + "..."
		}

		v.printSection(heading, [][]string{
			{"ID", r.ID},
			{"When", formatTime(r.Timestamp)},
			{"Kind", r.Kind},
			{"Output", r.OutputFile},
			{"Pages", fmt.Sprintf("%d (%d elements, %d degraded)", r.Summary.Pages, r.Summary.Elements, r.Summary.Degraded)},
			{"Words", fmt.Sprintf("%d of %d augmented", r.Counters.Augmented, r.Counters.Words)},
			{"Boxes", fmt.Sprintf("%d (%d OCR calls)", r.Summary.Boxes, r.Counters.OCRCalls)},
			{"Size", fmt.Sprintf("%s -> %s", humanize.Bytes(uint64(r.InputBytes)), humanize.Bytes(uint64(r.OutputBytes)))},
			{"Duration", formatDuration(r.Duration)},
		})

		if r.ErrorMessage != "" {
			color.New(color.FgRed).Fprintf(v.out, "  Error: %s\n", r.ErrorMessage)
		}
	}
}

// printSection 打印一个统计部分
func (v *Visualizer) printSection(title string, data [][]string) {
	color.New(color.FgYellow, color.Bold).Fprintf(v.out, "%s\n", title)

	maxLabelLen := 0
	for _, row := range data {
		if len(row[0]) > maxLabelLen {
			maxLabelLen = len(row[0])
		}
	}

	labelColor := color.New(color.FgCyan)
	valueColor := color.New(color.FgWhite, color.Bold)
	for _, row := range data {
		labelColor.Fprintf(v.out, "  %-*s: ", maxLabelLen, row[0])
		valueColor.Fprintln(v.out, row[1])
	}
}

func percent(n, total int64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}

// formatDuration 格式化持续时间
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Nanoseconds())/1e6)
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}

	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatTime 当天只显示时间，更早的显示相对时间
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}

	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04:05")
	}
	return fmt.Sprintf("%s (%s)", t.Format("2006-01-02 15:04"), humanize.Time(t))
}

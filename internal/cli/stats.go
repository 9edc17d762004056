package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-glance/internal/stats"
)

var (
	// stats 命令的标志
	statsFormat string
	recentLimit int
	exportPath  string
	resetStats  bool
	assumeYes   bool
	showKinds   bool
)

// NewStatsCommand 创建 stats 命令
func NewStatsCommand() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "查看增强运行的统计",
		Long: `查看历次增强运行的统计，包括:
- 总体统计（页数、单词、覆盖框、OCR 调用）
- 按文档类型的统计
- 最近的运行记录
- 性能指标

示例:
  # 显示概览与最近的运行
  glance stats

  # 显示最近 20 次运行
  glance stats --recent 20

  # 按文档类型显示
  glance stats --kinds

  # 导出为 JSON、CSV 或 TOML
  glance stats --export stats.json
  glance stats --export runs.csv --format csv
  glance stats --export stats.toml --format toml

  # 清空统计
  glance stats --reset`,
		Args: cobra.NoArgs,
		RunE: runStatsCommand,
	}

	statsCmd.Flags().StringVar(&statsFormat, "format", "json", "export format (json, csv, toml)")
	statsCmd.Flags().IntVar(&recentLimit, "recent", 10, "number of recent runs to show")
	statsCmd.Flags().StringVar(&exportPath, "export", "", "export statistics to FILE")
	statsCmd.Flags().BoolVar(&resetStats, "reset", false, "reset all statistics (asks for confirmation)")
	statsCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	statsCmd.Flags().BoolVar(&showKinds, "kinds", false, "show statistics per document type")

	return statsCmd
}

// runStatsCommand 执行 stats 命令
func runStatsCommand(cmd *cobra.Command, args []string) error {
	cfg, log, err := prepare()
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	db, err := stats.NewDatabase(cfg.Stats.Path, log)
	if err != nil {
		return fmt.Errorf("failed to initialize statistics database: %w", err)
	}

	if resetStats {
		return handleStatsReset(cmd, db)
	}
	if exportPath != "" {
		return handleStatsExport(cmd, db)
	}

	visualizer := stats.NewVisualizer(db)
	visualizer.SetOutput(cmd.OutOrStdout())
	if showKinds {
		visualizer.ShowKindStats()
		return nil
	}

	// 默认显示概览和最近的运行
	visualizer.ShowOverview()
	fmt.Fprintln(cmd.OutOrStdout())
	visualizer.ShowRecentRuns(recentLimit)
	return nil
}

// handleStatsReset 处理统计重置
func handleStatsReset(cmd *cobra.Command, db *stats.Database) error {
	out := cmd.OutOrStdout()
	if !assumeYes {
		fmt.Fprint(out, "Are you sure you want to reset all statistics? This cannot be undone. (y/N): ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Statistics reset cancelled.")
			return nil
		}
	}

	if err := db.Reset(); err != nil {
		return fmt.Errorf("failed to reset statistics: %w", err)
	}
	color.New(color.FgGreen).Fprintln(out, "Statistics have been reset.")
	return nil
}

// handleStatsExport 处理统计导出
func handleStatsExport(cmd *cobra.Command, db *stats.Database) error {
	switch statsFormat {
	case "json":
		if err := db.Export(exportPath); err != nil {
			return err
		}
	case "csv", "toml":
		data, err := marshalStats(db.GetStats(), statsFormat)
		if err != nil {
			return fmt.Errorf("failed to marshal statistics: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(exportPath), 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
		if err := os.WriteFile(exportPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write export file: %w", err)
		}
	default:
		return fmt.Errorf("unknown export format %q (want json, csv or toml)", statsFormat)
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Statistics exported to: %s\n", exportPath)
	return nil
}

// marshalStats 序列化统计数据
func marshalStats(data *stats.StatisticsDB, format string) ([]byte, error) {
	if format == "csv" {
		return marshalStatsCSV(data), nil
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// marshalStatsCSV 把最近的运行记录转换为 CSV
func marshalStatsCSV(data *stats.StatisticsDB) []byte {
	var b strings.Builder
	b.WriteString("id,timestamp,input_file,output_file,kind,pages,elements,degraded,boxes,words,augmented,ocr_calls,input_bytes,output_bytes,duration_ms,status\n")
	for _, r := range data.RecentRuns {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%s\n",
			r.ID,
			r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			csvField(r.InputFile),
			csvField(r.OutputFile),
			r.Kind,
			r.Summary.Pages,
			r.Summary.Elements,
			r.Summary.Degraded,
			r.Summary.Boxes,
			r.Counters.Words,
			r.Counters.Augmented,
			r.Counters.OCRCalls,
			r.InputBytes,
			r.OutputBytes,
			r.Duration.Milliseconds(),
			r.Status,
		)
	}
	return []byte(b.String())
}

// csvField 为含逗号或引号的字段加引号
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

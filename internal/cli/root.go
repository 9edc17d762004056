package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/internal/config"
	"github.com/nerdneilsfield/go-glance/internal/logger"
)

var (
	// 全局标志
	cfgFile   string
	debugMode bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "glance",
		Short: "为 PDF 与 EPUB 添加阅读辅助",
		Long: `glance 读取 PDF 或 EPUB，按策略加粗/着色单词的开头部分，
并可为单词（包括扫描图像中经 OCR 识别出的单词）绘制覆盖框，写出增强后的副本。

配置文件依次查找 ~/.config/glance/config.yaml 与 ./.glance.yaml，
环境变量 GLANCE_<SECTION>_<KEY> 覆盖文件中的值。`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/glance/config.yaml or ./.glance.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(NewAugmentCommand())
	rootCmd.AddCommand(NewInspectCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewSetupCommand())
	rootCmd.AddCommand(NewMapFontsCommand())
	rootCmd.AddCommand(NewStatsCommand())
	rootCmd.AddCommand(NewWatchCommand())

	return rootCmd
}

// loadConfig 加载并校验配置，--debug 优先于配置文件
func loadConfig(overrides ...string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile, overrides...)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Debug = true
	}
	return cfg, nil
}

// newLogger 按配置创建日志记录器
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(logger.Options{
		Debug:  cfg.Debug,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// prepare 加载配置并创建日志记录器，供各子命令使用
func prepare(overrides ...string) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(overrides...)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

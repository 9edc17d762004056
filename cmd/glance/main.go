package main

import (
	"os"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/internal/cli"
	"github.com/nerdneilsfield/go-glance/internal/logger"
)

// 版本信息，构建时通过 -ldflags 注入
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	rootCmd := cli.NewRootCommand(Version, Commit, BuildDate)
	if err := rootCmd.Execute(); err != nil {
		log := logger.NewLogger(false)
		log.Error("执行命令失败", zap.Error(err))
		_ = log.Sync()
		pterm.Error.WithWriter(os.Stderr).Println(err)
		os.Exit(1)
	}
}

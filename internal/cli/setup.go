package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-glance/internal/config"
	"github.com/nerdneilsfield/go-glance/pkg/ocr"
)

// setupForce 覆盖已有配置文件
var setupForce bool

// NewSetupCommand 创建 setup 命令
func NewSetupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "创建默认配置文件",
		Long: `写出默认配置文件（--config 指定的路径或 ~/.config/glance/config.yaml），
并报告 OCR 所需的 Tesseract 版本。`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}
	cmd.Flags().BoolVar(&setupForce, "force", false, "overwrite an existing configuration file")
	return cmd
}

func runSetup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	_, err := os.Stat(path)
	switch {
	case err == nil && !setupForce:
		color.New(color.FgYellow).Fprintf(out, "Ignoring setup request; configuration file %s exists.\n", path)
	case err == nil || errors.Is(err, os.ErrNotExist):
		if err := config.SaveConfig(config.NewDefaultConfig(), path); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(out, "Wrote default configuration to %s\n", path)
	default:
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	fmt.Fprintf(out, "Tesseract: %s\n", ocr.Version())
	fmt.Fprintln(out, "Run `glance map-fonts --update-config` to build the font map used for bold text.")
	return nil
}

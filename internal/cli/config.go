package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-glance/internal/config"
)

var (
	// config 命令的标志
	configKey   string
	configValue string
)

// NewConfigCommand 创建 config 命令
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [list|get|set] [KEY] [VALUE]",
		Short: "查看或修改保存的配置",
		Long: `VERB 为 get、set 或 list（默认）。键与值也可以用 --key 与 --value 给出。

示例:
  glance config
  glance config get policy.max_head_len
  glance config set policy.max_head_len 3
  glance config set --key ocr.languages --value eng,deu`,
		Args:      cobra.MaximumNArgs(3),
		ValidArgs: []string{"list", "get", "set"},
		RunE:      runConfig,
	}

	cmd.Flags().StringVar(&configKey, "key", "", "configuration key, e.g. policy.max_head_len")
	cmd.Flags().StringVar(&configValue, "value", "", "new value for set")

	return cmd
}

func runConfig(cmd *cobra.Command, args []string) error {
	verb := "list"
	if len(args) > 0 {
		verb = args[0]
	}
	key, value := configKey, configValue
	if len(args) > 1 {
		key = args[1]
	}
	if len(args) > 2 {
		value = args[2]
	}

	file, err := config.OpenFile(cfgFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch verb {
	case "list":
		renderConfig(out, file)
		return nil
	case "get":
		if key == "" {
			return fmt.Errorf("config get needs a key")
		}
		v, err := file.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatValue(v))
		return nil
	case "set":
		if key == "" {
			return fmt.Errorf("config set needs a key")
		}
		if len(args) < 3 && !cmd.Flags().Changed("value") {
			return fmt.Errorf("config set needs a value")
		}
		if err := file.Set(key, value); err != nil {
			return err
		}
		if err := file.Save(); err != nil {
			return err
		}
		v, _ := file.Get(key)
		color.New(color.FgGreen).Fprintf(out, "%s = %s (saved to %s)\n", key, formatValue(v), file.Path())
		return nil
	}
	return fmt.Errorf("unknown verb %q (want list, get or set)", verb)
}

func renderConfig(w io.Writer, file *config.File) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(file.Path())
	tw.AppendHeader(table.Row{"Key", "Value"})
	for _, k := range file.Keys() {
		v, _ := file.Get(k)
		tw.AppendRow(table.Row{k, formatValue(v)})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

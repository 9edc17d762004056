package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tsawler/tabula/text"

	"github.com/nerdneilsfield/go-glance/pkg/augment"
	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/notify"
	"github.com/nerdneilsfield/go-glance/pkg/traverse"
)

var (
	// inspect 命令的标志
	inspectInput  string
	inspectPages  string
	inspectFonts  bool
	inspectJSON   bool
	inspectText   bool
	inspectIsEPUB bool
)

// fragmentSource 由能按页提取文本片段的文档实现
type fragmentSource interface {
	TextFragments(page int) ([]text.TextFragment, error)
}

// NewInspectCommand 创建 inspect 命令
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "只读地列出文档中的元素",
		Long: `以只读方式遍历文档，列出每个选中页上的文本、图像与路径元素。

示例:
  glance inspect -i paper.pdf --pages 1-2 --fonts
  glance inspect -i book.epub --json`,
		RunE: runInspect,
	}

	f := cmd.Flags()
	f.StringVarP(&inspectInput, "read", "i", "", "read PDF/EPUB from PATH")
	f.StringVar(&inspectPages, "pages", "", "only inspect these pages, e.g. 1,3-5")
	f.BoolVar(&inspectFonts, "fonts", false, "show the font of text elements")
	f.BoolVar(&inspectJSON, "json", false, "print elements as JSON")
	f.BoolVar(&inspectText, "text", false, "print extracted text fragments per PDF page")
	f.BoolVar(&inspectIsEPUB, "is-epub", false, "treat the input as EPUB regardless of extension")
	_ = cmd.MarkFlagRequired("read")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	var overrides []string
	if cmd.Flags().Changed("pages") {
		overrides = append(overrides, "augment.pages="+inspectPages)
	}
	cfg, log, err := prepare(overrides...)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	kind, err := backend.DetectKind(inspectInput, inspectIsEPUB)
	if err != nil {
		return err
	}
	filter, err := cfg.PageFilter()
	if err != nil {
		return err
	}

	r := &runner{cfg: cfg, log: log, out: cmd.ErrOrStderr()}
	doc, err := r.open(cmd.Context(), inspectInput, kind, backend.ReadOnly)
	if err != nil {
		return err
	}
	defer doc.Close()

	bus := notify.NewBus(log)
	inspector := augment.NewInspector(log)
	inspector.Register(bus)
	if _, err := traverse.NewEngine(bus, log, traverse.WithPageFilter(filter)).Run(cmd.Context(), doc, backend.ReadOnly); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inspectJSON {
		if err := inspector.WriteJSON(out); err != nil {
			return err
		}
	} else {
		inspector.RenderTable(out, inspectFonts)
	}

	if !inspectText {
		return nil
	}
	src, ok := doc.(fragmentSource)
	if !ok {
		return fmt.Errorf("--text is only supported for PDF documents")
	}
	for n := 1; n <= doc.PageCount(); n++ {
		if !filter.Selected(n) {
			continue
		}
		frags, err := src.TextFragments(n)
		if err != nil {
			return fmt.Errorf("failed to extract text of page %d: %w", n, err)
		}
		renderFragments(out, n, frags)
	}
	return nil
}

func renderFragments(w io.Writer, page int, frags []text.TextFragment) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(fmt.Sprintf("Page %d", page))
	tw.AppendHeader(table.Row{"X", "Y", "Size", "Font", "Text"})
	for _, f := range frags {
		tw.AppendRow(table.Row{
			fmt.Sprintf("%.1f", f.X),
			fmt.Sprintf("%.1f", f.Y),
			fmt.Sprintf("%.1f", f.FontSize),
			f.FontName,
			f.Text,
		})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

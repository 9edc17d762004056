package augment

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/notify"
)

// Record 是检查器记录的一个元素
type Record struct {
	Page  int               `json:"page"`
	Index int               `json:"index"`
	Type  string            `json:"type"`
	BBox  backend.Rect      `json:"bbox"`
	Text  string            `json:"text,omitempty"`
	Font  *backend.FontInfo `json:"font,omitempty"`
	Image *ImageSize        `json:"image,omitempty"`
}

// ImageSize 是图像元素的像素尺寸
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Inspector 只读地记录选中页上的每个元素
type Inspector struct {
	records []Record
	logger  *zap.Logger
}

// NewInspector 创建检查器
func NewInspector(logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{logger: logger}
}

// Register 订阅元素事件
func (i *Inspector) Register(bus *notify.Bus) {
	bus.OnElement(i.element)
}

// Records 返回按遍历顺序记录的元素
func (i *Inspector) Records() []Record { return i.records }

func (i *Inspector) element(ev notify.Element) error {
	if !ev.Selected {
		return nil
	}
	el := ev.Element
	r := Record{
		Page:  ev.PageNumber,
		Index: ev.Index,
		Type:  el.Name(),
		BBox:  el.BBox,
	}
	if el.Text != nil {
		r.Text = el.Text.Content
		font := el.Text.Font
		r.Font = &font
	}
	if el.Image != nil {
		r.Image = &ImageSize{Width: el.Image.Width, Height: el.Image.Height}
	}
	i.records = append(i.records, r)
	return nil
}

// RenderTable 以表格输出记录，showFonts 时增加字体列
func (i *Inspector) RenderTable(w io.Writer, showFonts bool) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	header := table.Row{"Page", "Index", "Type", "BBox", "Content"}
	if showFonts {
		header = append(header, "Font")
	}
	tw.AppendHeader(header)

	for _, r := range i.records {
		row := table.Row{r.Page, r.Index, r.Type, formatRect(r.BBox), content(r)}
		if showFonts {
			row = append(row, formatFont(r.Font))
		}
		tw.AppendRow(row)
	}
	tw.AppendFooter(table.Row{"", "", "", "elements", humanize.Comma(int64(len(i.records)))})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// WriteJSON 以 JSON 数组输出记录
func (i *Inspector) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	records := i.records
	if records == nil {
		records = []Record{}
	}
	return enc.Encode(records)
}

func content(r Record) string {
	switch {
	case r.Image != nil:
		return fmt.Sprintf("%dx%d px (%s pixels)", r.Image.Width, r.Image.Height,
			humanize.Comma(int64(r.Image.Width)*int64(r.Image.Height)))
	case r.Text != "":
		return text.Trim(fmt.Sprintf("%q", r.Text), 48)
	}
	return ""
}

func formatRect(b backend.Rect) string {
	if b == (backend.Rect{}) {
		return "-"
	}
	return fmt.Sprintf("%.1f,%.1f %.1fx%.1f", b.X, b.Y, b.Width, b.Height)
}

func formatFont(f *backend.FontInfo) string {
	if f == nil || f.Family == "" {
		return ""
	}
	s := fmt.Sprintf("%s %.1fpt", f.Family, f.Size)
	if f.Bold {
		s += " bold"
	}
	if f.Italic {
		s += " italic"
	}
	return s
}

package pdf

import (
	"fmt"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// builder 为页面创建新元素
type builder struct {
	page *Page
}

// LoadFont 加载一个 TrueType/OpenType 字体，同一路径在文档内只加载一次
func (b *builder) LoadFont(path string) (backend.FontHandle, error) {
	f, err := b.page.doc.fonts.load(path)
	if err != nil {
		return nil, backend.NewBackendError("load font", path, err)
	}
	return f, nil
}

// CreateTextRun 用嵌入字体创建一段文本，位置由写出时的文本游标决定
func (b *builder) CreateTextRun(text string, handle backend.FontHandle, size float64) (*backend.Element, error) {
	f, ok := handle.(*embeddedFont)
	if !ok {
		return nil, fmt.Errorf("font %q was not loaded by the pdf backend: %w", fontName(handle), backend.ErrUnsupported)
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid font size %g", size)
	}
	codes := f.encode(text)
	width := f.textWidth(codes) / 1000 * size
	return &backend.Element{
		Type:     backend.ElementText,
		TypeName: backend.ElementText.String(),
		BBox:     backend.Rect{Width: width, Height: size},
		Text: &backend.TextInfo{
			Content: text,
			Font: backend.FontInfo{
				Family: f.family,
				Bold:   f.bold,
				Italic: f.italic,
				Size:   size,
				Handle: f,
			},
		},
		Native: &createdRun{font: f, codes: codes, size: size},
	}, nil
}

// SliceText 截取源文本元素的一段字符，保留原字体与编码
func (b *builder) SliceText(src *backend.Element, start, end int) (*backend.Element, error) {
	if src == nil || src.Text == nil {
		return nil, fmt.Errorf("slice of a non-text element: %w", backend.ErrUnsupported)
	}
	run, ok := src.Native.(*textRun)
	if !ok {
		return nil, fmt.Errorf("element %s is not source text: %w", src.Name(), backend.ErrUnsupported)
	}
	runes := []rune(src.Text.Content)
	if start < 0 || end > len(runes) || start > end {
		return nil, fmt.Errorf("slice [%d,%d) out of range for %d characters", start, end, len(runes))
	}

	el := &backend.Element{
		Type:     backend.ElementText,
		TypeName: backend.ElementText.String(),
		BBox:     src.BBox,
		Text: &backend.TextInfo{
			Content: string(runes[start:end]),
			Font:    src.Text.Font,
		},
		Native: &textSlice{run: run, start: start, end: end},
	}
	if x, w, ok := src.Text.Span(start, end); ok {
		el.BBox.X, el.BBox.Width = x, w
		el.Text.Advances = append([]float64(nil), src.Text.Advances[start:end+1]...)
	}
	return el, nil
}

// CreateRect 创建一个填充矩形
func (b *builder) CreateRect(x, y, w, h float64) (*backend.Element, error) {
	return &backend.Element{
		Type:     backend.ElementRect,
		TypeName: backend.ElementRect.String(),
		BBox:     backend.Rect{X: x, Y: y, Width: w, Height: h},
		Native:   &rectShape{},
	}, nil
}

func fontName(h backend.FontHandle) string {
	if h == nil {
		return "<nil>"
	}
	return h.Name()
}

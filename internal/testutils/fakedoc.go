package testutils

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// FakeDocument 是内存中的文档，用于测试遍历与处理器
type FakeDocument struct {
	Path    string
	Pages   []*FakePage
	Saved   []string
	NextErr error

	pos    int
	closed bool
}

// NewFakeDocument 创建内存文档，页码按顺序从 1 开始
func NewFakeDocument(path string, pages ...[]*backend.Element) *FakeDocument {
	doc := &FakeDocument{Path: path}
	for i, els := range pages {
		doc.Pages = append(doc.Pages, NewFakePage(i+1, els...))
	}
	return doc
}

func (d *FakeDocument) SourcePath() string { return d.Path }
func (d *FakeDocument) PageCount() int { return len(d.Pages) }

func (d *FakeDocument) NextPage(ctx context.Context) (backend.Page, error) {
	if d.closed {
		return nil, backend.ErrClosed
	}
	if d.NextErr != nil {
		return nil, d.NextErr
	}
	if d.pos >= len(d.Pages) {
		return nil, io.EOF
	}
	p := d.Pages[d.pos]
	d.pos++
	return p, nil
}

func (d *FakeDocument) Save(ctx context.Context, path string) error {
	if d.closed {
		return backend.ErrClosed
	}
	if err := backend.CheckOutputPath(path, d.Path); err != nil {
		return err
	}
	d.Saved = append(d.Saved, path)
	return nil
}

func (d *FakeDocument) Close() error {
	if d.closed {
		return backend.ErrClosed
	}
	d.closed = true
	return nil
}

// Closed 返回文档是否已关闭
func (d *FakeDocument) Closed() bool { return d.closed }

// FakePage 是内存中的一页
type FakePage struct {
	Num      int
	Box      *backend.Rect
	Elements []*backend.Element
	Placed   []backend.PlacedImage
	Finished bool
	W        *FakeWriter
	B        *FakeBuilder

	pos int
}

// NewFakePage 创建一页
func NewFakePage(num int, els ...*backend.Element) *FakePage {
	return &FakePage{
		Num:      num,
		Box:      &backend.Rect{Width: 612, Height: 792},
		Elements: els,
		W:        &FakeWriter{},
		B:        &FakeBuilder{},
	}
}

func (p *FakePage) Number() int { return p.Num }
func (p *FakePage) BBox() *backend.Rect { return p.Box }

func (p *FakePage) Next(ctx context.Context) (*backend.Element, error) {
	if p.pos >= len(p.Elements) {
		return nil, io.EOF
	}
	el := p.Elements[p.pos]
	p.pos++
	return el, nil
}

func (p *FakePage) Writer() backend.Writer { return p.W }
func (p *FakePage) Builder() backend.Builder { return p.B }
func (p *FakePage) Images() []backend.PlacedImage { return p.Placed }
func (p *FakePage) Finish() error { p.Finished = true; return nil }

// FakeWriter 记录写出的元素
type FakeWriter struct {
	Written  []*backend.Element
	Placed   []*backend.Element
	WriteErr error
}

func (w *FakeWriter) Write(el *backend.Element) error {
	if w.WriteErr != nil {
		return w.WriteErr
	}
	w.Written = append(w.Written, el)
	return nil
}

func (w *FakeWriter) WritePlaced(el *backend.Element) error {
	w.Placed = append(w.Placed, el)
	return nil
}

func (w *FakeWriter) Checkpoint() int { return len(w.Written) }

func (w *FakeWriter) Rollback(mark int) {
	if mark >= 0 && mark < len(w.Written) {
		w.Written = w.Written[:mark]
	}
}

// Texts 返回写出的文本内容
func (w *FakeWriter) Texts() []string {
	var out []string
	for _, el := range w.Written {
		if el.Text != nil {
			out = append(out, el.Text.Content)
		}
	}
	return out
}

// FakeFont 是测试字体句柄
type FakeFont struct {
	Path string
}

func (f FakeFont) Name() string { return f.Path }
func (f FakeFont) Bold() bool { return true }
func (f FakeFont) Italic() bool { return false }

// FakeBuilder 构造测试元素
type FakeBuilder struct {
	Loaded  []string
	LoadErr error
	RectErr error
}

func (b *FakeBuilder) LoadFont(path string) (backend.FontHandle, error) {
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	b.Loaded = append(b.Loaded, path)
	return FakeFont{Path: path}, nil
}

func (b *FakeBuilder) CreateTextRun(text string, font backend.FontHandle, size float64) (*backend.Element, error) {
	info := backend.FontInfo{Size: size, Handle: font}
	if font != nil {
		info.Family = font.Name()
		info.Bold = font.Bold()
	}
	return &backend.Element{
		Type:   backend.ElementText,
		Text:   &backend.TextInfo{Content: text, Font: info},
		Native: "run",
	}, nil
}

func (b *FakeBuilder) SliceText(src *backend.Element, start, end int) (*backend.Element, error) {
	if !src.IsText() {
		return nil, errors.New("not a text element")
	}
	runes := []rune(src.Text.Content)
	if start < 0 || end > len(runes) || start > end {
		return nil, fmt.Errorf("slice [%d,%d) out of range", start, end)
	}
	text := *src.Text
	text.Content = string(runes[start:end])
	if len(src.Text.Advances) == len(runes)+1 {
		text.Advances = src.Text.Advances[start : end+1]
	}
	return &backend.Element{
		Type:   backend.ElementText,
		BBox:   src.BBox,
		Text:   &text,
		Native: "slice",
	}, nil
}

func (b *FakeBuilder) CreateRect(x, y, w, h float64) (*backend.Element, error) {
	if b.RectErr != nil {
		return nil, b.RectErr
	}
	return &backend.Element{
		Type: backend.ElementRect,
		BBox: backend.Rect{X: x, Y: y, Width: w, Height: h},
	}, nil
}

// TextElement 构造一个带逐字符推进量的文本元素，每个字符宽 width
func TextElement(content string, x, y, size, width float64) *backend.Element {
	runes := []rune(content)
	adv := make([]float64, len(runes)+1)
	for i := range adv {
		adv[i] = x + float64(i)*width
	}
	return &backend.Element{
		Type: backend.ElementText,
		BBox: backend.Rect{X: x, Y: y, Width: float64(len(runes)) * width, Height: size},
		Text: &backend.TextInfo{
			Content:  content,
			Font:     backend.FontInfo{Family: "Times", Size: size},
			Advances: adv,
		},
	}
}

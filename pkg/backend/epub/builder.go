package epub

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// cssFont 是以 CSS 属性表达的字体，不对应任何字体文件
type cssFont struct {
	name   string
	bold   bool
	italic bool
}

func (f *cssFont) Name() string { return f.name }
func (f *cssFont) Bold() bool   { return f.bold }
func (f *cssFont) Italic() bool { return f.italic }

type builder struct {
	page *Page
}

// LoadFont 不读取文件，只按名称推断粗体与斜体，例如 "bold" 或 "NotoSerif-BoldItalic.ttf"
func (b *builder) LoadFont(path string) (backend.FontHandle, error) {
	if path == "" {
		return nil, fmt.Errorf("empty font name")
	}
	name := strings.ToLower(filepath.Base(path))
	return &cssFont{
		name:   path,
		bold:   strings.Contains(name, "bold") || strings.Contains(name, "black") || strings.Contains(name, "heavy"),
		italic: strings.Contains(name, "italic") || strings.Contains(name, "oblique"),
	}, nil
}

// CreateTextRun 生成 <span class="glance">，字号由阅读器决定
func (b *builder) CreateTextRun(text string, font backend.FontHandle, size float64) (*backend.Element, error) {
	c := &created{text: text, styled: true}
	if font != nil {
		f, ok := font.(*cssFont)
		if !ok {
			return nil, fmt.Errorf("font %s was not loaded by this backend: %w", font.Name(), backend.ErrUnsupported)
		}
		c.font = f
	}
	return &backend.Element{
		Type:     backend.ElementText,
		TypeName: "span",
		Text: &backend.TextInfo{
			Content: text,
			Font:    fontInfo(c.font, size),
		},
		Native: c,
	}, nil
}

func fontInfo(f *cssFont, size float64) backend.FontInfo {
	info := backend.FontInfo{Size: size}
	if f != nil {
		info.Family = f.name
		info.Bold = f.bold
		info.Italic = f.italic
		info.Handle = f
	}
	return info
}

// SliceText 截取原始文本节点中的字符，写出时成为新的文本节点
func (b *builder) SliceText(src *backend.Element, start, end int) (*backend.Element, error) {
	s, ok := src.Native.(*source)
	if !ok || s.node.Type != html.TextNode {
		return nil, fmt.Errorf("cannot slice %s: %w", src.Name(), backend.ErrUnsupported)
	}
	runes := []rune(s.node.Data)
	if start < 0 || end > len(runes) || start > end {
		return nil, fmt.Errorf("slice [%d,%d) out of range for %d characters", start, end, len(runes))
	}
	text := string(runes[start:end])
	return &backend.Element{
		Type:   backend.ElementText,
		Text:   &backend.TextInfo{Content: text},
		Native: &created{para: s.para, text: text},
	}, nil
}

// CreateRect 标记文档不支持覆盖框
func (b *builder) CreateRect(x, y, w, h float64) (*backend.Element, error) {
	return nil, backend.ErrUnsupported
}

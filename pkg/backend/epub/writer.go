package epub

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// SpanClass 是增强片段的 class 属性
const SpanClass = "glance"

// entry 是写入某个段落的一个节点
type entry struct {
	para    *html.Node
	node    *html.Node
	created bool
}

// chapterWriter 记录每个段落的新子节点序列，Finish 时重建段落
type chapterWriter struct {
	page    *Page
	entries []entry
}

func newChapterWriter(p *Page) *chapterWriter {
	return &chapterWriter{page: p}
}

func (w *chapterWriter) Write(el *backend.Element) error {
	if el == nil {
		return fmt.Errorf("nil element")
	}
	switch n := el.Native.(type) {
	case *source:
		w.entries = append(w.entries, entry{para: n.para, node: n.node})
	case *created:
		para := n.para
		if para == nil {
			para = w.page.current
		}
		if para == nil {
			return fmt.Errorf("created element written outside a paragraph: %w", backend.ErrUnsupported)
		}
		node := n.render(el)
		if node == nil {
			return nil
		}
		w.entries = append(w.entries, entry{para: para, node: node, created: true})
	default:
		return fmt.Errorf("element %s does not belong to this chapter", el.Name())
	}
	return nil
}

// WritePlaced 标记文档没有页面坐标空间
func (w *chapterWriter) WritePlaced(el *backend.Element) error {
	return backend.ErrUnsupported
}

func (w *chapterWriter) Checkpoint() int { return len(w.entries) }

func (w *chapterWriter) Rollback(mark int) {
	if mark >= 0 && mark < len(w.entries) {
		w.entries = w.entries[:mark]
	}
}

func (w *chapterWriter) modified() bool {
	for _, e := range w.entries {
		if e.created {
			return true
		}
	}
	return false
}

// rebuild 用写入的节点替换含新建元素的段落的子节点，返回重建的段落数
func (w *chapterWriter) rebuild() int {
	var order []*html.Node
	children := make(map[*html.Node][]*html.Node)
	changed := make(map[*html.Node]bool)
	for _, e := range w.entries {
		if _, ok := children[e.para]; !ok {
			order = append(order, e.para)
		}
		children[e.para] = append(children[e.para], e.node)
		if e.created {
			changed[e.para] = true
		}
	}

	rebuilt := 0
	for _, para := range order {
		if !changed[para] {
			continue
		}
		rebuilt++
		for c := para.FirstChild; c != nil; {
			next := c.NextSibling
			para.RemoveChild(c)
			c = next
		}
		for _, n := range children[para] {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
			para.AppendChild(n)
		}
	}
	return rebuilt
}

// created 是新建的元素，写入时才生成节点，以便使用元素上设置的填充色
type created struct {
	para   *html.Node
	text   string
	font   *cssFont
	styled bool
}

func (c *created) render(el *backend.Element) *html.Node {
	if c.text == "" {
		return nil
	}
	text := &html.Node{Type: html.TextNode, Data: c.text}
	var style strings.Builder
	if c.font != nil && c.font.bold {
		style.WriteString("font-weight:bold;")
	}
	if c.font != nil && c.font.italic {
		style.WriteString("font-style:italic;")
	}
	if el.Fill != nil {
		style.WriteString("color:")
		style.WriteString(el.Fill.Hex())
		style.WriteString(";")
	}
	if !c.styled && style.Len() == 0 {
		return text
	}

	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: "class", Val: SpanClass}},
	}
	if style.Len() > 0 {
		span.Attr = append(span.Attr, html.Attribute{Key: "style", Val: style.String()})
	}
	span.AppendChild(text)
	return span
}

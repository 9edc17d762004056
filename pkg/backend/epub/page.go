package epub

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/tsawler/tabula/epubdoc"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// source 指向章节中的一个原始节点
type source struct {
	para *html.Node
	node *html.Node
}

// Page 是一个章节。元素是每个段落 <p> 的直接子节点，按文档顺序排列。
type Page struct {
	doc     *Document
	number  int
	chapter *epubdoc.Chapter

	prolog []byte
	root   *html.Node
	items  []source
	pos    int
	// current 是最近读出的元素所属段落，新建元素挂在这里
	current *html.Node

	writer  *chapterWriter
	builder *builder
}

func newPage(doc *Document, number int, ch *epubdoc.Chapter) (*Page, error) {
	prolog, body := splitProlog(ch.Content)
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(expandSelfClosing(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse chapter: %w", err)
	}

	p := &Page{
		doc:     doc,
		number:  number,
		chapter: ch,
		prolog:  prolog,
		root:    parsed.Nodes[0],
	}
	parsed.Find("p").Each(func(_ int, s *goquery.Selection) {
		para := s.Nodes[0]
		for c := para.FirstChild; c != nil; c = c.NextSibling {
			p.items = append(p.items, source{para: para, node: c})
		}
	})
	p.builder = &builder{page: p}
	if doc.mode == backend.ReadWrite {
		p.writer = newChapterWriter(p)
	}

	doc.logger.Debug("解析章节",
		zap.Int("chapter", number),
		zap.String("href", ch.Href),
		zap.Int("elements", len(p.items)))
	return p, nil
}

func (p *Page) Number() int { return p.number }

// BBox 章节没有页面几何
func (p *Page) BBox() *backend.Rect { return nil }

func (p *Page) Next(ctx context.Context) (*backend.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.items) {
		return nil, io.EOF
	}
	item := p.items[p.pos]
	p.pos++
	p.current = item.para
	return elementFor(item), nil
}

func elementFor(item source) *backend.Element {
	n := item.node
	src := &item
	if n.Type == html.TextNode {
		return &backend.Element{
			Type:   backend.ElementText,
			Text:   &backend.TextInfo{Content: n.Data},
			Native: src,
		}
	}
	el := &backend.Element{Type: backend.ElementStructural, Native: src}
	switch n.Type {
	case html.ElementNode:
		el.TypeName = "structural:" + n.Data
	case html.CommentNode:
		el.TypeName = "structural:comment"
	}
	return el
}

func (p *Page) Writer() backend.Writer {
	if p.writer == nil {
		return nil
	}
	return p.writer
}

func (p *Page) Builder() backend.Builder { return p.builder }

// Images 章节没有可供整页 OCR 的栅格放置
func (p *Page) Images() []backend.PlacedImage { return nil }

// Finish 重建被修改的段落，并把章节的新内容交给文档
func (p *Page) Finish() error {
	if p.writer == nil || !p.writer.modified() {
		return nil
	}
	rebuilt := p.writer.rebuild()

	var buf bytes.Buffer
	buf.Write(p.prolog)
	if err := renderXHTML(&buf, p.root); err != nil {
		return backend.NewBackendError("render chapter", p.chapter.Href, err)
	}
	p.doc.replace(p.chapter.Href, buf.Bytes())
	p.doc.logger.Debug("章节已修改",
		zap.Int("chapter", p.number),
		zap.Int("paragraphs", rebuilt))
	return nil
}

// Package epub 实现按章节组织的标记文档（EPUB）后端。
// 每个书脊章节是一页，页内元素是各段落 <p> 的直接子节点。
package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/tsawler/tabula/epubdoc"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// DefaultContributor 是写入 OPF 的增强来源说明
const DefaultContributor = "Augmented using go-glance"

// Opener 打开 EPUB 文档
type Opener struct {
	logger      *zap.Logger
	contributor string
}

// Option 配置 Opener
type Option func(*Opener)

// WithContributor 设置保存时写入 <dc:contributor> 的文字
func WithContributor(text string) Option {
	return func(o *Opener) {
		if text != "" {
			o.contributor = text
		}
	}
}

// NewOpener 创建 EPUB 后端
func NewOpener(logger *zap.Logger, opts ...Option) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Opener{logger: logger, contributor: DefaultContributor}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Opener) Kind() backend.Kind { return backend.KindEPUB }

// Open 读取书脊章节与 OPF 位置。带 DRM 的文档会被拒绝。
func (o *Opener) Open(ctx context.Context, path string, mode backend.Mode) (backend.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	book, err := epubdoc.Open(path)
	if err != nil {
		return nil, backend.NewBackendError("open", path, err)
	}
	opfPath, err := findOPF(path)
	if err != nil {
		book.Close()
		return nil, backend.NewBackendError("open", path, err)
	}

	d := &Document{
		path:        path,
		mode:        mode,
		book:        book,
		chapters:    book.Chapters(),
		opfPath:     opfPath,
		contributor: o.contributor,
		replaced:    make(map[string][]byte),
		logger:      o.logger.With(zap.String("document", path)),
	}
	d.logger.Debug("打开 EPUB 文档",
		zap.Int("chapters", len(d.chapters)),
		zap.String("title", book.Metadata().Title),
		zap.Stringer("mode", mode))
	return d, nil
}

// findOPF 从 META-INF/container.xml 读取 OPF 路径
func findOPF(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	data, err := readEntry(&zr.Reader, "META-INF/container.xml")
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}
	full, ok := doc.Find("rootfile").First().Attr("full-path")
	if !ok || full == "" {
		return "", fmt.Errorf("container.xml has no rootfile")
	}
	return full, nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// Document 是一个打开的 EPUB 文档
type Document struct {
	path        string
	mode        backend.Mode
	book        *epubdoc.Reader
	chapters    []*epubdoc.Chapter
	opfPath     string
	contributor string
	pos         int
	logger      *zap.Logger

	mu       sync.Mutex
	replaced map[string][]byte
	closed   bool
}

func (d *Document) SourcePath() string { return d.path }
func (d *Document) PageCount() int     { return len(d.chapters) }

// Metadata 返回 OPF 中的都柏林核心元数据
func (d *Document) Metadata() epubdoc.Metadata { return d.book.Metadata() }

// NextPage 解析下一个章节
func (d *Document) NextPage(ctx context.Context) (backend.Page, error) {
	if d.closed {
		return nil, backend.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pos >= len(d.chapters) {
		return nil, io.EOF
	}
	ch := d.chapters[d.pos]
	d.pos++
	p, err := newPage(d, d.pos, ch)
	if err != nil {
		return nil, backend.NewBackendError("read chapter", ch.Href, err)
	}
	return p, nil
}

func (d *Document) Close() error {
	if d.closed {
		return backend.ErrClosed
	}
	d.closed = true
	return d.book.Close()
}

func (d *Document) replace(name string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replaced[name] = data
}

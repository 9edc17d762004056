// Package pdf 实现分页二进制文档（PDF）后端：用 tabula 读取页面树与内容流，
// 按元素重写内容，并以增量更新的方式保存。
package pdf

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/text"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// DefaultProducer 是写入 /Producer 的默认来源标记
const DefaultProducer = "go-glance"

// Opener 打开 PDF 文档
type Opener struct {
	logger   *zap.Logger
	producer string
}

// Option 配置 Opener
type Option func(*Opener)

// WithProducer 设置保存时写入 /Producer 的来源标记
func WithProducer(producer string) Option {
	return func(o *Opener) {
		if producer != "" {
			o.producer = producer
		}
	}
}

// NewOpener 创建 PDF 后端
func NewOpener(logger *zap.Logger, opts ...Option) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Opener{logger: logger, producer: DefaultProducer}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Opener) Kind() backend.Kind { return backend.KindPDF }

// Open 打开文档并展开页面树
func (o *Opener) Open(ctx context.Context, path string, mode backend.Mode) (backend.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := reader.Open(path)
	if err != nil {
		return nil, backend.NewBackendError("open", path, err)
	}
	if r.Trailer().Get("Encrypt") != nil {
		r.Close()
		return nil, backend.NewBackendError("open", path, fmt.Errorf("encrypted documents are not supported: %w", backend.ErrUnsupported))
	}

	d := &Document{
		path:     path,
		mode:     mode,
		r:        r,
		fonts:    newFontRegistry(),
		logger:   o.logger.With(zap.String("document", path)),
		producer: o.producer,
	}
	entries, err := d.walkPages()
	if err != nil {
		r.Close()
		return nil, backend.NewBackendError("open", path, err)
	}
	d.entries = entries
	d.logger.Debug("打开 PDF 文档", zap.Int("pages", len(entries)), zap.Stringer("mode", mode))
	return d, nil
}

// Document 是一个打开的 PDF 文档
type Document struct {
	path     string
	mode     backend.Mode
	r        *reader.Reader
	entries  []pageEntry
	pos      int
	fonts    *fontRegistry
	logger   *zap.Logger
	producer string

	mu      sync.Mutex
	updates []*pageUpdate
	closed  bool
}

func (d *Document) SourcePath() string { return d.path }
func (d *Document) PageCount() int     { return len(d.entries) }

// NextPage 构造下一页
func (d *Document) NextPage(ctx context.Context) (backend.Page, error) {
	if d.closed {
		return nil, backend.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pos >= len(d.entries) {
		return nil, io.EOF
	}
	p := newPage(d, d.pos+1, d.entries[d.pos])
	d.pos++
	return p, nil
}

// TextFragments 用 tabula 的文本提取器读取指定页（从 1 开始）的文本片段
func (d *Document) TextFragments(number int) ([]text.TextFragment, error) {
	if number < 1 || number > len(d.entries) {
		return nil, fmt.Errorf("page %d out of range", number)
	}
	p := newPage(d, number, d.entries[number-1])
	return d.r.ExtractTextFragments(p.tp)
}

// Close 释放底层文件，只能调用一次
func (d *Document) Close() error {
	if d.closed {
		return backend.ErrClosed
	}
	d.closed = true
	return d.r.Close()
}

// resolve 解析间接引用，nil 原样返回
func (d *Document) resolve(obj core.Object) (core.Object, error) {
	if obj == nil {
		return nil, nil
	}
	return d.r.Resolve(obj)
}

func (d *Document) addUpdate(u *pageUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, u)
}

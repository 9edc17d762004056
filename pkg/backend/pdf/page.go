package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// Page 是 PDF 文档中的一页
type Page struct {
	doc       *Document
	number    int
	entry     pageEntry
	tp        *pages.Page
	resources core.Dict
	bbox      *backend.Rect

	ops     []contentstream.Operation
	pos     int
	tracker *tracker
	fonts   map[string]*pageFont

	placements []backend.PlacedImage
	imgOnce    sync.Once
	images     map[string]*reader.PageImage

	writer  *pageWriter
	builder *builder
}

func newPage(doc *Document, number int, entry pageEntry) *Page {
	p := &Page{
		doc:     doc,
		number:  number,
		entry:   entry,
		tp:      pages.NewPage(entry.dict, entry.inherited, doc.r),
		tracker: newTracker(),
	}

	if res, err := p.tp.Resources(); err == nil {
		p.resources = res
	} else {
		p.resources = core.Dict{}
	}
	p.fonts = loadPageFonts(p.resources, doc.resolve)

	box, err := p.tp.CropBox()
	if err != nil {
		box, err = p.tp.MediaBox()
	}
	if err == nil && len(box) == 4 {
		p.bbox = &backend.Rect{X: box[0], Y: box[1], Width: box[2] - box[0], Height: box[3] - box[1]}
	}

	data, err := p.content()
	if err != nil {
		doc.logger.Warn("无法读取页面内容，页面保持不变", zap.Int("page", number), zap.Error(err))
	} else if ops, err := parseContent(data); err != nil {
		doc.logger.Warn("无法解析页面内容，页面保持不变", zap.Int("page", number), zap.Error(err))
	} else {
		p.ops = ops
	}

	p.placements = p.scanPlacements()
	p.builder = &builder{page: p}
	if doc.mode == backend.ReadWrite {
		p.writer = newPageWriter(p)
	}
	return p
}

// content 解码并拼接页面的所有内容流
func (p *Page) content() ([]byte, error) {
	streams, err := p.tp.Contents()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for i, obj := range streams {
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		data, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode content stream %d: %w", i, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (p *Page) Number() int         { return p.number }
func (p *Page) BBox() *backend.Rect { return p.bbox }

func (p *Page) Next(ctx context.Context) (*backend.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.ops) {
		return nil, io.EOF
	}
	el, next := p.readElement(p.pos)
	p.pos = next
	return el, nil
}

func (p *Page) Writer() backend.Writer {
	if p.writer == nil {
		return nil
	}
	return p.writer
}

func (p *Page) Builder() backend.Builder { return p.builder }

func (p *Page) Images() []backend.PlacedImage { return p.placements }

// Finish 生成新的页面内容；未修改的页面保持原字节
func (p *Page) Finish() error {
	if p.writer == nil || !p.writer.modified() {
		return nil
	}
	content, err := p.writer.content()
	if err != nil {
		return err
	}
	p.doc.addUpdate(&pageUpdate{
		entry:     p.entry,
		resources: p.resources,
		content:   content,
		fonts:     p.writer.fonts,
		alphas:    p.writer.alphas,
	})
	return nil
}

// xobject 查找资源中的 XObject 流
func (p *Page) xobject(name string) *core.Stream {
	obj, err := p.doc.resolve(p.resources.Get("XObject"))
	if err != nil {
		return nil
	}
	dict, ok := obj.(core.Dict)
	if !ok {
		return nil
	}
	ref := dict.Get(name)
	if ref == nil {
		ref = dict.Get("/" + name)
	}
	resolved, err := p.doc.resolve(ref)
	if err != nil {
		return nil
	}
	stream, _ := resolved.(*core.Stream)
	return stream
}

func (p *Page) imageInfo(name string, stream *core.Stream) *backend.ImageInfo {
	info := &backend.ImageInfo{Name: name}
	if w, ok := stream.Dict.GetInt("Width"); ok {
		info.Width = int(w)
	}
	if h, ok := stream.Dict.GetInt("Height"); ok {
		info.Height = int(h)
	}
	info.PNG = func() ([]byte, error) {
		img := p.pageImage(name)
		if img == nil {
			return nil, fmt.Errorf("image %s cannot be decoded", name)
		}
		return img.ToPNG()
	}
	return info
}

// pageImage 按需解码页面上的图像，每页只解码一次
func (p *Page) pageImage(name string) *reader.PageImage {
	p.imgOnce.Do(func() {
		p.images = make(map[string]*reader.PageImage)
		imgs, err := p.doc.r.ExtractPageImages(p.tp)
		if err != nil {
			p.doc.logger.Debug("提取页面图像失败", zap.Int("page", p.number), zap.Error(err))
			return
		}
		for i := range imgs {
			p.images[strings.TrimPrefix(imgs[i].Name, "/")] = &imgs[i]
		}
	})
	return p.images[strings.TrimPrefix(name, "/")]
}

// scanPlacements 预先遍历内容流，找出所有图像的放置位置
func (p *Page) scanPlacements() []backend.PlacedImage {
	t := newTracker()
	var out []backend.PlacedImage
	for _, o := range p.ops {
		if o.Operator != "Do" || len(o.Operands) != 1 {
			t.apply(o)
			continue
		}
		name, ok := o.Operands[0].(core.Name)
		if !ok {
			continue
		}
		stream := p.xobject(string(name))
		if stream == nil {
			continue
		}
		if subtype, _ := stream.Dict.GetName("Subtype"); subtype != "Image" {
			continue
		}
		x, y, w, h := t.unitSquare()
		out = append(out, backend.PlacedImage{
			Name:  string(name),
			BBox:  backend.Rect{X: x, Y: y, Width: w, Height: h},
			Image: p.imageInfo(string(name), stream),
		})
	}
	return out
}

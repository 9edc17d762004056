package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

// chunk 是一次写出的内容，同时记录写出之后的状态
type chunk struct {
	data      []byte
	changed   bool
	fontDirty bool
	fillDirty bool
	// run 是正在分段写出的源文本，off 是其已写出部分的文本空间宽度
	run *textRun
	off float64
}

// pageWriter 累积页面的新内容流
type pageWriter struct {
	page   *Page
	chunks []chunk
	placed bytes.Buffer
	boxes  int
	fonts  map[string]*embeddedFont
	alphas map[string]float64
}

func newPageWriter(p *Page) *pageWriter {
	return &pageWriter{
		page:   p,
		fonts:  make(map[string]*embeddedFont),
		alphas: make(map[string]float64),
	}
}

func (w *pageWriter) last() chunk {
	if len(w.chunks) == 0 {
		return chunk{}
	}
	return w.chunks[len(w.chunks)-1]
}

func (w *pageWriter) Checkpoint() int { return len(w.chunks) }

func (w *pageWriter) Rollback(mark int) {
	if mark >= 0 && mark < len(w.chunks) {
		w.chunks = w.chunks[:mark]
	}
}

// Write 在当前游标处写出一个元素
func (w *pageWriter) Write(el *backend.Element) error {
	if el == nil {
		return errors.New("nil element")
	}
	prev := w.last()
	c := chunk{fontDirty: prev.fontDirty, fillDirty: prev.fillDirty}
	var buf bytes.Buffer

	switch n := el.Native.(type) {
	case *textRun:
		w.repair(&buf, n.snap, &c)
		if err := writeOps(&buf, n.ops); err != nil {
			return err
		}
	case *sourceOps:
		w.repair(&buf, n.snap, &c)
		if err := writeOps(&buf, n.ops); err != nil {
			return err
		}
	case *textSlice:
		w.repair(&buf, n.run.snap, &c)
		if el.Fill != nil {
			writeFill(&buf, *el.Fill)
			c.fillDirty = true
		}
		first := prev.run != n.run
		off := prev.off
		if first {
			off = 0
		}
		if err := writeOps(&buf, n.ops(first, off)); err != nil {
			return err
		}
		c.run, c.off = n.run, n.endOffset()
		c.changed = true
	case *createdRun:
		t := w.page.tracker
		if !t.inText {
			return fmt.Errorf("text run outside a text object: %w", backend.ErrUnsupported)
		}
		if el.Fill != nil {
			writeFill(&buf, *el.Fill)
			c.fillDirty = true
		}
		size := n.size
		if scale := t.textScale(); scale > 0 {
			size = round(n.size / scale)
		}
		if err := writeOps(&buf, []contentstream.Operation{
			op("Tf", core.Name(n.font.res), num(size)),
			op("Tj", core.String(n.codes)),
		}); err != nil {
			return err
		}
		w.fonts[n.font.res] = n.font
		c.fontDirty = true
		c.changed = true
		if prev.run != nil {
			c.run, c.off = prev.run, prev.off+n.advance(size, t)
		}
	case *rectShape:
		buf.WriteString("q\n")
		if el.Fill != nil {
			w.writeAlpha(&buf, el.Fill.A)
			writeFill(&buf, *el.Fill)
		}
		writeRect(&buf, el.BBox)
		buf.WriteString("Q\n")
		c.run, c.off = prev.run, prev.off
		c.changed = true
	default:
		return fmt.Errorf("element %s was not created by the pdf backend", el.Name())
	}

	c.data = buf.Bytes()
	w.chunks = append(w.chunks, c)
	return nil
}

// WritePlaced 在页面默认用户空间放置覆盖矩形
func (w *pageWriter) WritePlaced(el *backend.Element) error {
	if _, ok := el.Native.(*rectShape); !ok {
		return fmt.Errorf("only rectangles can be placed: %w", backend.ErrUnsupported)
	}
	w.placed.WriteString("q\n")
	if el.Fill != nil {
		w.writeAlpha(&w.placed, el.Fill.A)
		writeFill(&w.placed, *el.Fill)
	}
	writeRect(&w.placed, el.BBox)
	w.placed.WriteString("Q\n")
	w.boxes++
	return nil
}

// repair 在新建元素改变了字体或填充色之后恢复源状态
func (w *pageWriter) repair(buf *bytes.Buffer, snap snapshot, c *chunk) {
	if c.fontDirty && snap.fontRes != "" {
		_ = writeOp(buf, op("Tf", core.Name(snap.fontRes), num(snap.fontSize)))
		c.fontDirty = false
	}
	if c.fillDirty {
		if len(snap.fill) == 0 {
			_ = writeOp(buf, op("g", core.Int(0)))
		} else {
			_ = writeOps(buf, snap.fill)
		}
		c.fillDirty = false
	}
}

func (w *pageWriter) writeAlpha(buf *bytes.Buffer, alpha float64) {
	if alpha >= 1 {
		return
	}
	a := round(alpha)
	name := ""
	for n, v := range w.alphas {
		if v == a {
			name = n
			break
		}
	}
	if name == "" {
		name = fmt.Sprintf("GlA%d", len(w.alphas)+1)
		w.alphas[name] = a
	}
	_ = writeOp(buf, op("gs", core.Name(name)))
}

func (w *pageWriter) modified() bool {
	if w.boxes > 0 {
		return true
	}
	for _, c := range w.chunks {
		if c.changed {
			return true
		}
	}
	return false
}

// content 组装最终内容流：原内容包在 q … Q 中，覆盖层位于其后
func (w *pageWriter) content() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("q\n")
	for _, c := range w.chunks {
		buf.Write(c.data)
	}
	for i := 0; i < w.page.tracker.depth; i++ {
		buf.WriteString("Q\n")
	}
	if w.page.tracker.inText {
		buf.WriteString("ET\n")
	}
	buf.WriteString("Q\n")
	buf.Write(w.placed.Bytes())
	return buf.Bytes(), nil
}

func writeFill(buf *bytes.Buffer, c overlay.Color) {
	_ = writeOp(buf, op("rg", num(round(c.R)), num(round(c.G)), num(round(c.B))))
}

func writeRect(buf *bytes.Buffer, r backend.Rect) {
	_ = writeOps(buf, []contentstream.Operation{
		op("re", num(round(r.X)), num(round(r.Y)), num(round(r.Width)), num(round(r.Height))),
		op("f"),
	})
}

// round 保留四位小数
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// advance 返回新建文本在文本空间中的推进宽度
func (r *createdRun) advance(size float64, t *tracker) float64 {
	tc, tw := t.gs.Text.CharSpacing, t.gs.Text.WordSpacing
	w := 0.0
	for _, c := range r.codes {
		w += r.font.textWidth([]byte{c})/1000*size + tc
		if c == ' ' {
			w += tw
		}
	}
	return w * t.hscale()
}

// ops 把切片转换为 TJ 操作，保留字形之间的位移。
// first 表示这是该文本的第一段；off 是此前已写出部分的宽度，
// 与切片起点不一致时在数组开头补一个位移。
func (s *textSlice) ops(first bool, off float64) []contentstream.Operation {
	var out []contentstream.Operation
	if first {
		out = append(out, s.run.lineOps...)
	}

	arr := core.Array{}
	var pending []byte
	flush := func() {
		if len(pending) > 0 {
			arr = append(arr, core.String(pending))
			pending = nil
		}
	}
	if s.start < s.end {
		scale := s.run.fs * s.run.th
		if d := s.startOffset() - off; scale != 0 && math.Abs(d) > 1e-6 {
			arr = append(arr, num(round(-d*1000/scale)))
		}
	}
	for _, g := range s.run.glyphs {
		if !s.contains(g) {
			continue
		}
		if g.adjust != 0 {
			flush()
			arr = append(arr, num(g.adjust))
		}
		pending = append(pending, g.code...)
	}
	flush()
	if s.end == s.run.runes && s.start < s.end && s.run.trailing != 0 {
		arr = append(arr, num(s.run.trailing))
	}
	if len(arr) > 0 {
		out = append(out, op("TJ", arr))
	}
	return out
}

// contains 判断字形是否属于切片；不产生字符的字形归入从它开始的切片
func (s *textSlice) contains(g glyph) bool {
	if g.start >= s.start && g.start < s.end {
		return true
	}
	return g.start == g.end && g.start == s.end && s.end == s.run.runes && s.start < s.end
}

// preOffset 是字形在其 TJ 位移之前的偏移
func (r *textRun) preOffset(g glyph) float64 {
	return g.x + g.adjust/1000*r.fs*r.th
}

func (s *textSlice) startOffset() float64 {
	if s.start == 0 {
		return 0
	}
	for _, g := range s.run.glyphs {
		if s.contains(g) || g.start >= s.start {
			return s.run.preOffset(g)
		}
	}
	return s.run.width
}

func (s *textSlice) endOffset() float64 {
	if s.end >= s.run.runes {
		return s.run.width
	}
	for _, g := range s.run.glyphs {
		if g.start >= s.end && !s.contains(g) {
			return s.run.preOffset(g)
		}
	}
	return s.run.width
}

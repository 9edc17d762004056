package pdf

import (
	"strings"

	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/model"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

var pathConstruction = map[string]bool{
	"m": true, "l": true, "c": true, "v": true, "y": true, "h": true, "re": true,
}

var pathPainting = map[string]bool{
	"S": true, "s": true, "f": true, "F": true, "f*": true,
	"B": true, "B*": true, "b": true, "b*": true, "n": true,
}

var textShowing = map[string]bool{
	"Tj": true, "TJ": true, "'": true, "\"": true,
}

// sourceOps 是从原内容流读出、可原样写回的操作
type sourceOps struct {
	ops  []contentstream.Operation
	snap snapshot
}

// glyph 是文本绘制操作中的一个字形码
type glyph struct {
	code []byte
	// start/end 是该字形解码出的字符在元素文本中的范围
	start, end int
	// adjust 是字形之前的 TJ 位移（千分之一 em）
	adjust float64
	// x 是字形起点相对文本起点的偏移（文本空间，已计入 adjust）
	x float64
}

// textRun 是一个文本绘制操作及其字形
type textRun struct {
	sourceOps
	glyphs   []glyph
	trailing float64
	runes    int
	fs, th   float64
	width    float64
	// lineOps 是 ' 与 " 隐含的换行操作
	lineOps []contentstream.Operation
}

// textSlice 是源文本的一段字符
type textSlice struct {
	run        *textRun
	start, end int
}

// createdRun 是用嵌入字体新建的文本
type createdRun struct {
	font  *embeddedFont
	codes []byte
	size  float64
}

// rectShape 是新建的填充矩形
type rectShape struct{}

func newElement(t backend.ElementType, ops []contentstream.Operation, snap snapshot) *backend.Element {
	return &backend.Element{
		Type:     t,
		TypeName: t.String(),
		Native:   &sourceOps{ops: ops, snap: snap},
	}
}

// readElement 从 pos 开始读取一个元素，返回元素与下一个位置
func (p *Page) readElement(pos int) (*backend.Element, int) {
	o := p.ops[pos]
	t := p.tracker
	snap := t.snapshot()

	switch {
	case pathConstruction[o.Operator]:
		end := pos
		var pts []model.Point
		for end < len(p.ops) {
			cur := p.ops[end]
			pts = append(pts, pathPoints(cur)...)
			end++
			if pathPainting[cur.Operator] {
				break
			}
		}
		el := newElement(backend.ElementPath, p.ops[pos:end], snap)
		x, y, w, h := t.bounds(pts)
		el.BBox = backend.Rect{X: x, Y: y, Width: w, Height: h}
		return el, end

	case textShowing[o.Operator]:
		return p.readText(o, snap), pos + 1

	case o.Operator == "Do":
		return p.readXObject(o, snap), pos + 1

	case o.Operator == opInlineImage:
		el := newElement(backend.ElementInlineImage, p.ops[pos:pos+1], snap)
		x, y, w, h := t.unitSquare()
		el.BBox = backend.Rect{X: x, Y: y, Width: w, Height: h}
		el.Image = inlineImageInfo(o)
		return el, pos + 1

	case o.Operator == "BT":
		t.apply(o)
		return newElement(backend.ElementTextBegin, p.ops[pos:pos+1], snap), pos + 1

	case o.Operator == "ET":
		t.apply(o)
		return newElement(backend.ElementTextEnd, p.ops[pos:pos+1], snap), pos + 1

	case o.Operator == "BMC" || o.Operator == "BDC" || o.Operator == "EMC":
		return newElement(backend.ElementMarkedContent, p.ops[pos:pos+1], snap), pos + 1

	case o.Operator == "sh":
		return newElement(backend.ElementShading, p.ops[pos:pos+1], snap), pos + 1

	default:
		t.apply(o)
		return newElement(backend.ElementGraphicsState, p.ops[pos:pos+1], snap), pos + 1
	}
}

func pathPoints(o contentstream.Operation) []model.Point {
	a := o.Operands
	pt := func(i int) model.Point {
		return model.Point{X: floatOf(a[i]), Y: floatOf(a[i+1])}
	}
	switch o.Operator {
	case "m", "l":
		if len(a) == 2 {
			return []model.Point{pt(0)}
		}
	case "c":
		if len(a) == 6 {
			return []model.Point{pt(0), pt(2), pt(4)}
		}
	case "v", "y":
		if len(a) == 4 {
			return []model.Point{pt(0), pt(2)}
		}
	case "re":
		if len(a) == 4 {
			x, y, w, h := floatOf(a[0]), floatOf(a[1]), floatOf(a[2]), floatOf(a[3])
			return []model.Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x, Y: y + h}, {X: x + w, Y: y + h}}
		}
	}
	return nil
}

// readText 计算文本绘制操作的字形、字符推进与包围盒
func (p *Page) readText(o contentstream.Operation, snap snapshot) *backend.Element {
	t := p.tracker
	run := &textRun{sourceOps: sourceOps{ops: []contentstream.Operation{o}, snap: snap}}

	var items []core.Object
	switch o.Operator {
	case "Tj":
		items = o.Operands
	case "TJ":
		if len(o.Operands) == 1 {
			if arr, ok := o.Operands[0].(core.Array); ok {
				items = arr
			}
		}
	case "'":
		run.lineOps = []contentstream.Operation{op("T*")}
		t.nextLine()
		items = o.Operands
	case "\"":
		if len(o.Operands) == 3 {
			run.lineOps = []contentstream.Operation{
				op("Tw", o.Operands[0]), op("Tc", o.Operands[1]), op("T*"),
			}
			t.gs.SetWordSpacing(floatOf(o.Operands[0]))
			t.gs.SetCharSpacing(floatOf(o.Operands[1]))
			t.nextLine()
			items = o.Operands[2:]
		}
	}

	// 换行之后的起点与字号
	startX, startY := t.position()
	size := t.gs.Text.FontSize * t.textScale()

	pf := p.fonts[t.fontRes]
	fs := t.gs.Text.FontSize
	th := t.hscale()

	run.fs, run.th = fs, th

	var content strings.Builder
	advances := []float64{}
	endX := startX
	pending := 0.0
	off := 0.0

	for _, item := range items {
		switch v := item.(type) {
		case core.Int, core.Real:
			n := floatOf(v)
			pending += n
			t.advance(-n / 1000 * fs * th)
			off -= n / 1000 * fs * th
		case core.String:
			data := []byte(v)
			step := pf.codeLen()
			for i := 0; i+step <= len(data); i += step {
				code := data[i : i+step]
				x0, _ := t.position()

				tx := pf.width(code)/1000*fs + t.gs.Text.CharSpacing
				if step == 1 && code[0] == ' ' {
					tx += t.gs.Text.WordSpacing
				}
				t.advance(tx * th)
				x1, _ := t.position()

				decoded := []rune(pf.decode(code))
				g := glyph{code: code, start: run.runes, end: run.runes + len(decoded), adjust: pending, x: off}
				off += tx * th
				pending = 0
				for k, r := range decoded {
					content.WriteRune(r)
					advances = append(advances, x0+(x1-x0)*float64(k)/float64(len(decoded)))
				}
				run.runes += len(decoded)
				run.glyphs = append(run.glyphs, g)
				endX = x1
			}
		}
	}
	run.trailing = pending
	run.width = off
	advances = append(advances, endX)

	family, bold, italic := "", false, false
	if pf != nil {
		family, bold, italic = pf.family, pf.bold, pf.italic
	}

	el := &backend.Element{
		Type:     backend.ElementText,
		TypeName: backend.ElementText.String(),
		BBox:     backend.Rect{X: startX, Y: startY, Width: endX - startX, Height: size},
		Text: &backend.TextInfo{
			Content: content.String(),
			Font: backend.FontInfo{
				Family: family,
				Bold:   bold,
				Italic: italic,
				Size:   size,
			},
			Advances: advances,
		},
		Native: run,
	}
	if pf != nil {
		el.Text.Font.Handle = pf
	}
	return el
}

// readXObject 区分图像与表单 XObject
func (p *Page) readXObject(o contentstream.Operation, snap snapshot) *backend.Element {
	t := p.tracker
	el := newElement(backend.ElementForm, []contentstream.Operation{o}, snap)
	x, y, w, h := t.unitSquare()
	el.BBox = backend.Rect{X: x, Y: y, Width: w, Height: h}

	if len(o.Operands) != 1 {
		return el
	}
	name, ok := o.Operands[0].(core.Name)
	if !ok {
		return el
	}

	stream := p.xobject(string(name))
	if stream == nil {
		return el
	}
	subtype, _ := stream.Dict.GetName("Subtype")
	switch string(subtype) {
	case "Image":
		el.Type = backend.ElementImage
		el.TypeName = el.Type.String()
		el.Image = p.imageInfo(string(name), stream)
	case "Form":
		if bb, ok := stream.Dict.GetArray("BBox"); ok && len(bb) == 4 {
			m := model.Identity()
			if mm, ok := stream.Dict.GetArray("Matrix"); ok {
				if parsed, ok := matrixOf(mm); ok {
					m = parsed
				}
			}
			x0, y0, x1, y1 := floatOf(bb[0]), floatOf(bb[1]), floatOf(bb[2]), floatOf(bb[3])
			var pts []model.Point
			for _, pt := range []model.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}} {
				pts = append(pts, m.Transform(pt))
			}
			x, y, w, h := t.bounds(pts)
			el.BBox = backend.Rect{X: x, Y: y, Width: w, Height: h}
		}
	}
	return el
}

func inlineImageInfo(o contentstream.Operation) *backend.ImageInfo {
	info := &backend.ImageInfo{Name: "inline"}
	if len(o.Operands) == 0 {
		return info
	}
	params, ok := o.Operands[0].(core.Dict)
	if !ok {
		return info
	}
	for _, key := range []string{"W", "Width"} {
		if v := params.Get(key); v != nil {
			info.Width = int(floatOf(v))
		}
	}
	for _, key := range []string{"H", "Height"} {
		if v := params.Get(key); v != nil {
			info.Height = int(floatOf(v))
		}
	}
	return info
}

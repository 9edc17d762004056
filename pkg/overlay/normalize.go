package overlay

// PointsPerInch 是页面坐标空间的原生分辨率
const PointsPerInch = 72.0

// Word 是待标注单词的几何描述（OCR 或文本元素给出）
type Word struct {
	X        float64
	Y        float64
	FontSize float64
	Length   float64
}

// Style 描述覆盖框的样式
type Style struct {
	// WidthFraction 覆盖框宽度占单词长度的比例（通常为 head/word）
	WidthFraction float64
	// Height 为 0 时使用字号；小于 1 时视为字号的比例
	Height float64
	Shape  Shape
	// DPI 非零时覆盖 Context.DPI
	DPI   float64
	Color Color
}

// Context 是一次坐标换算的缩放与偏移参数
type Context struct {
	XScale  float64
	YScale  float64
	XOffset float64
	YOffset float64
	DPI     float64
}

// DefaultContext 返回单位缩放、零偏移、72 dpi 的上下文
func DefaultContext() Context {
	return Context{XScale: 1, YScale: 1, DPI: PointsPerInch}
}

// Normalize 将单词几何换算到页面坐标空间
func Normalize(w Word, style Style, ctx Context) Box {
	dpi := style.DPI
	if dpi == 0 {
		dpi = ctx.DPI
	}
	if dpi == 0 {
		dpi = PointsPerInch
	}
	ocrScale := dpi / PointsPerInch

	lineHeight := w.FontSize * ctx.YScale

	width := style.WidthFraction * w.Length * ctx.XScale * ocrScale

	height := lineHeight
	if style.Height != 0 {
		height = style.Height
		if height < 1.0 {
			height = style.Height * lineHeight
		}
	}

	x := ocrScale*ctx.XScale*w.X + ctx.XOffset
	y := ocrScale*ctx.YScale*w.Y + ctx.YOffset

	switch style.Shape {
	case ShapeOverbar:
		y += lineHeight - height
	case ShapeUnderbar:
		y -= height + 1
	}

	return Box{X: x, Y: y, Width: width, Height: height, Color: style.Color}
}

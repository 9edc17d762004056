package pdf

import (
	"math"

	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
)

// tracker 跟踪图形状态与文本状态，用于计算元素在页面空间中的位置。
// 矩阵乘法按行向量约定：新 CTM = M × CTM，文本推进 Tm = T × Tm。
type tracker struct {
	gs *graphicsstate.GraphicsState
	// fill 是最近一次设置填充色的操作序列，用于在新建元素之后恢复源状态
	fill      []contentstream.Operation
	fillStack [][]contentstream.Operation
	fontRes   string
	inText    bool
	depth     int
}

func newTracker() *tracker {
	return &tracker{gs: graphicsstate.NewGraphicsState()}
}

// snapshot 是元素开始处的可恢复状态
type snapshot struct {
	fontRes  string
	fontSize float64
	fill     []contentstream.Operation
	inText   bool
	scale    float64
}

func (t *tracker) snapshot() snapshot {
	return snapshot{
		fontRes:  t.fontRes,
		fontSize: t.gs.Text.FontSize,
		fill:     t.fill,
		inText:   t.inText,
		scale:    t.textScale(),
	}
}

// textMatrixToPage 返回当前文本空间到页面空间的矩阵
func (t *tracker) textMatrixToPage() model.Matrix {
	return t.gs.Text.TextMatrix.Multiply(t.gs.CTM)
}

// textScale 是文本空间单位在页面空间中的垂直缩放
func (t *tracker) textScale() float64 {
	m := t.textMatrixToPage()
	return math.Hypot(m[2], m[3])
}

// position 返回当前文本起点（含上标偏移）在页面空间的坐标
func (t *tracker) position() (float64, float64) {
	p := t.textMatrixToPage().Transform(model.Point{X: 0, Y: t.gs.Text.Rise})
	return p.X, p.Y
}

// advance 沿文本方向推进 tx 个文本空间单位
func (t *tracker) advance(tx float64) {
	t.gs.Text.TextMatrix = model.Translate(tx, 0).Multiply(t.gs.Text.TextMatrix)
}

func (t *tracker) hscale() float64 {
	return t.gs.Text.HorizontalScaling / 100
}

func (t *tracker) moveText(tx, ty float64) {
	t.gs.Text.TextLineMatrix = model.Translate(tx, ty).Multiply(t.gs.Text.TextLineMatrix)
	t.gs.Text.TextMatrix = t.gs.Text.TextLineMatrix
}

func (t *tracker) nextLine() {
	t.moveText(0, -t.gs.Text.Leading)
}

// apply 更新除文本绘制之外的状态
func (t *tracker) apply(o contentstream.Operation) {
	args := o.Operands
	switch o.Operator {
	case "q":
		t.gs.Save()
		t.fillStack = append(t.fillStack, t.fill)
		t.depth++
	case "Q":
		if err := t.gs.Restore(); err == nil && len(t.fillStack) > 0 {
			t.fill = t.fillStack[len(t.fillStack)-1]
			t.fillStack = t.fillStack[:len(t.fillStack)-1]
			t.depth--
		}
	case "cm":
		if m, ok := matrixOf(args); ok {
			t.gs.CTM = m.Multiply(t.gs.CTM)
		}
	case "BT":
		t.gs.BeginText()
		t.inText = true
	case "ET":
		t.gs.EndText()
		t.inText = false
	case "Tf":
		if len(args) == 2 {
			if name, ok := args[0].(core.Name); ok {
				t.fontRes = string(name)
			}
			t.gs.Text.FontSize = floatOf(args[1])
		}
	case "Td":
		if len(args) == 2 {
			t.moveText(floatOf(args[0]), floatOf(args[1]))
		}
	case "TD":
		if len(args) == 2 {
			t.gs.SetLeading(-floatOf(args[1]))
			t.moveText(floatOf(args[0]), floatOf(args[1]))
		}
	case "Tm":
		if m, ok := matrixOf(args); ok {
			t.gs.SetTextMatrix(m)
		}
	case "T*":
		t.nextLine()
	case "TL":
		if len(args) == 1 {
			t.gs.SetLeading(floatOf(args[0]))
		}
	case "Tc":
		if len(args) == 1 {
			t.gs.SetCharSpacing(floatOf(args[0]))
		}
	case "Tw":
		if len(args) == 1 {
			t.gs.SetWordSpacing(floatOf(args[0]))
		}
	case "Tz":
		if len(args) == 1 {
			t.gs.SetHorizontalScaling(floatOf(args[0]))
		}
	case "Ts":
		if len(args) == 1 {
			t.gs.SetTextRise(floatOf(args[0]))
		}
	case "Tr":
		if len(args) == 1 {
			t.gs.SetRenderingMode(int(floatOf(args[0])))
		}
	case "g", "rg", "k":
		t.fill = []contentstream.Operation{o}
	case "cs":
		t.fill = []contentstream.Operation{o}
	case "sc", "scn":
		// 紧跟在 cs 之后的颜色值与颜色空间一起恢复
		if len(t.fill) > 0 && t.fill[0].Operator == "cs" {
			t.fill = []contentstream.Operation{t.fill[0], o}
		} else {
			t.fill = []contentstream.Operation{o}
		}
	}
}

// unitSquare 返回当前 CTM 下单位正方形的外接矩形（图像与表单的放置区域）
func (t *tracker) unitSquare() (x, y, w, h float64) {
	return t.bounds([]model.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}})
}

// bounds 把用户空间的点变换到页面空间并求外接矩形
func (t *tracker) bounds(pts []model.Point) (x, y, w, h float64) {
	if len(pts) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		q := t.gs.CTM.Transform(p)
		minX, maxX = math.Min(minX, q.X), math.Max(maxX, q.X)
		minY, maxY = math.Min(minY, q.Y), math.Max(maxY, q.Y)
	}
	return minX, minY, maxX - minX, maxY - minY
}

func floatOf(obj core.Object) float64 {
	switch v := obj.(type) {
	case core.Int:
		return float64(v)
	case core.Real:
		return float64(v)
	}
	return 0
}

func isNumber(obj core.Object) bool {
	switch obj.(type) {
	case core.Int, core.Real:
		return true
	}
	return false
}

func matrixOf(args []core.Object) (model.Matrix, bool) {
	if len(args) != 6 {
		return model.Matrix{}, false
	}
	var m model.Matrix
	for i, a := range args {
		if !isNumber(a) {
			return model.Matrix{}, false
		}
		m[i] = floatOf(a)
	}
	return m, true
}

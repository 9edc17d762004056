package overlay

import "fmt"

// Shape 决定覆盖框相对于单词的位置
type Shape string

const (
	ShapeBox      Shape = "box"
	ShapeUnderbar Shape = "underbar"
	ShapeOverbar  Shape = "overbar"
)

// ParseShape 校验形状名称
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case ShapeBox, ShapeUnderbar, ShapeOverbar:
		return Shape(s), nil
	case "":
		return ShapeBox, nil
	}
	return "", fmt.Errorf("unknown box shape %q (want box, underbar or overbar)", s)
}

// Box 是页面坐标系中的一个覆盖矩形
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Color  Color
}

func (b Box) String() string {
	return fmt.Sprintf("box(%.1f,%.1f %.1fx%.1f)", b.X, b.Y, b.Width, b.Height)
}

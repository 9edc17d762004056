package overlay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color 是覆盖层与文字使用的 RGBA 颜色，分量范围 [0,1]
type Color struct {
	R, G, B float64
	A       float64
}

// Opaque 判断颜色是否不透明
func (c Color) Opaque() bool {
	return c.A >= 1
}

// Hex 返回 #rrggbb 形式（不含透明度）
func (c Color) Hex() string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}

// ParseColor 解析 "#rrggbb" 或 "#rrggbbaa"
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	var alpha uint64 = 0xff
	switch len(s) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid alpha in color %q: %w", s, err)
		}
		alpha = a
		s = s[:7]
	default:
		return Color{}, fmt.Errorf("invalid color %q: expected #rrggbb or #rrggbbaa", s)
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return Color{R: c.R, G: c.G, B: c.B, A: float64(alpha) / 255.0}, nil
}

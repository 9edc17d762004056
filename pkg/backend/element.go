package backend

import (
	"fmt"

	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

// ElementType 是元素类型枚举
type ElementType int

const (
	ElementUnknown ElementType = iota
	ElementText
	ElementTextBegin
	ElementTextEnd
	ElementImage
	ElementInlineImage
	ElementForm
	ElementPath
	ElementShading
	ElementMarkedContent
	ElementGraphicsState
	ElementStructural
	ElementRect
)

var elementTypeNames = map[ElementType]string{
	ElementUnknown:       "unknown",
	ElementText:          "text",
	ElementTextBegin:     "text-begin",
	ElementTextEnd:       "text-end",
	ElementImage:         "image",
	ElementInlineImage:   "inline-image",
	ElementForm:          "form",
	ElementPath:          "path",
	ElementShading:       "shading",
	ElementMarkedContent: "marked-content",
	ElementGraphicsState: "graphics-state",
	ElementStructural:    "structural",
	ElementRect:          "rect",
}

func (t ElementType) String() string {
	if s, ok := elementTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("element(%d)", int(t))
}

// Rect 是页面坐标空间中的矩形（原点在左下角）
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area 返回面积
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// FontInfo 描述文本元素使用的字体
type FontInfo struct {
	Family string     `json:"family"`
	Bold   bool       `json:"bold"`
	Italic bool       `json:"italic"`
	Size   float64    `json:"size"`
	Handle FontHandle `json:"-"`
}

// TextInfo 是文本元素的内容与几何
type TextInfo struct {
	Content string   `json:"content"`
	Font    FontInfo `json:"font"`
	// Advances[i] 是第 i 个字符起点的页面 x 坐标，最后一项为结束位置；未知时为 nil
	Advances []float64 `json:"-"`
}

// Span 返回 [start,end) 字符范围的起点与长度
func (t *TextInfo) Span(start, end int) (x, length float64, ok bool) {
	if t == nil || len(t.Advances) == 0 || start < 0 || end >= len(t.Advances) || start > end {
		return 0, 0, false
	}
	return t.Advances[start], t.Advances[end] - t.Advances[start], true
}

// ImageInfo 是图像元素的像素信息
type ImageInfo struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// PNG 按需解码图像，供 OCR 使用
	PNG func() ([]byte, error) `json:"-"`
}

// Element 是页面上的一个内容单元
type Element struct {
	Type     ElementType `json:"type"`
	TypeName string      `json:"type_name"`
	BBox     Rect        `json:"bbox"`
	Text     *TextInfo   `json:"text,omitempty"`
	Image    *ImageInfo  `json:"image,omitempty"`
	// Fill 仅对新建元素有效，为 nil 表示保持当前填充色
	Fill *overlay.Color `json:"-"`
	// Native 是后端私有数据
	Native any `json:"-"`
}

// IsText 判断是否为文本元素
func (e *Element) IsText() bool {
	return e != nil && e.Type == ElementText && e.Text != nil
}

// IsImage 判断是否为图像元素
func (e *Element) IsImage() bool {
	return e != nil && (e.Type == ElementImage || e.Type == ElementInlineImage) && e.Image != nil
}

// Name 返回元素类型名
func (e *Element) Name() string {
	if e.TypeName != "" {
		return e.TypeName
	}
	return e.Type.String()
}

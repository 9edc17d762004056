// Package ocr 定义 OCR 结果契约，并提供基于 Tesseract 的实现。
package ocr

import (
	"context"
	"fmt"
	"strings"
)

// Word 是一个识别出的单词，坐标为像素，原点在左下角
type Word struct {
	Text        string  `json:"text"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	FontSize    float64 `json:"font_size"`
	Length      float64 `json:"length"`
	Orientation int     `json:"orientation"`
}

// Line 是一行单词
type Line struct {
	Word []Word `json:"Word"`
}

// Para 是一个段落
type Para struct {
	Line []Line `json:"Line"`
}

// Page 是一幅图像的识别结果
type Page struct {
	DPI  int    `json:"dpi"`
	Para []Para `json:"Para"`
}

// Result 是 OCR 引擎的输出
type Result struct {
	Page []Page `json:"Page"`
}

// Words 返回结果中的单词总数
func (r *Result) Words() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, p := range r.Page {
		for _, para := range p.Para {
			for _, line := range para.Line {
				n += len(line.Word)
			}
		}
	}
	return n
}

// DPI 返回第一页的分辨率，没有页时为 0
func (r *Result) DPI() int {
	if r == nil || len(r.Page) == 0 {
		return 0
	}
	return r.Page[0].DPI
}

// Engine 对 PNG 图像执行 OCR
type Engine interface {
	Name() string
	Extract(ctx context.Context, png []byte, dpi int) (*Result, error)
}

// ExtractionError 表示 OCR 失败或没有结果，调用方应原样保留图像
type ExtractionError struct {
	Engine string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ocr extraction failed (%s): %s", e.Engine, e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Package backend 定义文档后端的统一能力契约：打开、遍历页与元素、读取元素详情、
// 写出元素、创建新元素/覆盖层以及保存。每种文档类型（分页二进制文档、按章节组织的标记文档）
// 各自实现一次。
package backend

import (
	"context"
)

// Mode 控制后端是否准备写出
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// Opener 打开一个文档
type Opener interface {
	Kind() Kind
	Open(ctx context.Context, path string, mode Mode) (Document, error)
}

// Document 是后端独占的文档句柄。Close 必须且只能调用一次。
type Document interface {
	SourcePath() string
	PageCount() int
	// NextPage 返回下一页，结束时返回 io.EOF
	NextPage(ctx context.Context) (Page, error)
	Save(ctx context.Context, path string) error
	Close() error
}

// Page 是遍历过程中临时构造的一页
type Page interface {
	Number() int
	BBox() *Rect
	// Next 返回页内下一个元素，结束时返回 io.EOF
	Next(ctx context.Context) (*Element, error)
	// Writer 只读模式下为 nil
	Writer() Writer
	Builder() Builder
	// Images 返回页面上放置的栅格图像（整页 OCR 使用）
	Images() []PlacedImage
	// Finish 在覆盖层绘制完成后结束本页的写出
	Finish() error
}

// Writer 是页面的写游标
type Writer interface {
	Write(el *Element) error
	// WritePlaced 在页面坐标空间中放置覆盖元素
	WritePlaced(el *Element) error
	// Checkpoint/Rollback 用于丢弃某个元素处理过程中的部分写出
	Checkpoint() int
	Rollback(mark int)
}

// Builder 是元素工厂
type Builder interface {
	LoadFont(path string) (FontHandle, error)
	CreateTextRun(text string, font FontHandle, size float64) (*Element, error)
	// SliceText 截取文本元素中 [start,end) 的字符（按 rune 计），保留原字体编码
	SliceText(src *Element, start, end int) (*Element, error)
	CreateRect(x, y, w, h float64) (*Element, error)
}

// FontHandle 是后端加载的字体
type FontHandle interface {
	Name() string
	Bold() bool
	Italic() bool
}

// PlacedImage 是页面上的一次图像放置
type PlacedImage struct {
	Name  string
	BBox  Rect
	Image *ImageInfo
}

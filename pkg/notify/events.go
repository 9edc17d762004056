// Package notify 是遍历过程中的同步事件总线。处理器按订阅顺序依次调用，
// 事件值只在调用期间有效。
package notify

import (
	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

// Kind 是事件类型
type Kind int

const (
	KindOpenDocument Kind = iota
	KindBeginPage
	KindEndPage
	KindProcessElement
)

func (k Kind) String() string {
	switch k {
	case KindOpenDocument:
		return "open-document"
	case KindBeginPage:
		return "begin-page"
	case KindEndPage:
		return "end-page"
	case KindProcessElement:
		return "process-element"
	default:
		return "unknown"
	}
}

// Event 是所有事件的公共接口
type Event interface {
	Kind() Kind
}

// OpenDocument 在遍历开始前发布一次
type OpenDocument struct {
	Document  backend.Document
	Filename  string
	PageCount int
}

func (OpenDocument) Kind() Kind { return KindOpenDocument }

// BeginPage 在页内任何元素之前发布
type BeginPage struct {
	Document   backend.Document
	Page       backend.Page
	PageNumber int
	PageCount  int
	BBox       *backend.Rect
	// Selected 表示该页是否在页码过滤范围内
	Selected bool
	Overlays *overlay.Queue
}

func (BeginPage) Kind() Kind { return KindBeginPage }

// EndPage 在页内所有元素之后、覆盖层绘制之前发布
type EndPage struct {
	Document   backend.Document
	PageNumber int
	Writer     backend.Writer
	Builder    backend.Builder
	Overlays   *overlay.Queue
}

func (EndPage) Kind() Kind { return KindEndPage }

// Element 针对页内每个元素发布一次
type Element struct {
	Document   backend.Document
	Page       backend.Page
	PageNumber int
	PageCount  int
	BBox       *backend.Rect
	// Index 是元素在页内从 1 开始的序号
	Index    int
	Element  *backend.Element
	Writer   backend.Writer
	Builder  backend.Builder
	Selected bool
	Overlays *overlay.Queue
}

func (Element) Kind() Kind { return KindProcessElement }

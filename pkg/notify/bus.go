package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler 处理一个事件
type Handler func(ev Event) error

// Bus 是按事件类型分发的同步事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	logger   *zap.Logger
}

// NewBus 创建事件总线
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[Kind][]Handler),
		logger:   logger,
	}
}

// Subscribe 注册处理器，同一类型的处理器按注册顺序调用
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// OnOpenDocument 注册文档打开处理器
func (b *Bus) OnOpenDocument(fn func(OpenDocument) error) {
	b.Subscribe(KindOpenDocument, func(ev Event) error {
		return fn(ev.(OpenDocument))
	})
}

// OnBeginPage 注册页开始处理器
func (b *Bus) OnBeginPage(fn func(BeginPage) error) {
	b.Subscribe(KindBeginPage, func(ev Event) error {
		return fn(ev.(BeginPage))
	})
}

// OnEndPage 注册页结束处理器
func (b *Bus) OnEndPage(fn func(EndPage) error) {
	b.Subscribe(KindEndPage, func(ev Event) error {
		return fn(ev.(EndPage))
	})
}

// OnElement 注册元素处理器
func (b *Bus) OnElement(fn func(Element) error) {
	b.Subscribe(KindProcessElement, func(ev Event) error {
		return fn(ev.(Element))
	})
}

// Subscribers 返回某类事件的处理器数量
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

// Publish 依次调用所有处理器。某个处理器失败不会阻止后续处理器执行，
// 全部错误合并后返回。
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	handlers := b.handlers[ev.Kind()]
	b.mu.RUnlock()

	var errs []error
	for i, h := range handlers {
		if err := h(ev); err != nil {
			b.logger.Debug("事件处理失败",
				zap.Stringer("kind", ev.Kind()),
				zap.Int("handler", i),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s handler %d: %w", ev.Kind(), i, err))
		}
	}
	return errors.Join(errs...)
}

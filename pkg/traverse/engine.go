// Package traverse 驱动文档遍历：逐页、逐元素发布事件，处理元素级降级，
// 并在页尾绘制排队的覆盖层。
package traverse

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/notify"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

// Summary 汇总一次遍历
type Summary struct {
	Pages    int `json:"pages"`
	Elements int `json:"elements"`
	Degraded int `json:"degraded"`
	Boxes    int `json:"boxes"`
}

// Engine 是遍历引擎
type Engine struct {
	bus    *notify.Bus
	filter PageFilter
	queue  *overlay.Queue
	logger *zap.Logger
}

// Option 配置引擎
type Option func(*Engine)

// WithPageFilter 设置页码过滤器
func WithPageFilter(f PageFilter) Option {
	return func(e *Engine) {
		if f != nil {
			e.filter = f
		}
	}
}

// NewEngine 创建遍历引擎
func NewEngine(bus *notify.Bus, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		bus:    bus,
		filter: AllPages{},
		queue:  overlay.NewQueue(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run 遍历整个文档。打开或迭代失败是致命的；订阅者在元素上的失败只会让该元素原样写出。
func (e *Engine) Run(ctx context.Context, doc backend.Document, mode backend.Mode) (Summary, error) {
	var summary Summary

	err := e.bus.Publish(ctx, notify.OpenDocument{
		Document:  doc,
		Filename:  doc.SourcePath(),
		PageCount: doc.PageCount(),
	})
	if err != nil {
		return summary, fmt.Errorf("failed to open document: %w", err)
	}

	last := 0
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		page, err := doc.NextPage(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, backend.NewBackendError("next page", doc.SourcePath(), err)
		}

		if last == 0 && page.Number() != 1 {
			return summary, backend.NewBackendError("next page", doc.SourcePath(),
				fmt.Errorf("first page is numbered %d, want 1", page.Number()))
		}
		if page.Number() <= last {
			return summary, backend.NewBackendError("next page", doc.SourcePath(),
				fmt.Errorf("page number %d does not follow %d", page.Number(), last))
		}
		last = page.Number()

		if err := e.runPage(ctx, doc, page, mode, &summary); err != nil {
			return summary, err
		}
		summary.Pages++
	}

	e.logger.Debug("遍历完成",
		zap.String("path", doc.SourcePath()),
		zap.Int("pages", summary.Pages),
		zap.Int("elements", summary.Elements),
		zap.Int("degraded", summary.Degraded),
		zap.Int("boxes", summary.Boxes))
	return summary, nil
}

func (e *Engine) runPage(ctx context.Context, doc backend.Document, page backend.Page, mode backend.Mode, summary *Summary) error {
	number := page.Number()
	selected := e.filter.Selected(number)

	var writer backend.Writer
	if mode == backend.ReadWrite {
		writer = page.Writer()
	}
	builder := page.Builder()

	e.queue.Reset()
	err := e.bus.Publish(ctx, notify.BeginPage{
		Document:   doc,
		Page:       page,
		PageNumber: number,
		PageCount:  doc.PageCount(),
		BBox:       page.BBox(),
		Selected:   selected,
		Overlays:   e.queue,
	})
	if err != nil {
		// 页开始阶段的失败只丢弃该阶段排入的覆盖层
		e.logger.Warn("页开始处理失败", zap.Int("page", number), zap.Error(err))
		e.queue.Reset()
	}

	index := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		el, err := page.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return backend.NewBackendError("next element", doc.SourcePath(), err)
		}

		index++
		summary.Elements++
		if err := e.runElement(ctx, doc, page, writer, builder, el, index, selected, summary); err != nil {
			return err
		}
	}

	if err := e.bus.Publish(ctx, notify.EndPage{
		Document:   doc,
		PageNumber: number,
		Writer:     writer,
		Builder:    builder,
		Overlays:   e.queue,
	}); err != nil {
		e.logger.Warn("页结束处理失败", zap.Int("page", number), zap.Error(err))
	}

	drawn, err := e.flush(writer, builder)
	summary.Boxes += drawn
	if err != nil {
		return backend.NewBackendError("draw overlays", doc.SourcePath(), err)
	}

	if err := page.Finish(); err != nil {
		return backend.NewBackendError("finish page", doc.SourcePath(), err)
	}
	return nil
}

func (e *Engine) runElement(ctx context.Context, doc backend.Document, page backend.Page, writer backend.Writer,
	builder backend.Builder, el *backend.Element, index int, selected bool, summary *Summary) error {

	mark := 0
	if writer != nil {
		mark = writer.Checkpoint()
	}
	queued := e.queue.Len()

	err := e.bus.Publish(ctx, notify.Element{
		Document:   doc,
		Page:       page,
		PageNumber: page.Number(),
		PageCount:  doc.PageCount(),
		BBox:       page.BBox(),
		Index:      index,
		Element:    el,
		Writer:     writer,
		Builder:    builder,
		Selected:   selected,
		Overlays:   e.queue,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.logger.Warn("元素处理失败，按原样写出",
			zap.Int("page", page.Number()),
			zap.Int("index", index),
			zap.String("type", el.Name()),
			zap.Error(err))
		summary.Degraded++
		e.queue.Truncate(queued)
		if writer != nil {
			writer.Rollback(mark)
		}
	}

	if writer != nil && writer.Checkpoint() == mark {
		if err := writer.Write(el); err != nil {
			return backend.NewBackendError("write element", doc.SourcePath(), err)
		}
	}
	return nil
}

// flush 按先进先出顺序绘制本页的覆盖层，绘制后队列为空
func (e *Engine) flush(writer backend.Writer, builder backend.Builder) (int, error) {
	if writer == nil || builder == nil {
		n := e.queue.Len()
		e.queue.Reset()
		if n > 0 {
			e.logger.Debug("只读模式下丢弃覆盖层", zap.Int("boxes", n))
		}
		return 0, nil
	}

	return e.queue.Drain(func(box overlay.Box) error {
		rect, err := builder.CreateRect(box.X, box.Y, box.Width, box.Height)
		if err != nil {
			return fmt.Errorf("failed to create overlay rect: %w", err)
		}
		color := box.Color
		rect.Fill = &color
		if err := writer.WritePlaced(rect); err != nil {
			return fmt.Errorf("failed to place overlay: %w", err)
		}
		return nil
	})
}

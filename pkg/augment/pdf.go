package augment

import (
	"context"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/notify"
	"github.com/nerdneilsfield/go-glance/pkg/ocr"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
	"github.com/nerdneilsfield/go-glance/pkg/policy"
)

// PDFHandler 增强分页文档：文本单词加粗/着色，单词或 OCR 识别结果排入覆盖框
type PDFHandler struct {
	rules  *policy.Rules
	engine ocr.Engine
	opts   OCROptions
	logger *zap.Logger
	ctx    context.Context

	// pageOCR 表示本页的图像已在页开始时处理过
	pageOCR  bool
	counters Counters
}

// NewPDFHandler 创建 PDF 处理器。engine 为 nil 时不做 OCR。
func NewPDFHandler(rules *policy.Rules, engine ocr.Engine, opts OCROptions, logger *zap.Logger) *PDFHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = OCRModePage
	}
	return &PDFHandler{
		rules:  rules,
		engine: engine,
		opts:   opts,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Register 订阅页开始与元素事件，ctx 用于 OCR 调用
func (h *PDFHandler) Register(ctx context.Context, bus *notify.Bus) {
	if ctx != nil {
		h.ctx = ctx
	}
	bus.OnBeginPage(h.beginPage)
	bus.OnElement(h.element)
}

// Counters 返回目前的统计
func (h *PDFHandler) Counters() Counters { return h.counters }

func (h *PDFHandler) ocrActive() bool {
	return h.engine != nil && (h.opts.Enabled || h.opts.Forced)
}

func (h *PDFHandler) beginPage(ev notify.BeginPage) error {
	h.pageOCR = false
	if !ev.Selected || !h.ocrActive() {
		return nil
	}
	if !h.opts.Forced && h.opts.Mode != OCRModePage {
		return nil
	}

	h.pageOCR = true
	images := ev.Page.Images()
	h.logger.Debug("整页 OCR", zap.Int("page", ev.PageNumber), zap.Int("images", len(images)))
	for _, img := range images {
		if err := h.ocrImage(img.Image, img.BBox, ev.PageNumber, ev.Overlays); err != nil {
			return err
		}
	}
	return nil
}

func (h *PDFHandler) element(ev notify.Element) error {
	if !ev.Selected || ev.Writer == nil {
		return nil
	}
	el := ev.Element
	switch {
	case el.IsText():
		if h.opts.Forced {
			// 强制 OCR 时文本原样保留，增强只来自页面图像
			return nil
		}
		return h.text(ev)
	case el.IsImage():
		if h.pageOCR || !h.ocrActive() || h.opts.Mode != OCRModeElement {
			return nil
		}
		return h.ocrImage(el.Image, el.BBox, ev.PageNumber, ev.Overlays)
	}
	return nil
}

func (h *PDFHandler) text(ev notify.Element) error {
	el := ev.Element
	words, picked := decide(h.rules, el.Text.Content)
	h.counters.Words += words
	if len(picked) == 0 {
		return nil
	}
	h.counters.Augmented += len(picked)

	if h.rules.UseStrongText || h.rules.UseColoredText {
		head, err := h.headFunc(ev.Builder, el)
		if err != nil {
			return err
		}
		if err := rewriteText(ev.Writer, ev.Builder, el, picked, head); err != nil {
			return err
		}
	}

	if h.rules.UseStrongBox {
		h.enqueueWordBoxes(el, picked, ev.Overlays)
	}
	return nil
}

// headFunc 决定头部的写法：有加粗字号时用粗体字体新建文本，否则截取原文并着色
func (h *PDFHandler) headFunc(b backend.Builder, el *backend.Element) (headFunc, error) {
	fill, err := textColor(h.rules)
	if err != nil {
		return nil, err
	}

	font := el.Text.Font
	size := h.rules.ResolveFontSize(font.Size)
	if size <= 0 {
		return func(el *backend.Element, start, end int, _ string) (*backend.Element, error) {
			s, err := b.SliceText(el, start, end)
			if err != nil {
				return nil, err
			}
			s.Fill = fill
			return s, nil
		}, nil
	}

	path, err := h.rules.ResolveFontPath(font.Family, font.Italic, font.Size)
	if err != nil {
		return nil, err
	}
	handle, err := b.LoadFont(path)
	if err != nil {
		return nil, err
	}
	return func(_ *backend.Element, _, _ int, text string) (*backend.Element, error) {
		run, err := b.CreateTextRun(text, handle, size)
		if err != nil {
			return nil, err
		}
		run.Fill = fill
		return run, nil
	}, nil
}

// enqueueWordBoxes 用元素的字符推进量为每个增强单词排入覆盖框
func (h *PDFHandler) enqueueWordBoxes(el *backend.Element, picked []split, q *overlay.Queue) {
	adv := el.Text.Advances
	if len(adv) != len([]rune(el.Text.Content))+1 {
		h.logger.Debug("文本没有字符几何，跳过覆盖框", zap.String("text", el.Text.Content))
		return
	}

	style, ok := h.boxStyle()
	if !ok {
		return
	}
	ctx := overlay.Context{
		XScale:  h.rules.BoxXScale,
		YScale:  h.rules.BoxYScale,
		XOffset: h.rules.BoxXOffset,
		YOffset: h.rules.BoxYOffset,
		DPI:     overlay.PointsPerInch,
	}
	for _, s := range picked {
		style.WidthFraction = float64(s.head) / float64(s.end-s.start)
		w := overlay.Word{
			X:        adv[s.start],
			Y:        el.BBox.Y,
			FontSize: el.BBox.Height,
			Length:   adv[s.end] - adv[s.start],
		}
		q.Enqueue(overlay.Normalize(w, style, ctx))
		h.counters.Boxes++
	}
}

// boxStyle 返回覆盖框样式；未启用覆盖框时 ok 为 false
func (h *PDFHandler) boxStyle() (overlay.Style, bool) {
	hex := h.rules.ResolveBoxColor()
	if hex == "" {
		return overlay.Style{}, false
	}
	style := h.rules.BoxStyle()
	c, err := overlay.ParseColor(hex)
	if err != nil {
		h.logger.Warn("覆盖框颜色无效", zap.String("color", hex), zap.Error(err))
		return overlay.Style{}, false
	}
	style.Color = c
	return style, true
}

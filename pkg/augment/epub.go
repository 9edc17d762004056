package augment

import (
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/notify"
	"github.com/nerdneilsfield/go-glance/pkg/policy"
)

// BoldFontName 是向标记文档后端请求粗体样式时使用的字体名
const BoldFontName = "bold"

// EPUBHandler 增强章节中的段落文本：增强单词的头部成为带样式的 span，尾部保持为文本
type EPUBHandler struct {
	rules    *policy.Rules
	logger   *zap.Logger
	counters Counters
}

// NewEPUBHandler 创建 EPUB 处理器
func NewEPUBHandler(rules *policy.Rules, logger *zap.Logger) *EPUBHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EPUBHandler{rules: rules, logger: logger}
}

// Register 订阅元素事件
func (h *EPUBHandler) Register(bus *notify.Bus) {
	bus.OnElement(h.element)
}

// Counters 返回目前的统计
func (h *EPUBHandler) Counters() Counters { return h.counters }

func (h *EPUBHandler) element(ev notify.Element) error {
	if !ev.Selected || ev.Writer == nil || !ev.Element.IsText() {
		return nil
	}
	el := ev.Element
	words, picked := decide(h.rules, el.Text.Content)
	h.counters.Words += words
	if len(picked) == 0 {
		return nil
	}
	h.counters.Augmented += len(picked)
	if !h.rules.UseStrongText && !h.rules.UseColoredText {
		return nil
	}

	fill, err := textColor(h.rules)
	if err != nil {
		return err
	}
	var font backend.FontHandle
	if h.rules.UseStrongText {
		if font, err = ev.Builder.LoadFont(BoldFontName); err != nil {
			return err
		}
	}

	h.logger.Debug("增强段落文本",
		zap.Int("chapter", ev.PageNumber),
		zap.Int("index", ev.Index),
		zap.Int("words", len(picked)))
	return rewriteText(ev.Writer, ev.Builder, el, picked,
		func(_ *backend.Element, _, _ int, text string) (*backend.Element, error) {
			run, err := ev.Builder.CreateTextRun(text, font, 0)
			if err != nil {
				return nil, err
			}
			run.Fill = fill
			return run, nil
		})
}

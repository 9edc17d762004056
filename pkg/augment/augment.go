// Package augment 包含遍历事件的订阅者：PDF 与 EPUB 的增强处理器，以及只读的元素检查器。
package augment

import (
	"fmt"
	"strings"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
	"github.com/nerdneilsfield/go-glance/pkg/policy"
)

// Counters 统计一次运行中处理器的工作量
type Counters struct {
	Words     int `json:"words"`
	Augmented int `json:"augmented"`
	Boxes     int `json:"boxes"`
	OCRCalls  int `json:"ocr_calls"`
	OCRWords  int `json:"ocr_words"`
	Skipped   int `json:"skipped_images"`
}

// Add 累加另一组计数
func (c *Counters) Add(o Counters) {
	c.Words += o.Words
	c.Augmented += o.Augmented
	c.Boxes += o.Boxes
	c.OCRCalls += o.OCRCalls
	c.OCRWords += o.OCRWords
	c.Skipped += o.Skipped
}

// word 是文本中的一个单词，start/end 为 rune 偏移
type word struct {
	text       string
	start, end int
}

// splitWords 按单个空格切分，保留空单词以维持偏移
func splitWords(text string) []word {
	var words []word
	pos := 0
	for _, part := range strings.Split(text, " ") {
		n := len([]rune(part))
		words = append(words, word{text: part, start: pos, end: pos + n})
		pos += n + 1
	}
	return words
}

// split 是一个被选中增强的单词及其头部长度
type split struct {
	word
	head int
}

// decide 对每个单词做增强判定并拆分
func decide(rules *policy.Rules, text string) (words int, picked []split) {
	for _, w := range splitWords(text) {
		if w.text == "" {
			continue
		}
		words++
		if !rules.ShouldAugment(w.text, 0, 0) {
			continue
		}
		head, _ := rules.SplitWord(w.text)
		picked = append(picked, split{word: w, head: len([]rune(head))})
	}
	return words, picked
}

// headFunc 为 [start,end) 的头部字符生成新元素
type headFunc func(el *backend.Element, start, end int, text string) (*backend.Element, error)

// rewriteText 依次写出原文切片与增强后的头部：先写一个空切片以保留行定位，
// 随后头部之间的原文（包括上一个单词的尾部）合并为一个切片。
func rewriteText(w backend.Writer, b backend.Builder, el *backend.Element, picked []split, head headFunc) error {
	runes := []rune(el.Text.Content)
	write := func(e *backend.Element, err error) error {
		if err != nil {
			return err
		}
		return w.Write(e)
	}

	if err := write(b.SliceText(el, 0, 0)); err != nil {
		return fmt.Errorf("failed to start text run: %w", err)
	}
	cursor := 0
	for _, s := range picked {
		if s.start > cursor {
			if err := write(b.SliceText(el, cursor, s.start)); err != nil {
				return fmt.Errorf("failed to write text: %w", err)
			}
		}
		end := s.start + s.head
		if err := write(head(el, s.start, end, string(runes[s.start:end]))); err != nil {
			return fmt.Errorf("failed to write head of %q: %w", s.text, err)
		}
		cursor = end
	}
	if cursor < len(runes) {
		if err := write(b.SliceText(el, cursor, len(runes))); err != nil {
			return fmt.Errorf("failed to write text: %w", err)
		}
	}
	return nil
}

// textColor 解析着色文本颜色，未启用时返回 nil
func textColor(rules *policy.Rules) (*overlay.Color, error) {
	hex := rules.ResolveTextColor()
	if hex == "" {
		return nil, nil
	}
	c, err := overlay.ParseColor(hex)
	if err != nil {
		return nil, &policy.ConfigurationError{Key: "policy.colored_text_color", Value: hex, Reason: err.Error()}
	}
	return &c, nil
}

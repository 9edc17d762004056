package augment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/ocr"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

// OCRMode 决定 OCR 在页级还是元素级进行
type OCRMode string

const (
	OCRModePage    OCRMode = "page"
	OCRModeElement OCRMode = "element"
)

// ParseOCRMode 校验 OCR 模式
func ParseOCRMode(s string) (OCRMode, error) {
	switch OCRMode(strings.ToLower(strings.TrimSpace(s))) {
	case OCRModePage, "":
		return OCRModePage, nil
	case OCRModeElement:
		return OCRModeElement, nil
	}
	return "", fmt.Errorf("unknown ocr mode %q (want page or element)", s)
}

// OCROptions 控制 PDF 处理器中的 OCR
type OCROptions struct {
	Enabled bool
	// Forced 时一律按页 OCR，文本元素不再增强
	Forced bool
	Mode   OCRMode
	DPI    int
	// KeepDir 非空时把送去识别的 PNG 保存为 <KeepStem>-p<page>-<name>.png
	KeepDir  string
	KeepStem string
}

// ocrImage 识别一幅图像并为选中的单词排入覆盖框。识别失败时图像保持不变。
func (h *PDFHandler) ocrImage(img *backend.ImageInfo, bbox backend.Rect, page int, q *overlay.Queue) error {
	if img == nil || img.PNG == nil || img.Width <= 0 || img.Height <= 0 {
		return nil
	}
	// 宽高都必须严格大于最小尺寸
	if img.Width <= h.rules.MinOCRImageWidth || img.Height <= h.rules.MinOCRImageHeight {
		h.counters.Skipped++
		h.logger.Debug("图像未超过 OCR 最小尺寸",
			zap.String("image", img.Name),
			zap.Int("width", img.Width),
			zap.Int("height", img.Height),
			zap.Int("min_width", h.rules.MinOCRImageWidth),
			zap.Int("min_height", h.rules.MinOCRImageHeight))
		return nil
	}

	png, err := img.PNG()
	if err != nil {
		h.logger.Warn("无法解码图像，跳过 OCR", zap.String("image", img.Name), zap.Error(err))
		return nil
	}
	h.keep(png, page, img.Name)

	h.counters.OCRCalls++
	res, err := h.engine.Extract(h.ctx, png, h.opts.DPI)
	if err != nil {
		if ctxErr := h.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var ee *ocr.ExtractionError
		if errors.As(err, &ee) {
			h.logger.Warn("OCR 未得到结果，图像保持不变", zap.String("image", img.Name), zap.Error(err))
		} else {
			h.logger.Warn("OCR 失败，图像保持不变", zap.String("image", img.Name), zap.Error(err))
		}
		return nil
	}
	if res == nil || len(res.Page) == 0 {
		return nil
	}

	style := h.rules.BoxStyle()
	style.DPI = float64(res.DPI())
	ctx := overlay.Context{
		XScale:  bbox.Width / float64(img.Width),
		YScale:  bbox.Height / float64(img.Height),
		XOffset: bbox.X + h.rules.BoxXOffset,
		YOffset: bbox.Y + h.rules.BoxYOffset,
		DPI:     overlay.PointsPerInch,
	}

	before := q.Len()
	for _, para := range res.Page[0].Para {
		for _, line := range para.Line {
			for _, w := range line.Word {
				h.counters.OCRWords++
				if !h.rules.ShouldAugment(w.Text, len(line.Word), len(para.Line)) {
					continue
				}
				head, _ := h.rules.SplitWord(w.Text)
				style.WidthFraction = float64(len([]rune(head))) / float64(len([]rune(w.Text)))
				q.Enqueue(overlay.Normalize(overlay.Word{
					X:        w.X,
					Y:        w.Y,
					FontSize: w.FontSize,
					Length:   w.Length,
				}, style, ctx))
			}
		}
	}
	h.counters.Boxes += q.Len() - before
	h.logger.Debug("OCR 覆盖框",
		zap.Int("page", page),
		zap.String("image", img.Name),
		zap.Int("words", res.Words()),
		zap.Int("boxes", q.Len()-before))
	return nil
}

// keep 在 keep_files 打开时保存识别用的图像
func (h *PDFHandler) keep(png []byte, page int, name string) {
	if h.opts.KeepDir == "" {
		return
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, name)
	path := filepath.Join(h.opts.KeepDir, fmt.Sprintf("%s-p%d-%s.png", h.opts.KeepStem, page, name))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		h.logger.Warn("无法保存 OCR 图像", zap.String("path", path), zap.Error(err))
		return
	}
	h.logger.Debug("保存 OCR 图像", zap.String("path", path))
}

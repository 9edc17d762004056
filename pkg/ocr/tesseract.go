package ocr

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"sort"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// TesseractEngine 使用 gosseract 调用本地 Tesseract
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
	logger        *zap.Logger
}

// NewTesseractEngine 创建 Tesseract 引擎
func NewTesseractEngine(languages []string, logger *zap.Logger) *TesseractEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TesseractEngine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
		logger:        logger,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Version 返回本地 Tesseract 版本
func Version() string {
	return gosseract.Version()
}

// Extract 识别一幅 PNG 图像中的单词
func (e *TesseractEngine) Extract(ctx context.Context, png []byte, dpi int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, &ExtractionError{Engine: e.Name(), Reason: "decode image", Err: err}
	}

	client := e.clientFactory()
	defer client.Close()

	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return nil, &ExtractionError{Engine: e.Name(), Reason: "set languages", Err: err}
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, &ExtractionError{Engine: e.Name(), Reason: "set image", Err: err}
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, &ExtractionError{Engine: e.Name(), Reason: "recognize words", Err: err}
	}

	result := GroupWords(boxes, cfg.Height, dpi)
	if result.Words() == 0 {
		return nil, &ExtractionError{Engine: e.Name(), Reason: "no words recognized"}
	}

	e.logger.Debug("OCR 完成",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("words", result.Words()))
	return result, nil
}

type paraKey struct {
	block, par int
}

// GroupWords 按块/段落与行号组织单词，并把 y 轴翻转为自下而上
func GroupWords(boxes []gosseract.BoundingBox, imageHeight, dpi int) *Result {
	var paraOrder []paraKey
	lines := make(map[paraKey]map[int][]Word)

	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		key := paraKey{b.BlockNum, b.ParNum}
		if _, ok := lines[key]; !ok {
			lines[key] = make(map[int][]Word)
			paraOrder = append(paraOrder, key)
		}
		lines[key][b.LineNum] = append(lines[key][b.LineNum], Word{
			Text:     b.Word,
			X:        float64(b.Box.Min.X),
			Y:        float64(imageHeight - b.Box.Max.Y),
			FontSize: float64(b.Box.Dy()),
			Length:   float64(b.Box.Dx()),
		})
	}

	page := Page{DPI: dpi}
	for _, key := range paraOrder {
		nums := make([]int, 0, len(lines[key]))
		for n := range lines[key] {
			nums = append(nums, n)
		}
		sort.Ints(nums)

		para := Para{}
		for _, n := range nums {
			para.Line = append(para.Line, Line{Word: lines[key][n]})
		}
		page.Para = append(page.Para, para)
	}
	return &Result{Page: []Page{page}}
}

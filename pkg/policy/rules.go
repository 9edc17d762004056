package policy

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

// DefaultSeed 是未配置时的随机种子
const DefaultSeed = 230901

// Settings 保存所有策略键，对应配置文件中的 policy.* 段
type Settings struct {
	BoxXScale            float64 `mapstructure:"box_x_scale" json:"box_x_scale"`
	BoxYScale            float64 `mapstructure:"box_y_scale" json:"box_y_scale"`
	BoxXOffset           float64 `mapstructure:"box_x_offset" json:"box_x_offset"`
	BoxYOffset           float64 `mapstructure:"box_y_offset" json:"box_y_offset"`
	FallbackFont         string  `mapstructure:"fallback_font" json:"fallback_font"`
	FontMapFile          string  `mapstructure:"font_map_file" json:"font_map_file"`
	FuzzyFontMatch       bool    `mapstructure:"fuzzy_font_match" json:"fuzzy_font_match"`
	MaxHeadLen           int     `mapstructure:"max_head_len" json:"max_head_len"`
	MinLinesInPara       int     `mapstructure:"min_lines_in_para" json:"min_lines_in_para"`
	MinWordsInLine       int     `mapstructure:"min_words_in_line" json:"min_words_in_line"`
	MinOCRImageWidth     int     `mapstructure:"min_ocr_image_width" json:"min_ocr_image_width"`
	MinOCRImageHeight    int     `mapstructure:"min_ocr_image_height" json:"min_ocr_image_height"`
	ModifyStrongFontSize float64 `mapstructure:"modify_strong_font_size" json:"modify_strong_font_size"`
	Seed                 int64   `mapstructure:"seed" json:"seed"`
	ColoredTextColor     string  `mapstructure:"colored_text_color" json:"colored_text_color"`
	StrongBoxColor       string  `mapstructure:"strong_box_color" json:"strong_box_color"`
	StrongBoxHeight      float64 `mapstructure:"strong_box_height" json:"strong_box_height"`
	StrongBoxShape       string  `mapstructure:"strong_box_shape" json:"strong_box_shape"`
	UseStrongText        bool    `mapstructure:"use_strong_text" json:"use_strong_text"`
	UseColoredText       bool    `mapstructure:"use_colored_text" json:"use_colored_text"`
	UseStrongBox         bool    `mapstructure:"use_strong_box" json:"use_strong_box"`
}

// DefaultSettings 返回默认策略
func DefaultSettings() Settings {
	return Settings{
		BoxXScale:         1.0,
		BoxYScale:         1.0,
		FallbackFont:      "CMU Serif",
		MaxHeadLen:        4,
		MinLinesInPara:    1,
		MinWordsInLine:    5,
		MinOCRImageWidth:  480,
		MinOCRImageHeight: 320,
		Seed:              DefaultSeed,
		ColoredTextColor:  "#011993",
		StrongBoxColor:    "#01199330",
		StrongBoxShape:    string(overlay.ShapeBox),
		UseStrongText:     true,
		UseColoredText:    true,
		UseStrongBox:      false,
	}
}

// Validate 检查策略值，返回 *ConfigurationError
func (s Settings) Validate() error {
	if s.MaxHeadLen < 1 {
		return &ConfigurationError{Key: "policy.max_head_len", Value: s.MaxHeadLen, Reason: "must be at least 1"}
	}
	if s.MinWordsInLine < 0 {
		return &ConfigurationError{Key: "policy.min_words_in_line", Value: s.MinWordsInLine, Reason: "must not be negative"}
	}
	if s.MinLinesInPara < 0 {
		return &ConfigurationError{Key: "policy.min_lines_in_para", Value: s.MinLinesInPara, Reason: "must not be negative"}
	}
	if s.MinOCRImageWidth < 0 || s.MinOCRImageHeight < 0 {
		return &ConfigurationError{Key: "policy.min_ocr_image_width", Value: fmt.Sprintf("%dx%d", s.MinOCRImageWidth, s.MinOCRImageHeight), Reason: "must not be negative"}
	}
	if s.BoxXScale <= 0 || s.BoxYScale <= 0 {
		return &ConfigurationError{Key: "policy.box_x_scale", Value: fmt.Sprintf("%g/%g", s.BoxXScale, s.BoxYScale), Reason: "scales must be positive"}
	}
	if s.StrongBoxHeight < 0 {
		return &ConfigurationError{Key: "policy.strong_box_height", Value: s.StrongBoxHeight, Reason: "must not be negative"}
	}
	if _, err := overlay.ParseShape(s.StrongBoxShape); err != nil {
		return &ConfigurationError{Key: "policy.strong_box_shape", Value: s.StrongBoxShape, Reason: err.Error()}
	}
	if _, err := overlay.ParseColor(s.ColoredTextColor); err != nil {
		return &ConfigurationError{Key: "policy.colored_text_color", Value: s.ColoredTextColor, Reason: err.Error()}
	}
	if _, err := overlay.ParseColor(s.StrongBoxColor); err != nil {
		return &ConfigurationError{Key: "policy.strong_box_color", Value: s.StrongBoxColor, Reason: err.Error()}
	}
	if s.FontMapFile != "" {
		if _, err := os.Stat(s.FontMapFile); err != nil {
			return &ConfigurationError{Key: "policy.font_map_file", Value: s.FontMapFile, Reason: "font map file not readable"}
		}
	}
	return nil
}

// Rules 是策略引擎：决定哪些单词需要增强、如何拆分以及使用的样式。
// 每个实例持有自己的随机数生成器和字体映射缓存，不与其他实例共享。
type Rules struct {
	Settings

	rng       *rand.Rand
	fontMap   FontMap
	fontMapOK bool
	logger    *zap.Logger
}

// NewRules 根据配置创建策略引擎
func NewRules(s Settings, logger *zap.Logger) *Rules {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Rules{Settings: s, logger: logger}
	r.SetSeed(s.Seed)
	return r
}

// SetSeed 重新设置随机种子
func (r *Rules) SetSeed(seed int64) {
	r.Seed = seed
	r.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// SetFontMap 直接注入字体映射（跳过文件加载）
func (r *Rules) SetFontMap(m FontMap) {
	r.fontMap = m
	r.fontMapOK = true
}

// FontMap 返回字体映射，首次调用时从 FontMapFile 加载
func (r *Rules) FontMap() (FontMap, error) {
	if r.fontMapOK {
		return r.fontMap, nil
	}
	if r.FontMapFile == "" {
		r.SetFontMap(FontMap{})
		return r.fontMap, nil
	}

	m, err := LoadFontMap(r.FontMapFile)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("loaded font map",
		zap.String("path", r.FontMapFile),
		zap.Int("families", len(m)))
	r.SetFontMap(m)
	return m, nil
}

// ShouldAugment 判断单词是否需要增强。
// wordsInLine / linesInPara 为 0 表示没有上下文信息。
func (r *Rules) ShouldAugment(word string, wordsInLine, linesInPara int) bool {
	c := Classify(word)
	letters := c.Letters()

	ret := false
	switch {
	case c.LeadingAlphabetic == 0:
		// 不以字母开头
		ret = false
	case c.Upper > 0 && c.Lower == 0 && c.Numeric > 0:
		// 只有大写字母和数字，多半是编号
		ret = false
	default:
		// 三个比较依次覆盖结果，最终取决于与标点数量的比较
		if letters > c.Numeric {
			ret = true
		}
		if letters > c.Whitespace {
			ret = true
		} else {
			ret = false
		}
		if letters > c.Punctuation {
			ret = true
		} else {
			ret = false
		}
	}

	// 上下文只能把结果改为 false
	if wordsInLine > 0 && wordsInLine <= r.MinWordsInLine {
		ret = false
	}
	if linesInPara > 0 && linesInPara <= r.MinLinesInPara {
		ret = false
	}

	r.logger.Debug("augment decision",
		zap.String("word", word),
		zap.Bool("augment", ret),
		zap.Int("words_in_line", wordsInLine),
		zap.Int("lines_in_para", linesInPara))

	return ret
}

// SplitWord 把单词拆成 head 和 tail，head 长度在 [1, min(MaxHeadLen, len)] 内随机
func (r *Rules) SplitWord(word string) (head, tail string) {
	runes := []rune(word)
	if len(runes) == 0 {
		return "", ""
	}

	limit := r.MaxHeadLen
	if limit < 1 {
		limit = 1
	}
	if len(runes) < limit {
		limit = len(runes)
	}

	n := 1 + r.rng.IntN(limit)
	return string(runes[:n]), string(runes[n:])
}

// ResolveFontPath 返回加粗字体文件路径；未启用加粗文本时返回空串
func (r *Rules) ResolveFontPath(family string, italic bool, size float64) (string, error) {
	if !r.UseStrongText {
		return "", nil
	}

	fonts, err := r.FontMap()
	if err != nil {
		return "", err
	}

	if r.FuzzyFontMatch {
		family = r.matchFamily(fonts, family)
	}

	style := StyleBold
	if italic {
		style = italicVariant(fonts, family, r.FallbackFont, style)
	}

	if p, ok := fonts.Lookup(family, style); ok {
		return p, nil
	}

	missing := &MissingFontMappingError{Family: family, Style: style}
	r.logger.Debug("font mapping missing, trying fallback",
		zap.Error(missing),
		zap.String("fallback", r.FallbackFont),
		zap.Float64("size", size))

	if p, ok := fonts.Lookup(r.FallbackFont, style); ok {
		return p, nil
	}

	missing.Fallback = r.FallbackFont
	return "", missing
}

// italicVariant 先在请求字族、再在备用字族中寻找加粗斜体样式
func italicVariant(fonts FontMap, family, fallback, style string) string {
	for _, f := range []string{family, fallback} {
		for _, s := range []string{StyleBoldItalic, StyleBoldItalicClose} {
			if fonts.Has(f, s) {
				return s
			}
		}
	}
	return style
}

// matchFamily 用模糊匹配找到最接近的已知字族
func (r *Rules) matchFamily(fonts FontMap, family string) string {
	if _, ok := fonts[family]; ok || family == "" {
		return family
	}

	ranks := fuzzy.RankFindNormalizedFold(family, fonts.Families())
	if len(ranks) == 0 {
		return family
	}

	best := ranks[0]
	for _, rk := range ranks[1:] {
		if rk.Distance < best.Distance {
			best = rk
		}
	}

	r.logger.Debug("fuzzy font family match",
		zap.String("requested", family),
		zap.String("matched", best.Target))
	return best.Target
}

// ResolveFontSize 返回加粗文本的字号；未启用时返回 -1
func (r *Rules) ResolveFontSize(size float64) float64 {
	if !r.UseStrongText {
		return -1
	}
	return size + r.ModifyStrongFontSize
}

// ResolveTextColor 返回着色文本颜色；未启用时返回空串
func (r *Rules) ResolveTextColor() string {
	if !r.UseColoredText {
		return ""
	}
	return r.ColoredTextColor
}

// ResolveBoxColor 返回覆盖框颜色；未启用时返回空串
func (r *Rules) ResolveBoxColor() string {
	if !r.UseStrongBox {
		return ""
	}
	return r.StrongBoxColor
}

// BoxStyle 返回覆盖框样式模板（宽度比例由调用方设置）
func (r *Rules) BoxStyle() overlay.Style {
	shape, _ := overlay.ParseShape(r.StrongBoxShape)
	c, _ := overlay.ParseColor(r.StrongBoxColor)
	return overlay.Style{
		Height: r.StrongBoxHeight,
		Shape:  shape,
		Color:  c,
	}
}

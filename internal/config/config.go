package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/nerdneilsfield/go-glance/pkg/augment"
	"github.com/nerdneilsfield/go-glance/pkg/policy"
	"github.com/nerdneilsfield/go-glance/pkg/traverse"
)

// LogConfig 控制日志输出
type LogConfig struct {
	Format string `mapstructure:"format"` // console 或 json
	File   string `mapstructure:"file"`   // 额外写入的日志文件，空表示只输出到 stderr
}

// OCRConfig 控制图像文字识别
type OCRConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Forced    bool     `mapstructure:"forced"`    // 强制按页 OCR，文本元素不再增强
	Mode      string   `mapstructure:"mode"`      // page 或 element
	DPI       int      `mapstructure:"dpi"`       // 报告给坐标变换的分辨率
	Engine    string   `mapstructure:"engine"`    // 目前只有 tesseract
	Languages []string `mapstructure:"languages"` // Tesseract 语言包
}

// AugmentConfig 控制一次增强运行的输出
type AugmentConfig struct {
	WriteInto string `mapstructure:"write_into"` // 输出目录，空表示输入文件所在目录
	KeepFiles bool   `mapstructure:"keep_files"` // 保留 OCR 中间图像
	Pages     string `mapstructure:"pages"`      // 页码列表，如 1,3-5；空表示所有页
}

// StatsConfig 控制运行统计
type StatsConfig struct {
	Path string `mapstructure:"path"`
}

// Config 保存 glance 的所有配置
type Config struct {
	Debug   bool            `mapstructure:"debug"`
	Log     LogConfig       `mapstructure:"log"`
	Policy  policy.Settings `mapstructure:"policy"`
	OCR     OCRConfig       `mapstructure:"ocr"`
	Augment AugmentConfig   `mapstructure:"augment"`
	Stats   StatsConfig     `mapstructure:"stats"`
}

// NewDefaultConfig 返回全部取默认值的配置
func NewDefaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Format: "console"},
		Policy: policy.DefaultSettings(),
		OCR: OCRConfig{
			Mode:      "page",
			DPI:       72,
			Engine:    "tesseract",
			Languages: []string{"eng"},
		},
		Stats: StatsConfig{Path: defaultStatsPath()},
	}
}

// DefaultPath 返回用户级配置文件路径
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return LocalFile
	}
	return filepath.Join(home, ".config", "glance", "config.yaml")
}

// LocalFile 是当前目录下的项目级配置文件
const LocalFile = ".glance.yaml"

func defaultStatsPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "glance", "stats.json")
}

// setDefaults 是唯一的默认值表，同时决定了哪些键是合法的
func setDefaults(v *viper.Viper) {
	for key, value := range structToMap(NewDefaultConfig()) {
		v.SetDefault(key, value)
	}
}

// structToMap 把配置展开为以点号分隔的键
func structToMap(c *Config) map[string]interface{} {
	p := c.Policy
	return map[string]interface{}{
		"debug": c.Debug,

		"log.format": c.Log.Format,
		"log.file":   c.Log.File,

		"policy.box_x_scale":             p.BoxXScale,
		"policy.box_y_scale":             p.BoxYScale,
		"policy.box_x_offset":            p.BoxXOffset,
		"policy.box_y_offset":            p.BoxYOffset,
		"policy.fallback_font":           p.FallbackFont,
		"policy.font_map_file":           p.FontMapFile,
		"policy.fuzzy_font_match":        p.FuzzyFontMatch,
		"policy.max_head_len":            p.MaxHeadLen,
		"policy.min_lines_in_para":       p.MinLinesInPara,
		"policy.min_words_in_line":       p.MinWordsInLine,
		"policy.min_ocr_image_width":     p.MinOCRImageWidth,
		"policy.min_ocr_image_height":    p.MinOCRImageHeight,
		"policy.modify_strong_font_size": p.ModifyStrongFontSize,
		"policy.seed":                    p.Seed,
		"policy.colored_text_color":      p.ColoredTextColor,
		"policy.strong_box_color":        p.StrongBoxColor,
		"policy.strong_box_height":       p.StrongBoxHeight,
		"policy.strong_box_shape":        p.StrongBoxShape,
		"policy.use_strong_text":         p.UseStrongText,
		"policy.use_colored_text":        p.UseColoredText,
		"policy.use_strong_box":          p.UseStrongBox,

		"ocr.enabled":   c.OCR.Enabled,
		"ocr.forced":    c.OCR.Forced,
		"ocr.mode":      c.OCR.Mode,
		"ocr.dpi":       c.OCR.DPI,
		"ocr.engine":    c.OCR.Engine,
		"ocr.languages": c.OCR.Languages,

		"augment.write_into": c.Augment.WriteInto,
		"augment.keep_files": c.Augment.KeepFiles,
		"augment.pages":      c.Augment.Pages,

		"stats.path": c.Stats.Path,
	}
}

// Validate 检查配置，失败时返回 *policy.ConfigurationError
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if _, err := augment.ParseOCRMode(c.OCR.Mode); err != nil {
		return &policy.ConfigurationError{Key: "ocr.mode", Value: c.OCR.Mode, Reason: "must be page or element"}
	}
	if c.OCR.DPI <= 0 {
		return &policy.ConfigurationError{Key: "ocr.dpi", Value: c.OCR.DPI, Reason: "must be positive"}
	}
	if c.OCR.Engine != "tesseract" {
		return &policy.ConfigurationError{Key: "ocr.engine", Value: c.OCR.Engine, Reason: "only tesseract is supported"}
	}
	if (c.OCR.Enabled || c.OCR.Forced) && len(c.OCR.Languages) == 0 {
		return &policy.ConfigurationError{Key: "ocr.languages", Reason: "at least one language is required"}
	}
	if _, err := traverse.ParsePageList(c.Augment.Pages); err != nil {
		return &policy.ConfigurationError{Key: "augment.pages", Value: c.Augment.Pages, Reason: err.Error()}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return &policy.ConfigurationError{Key: "log.format", Value: c.Log.Format, Reason: "must be console or json"}
	}
	return nil
}

// PageFilter 返回 augment.pages 对应的页码过滤器
func (c *Config) PageFilter() (traverse.PageFilter, error) {
	list, err := traverse.ParsePageList(c.Augment.Pages)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return traverse.AllPages{}, nil
	}
	return list, nil
}

// OCROptions 把 ocr.* 与 augment.keep_files 转换为处理器选项，keepDir 为保存中间图像的目录
func (c *Config) OCROptions(keepDir, keepStem string) augment.OCROptions {
	mode, _ := augment.ParseOCRMode(c.OCR.Mode)
	opts := augment.OCROptions{
		Enabled: c.OCR.Enabled,
		Forced:  c.OCR.Forced,
		Mode:    mode,
		DPI:     c.OCR.DPI,
	}
	if c.Augment.KeepFiles {
		opts.KeepDir = keepDir
		opts.KeepStem = keepStem
	}
	return opts
}

package cli

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/internal/config"
	"github.com/nerdneilsfield/go-glance/internal/fontscan"
	"github.com/nerdneilsfield/go-glance/internal/logger"
	"github.com/nerdneilsfield/go-glance/pkg/policy"
)

var (
	// map-fonts 命令的标志
	mapFontDirs      []string
	mapFontFile      string
	mapFontAliases   []string
	mapFontCMAlias   string
	mapFontFallback  string
	mapFontUpdateCfg bool
	mapFontEcho      bool
)

// defaultFontMapFile 返回 ~/.config/glance/fonts.json
func defaultFontMapFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "fonts.json"
	}
	return filepath.Join(dir, "glance", "fonts.json")
}

// NewMapFontsCommand 创建 map-fonts 命令
func NewMapFontsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map-fonts",
		Short: "扫描字体目录并生成字体映射",
		Long: `扫描字体目录中的 .ttf、.otf 与 .ttc 文件，按字族与样式生成 JSON 字体映射，
供加粗文本时查找粗体字体文件。

示例:
  glance map-fonts --update-config
  glance map-fonts --font-dir ~/fonts --alias "Latin Modern:LMRoman10" --echo`,
		Args: cobra.NoArgs,
		RunE: runMapFonts,
	}

	f := cmd.Flags()
	f.StringArrayVar(&mapFontDirs, "font-dir", nil, "font directory to scan (repeatable, default: system font directories)")
	f.StringVar(&mapFontFile, "font-map-file", defaultFontMapFile(), "where to write the font map")
	f.StringArrayVar(&mapFontAliases, "alias", fontscan.DefaultAliases, "copy families containing FONTNAME as ALIAS (ALIAS:FONTNAME, repeatable)")
	f.StringVar(&mapFontCMAlias, "computer-modern", fontscan.DefaultComputerModernAlias, "families containing this are also mapped as Computer Modern")
	f.StringVar(&mapFontFallback, "fallback-font", "", "family stored as policy.fallback_font with --update-config")
	f.BoolVar(&mapFontUpdateCfg, "update-config", false, "store the font map location in the configuration file")
	f.BoolVar(&mapFontEcho, "echo", false, "print the font map")

	return cmd
}

func runMapFonts(cmd *cobra.Command, args []string) (err error) {
	// 字体映射通常在写出配置之前生成，配置无法加载时只输出到 stderr
	var log *zap.Logger
	cfg, cfgErr := loadConfig()
	if cfgErr != nil {
		log = logger.NewLogger(debugMode)
		log.Warn("无法加载配置，使用默认值", zap.Error(cfgErr))
	} else if log, err = newLogger(cfg); err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	aliases := make([]fontscan.Alias, 0, len(mapFontAliases))
	for _, s := range mapFontAliases {
		a, err := fontscan.ParseAlias(s)
		if err != nil {
			return err
		}
		aliases = append(aliases, a)
	}

	dirs := mapFontDirs
	if len(dirs) == 0 {
		dirs = fontscan.DefaultDirs()
	}

	fonts := policy.FontMap{}
	scanner := fontscan.NewScanner(mapFontCMAlias, log)
	for _, dir := range dirs {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			log.Warn("字体目录不存在，跳过", zap.String("dir", dir))
			continue
		}
		if err := scanner.ScanDir(cmd.Context(), dir, fonts); err != nil {
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}
	fontscan.ApplyAliases(fonts, aliases)

	if err := os.MkdirAll(filepath.Dir(mapFontFile), 0o755); err != nil {
		return fmt.Errorf("failed to create font map directory: %w", err)
	}
	if err := fonts.Save(mapFontFile); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	families := fonts.Families()
	color.New(color.FgGreen).Fprintf(out, "Mapped %d font families to %s\n", len(families), mapFontFile)
	if mapFontEcho {
		for _, family := range families {
			styles := slices.Sorted(maps.Keys(fonts[family]))
			fmt.Fprintf(out, "  %s: %s\n", family, strings.Join(styles, ", "))
		}
	}

	if !mapFontUpdateCfg {
		return nil
	}
	return updateFontConfig(cmd, fonts, log)
}

// updateFontConfig 把字体映射路径与回退字体写入配置文件
func updateFontConfig(cmd *cobra.Command, fonts policy.FontMap, log *zap.Logger) error {
	abs, err := filepath.Abs(mapFontFile)
	if err != nil {
		return err
	}
	file, err := config.OpenFile(cfgFile)
	if err != nil {
		return err
	}
	if err := file.Set("policy.font_map_file", abs); err != nil {
		return err
	}
	if mapFontFallback != "" {
		if _, ok := fonts[mapFontFallback]; ok {
			if err := file.Set("policy.fallback_font", mapFontFallback); err != nil {
				return err
			}
		} else {
			log.Warn("回退字体不在字体映射中，未写入配置", zap.String("font", mapFontFallback))
		}
	}
	if err := file.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", file.Path())
	return nil
}

// Package fontscan 扫描已安装的字体文件，生成字族 -> 样式 -> 路径的字体映射
package fontscan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/font/sfnt"

	"github.com/nerdneilsfield/go-glance/pkg/policy"
)

// ComputerModern 是 Computer Modern 系列字体统一登记的字族名
const ComputerModern = "Computer Modern"

// DefaultComputerModernAlias 是 Computer Modern 字体文件中常见的字族前缀
const DefaultComputerModernAlias = "CMU"

// DefaultAliases 是默认的字族别名
var DefaultAliases = []string{"LMRoman:Latin Modern Roman"}

// Face 是字体文件中的一个字形
type Face struct {
	Family string
	Style  string
	Path   string
}

// Alias 把名称中含 From 的字族复制为把 From 替换成 To 的新字族
type Alias struct {
	To   string
	From string
}

// ParseAlias 解析 ALIAS:FONTNAME
func ParseAlias(s string) (Alias, error) {
	to, from, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(to) == "" || strings.TrimSpace(from) == "" {
		return Alias{}, fmt.Errorf("invalid alias %q (want ALIAS:FONTNAME)", s)
	}
	return Alias{To: strings.TrimSpace(to), From: strings.TrimSpace(from)}, nil
}

// DefaultDirs 返回当前系统的默认字体目录
func DefaultDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return []string{"/Library/Fonts/", "/System/Library/Fonts/", filepath.Join(home, "Library", "Fonts")}
	case "linux":
		return []string{"/usr/share/fonts/opentype", "/usr/share/fonts/truetype", "/usr/share/fonts/type1"}
	}
	return nil
}

// 样式名中带字号的字体（如 LMRoman 的 "10 Bold"）把字号并入字族
var sizedStyle = regexp.MustCompile(`(\d+) (.+)`)

// Scanner 读取字体文件的名称表
type Scanner struct {
	cmAlias string
	logger  *zap.Logger
}

// NewScanner 创建扫描器，cmAlias 为空时不登记 Computer Modern
func NewScanner(cmAlias string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cmAlias: cmAlias, logger: logger}
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf", ".ttc":
		return true
	}
	return false
}

// ScanDir 递归扫描目录，把找到的字体登记到 m。无法解析的文件只记录警告。
func (s *Scanner) ScanDir(ctx context.Context, dir string, m policy.FontMap) error {
	s.logger.Info("扫描字体目录", zap.String("dir", dir))
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !supported(path) {
			s.logger.Debug("不支持的字体类型", zap.String("path", path))
			return nil
		}

		faces, err := s.ReadFaces(path)
		if err != nil {
			s.logger.Warn("无法读取字体", zap.String("path", path), zap.Error(err))
			return nil
		}
		for _, f := range faces {
			s.add(m, f)
		}
		return nil
	})
}

func (s *Scanner) add(m policy.FontMap, f Face) {
	m.Add(f.Family, f.Style, f.Path)
	if s.cmAlias != "" && strings.Contains(f.Family, s.cmAlias) {
		m.Add(ComputerModern, f.Style, f.Path)
	}
}

// ReadFaces 读取字体文件（含 .ttc 字体集合）中每个字形的字族与样式
func (s *Scanner) ReadFaces(path string) ([]Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fonts []*sfnt.Font
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		c, err := sfnt.ParseCollection(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font collection: %w", err)
		}
		for i := 0; i < c.NumFonts(); i++ {
			f, err := c.Font(i)
			if err != nil {
				return nil, fmt.Errorf("failed to parse font %d in collection: %w", i, err)
			}
			fonts = append(fonts, f)
		}
	} else {
		f, err := sfnt.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font: %w", err)
		}
		fonts = append(fonts, f)
	}

	var buf sfnt.Buffer
	faces := make([]Face, 0, len(fonts))
	for _, f := range fonts {
		family, err := f.Name(&buf, sfnt.NameIDFamily)
		if err != nil {
			return nil, fmt.Errorf("failed to read family name: %w", err)
		}
		style, err := f.Name(&buf, sfnt.NameIDSubfamily)
		if err != nil {
			return nil, fmt.Errorf("failed to read style name: %w", err)
		}
		family, style = splitSizedStyle(family, style)
		faces = append(faces, Face{Family: family, Style: style, Path: path})
	}
	return faces, nil
}

// splitSizedStyle 把 [LMRoman][10 Bold] 变成 [LMRoman10][Bold]
func splitSizedStyle(family, style string) (string, string) {
	if m := sizedStyle.FindStringSubmatch(style); m != nil {
		return family + m[1], m[2]
	}
	return family, style
}

// ApplyAliases 为每个别名复制匹配的字族
func ApplyAliases(m policy.FontMap, aliases []Alias) {
	for _, a := range aliases {
		for _, family := range m.Families() {
			if !strings.Contains(family, a.From) {
				continue
			}
			name := strings.ReplaceAll(family, a.From, a.To)
			for style, path := range m[family] {
				m.Add(name, style, path)
			}
		}
	}
}

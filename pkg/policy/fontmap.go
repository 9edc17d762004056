package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// 字体样式名称
const (
	StyleBold            = "Bold"
	StyleBoldItalic      = "Bold Italic"
	StyleBoldItalicClose = "BoldItalic"
)

// FontMap 字族 -> 样式 -> 字体文件路径
type FontMap map[string]map[string]string

// LoadFontMap 读取 JSON 格式的字体映射文件
func LoadFontMap(path string) (FontMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font map %s: %w", path, err)
	}

	var m FontMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse font map %s: %w", path, err)
	}
	if m == nil {
		m = FontMap{}
	}
	return m, nil
}

// Save 以缩进 JSON 写出字体映射
func (m FontMap) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal font map: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write font map %s: %w", path, err)
	}
	return nil
}

// Lookup 查找字族的某个样式
func (m FontMap) Lookup(family, style string) (string, bool) {
	styles, ok := m[family]
	if !ok {
		return "", false
	}
	p, ok := styles[style]
	return p, ok && p != ""
}

// Has 判断字族是否包含某个样式
func (m FontMap) Has(family, style string) bool {
	_, ok := m.Lookup(family, style)
	return ok
}

// Add 登记一个字体文件
func (m FontMap) Add(family, style, path string) {
	styles, ok := m[family]
	if !ok {
		styles = map[string]string{}
		m[family] = styles
	}
	styles[style] = path
}

// Families 返回排序后的字族列表
func (m FontMap) Families() []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

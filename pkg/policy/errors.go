package policy

import "fmt"

// ConfigurationError 表示策略配置缺失或非法，启动时即终止
type ConfigurationError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("invalid configuration %s=%v: %s", e.Key, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// MissingFontMappingError 表示字体映射中找不到指定字族/样式
type MissingFontMappingError struct {
	Family string
	Style  string
	// Fallback 为已尝试的备用字族，未尝试时为空
	Fallback string
}

func (e *MissingFontMappingError) Error() string {
	if e.Fallback != "" {
		return fmt.Sprintf("no font mapping for %q style %q (fallback %q also missing)", e.Family, e.Style, e.Fallback)
	}
	return fmt.Sprintf("no font mapping for %q style %q", e.Family, e.Style)
}

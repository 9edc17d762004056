package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/policy"
)

// TestFontMap 是测试用字体映射，文件路径不需要存在
var TestFontMap = policy.FontMap{
	"Times": {
		policy.StyleBold:       "/fonts/times-bold.ttf",
		policy.StyleBoldItalic: "/fonts/times-bold-italic.ttf",
	},
	"CMU Serif": {
		policy.StyleBold: "/fonts/cmu-serif-bold.ttf",
	},
}

// CreateTestSettings 返回头部长度恒为 1 的策略配置，便于断言输出
func CreateTestSettings() policy.Settings {
	s := policy.DefaultSettings()
	s.MaxHeadLen = 1
	return s
}

// CreateTestRules 创建使用 TestFontMap 的策略引擎，mutate 可修改配置
func CreateTestRules(mutate func(*policy.Settings)) *policy.Rules {
	s := CreateTestSettings()
	if mutate != nil {
		mutate(&s)
	}
	r := policy.NewRules(s, zap.NewNop())
	r.SetFontMap(TestFontMap)
	return r
}

// WriteConfigFile 在临时目录写入 YAML 配置并返回路径
func WriteConfigFile(t testing.TB, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glance.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

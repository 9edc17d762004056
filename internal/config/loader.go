package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/nerdneilsfield/go-glance/pkg/policy"
)

// EnvPrefix 是环境变量前缀，policy.max_head_len 对应 GLANCE_POLICY_MAX_HEAD_LEN
const EnvPrefix = "GLANCE"

// newViper 创建带默认值与环境变量绑定的 viper 实例
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// FindConfigFile 按顺序查找 ~/.config/glance/config.yaml 与 ./.glance.yaml，都不存在时返回空串
func FindConfigFile() string {
	for _, p := range []string{DefaultPath(), LocalFile} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// read 读取配置文件；configPath 为空且找不到任何文件时只使用默认值
func read(v *viper.Viper, configPath string) (string, error) {
	if configPath == "" {
		configPath = FindConfigFile()
	}
	if configPath == "" {
		return "", nil
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return configPath, nil
}

// LoadConfig 加载配置。overrides 为 key=value 形式，在解码之前覆盖对应的键。
// 返回的配置已经通过校验。
func LoadConfig(configPath string, overrides ...string) (*Config, error) {
	v := newViper()
	if _, err := read(v, configPath); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		key, value, err := ParseOverride(o)
		if err != nil {
			return nil, err
		}
		if !knownKey(v, key) {
			return nil, &policy.ConfigurationError{Key: key, Reason: "unknown configuration key"}
		}
		v.Set(key, value)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ParseOverride 解析 key=value
func ParseOverride(s string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.ToLower(strings.TrimSpace(key))
	if !ok || key == "" {
		return "", "", &policy.ConfigurationError{Key: s, Reason: "override must be key=value"}
	}
	return key, strings.TrimSpace(value), nil
}

func knownKey(v *viper.Viper, key string) bool {
	return slices.Contains(v.AllKeys(), key)
}

// SaveConfig 把配置写入文件，configPath 为空时写入 DefaultPath()
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range structToMap(config) {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config %s: %w", configPath, err)
	}
	return nil
}

// File 是 config 命令操作的配置文件视图：读取合并后的值，修改后整体写回
type File struct {
	v    *viper.Viper
	path string
}

// OpenFile 打开配置文件；文件不存在时以默认值开始，保存时创建 configPath（为空则为 DefaultPath()）
func OpenFile(configPath string) (*File, error) {
	v := newViper()
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			return &File{v: v, path: configPath}, nil
		}
	}
	found, err := read(v, configPath)
	if err != nil {
		return nil, err
	}
	if found == "" {
		found = DefaultPath()
	}
	return &File{v: v, path: found}, nil
}

// Path 返回保存时写入的路径
func (f *File) Path() string { return f.path }

// Keys 返回排好序的全部配置键
func (f *File) Keys() []string {
	keys := f.v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Get 返回键的当前值
func (f *File) Get(key string) (interface{}, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if !knownKey(f.v, key) {
		return nil, &policy.ConfigurationError{Key: key, Reason: "unknown configuration key"}
	}
	return f.v.Get(key), nil
}

// Set 修改一个键，修改后的整体配置必须仍然合法
func (f *File) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !knownKey(f.v, key) {
		return &policy.ConfigurationError{Key: key, Reason: "unknown configuration key"}
	}
	prev := f.v.Get(key)
	f.v.Set(key, value)

	var config Config
	err := f.v.Unmarshal(&config)
	if err == nil {
		err = config.Validate()
	}
	if err != nil {
		f.v.Set(key, prev)
		return err
	}
	return nil
}

// Save 写回配置文件
func (f *File) Save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := f.v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", f.path, err)
	}
	return nil
}

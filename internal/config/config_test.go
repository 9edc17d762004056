package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-glance/pkg/augment"
	"github.com/nerdneilsfield/go-glance/pkg/policy"
	"github.com/nerdneilsfield/go-glance/pkg/traverse"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	c := NewDefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, 4, c.Policy.MaxHeadLen)
	assert.Equal(t, "page", c.OCR.Mode)
	assert.Equal(t, 72, c.OCR.DPI)
	assert.Equal(t, []string{"eng"}, c.OCR.Languages)
	assert.Equal(t, "stats.json", filepath.Base(c.Stats.Path))
}

func TestLoadConfig(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
policy:
  max_head_len: 2
  use_strong_box: true
  strong_box_shape: underbar
ocr:
  enabled: true
  mode: element
augment:
  pages: "1,3-5"
`)
		c, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 2, c.Policy.MaxHeadLen)
		assert.True(t, c.Policy.UseStrongBox)
		assert.Equal(t, "underbar", c.Policy.StrongBoxShape)
		// 未写出的键保持默认
		assert.Equal(t, 5, c.Policy.MinWordsInLine)
		assert.Equal(t, "#011993", c.Policy.ColoredTextColor)
		assert.True(t, c.OCR.Enabled)
		assert.Equal(t, "element", c.OCR.Mode)

		f, err := c.PageFilter()
		require.NoError(t, err)
		assert.True(t, f.Selected(4))
		assert.False(t, f.Selected(2))
	})

	t.Run("overrides apply before decoding", func(t *testing.T) {
		path := writeConfig(t, "policy:\n  max_head_len: 2\n")
		c, err := LoadConfig(path, "policy.max_head_len=3", "ocr.languages=eng,deu", "policy.use_colored_text=false")
		require.NoError(t, err)
		assert.Equal(t, 3, c.Policy.MaxHeadLen)
		assert.Equal(t, []string{"eng", "deu"}, c.OCR.Languages)
		assert.False(t, c.Policy.UseColoredText)
	})

	t.Run("environment variables", func(t *testing.T) {
		t.Setenv("GLANCE_POLICY_MIN_WORDS_IN_LINE", "7")
		c, err := LoadConfig(writeConfig(t, "debug: true\n"))
		require.NoError(t, err)
		assert.Equal(t, 7, c.Policy.MinWordsInLine)
		assert.True(t, c.Debug)
	})

	t.Run("unknown override key", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, ""), "policy.no_such_key=1")
		var ce *policy.ConfigurationError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "policy.no_such_key", ce.Key)
	})

	t.Run("malformed override", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, ""), "max_head_len")
		var ce *policy.ConfigurationError
		assert.ErrorAs(t, err, &ce)
	})

	t.Run("invalid values are fatal", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "policy:\n  max_head_len: 0\n"))
		var ce *policy.ConfigurationError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "policy.max_head_len", ce.Key)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		key    string
	}{
		{"unknown shape", func(c *Config) { c.Policy.StrongBoxShape = "circle" }, "policy.strong_box_shape"},
		{"bad colour", func(c *Config) { c.Policy.ColoredTextColor = "#12" }, "policy.colored_text_color"},
		{"bad box colour", func(c *Config) { c.Policy.StrongBoxColor = "blue-ish" }, "policy.strong_box_color"},
		{"negative minimum", func(c *Config) { c.Policy.MinOCRImageWidth = -1 }, "policy.min_ocr_image_width"},
		{"missing font map", func(c *Config) { c.Policy.FontMapFile = "/nonexistent/fonts.json" }, "policy.font_map_file"},
		{"bad ocr mode", func(c *Config) { c.OCR.Mode = "region" }, "ocr.mode"},
		{"zero dpi", func(c *Config) { c.OCR.DPI = 0 }, "ocr.dpi"},
		{"unknown engine", func(c *Config) { c.OCR.Engine = "easyocr" }, "ocr.engine"},
		{"no languages", func(c *Config) { c.OCR.Enabled = true; c.OCR.Languages = nil }, "ocr.languages"},
		{"bad page list", func(c *Config) { c.Augment.Pages = "5-3" }, "augment.pages"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDefaultConfig()
			tt.modify(c)
			var ce *policy.ConfigurationError
			require.ErrorAs(t, c.Validate(), &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestOCROptions(t *testing.T) {
	c := NewDefaultConfig()
	c.OCR.Enabled = true
	c.OCR.Mode = "element"
	c.OCR.DPI = 300

	opts := c.OCROptions("/out", "book")
	assert.Equal(t, augment.OCRModeElement, opts.Mode)
	assert.Equal(t, 300, opts.DPI)
	assert.Empty(t, opts.KeepDir)

	c.Augment.KeepFiles = true
	opts = c.OCROptions("/out", "book")
	assert.Equal(t, "/out", opts.KeepDir)
	assert.Equal(t, "book", opts.KeepStem)
}

func TestPageFilterDefaultsToAllPages(t *testing.T) {
	f, err := NewDefaultConfig().PageFilter()
	require.NoError(t, err)
	assert.Equal(t, traverse.AllPages{}, f)
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := NewDefaultConfig()
	c.Policy.MaxHeadLen = 3
	c.Policy.UseStrongBox = true
	c.OCR.Languages = []string{"eng", "fra"}
	require.NoError(t, SaveConfig(c, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Policy.MaxHeadLen)
	assert.True(t, loaded.Policy.UseStrongBox)
	assert.Equal(t, []string{"eng", "fra"}, loaded.OCR.Languages)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	f, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())
	assert.Contains(t, f.Keys(), "policy.max_head_len")

	require.NoError(t, f.Set("policy.max_head_len", "2"))
	v, err := f.Get("policy.max_head_len")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	t.Run("invalid value is rejected and rolled back", func(t *testing.T) {
		err := f.Set("ocr.dpi", "0")
		var ce *policy.ConfigurationError
		require.ErrorAs(t, err, &ce)
		v, err := f.Get("ocr.dpi")
		require.NoError(t, err)
		assert.Equal(t, 72, v)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := f.Get("render.engine")
		assert.Error(t, err)
		assert.Error(t, f.Set("render.engine", "x"))
	})

	require.NoError(t, f.Save())
	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Policy.MaxHeadLen)
}

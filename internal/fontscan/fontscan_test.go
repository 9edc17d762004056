package fontscan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/nerdneilsfield/go-glance/pkg/policy"
)

func writeFont(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	bold := writeFont(t, dir, "go/Go-Bold.ttf", gobold.TTF)
	boldItalic := writeFont(t, dir, "go/nested/Go-Bold-Italic.TTF", gobolditalic.TTF)
	regular := writeFont(t, dir, "Go-Regular.otf", goregular.TTF)
	writeFont(t, dir, "broken.ttf", []byte("not a font"))
	writeFont(t, dir, "README.txt", []byte("fonts"))

	m := policy.FontMap{}
	require.NoError(t, NewScanner("", nil).ScanDir(context.Background(), dir, m))

	assert.Equal(t, []string{"Go"}, m.Families())
	p, ok := m.Lookup("Go", policy.StyleBold)
	require.True(t, ok)
	assert.Equal(t, bold, p)
	p, ok = m.Lookup("Go", policy.StyleBoldItalic)
	require.True(t, ok)
	assert.Equal(t, boldItalic, p)
	p, ok = m.Lookup("Go", "Regular")
	require.True(t, ok)
	assert.Equal(t, regular, p)
}

func TestScanDirComputerModernAlias(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "Go-Bold.ttf", gobold.TTF)

	m := policy.FontMap{}
	require.NoError(t, NewScanner("Go", nil).ScanDir(context.Background(), dir, m))
	assert.True(t, m.Has(ComputerModern, policy.StyleBold))
}

func TestScanDirMissing(t *testing.T) {
	err := NewScanner("", nil).ScanDir(context.Background(), filepath.Join(t.TempDir(), "none"), policy.FontMap{})
	assert.Error(t, err)
}

func TestSplitSizedStyle(t *testing.T) {
	f, s := splitSizedStyle("LMRoman", "10 Bold")
	assert.Equal(t, "LMRoman10", f)
	assert.Equal(t, "Bold", s)

	f, s = splitSizedStyle("Times", "Bold Italic")
	assert.Equal(t, "Times", f)
	assert.Equal(t, "Bold Italic", s)
}

func TestAliases(t *testing.T) {
	a, err := ParseAlias("LMRoman:Latin Modern Roman")
	require.NoError(t, err)
	assert.Equal(t, Alias{To: "LMRoman", From: "Latin Modern Roman"}, a)

	_, err = ParseAlias("nocolon")
	assert.Error(t, err)

	m := policy.FontMap{}
	m.Add("Latin Modern Roman10", "Bold", "/f/lmr10-bold.otf")
	m.Add("Times", "Bold", "/f/times-bold.ttf")
	ApplyAliases(m, []Alias{a})

	p, ok := m.Lookup("LMRoman10", "Bold")
	require.True(t, ok)
	assert.Equal(t, "/f/lmr10-bold.otf", p)
	assert.Len(t, m.Families(), 3)
}

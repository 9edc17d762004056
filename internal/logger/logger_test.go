package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glance.log")
	l, err := New(Options{Format: "json", File: path})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("augmented", zap.Int("pages", 3))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"augmented"`)
	assert.Contains(t, string(data), `"pages":3`)
	assert.NotContains(t, string(data), "hidden")
}

func TestDebugLevel(t *testing.T) {
	l := NewLogger(true)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
	assert.False(t, NewLogger(false).Core().Enabled(zap.DebugLevel))
}

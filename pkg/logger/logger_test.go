package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pve.log")

	l, err := New(Config{Level: "debug", FileName: path, MaxSize: 1})
	require.NoError(t, err)
	l.Debug("hello file")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello file")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestHelpersPanicUntilInit(t *testing.T) {
	InfoLogger, FatalLogger = nil, nil
	assert.Panics(t, func() { Info("x") })

	_, err := Init(Config{Level: "error"})
	require.NoError(t, err)
	assert.NotPanics(t, func() { Info("x %d", 1) })
}

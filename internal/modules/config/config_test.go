package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/api/ws/socket.io/", cfg.Session.Path)
	assert.Equal(t, 1000, cfg.LogCapacity)
	assert.Equal(t, "1min", cfg.Defaults.Timeframe)
	assert.InDelta(t, 300.0, cfg.Compile.InitialCapital, 1e-9)
	assert.True(t, cfg.Compile.TrackExternal)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: "http://api.local"
  timeout: 4s
compile:
  display_window: 500ms
credentials:
  user_id: "7"
  token: "file-token"
log_capacity: 20
`), 0o600))

	t.Setenv(userTokenENV, "env-token")
	t.Setenv(databaseDSN, "postgres://u:p@localhost:5432/pve")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://api.local", cfg.API.BaseURL)
	assert.Equal(t, 4*time.Second, cfg.API.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Compile.DisplayWindow)
	assert.Equal(t, "7", cfg.Credentials.UserID)
	assert.Equal(t, "env-token", cfg.Credentials.Token)
	assert.Equal(t, "postgres://u:p@localhost:5432/pve", cfg.DB)
	assert.Equal(t, 20, cfg.LogCapacity)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_capacity: 0\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("api: [broken\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestDurationFromEnvFallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "nonsense")
	assert.Equal(t, 2*time.Second, durationFromEnv("SOME_DURATION", "2s"))
}

package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "creds.yaml")
	s := NewStore(path, models.Credentials{})

	_, err := s.Current()
	require.ErrorIs(t, err, exception.ErrAuthentication)

	user := &models.UserProfile{ID: 42, FirstName: "Ann", Username: "ann"}
	require.NoError(t, s.Login(models.Credentials{UserID: "42", Token: "secret"}, user))

	// изменение исходного профиля не трогает сохранённый
	user.FirstName = "changed"

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// новый экземпляр читает то же с диска
	again := NewStore(path, models.Credentials{})
	creds, err := again.Current()
	require.NoError(t, err)
	assert.Equal(t, models.Credentials{UserID: "42", Token: "secret"}, creds)

	got, ok := again.User()
	require.True(t, ok)
	assert.Equal(t, "Ann", got.FirstName)

	creds, profile, err := again.Load()
	require.NoError(t, err)
	assert.Equal(t, "42", creds.UserID)
	assert.Equal(t, int64(42), profile.ID)

	require.NoError(t, again.Logout())
	_, err = again.Current()
	require.ErrorIs(t, err, exception.ErrAuthentication)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// повторный logout не ошибка
	require.NoError(t, again.Logout())
}

func TestStoreFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.yaml")
	s := NewStore(path, models.Credentials{UserID: "7", Token: "env"})

	creds, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "env", creds.Token)

	// файл важнее fallback
	require.NoError(t, s.Login(models.Credentials{UserID: "8", Token: "file"}, nil))
	creds, err = s.Current()
	require.NoError(t, err)
	assert.Equal(t, "file", creds.Token)

	_, ok := s.User()
	assert.False(t, ok)
}

func TestStoreRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "creds.yaml"), models.Credentials{})

	err := s.Login(models.Credentials{UserID: "42"}, nil)
	require.ErrorIs(t, err, exception.ErrAuthentication)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("user_id: [unclosed"), 0o600))
	_, err = NewStore(bad, models.Credentials{}).Current()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

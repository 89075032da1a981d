package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

const defaultPath = "data/credentials.yaml"

// Store — креды пользователя в YAML-файле. Файл пишется атомарно
// через tmp + rename, права 0600.
type Store struct {
	path     string
	fallback models.Credentials

	mu     sync.Mutex
	state  snapshot
	loaded bool
}

type snapshot struct {
	UserID    string              `yaml:"user_id"`
	Token     string              `yaml:"token"`
	User      *models.UserProfile `yaml:"user,omitempty"`
	UpdatedAt time.Time           `yaml:"updated_at"`
}

// NewStore: path пустой → data/credentials.yaml. fallback отдаётся из
// Current, пока в файле ничего нет (креды из env/конфига).
func NewStore(path string, fallback models.Credentials) *Store {
	if path == "" {
		path = defaultPath
	}
	return &Store{path: path, fallback: fallback}
}

func (s *Store) Path() string { return s.path }

// Login сохраняет пару user_id/token и профиль.
func (s *Store) Login(creds models.Credentials, user *models.UserProfile) error {
	if creds.Empty() {
		return fmt.Errorf("login: %w: user_id and token are required", exception.ErrAuthentication)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = snapshot{
		UserID:    creds.UserID,
		Token:     creds.Token,
		User:      cloneProfile(user),
		UpdatedAt: time.Now().UTC(),
	}
	s.loaded = true
	return s.saveLocked()
}

// Logout удаляет файл. Fallback из конфига при этом остаётся.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = snapshot{}
	s.loaded = true
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Load перечитывает файл с диска.
func (s *Store) Load() (models.Credentials, *models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = false
	if err := s.loadLocked(); err != nil {
		return models.Credentials{}, nil, err
	}
	return models.Credentials{UserID: s.state.UserID, Token: s.state.Token}, cloneProfile(s.state.User), nil
}

// Current — креды для REST и сессии; нет ни файла, ни fallback →
// exception.ErrAuthentication.
func (s *Store) Current() (models.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return models.Credentials{}, err
	}
	c := models.Credentials{UserID: s.state.UserID, Token: s.state.Token}
	if !c.Empty() {
		return c, nil
	}
	if !s.fallback.Empty() {
		return s.fallback, nil
	}
	return models.Credentials{}, exception.ErrAuthentication
}

// User — сохранённый профиль, если был логин.
func (s *Store) User() (*models.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil || s.state.User == nil {
		return nil, false
	}
	return cloneProfile(s.state.User), true
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.state = snapshot{}
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	s.state = snap
	s.loaded = true
	return nil
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	b, err := yaml.Marshal(&s.state)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func cloneProfile(in *models.UserProfile) *models.UserProfile {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}

package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

// Store — автосохранение черновиков по (owner, name).
type Store interface {
	Save(ctx context.Context, d models.Draft) error
	Get(ctx context.Context, owner, name string) (models.Draft, error)
	// List без Data, отсортирован по UpdatedAt по убыванию.
	List(ctx context.Context, owner string) ([]models.Draft, error)
	Delete(ctx context.Context, owner, name string) error
}

func checkKey(owner, name string) error {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("draft: owner and name are required")
	}
	return nil
}

type draftKey struct{ owner, name string }

// Memory — хранилище в памяти процесса, когда БД не настроена.
type Memory struct {
	now func() time.Time

	mu   sync.RWMutex
	data map[draftKey]models.Draft
}

func NewMemory() *Memory {
	return &Memory{
		now:  time.Now,
		data: make(map[draftKey]models.Draft),
	}
}

func (m *Memory) Save(ctx context.Context, d models.Draft) error {
	if err := checkKey(d.Owner, d.Name); err != nil {
		return err
	}
	d.Data = slices.Clone(d.Data)
	d.UpdatedAt = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[draftKey{d.Owner, d.Name}] = d
	return nil
}

func (m *Memory) Get(ctx context.Context, owner, name string) (models.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.data[draftKey{owner, name}]
	if !ok {
		return models.Draft{}, fmt.Errorf("draft %q: %w", name, exception.ErrNotFound)
	}
	d.Data = slices.Clone(d.Data)
	return d, nil
}

func (m *Memory) List(ctx context.Context, owner string) ([]models.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Draft
	for k, d := range m.data {
		if k.owner != owner {
			continue
		}
		d.Data = nil
		out = append(out, d)
	}
	sortDrafts(out)
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, owner, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := draftKey{owner, name}
	if _, ok := m.data[k]; !ok {
		return fmt.Errorf("draft %q: %w", name, exception.ErrNotFound)
	}
	delete(m.data, k)
	return nil
}

func sortDrafts(ds []models.Draft) {
	slices.SortFunc(ds, func(a, b models.Draft) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*PG)(nil)
)

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

// Uploader — то, чем черновик отправляется на бэкенд.
type Uploader interface {
	SaveGraph(ctx context.Context, name string, data []byte, meta models.Metadata) error
}

type CredentialSource interface {
	Current() (models.Credentials, error)
}

// Publisher выгружает черновики на бэкенд и удаляет их локально.
type Publisher struct {
	store Store
	api   Uploader
	creds CredentialSource
	log   *zap.Logger

	// один Flush за раз
	mu sync.Mutex
}

func NewPublisher(store Store, api Uploader, creds CredentialSource, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{store: store, api: api, creds: creds, log: log.Named("drafts")}
}

// Publish загружает один черновик. При ошибке загрузки черновик остаётся.
func (p *Publisher) Publish(ctx context.Context, name string) error {
	owner, err := p.owner()
	if err != nil {
		return err
	}
	return p.publish(ctx, owner, name)
}

func (p *Publisher) publish(ctx context.Context, owner, name string) error {
	d, err := p.store.Get(ctx, owner, name)
	if err != nil {
		return err
	}
	if err := p.api.SaveGraph(ctx, d.Name, d.Data, d.Metadata); err != nil {
		return fmt.Errorf("publish %q: %w", name, err)
	}
	return p.store.Delete(ctx, owner, name)
}

// Flush выгружает все черновики текущего пользователя, старые первыми.
// Сетевая ошибка или 429 прерывают проход: остальное подождёт
// следующего подключения.
func (p *Publisher) Flush(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	owner, err := p.owner()
	if err != nil {
		return 0, err
	}
	list, err := p.store.List(ctx, owner)
	if err != nil {
		return 0, err
	}

	var (
		published int
		errs      error
	)
	for i := len(list) - 1; i >= 0; i-- {
		name := list[i].Name
		err := p.publish(ctx, owner, name)
		switch {
		case err == nil:
			published++
			p.log.Info("draft published", zap.String("name", name))
		case errors.Is(err, exception.ErrNetwork), errors.Is(err, exception.ErrRateLimited):
			return published, multierr.Append(errs, err)
		default:
			errs = multierr.Append(errs, err)
		}
	}
	return published, errs
}

func (p *Publisher) owner() (string, error) {
	c, err := p.creds.Current()
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

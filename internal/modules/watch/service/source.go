package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pve_client/pkg/exception"
)

// PollSource опрашивает Fetch раз в Interval. Первый опрос сразу.
// Ошибки сети и 429 переживаются, остальные останавливают опрос.
type PollSource struct {
	Interval time.Duration
	Fetch    func(ctx context.Context) (any, error)
	// OnError вызывается на каждую переживаемую ошибку.
	OnError func(err error)
}

func (p PollSource) Run(ctx context.Context, wake <-chan struct{}, fn func(v any) bool) error {
	if p.Fetch == nil {
		return fmt.Errorf("poll: nil fetch")
	}
	if p.Interval <= 0 {
		return fmt.Errorf("poll: interval must be positive, got %s", p.Interval)
	}

	t := time.NewTicker(p.Interval)
	defer t.Stop()

	for {
		v, err := p.Fetch(ctx)
		switch {
		case err == nil:
			if fn(v) {
				return nil
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case transient(err):
			if p.OnError != nil {
				p.OnError(err)
			}
		default:
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-t.C:
		}
	}
}

func transient(err error) bool {
	return errors.Is(err, exception.ErrNetwork) || errors.Is(err, exception.ErrRateLimited)
}

// PushSource отдаёт значения из C до закрытия канала.
type PushSource struct {
	C <-chan any
}

func (p PushSource) Run(ctx context.Context, _ <-chan struct{}, fn func(v any) bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-p.C:
			if !ok {
				return exception.ErrSessionClosed
			}
			if fn(v) {
				return nil
			}
		}
	}
}

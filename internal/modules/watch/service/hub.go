package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"pve_client/pkg/exception"
)

// Key — что именно наблюдаем: (сущность, id).
type Key struct {
	Entity string
	ID     string
}

func (k Key) String() string { return k.Entity + ":" + k.ID }

// Source выдаёт значения в fn, пока fn не вернёт true или не отменят ctx.
// wake просит источник проверить состояние вне расписания.
type Source interface {
	Run(ctx context.Context, wake <-chan struct{}, fn func(v any) bool) error
}

// Watcher — один активный наблюдатель.
type Watcher struct {
	key    Key
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
	err    error
}

func (w *Watcher) Key() Key              { return w.key }
func (w *Watcher) Done() <-chan struct{} { return w.done }
func (w *Watcher) Stop()                 { w.cancel() }

// Err валиден после закрытия Done.
func (w *Watcher) Err() error {
	<-w.done
	return w.err
}

// Wait блокируется до завершения наблюдателя.
func (w *Watcher) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hub держит не больше одного наблюдателя на ключ.
type Hub struct {
	log *zap.Logger

	mu       sync.Mutex
	watchers map[Key]*Watcher
	wg       sync.WaitGroup
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log.Named("watch"),
		watchers: make(map[Key]*Watcher),
	}
}

// Watch запускает src в отдельной горутине. Повторный Watch по тому же
// ключу до завершения первого → exception.ErrAlreadyWatching.
func (h *Hub) Watch(ctx context.Context, key Key, src Source, fn func(v any) bool) (*Watcher, error) {
	h.mu.Lock()
	if _, ok := h.watchers[key]; ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", exception.ErrAlreadyWatching, key)
	}
	wctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		key:    key,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	h.watchers[key] = w
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		defer cancel()

		err := src.Run(wctx, w.wake, fn)
		if err != nil && wctx.Err() == nil {
			h.log.Warn("watch stopped", zap.Stringer("key", key), zap.Error(err))
		}

		h.mu.Lock()
		if h.watchers[key] == w {
			delete(h.watchers, key)
		}
		h.mu.Unlock()

		w.err = err
		close(w.done)
	}()
	return w, nil
}

// Wake будит наблюдателя по ключу. false — никто не наблюдает.
func (h *Hub) Wake(key Key) bool {
	h.mu.Lock()
	w, ok := h.watchers[key]
	h.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (h *Hub) Watching(key Key) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.watchers[key]
	return ok
}

func (h *Hub) Active() []Key {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]Key, 0, len(h.watchers))
	for k := range h.watchers {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int { return strings.Compare(a.String(), b.String()) })
	return keys
}

// Stop отменяет наблюдателя по ключу.
func (h *Hub) Stop(key Key) bool {
	h.mu.Lock()
	w, ok := h.watchers[key]
	h.mu.Unlock()
	if ok {
		w.Stop()
	}
	return ok
}

// Close отменяет всех и ждёт их завершения.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, w := range h.watchers {
		w.Stop()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

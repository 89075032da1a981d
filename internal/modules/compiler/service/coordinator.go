package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pve_client/internal/models"
	"pve_client/internal/modules/config"
	"pve_client/pkg/exception"
)

const (
	stageStarting    = "starting"
	msgNoProgress    = "no progress received"
	subscriberBuffer = 64
)

// Compiler — та часть REST-клиента, которая нужна координатору.
type Compiler interface {
	CompileGraph(ctx context.Context, name string, meta models.Metadata) error
}

type entry struct {
	s     models.CompilationSession
	gen   uint64
	timer *time.Timer
}

// Coordinator ведёт по одной CompilationSession на граф:
// Idle → Requested → Compiling → Completed | Failed → Idle.
// Прогресс приходит только через Apply (push из сессии или poll).
type Coordinator struct {
	api           Compiler
	displayWindow time.Duration
	gracePeriod   time.Duration
	trackExternal bool
	log           *zap.Logger
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	gen      uint64
	subs     map[int]chan models.CompilationSession
	nextSub  int
}

func NewCoordinator(cfg *config.Config, api Compiler, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		api:           api,
		displayWindow: cfg.Compile.DisplayWindow,
		gracePeriod:   cfg.Compile.GracePeriod,
		trackExternal: cfg.Compile.TrackExternal,
		log:           log.Named("compiler"),
		now:           time.Now,
		sessions:      make(map[string]*entry),
		subs:          make(map[int]chan models.CompilationSession),
	}
}

// Submit отправляет граф на компиляцию.
// Повторный submit, пока сессия Requested/Compiling → exception.ErrCompileInFlight.
// 429 оставляет сессию в Idle и возвращает *exception.RateLimitError.
func (c *Coordinator) Submit(ctx context.Context, name string, meta models.Metadata) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("compile: empty graph name")
	}

	c.mu.Lock()
	if e, ok := c.sessions[name]; ok && e.s.InFlight() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q is %s", exception.ErrCompileInFlight, name, e.s.State)
	}
	e := c.replaceLocked(name)
	e.s.State = models.CompileRequested
	gen := e.gen
	c.publishLocked(e.s)
	c.mu.Unlock()

	err := c.api.CompileGraph(ctx, name, meta)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.sessions[name]
	if !ok || e.gen != gen {
		// сессию сбросили вручную, пока шёл запрос
		return err
	}

	switch {
	case err == nil:
		// completed мог прийти раньше ответа HTTP
		if e.s.State == models.CompileRequested {
			c.setLocked(e, models.CompileCompiling, 0, stageStarting, "")
		}
		return nil

	case !e.s.InFlight():
		// итог уже пришёл событием, поздняя ошибка HTTP его не меняет
		return err

	case errors.Is(err, exception.ErrRateLimited):
		c.dropLocked(name)
		return err

	default:
		c.failLocked(e, err.Error())
		return err
	}
}

// Apply — единая точка входа событий прогресса.
// Прогресс только растёт; события для idle графов игнорируются. Для графа
// без сессии при trackExternal сессия заводится (External), иначе событие
// игнорируется.
func (c *Coordinator) Apply(p models.CompilationProgress) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.sessions[p.GraphName]
	if !ok {
		if !c.trackExternal || strings.TrimSpace(p.GraphName) == "" || !p.Status.Valid() {
			return false
		}
		e = c.replaceLocked(p.GraphName)
		e.s.External = true
		e.s.State = models.CompileCompiling
		c.log.Debug("tracking external compilation", zap.String("graph", p.GraphName))
	}
	if !e.s.InFlight() {
		return false
	}

	switch p.Status {
	case models.ProgressRunning:
		if p.Progress < e.s.Progress {
			return false
		}
		c.setLocked(e, models.CompileCompiling, p.Progress, p.Stage, p.Message)

	case models.ProgressCompleted:
		stage := p.Stage
		if stage == "" {
			stage = e.s.Stage
		}
		c.setLocked(e, models.CompileCompleted, 100, stage, p.Message)
		c.scheduleResetLocked(e)

	case models.ProgressError:
		msg := p.Message
		if msg == "" {
			msg = "compilation failed"
		}
		c.failLocked(e, msg)

	default:
		return false
	}
	return true
}

// Reset — ручной выход в Idle, если события перестали приходить.
func (c *Coordinator) Reset(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[name]; !ok {
		return false
	}
	c.dropLocked(name)
	return true
}

// Sweep переводит в Failed сессии без событий дольше gracePeriod.
// gracePeriod == 0 отключает проверку.
func (c *Coordinator) Sweep(now time.Time) []string {
	if c.gracePeriod <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []string
	for name, e := range c.sessions {
		if e.s.InFlight() && now.Sub(e.s.UpdatedAt) >= c.gracePeriod {
			stale = append(stale, name)
			c.failLocked(e, msgNoProgress)
		}
	}
	slices.Sort(stale)
	return stale
}

// RunSweeper вызывает Sweep с периодом every до отмены ctx.
func (c *Coordinator) RunSweeper(ctx context.Context, every time.Duration) {
	if c.gracePeriod <= 0 || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			for _, name := range c.Sweep(now) {
				c.log.Warn("compile session timed out", zap.String("graph", name))
			}
		}
	}
}

// Session — снапшот сессии; для неизвестного графа Idle.
func (c *Coordinator) Session(name string) models.CompilationSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.sessions[name]; ok {
		return e.s
	}
	return models.CompilationSession{GraphName: name, State: models.CompileIdle}
}

func (c *Coordinator) Sessions() []models.CompilationSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.CompilationSession, 0, len(c.sessions))
	for _, e := range c.sessions {
		out = append(out, e.s)
	}
	slices.SortFunc(out, func(a, b models.CompilationSession) int {
		return strings.Compare(a.GraphName, b.GraphName)
	})
	return out
}

// Subscribe отдаёт поток смен состояния. Медленный подписчик теряет
// промежуточные состояния, но не блокирует координатор.
func (c *Coordinator) Subscribe() (<-chan models.CompilationSession, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan models.CompilationSession, subscriberBuffer)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ch, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

// replaceLocked создаёт свежую сессию вместо отображаемой Completed/Failed.
func (c *Coordinator) replaceLocked(name string) *entry {
	if old, ok := c.sessions[name]; ok && old.timer != nil {
		old.timer.Stop()
	}
	c.gen++
	e := &entry{
		s:   models.CompilationSession{GraphName: name, UpdatedAt: c.now()},
		gen: c.gen,
	}
	c.sessions[name] = e
	return e
}

func (c *Coordinator) setLocked(e *entry, st models.CompileState, progress int, stage, msg string) {
	e.s.State = st
	e.s.Progress = progress
	if stage != "" {
		e.s.Stage = stage
	}
	e.s.Message = msg
	e.s.UpdatedAt = c.now()
	c.publishLocked(e.s)
}

func (c *Coordinator) failLocked(e *entry, msg string) {
	c.setLocked(e, models.CompileFailed, e.s.Progress, "", msg)
	c.scheduleResetLocked(e)
}

// scheduleResetLocked: Completed/Failed уходят в Idle через displayWindow.
func (c *Coordinator) scheduleResetLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	name, gen := e.s.GraphName, e.gen
	if c.displayWindow <= 0 {
		c.dropLocked(name)
		return
	}
	e.timer = time.AfterFunc(c.displayWindow, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.sessions[name]; ok && cur.gen == gen && !cur.s.InFlight() {
			c.dropLocked(name)
		}
	})
}

func (c *Coordinator) dropLocked(name string) {
	if e, ok := c.sessions[name]; ok && e.timer != nil {
		e.timer.Stop()
	}
	delete(c.sessions, name)
	c.publishLocked(models.CompilationSession{GraphName: name, State: models.CompileIdle, UpdatedAt: c.now()})
}

func (c *Coordinator) publishLocked(s models.CompilationSession) {
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

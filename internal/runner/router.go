package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pve_client/internal/models"
	notify "pve_client/internal/modules/notify/service"
	watch "pve_client/internal/modules/watch/service"
	"pve_client/internal/stream"
)

// Compilation — приёмник прогресса компиляции.
type Compilation interface {
	Apply(p models.CompilationProgress) bool
	Sessions() []models.CompilationSession
}

// Waker будит наблюдателя по ключу (опрос анализатора).
type Waker interface {
	Wake(key watch.Key) bool
}

// AnalyzerTracker заводит опрос результата анализатора по событию.
type AnalyzerTracker interface {
	Track(backtestID int64) bool
}

// Health — то, что роутер отмечает в health-состоянии.
type Health interface {
	SetWSConnected(v bool)
	TouchEvent(t time.Time)
	AddReconnect()
	SetCompiling(n int)
}

// Router раздаёт события сессии по потребителям. Все обработчики
// вызываются из одной горутины Run, поэтому выполняются по очереди.
type Router struct {
	logs     *stream.LogBook
	chart    *stream.ChartState
	compiler Compilation
	waker    Waker
	analyzer AnalyzerTracker
	health   Health
	notifier notify.Notifier
	log      *zap.Logger

	wasConnected bool
	dropped      bool
}

type Deps struct {
	Logs     *stream.LogBook
	Chart    *stream.ChartState
	Compiler Compilation
	Waker    Waker
	Analyzer AnalyzerTracker
	Health   Health
	Notifier notify.Notifier
	Log      *zap.Logger
}

func NewRouter(d Deps) *Router {
	r := &Router{
		logs:     d.Logs,
		chart:    d.Chart,
		compiler: d.Compiler,
		waker:    d.Waker,
		analyzer: d.Analyzer,
		health:   d.Health,
		notifier: d.Notifier,
		log:      d.Log,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.log = r.log.Named("router")
	if r.notifier == nil {
		r.notifier = notify.NewLog(r.log)
	}
	return r
}

// Run читает события до отмены ctx или закрытия канала.
func (r *Router) Run(ctx context.Context, events <-chan models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Handle(ev)
		}
	}
}

func (r *Router) Handle(ev models.Event) {
	if r.health != nil && ev.Kind != models.EventConnection {
		at := ev.ReceivedAt
		if at.IsZero() {
			at = time.Now()
		}
		r.health.TouchEvent(at)
	}

	switch ev.Kind {
	case models.EventLogMessage:
		if ev.Log != nil && r.logs != nil {
			r.logs.Push(ev.Log.Message)
		}

	case models.EventChartUpdate:
		if ev.Chart != nil && r.chart != nil {
			r.chart.Apply(*ev.Chart)
		}

	case models.EventCompilationProgress:
		if ev.Progress != nil {
			r.onProgress(*ev.Progress)
		}

	case models.EventAnalyzerProgress:
		if ev.Analyzer != nil {
			r.onAnalyzer(*ev.Analyzer)
		}

	case models.EventConnection:
		if ev.Status != nil {
			r.onStatus(*ev.Status)
		}

	default:
		r.log.Debug("unhandled event", zap.Stringer("kind", ev.Kind))
	}
}

func (r *Router) onProgress(p models.CompilationProgress) {
	if r.compiler == nil {
		return
	}
	if !r.compiler.Apply(p) {
		r.log.Debug("progress ignored",
			zap.String("graph", p.GraphName),
			zap.Int("progress", p.Progress),
			zap.String("status", string(p.Status)),
		)
		return
	}

	switch p.Status {
	case models.ProgressCompleted:
		r.notifier.Info(fmt.Sprintf("Strategy %q compiled", p.GraphName))
	case models.ProgressError:
		r.notifier.Error(fmt.Sprintf("Compilation of %q failed: %s", p.GraphName, p.Message))
	}

	if r.health != nil {
		n := 0
		for _, s := range r.compiler.Sessions() {
			if s.InFlight() {
				n++
			}
		}
		r.health.SetCompiling(n)
	}
}

func (r *Router) onAnalyzer(p models.AnalyzerProgress) {
	if r.analyzer != nil && p.BacktestID != 0 && p.Status != models.ProgressError {
		r.analyzer.Track(p.BacktestID)
	}

	switch p.Status {
	case models.ProgressCompleted:
		if r.waker != nil && p.BacktestID != 0 {
			r.waker.Wake(watch.AnalyzerKey(p.BacktestID))
		}
	case models.ProgressError:
		r.notifier.Error(fmt.Sprintf("Analyzer for backtest %d failed: %s", p.BacktestID, p.Message))
	}
}

func (r *Router) onStatus(st models.StatusEvent) {
	switch st.Kind {
	case models.StatusConnect:
		r.setConnected(true)
		if r.dropped {
			r.notifier.Info("Session reconnected")
		}
		r.wasConnected, r.dropped = true, false

	case models.StatusDisconnect:
		r.setConnected(false)
		if r.wasConnected && !r.dropped {
			msg := "Session connection lost, reconnecting"
			if st.Err != nil {
				msg += ": " + st.Err.Error()
			}
			r.notifier.Warn(msg)
		}
		r.dropped = true

	case models.StatusReconnectAttempt:
		if r.health != nil {
			r.health.AddReconnect()
		}

	case models.StatusError:
		r.setConnected(false)
		// первую ошибку подключения показываем, повторы только в лог
		if st.Attempt == 0 {
			msg := "Session connect failed"
			if st.Err != nil {
				msg += ": " + st.Err.Error()
			}
			r.notifier.Error(msg)
		}
	}
}

func (r *Router) setConnected(v bool) {
	if r.health != nil {
		r.health.SetWSConnected(v)
	}
}

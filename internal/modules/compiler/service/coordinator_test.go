package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pve_client/internal/models"
	"pve_client/internal/modules/config"
	"pve_client/pkg/exception"
)

type fakeCompiler struct {
	err    error
	calls  int
	during func()
}

func (f *fakeCompiler) CompileGraph(ctx context.Context, name string, meta models.Metadata) error {
	f.calls++
	if f.during != nil {
		f.during()
	}
	return f.err
}

func newCoordinator(api Compiler, window, grace time.Duration) *Coordinator {
	cfg := config.Default()
	cfg.Compile.DisplayWindow = window
	cfg.Compile.GracePeriod = grace
	cfg.Compile.TrackExternal = false
	return NewCoordinator(&cfg, api, nil)
}

func newTrackingCoordinator(api Compiler, window time.Duration) *Coordinator {
	c := newCoordinator(api, window, 0)
	c.trackExternal = true
	return c
}

func progress(name string, p int, stage string) models.CompilationProgress {
	return models.CompilationProgress{Status: models.ProgressRunning, Progress: p, Stage: stage, GraphName: name}
}

func TestSubmitAckMovesToCompiling(t *testing.T) {
	c := newCoordinator(&fakeCompiler{}, time.Hour, 0)

	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))
	s := c.Session("alpha")
	assert.Equal(t, models.CompileCompiling, s.State)
	assert.Equal(t, 0, s.Progress)
	assert.Equal(t, "starting", s.Stage)
}

func TestProgressIsMonotonic(t *testing.T) {
	c := newCoordinator(&fakeCompiler{}, time.Hour, 0)
	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))

	assert.True(t, c.Apply(progress("alpha", 40, "indicators")))
	assert.False(t, c.Apply(progress("alpha", 25, "parsing")))

	s := c.Session("alpha")
	assert.Equal(t, 40, s.Progress)
	assert.Equal(t, "indicators", s.Stage)

	// дубликат не ломает состояние
	assert.True(t, c.Apply(progress("alpha", 40, "indicators")))
	assert.Equal(t, 40, c.Session("alpha").Progress)
}

func TestCompletedResetsToIdleAfterWindow(t *testing.T) {
	c := newCoordinator(&fakeCompiler{}, 30*time.Millisecond, 0)
	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))

	require.True(t, c.Apply(models.CompilationProgress{Status: models.ProgressCompleted, Progress: 100, Stage: "done", GraphName: "alpha"}))
	s := c.Session("alpha")
	assert.Equal(t, models.CompileCompleted, s.State)
	assert.Equal(t, 100, s.Progress)

	require.Eventually(t, func() bool {
		return c.Session("alpha").State == models.CompileIdle
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.Sessions())
}

func TestErrorEventFails(t *testing.T) {
	c := newCoordinator(&fakeCompiler{}, time.Hour, 0)
	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))
	c.Apply(progress("alpha", 10, "parse"))

	require.True(t, c.Apply(models.CompilationProgress{Status: models.ProgressError, GraphName: "alpha", Message: "cycle in graph"}))
	s := c.Session("alpha")
	assert.Equal(t, models.CompileFailed, s.State)
	assert.Equal(t, "cycle in graph", s.Message)

	// после Failed события игнорируются
	assert.False(t, c.Apply(progress("alpha", 90, "late")))
}

func TestSubmitWhileInFlightRejected(t *testing.T) {
	api := &fakeCompiler{}
	c := newCoordinator(api, time.Hour, 0)
	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))

	err := c.Submit(context.Background(), "alpha", models.Metadata{})
	require.ErrorIs(t, err, exception.ErrCompileInFlight)
	assert.Equal(t, 1, api.calls)

	// другой граф независим
	require.NoError(t, c.Submit(context.Background(), "beta", models.Metadata{}))
	assert.Len(t, c.Sessions(), 2)
}

func TestSubmitRateLimitedStaysIdle(t *testing.T) {
	c := newCoordinator(&fakeCompiler{err: &exception.RateLimitError{RetryAfter: 12}}, time.Hour, 0)

	err := c.Submit(context.Background(), "alpha", models.Metadata{})
	var rl *exception.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 12, rl.RetryAfter)
	assert.Equal(t, models.CompileIdle, c.Session("alpha").State)
	assert.Empty(t, c.Sessions())
}

func TestSubmitFailureFailsThenResets(t *testing.T) {
	c := newCoordinator(&fakeCompiler{err: exception.ErrNetwork}, 20*time.Millisecond, 0)

	err := c.Submit(context.Background(), "alpha", models.Metadata{})
	require.ErrorIs(t, err, exception.ErrNetwork)
	assert.Equal(t, models.CompileFailed, c.Session("alpha").State)

	require.Eventually(t, func() bool {
		return c.Session("alpha").State == models.CompileIdle
	}, time.Second, 5*time.Millisecond)
}

func TestCompletedBeforeAck(t *testing.T) {
	api := &fakeCompiler{}
	c := newCoordinator(api, time.Hour, 0)
	api.during = func() {
		c.Apply(progress("alpha", 50, "run"))
		c.Apply(models.CompilationProgress{Status: models.ProgressCompleted, Progress: 100, GraphName: "alpha"})
	}

	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))
	s := c.Session("alpha")
	assert.Equal(t, models.CompileCompleted, s.State)
	assert.Equal(t, "run", s.Stage)
}

func TestEventsForUnknownGraphIgnored(t *testing.T) {
	c := newCoordinator(&fakeCompiler{}, time.Hour, 0)
	assert.False(t, c.Apply(progress("ghost", 10, "x")))
	assert.Empty(t, c.Sessions())
}

func TestResetAndSweep(t *testing.T) {
	c := newCoordinator(&fakeCompiler{}, time.Hour, time.Minute)
	base := time.Date(2024, 11, 6, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))
	require.NoError(t, c.Submit(context.Background(), "beta", models.Metadata{}))

	assert.Empty(t, c.Sweep(base.Add(30*time.Second)))
	assert.Equal(t, []string{"alpha", "beta"}, c.Sweep(base.Add(2*time.Minute)))
	s := c.Session("alpha")
	assert.Equal(t, models.CompileFailed, s.State)
	assert.Equal(t, "no progress received", s.Message)

	assert.True(t, c.Reset("alpha"))
	assert.False(t, c.Reset("alpha"))
	assert.Equal(t, models.CompileIdle, c.Session("alpha").State)

	// после Reset можно снова отправлять
	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))
}

func TestResetDuringRequest(t *testing.T) {
	api := &fakeCompiler{err: errors.New("boom")}
	c := newCoordinator(api, time.Hour, 0)
	api.during = func() { c.Reset("alpha") }

	require.Error(t, c.Submit(context.Background(), "alpha", models.Metadata{}))
	assert.Equal(t, models.CompileIdle, c.Session("alpha").State)
}

func TestSubscribeSeesTransitions(t *testing.T) {
	c := newCoordinator(&fakeCompiler{}, 0, 0)
	ch, cancel := c.Subscribe()
	defer cancel()

	require.NoError(t, c.Submit(context.Background(), "alpha", models.Metadata{}))
	c.Apply(progress("alpha", 60, "run"))
	c.Apply(models.CompilationProgress{Status: models.ProgressCompleted, Progress: 100, GraphName: "alpha"})

	var states []models.CompileState
	for len(states) < 5 {
		select {
		case s := <-ch:
			states = append(states, s.State)
		case <-time.After(time.Second):
			t.Fatalf("got only %v", states)
		}
	}
	assert.Equal(t, []models.CompileState{
		models.CompileRequested,
		models.CompileCompiling,
		models.CompileCompiling,
		models.CompileCompleted,
		models.CompileIdle,
	}, states)
}

func TestExternalCompilationTracked(t *testing.T) {
	c := newTrackingCoordinator(&fakeCompiler{}, time.Hour)

	require.True(t, c.Apply(progress("alpha", 40, "parse")))
	s := c.Session("alpha")
	assert.Equal(t, models.CompileCompiling, s.State)
	assert.Equal(t, 40, s.Progress)
	assert.True(t, s.External)

	// сессия чужая, но повторный submit всё равно отклоняется
	err := c.Submit(context.Background(), "alpha", models.Metadata{})
	require.ErrorIs(t, err, exception.ErrCompileInFlight)

	require.True(t, c.Apply(models.CompilationProgress{Status: models.ProgressCompleted, GraphName: "alpha"}))
	assert.Equal(t, models.CompileCompleted, c.Session("alpha").State)

	// повтор completed в окне показа не заводит новую сессию
	assert.False(t, c.Apply(models.CompilationProgress{Status: models.ProgressCompleted, GraphName: "alpha"}))
}

func TestExternalErrorTracked(t *testing.T) {
	c := newTrackingCoordinator(&fakeCompiler{}, time.Hour)

	require.True(t, c.Apply(models.CompilationProgress{Status: models.ProgressError, GraphName: "beta", Message: "cycle"}))
	s := c.Session("beta")
	assert.Equal(t, models.CompileFailed, s.State)
	assert.Equal(t, "cycle", s.Message)

	assert.False(t, c.Apply(models.CompilationProgress{Status: "weird", GraphName: "gamma"}))
	assert.False(t, c.Apply(progress("", 10, "x")))
	assert.Len(t, c.Sessions(), 1)
}

func TestLateSubmitErrorKeepsCompleted(t *testing.T) {
	api := &fakeCompiler{err: exception.ErrNetwork}
	c := newCoordinator(api, time.Hour, 0)
	api.during = func() {
		c.Apply(models.CompilationProgress{Status: models.ProgressCompleted, GraphName: "alpha"})
	}

	err := c.Submit(context.Background(), "alpha", models.Metadata{})
	require.ErrorIs(t, err, exception.ErrNetwork)
	assert.Equal(t, models.CompileCompleted, c.Session("alpha").State)

	api.err = &exception.RateLimitError{RetryAfter: 5}
	api.during = func() {
		c.Apply(models.CompilationProgress{Status: models.ProgressCompleted, GraphName: "beta"})
	}
	err = c.Submit(context.Background(), "beta", models.Metadata{})
	require.ErrorIs(t, err, exception.ErrRateLimited)
	assert.Equal(t, models.CompileCompleted, c.Session("beta").State)
}

package runner

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"pve_client/internal/models"
	compiler "pve_client/internal/modules/compiler/service"
	"pve_client/internal/modules/config"
	health "pve_client/internal/modules/health/service"
	notify "pve_client/internal/modules/notify/service"
	watch "pve_client/internal/modules/watch/service"
	"pve_client/internal/stream"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(cfg *config.Config) *stream.LogBook {
				return stream.NewLogBook(cfg.LogCapacity)
			},
			func(log *zap.Logger) *stream.ChartState {
				return stream.NewChartState(log.Named("chart"))
			},
			func(
				logs *stream.LogBook,
				chart *stream.ChartState,
				c *compiler.Coordinator,
				hub *watch.Hub,
				tracker *watch.AnalyzerTracker,
				state *health.State,
				n notify.Notifier,
				log *zap.Logger,
			) *Router {
				return NewRouter(Deps{
					Logs:     logs,
					Chart:    chart,
					Compiler: c,
					Waker:    hub,
					Analyzer: tracker,
					Health:   state,
					Notifier: n,
					Log:      log,
				})
			},
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			r *Router,
			events chan models.Event,
		) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						defer close(done)
						r.Run(ctx, events)
					}()
					return nil
				},
				OnStop: func(stop context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stop.Done():
					}
					return nil
				},
			})
		}),
	)
}

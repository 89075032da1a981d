package session

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"pve_client/internal/models"
	"pve_client/internal/modules/config"
	"pve_client/internal/modules/session/service"
)

// Module поднимает сессионный канал и общий буфер событий.
func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(
			func(cfg *config.Config) chan models.Event {
				return make(chan models.Event, cfg.Session.EventBuffer)
			},
			func(cfg *config.Config, creds service.CredentialSource, out chan models.Event, log *zap.Logger) *service.Client {
				return service.NewClient(cfg, creds, out, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client, log *zap.Logger) {
			runCtx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						defer close(done)
						if err := c.Run(runCtx); err != nil {
							log.Error("session stopped", zap.Error(err))
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					_ = c.Close()
					select {
					case <-done:
					case <-ctx.Done():
					}
					return nil
				},
			})
		}),
	)
}

package compiler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"pve_client/internal/modules/compiler/service"
	"pve_client/internal/modules/config"
	pveapi "pve_client/internal/modules/pve_api/service"
)

// Module поднимает координатор компиляции и фоновый sweeper зависших сессий.
func Module() fx.Option {
	return fx.Module("compiler",
		fx.Provide(
			func(cfg *config.Config, api *pveapi.Client, log *zap.Logger) *service.Coordinator {
				return service.NewCoordinator(cfg, api, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, c *service.Coordinator) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go c.RunSweeper(ctx, sweepEvery(cfg))
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}

func sweepEvery(cfg *config.Config) time.Duration {
	every := cfg.Compile.GracePeriod / 10
	if every < time.Second {
		every = time.Second
	}
	return every
}

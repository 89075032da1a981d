package watch

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"pve_client/internal/models"
	"pve_client/internal/modules/config"
	notify "pve_client/internal/modules/notify/service"
	pveapi "pve_client/internal/modules/pve_api/service"
	"pve_client/internal/modules/watch/service"
)

// Module: hub наблюдателей и трекер анализатора, который сам заводит
// опрос по событиям analyzer_progress.
func Module() fx.Option {
	return fx.Module("watch",
		fx.Provide(
			func(log *zap.Logger) *service.Hub {
				return service.NewHub(log)
			},
			func(cfg *config.Config, h *service.Hub, api *pveapi.Client, n notify.Notifier, log *zap.Logger) *service.AnalyzerTracker {
				return service.NewAnalyzerTracker(h, api, cfg.Compile.AnalyzerPoll, func(id int64, res models.AnalyzerResult) {
					n.Info(fmt.Sprintf("Analyzer result for backtest %d is ready (%d metrics)", id, len(res)))
				}, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, h *service.Hub, t *service.AnalyzerTracker) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					t.Close()
					h.Close()
					return nil
				},
			})
		}),
	)
}

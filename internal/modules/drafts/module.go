package drafts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"pve_client/internal/models"
	"pve_client/internal/modules/drafts/service"
	pveapi "pve_client/internal/modules/pve_api/service"
	session "pve_client/internal/modules/session/service"
	"pve_client/pkg/db"
)

const flushTimeout = time.Minute

type params struct {
	fx.In

	Lc  fx.Lifecycle
	DB  *db.PgTxManager `optional:"true"`
	Log *zap.Logger
}

// Module: с Postgres — таблица graph_drafts, без него — память процесса.
// После каждого подключения сессии накопленные черновики выгружаются.
func Module() fx.Option {
	return fx.Module("drafts",
		fx.Provide(
			func(p params) service.Store {
				if p.DB == nil {
					p.Log.Info("drafts: postgres not configured, using memory store")
					return service.NewMemory()
				}
				store := service.NewPG(p.DB)
				p.Lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						if err := store.Migrate(ctx); err != nil {
							return fmt.Errorf("drafts: %w", err)
						}
						return nil
					},
				})
				return store
			},
			func(store service.Store, api *pveapi.Client, creds pveapi.CredentialSource, log *zap.Logger) *service.Publisher {
				return service.NewPublisher(store, api, creds, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, sess *session.Client, pub *service.Publisher, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			sess.OnStatus(func(st models.StatusEvent) {
				if st.Kind != models.StatusConnect {
					return
				}
				go func() {
					fctx, fcancel := context.WithTimeout(ctx, flushTimeout)
					defer fcancel()
					n, err := pub.Flush(fctx)
					if err != nil {
						log.Warn("drafts flush", zap.Int("published", n), zap.Error(err))
					}
				}()
			})
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}

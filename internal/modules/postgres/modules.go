package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"pve_client/internal/modules/config"
	"pve_client/pkg/db"
)

const connectTimeout = 10 * time.Second

// Module подключает пул к cfg.DB. Без DSN отдаёт nil: потребители
// переходят на хранение в памяти.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) (*db.PgTxManager, error) {
				if !Enabled(cfg) {
					return nil, nil
				}
				ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
				defer cancel()

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				m := db.NewPgTxManager(poolMaster)
				if err = m.Ping(ctx); err != nil {
					m.Close()
					return nil, err
				}

				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						m.Close()
						return nil
					},
				})
				return m, nil
			},
		),
	)
}

// Enabled — есть ли смысл подключать модуль.
func Enabled(cfg *config.Config) bool { return cfg.DB != "" }

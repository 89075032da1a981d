package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pve_client/internal/modules/auth"
	"pve_client/internal/modules/compiler"
	"pve_client/internal/modules/config"
	"pve_client/internal/modules/drafts"
	"pve_client/internal/modules/health"
	"pve_client/internal/modules/notify"
	"pve_client/internal/modules/postgres"
	"pve_client/internal/modules/pve_api"
	"pve_client/internal/modules/session"
	"pve_client/internal/modules/watch"
	"pve_client/internal/runner"
	"pve_client/pkg/logger"
	"pve_client/pkg/tracing"
)

const stopTimeout = 15 * time.Second

func main() {
	logger.SetServiceName("pved")
	tracing.SetServiceName("pved")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			newLogger,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(initTracing),
		config.Module(),
		postgres.Module(),
		auth.Module(),
		pve_api.Module(),
		session.Module(),
		compiler.Module(),
		watch.Module(),
		notify.Module(),
		drafts.Module(),
		health.Module(),
		runner.Module(),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintln(os.Stderr, "pved: start:", err)
		logger.Sync()
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	stopCtx, stop := context.WithTimeout(context.Background(), stopTimeout)
	defer stop()
	if err := app.Stop(stopCtx); err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, "pved: stop:", e)
		}
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.Init(cfg.Log)
}

func initTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	_, closer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := closer.Close(); err != nil {
				log.Warn("tracer close", zap.Error(err))
			}
			return nil
		},
	})
	return nil
}

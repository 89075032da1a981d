package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

// AnalyzerTracker заводит опрос анализатора по событию analyzer_progress,
// если за бэктестом ещё никто не следит. Результат уходит в onReady.
type AnalyzerTracker struct {
	hub      *Hub
	api      AnalyzerAPI
	interval time.Duration
	onReady  func(backtestID int64, res models.AnalyzerResult)
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewAnalyzerTracker(hub *Hub, api AnalyzerAPI, interval time.Duration, onReady func(int64, models.AnalyzerResult), log *zap.Logger) *AnalyzerTracker {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AnalyzerTracker{
		hub:      hub,
		api:      api,
		interval: interval,
		onReady:  onReady,
		log:      log.Named("analyzer"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Track начинает опрос backtestID. false — уже опрашивается или трекер закрыт.
func (t *AnalyzerTracker) Track(backtestID int64) bool {
	if backtestID == 0 || t.ctx.Err() != nil {
		return false
	}
	_, err := t.hub.WatchAnalyzer(t.ctx, t.api, backtestID, t.interval, func(res models.AnalyzerResult) {
		if t.onReady != nil {
			t.onReady(backtestID, res)
		}
	})
	if err != nil {
		if !errors.Is(err, exception.ErrAlreadyWatching) {
			t.log.Warn("track failed", zap.Int64("backtest", backtestID), zap.Error(err))
		}
		return false
	}
	return true
}

// Close останавливает все опросы, заведённые трекером.
func (t *AnalyzerTracker) Close() { t.cancel() }

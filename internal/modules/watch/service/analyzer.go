package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

const EntityAnalyzer = "analyzer"

// AnalyzerAPI — методы REST-клиента, нужные для ожидания анализатора.
type AnalyzerAPI interface {
	ListBacktests(ctx context.Context) ([]models.BacktestRecord, error)
	GetAnalyzerResult(ctx context.Context, backtestID int64) (models.AnalyzerResult, error)
}

func AnalyzerKey(backtestID int64) Key {
	return Key{Entity: EntityAnalyzer, ID: strconv.FormatInt(backtestID, 10)}
}

// AnalyzerReady — опрос списка бэктестов, пока у backtestID не появится
// analyzer_result_id; затем забирает сам результат.
func AnalyzerReady(api AnalyzerAPI, backtestID int64, interval time.Duration) PollSource {
	return PollSource{
		Interval: interval,
		Fetch: func(ctx context.Context) (any, error) {
			list, err := api.ListBacktests(ctx)
			if err != nil {
				return nil, err
			}
			for _, r := range list {
				if r.ID != backtestID {
					continue
				}
				if !r.Analyzed() {
					return nil, nil
				}
				res, err := api.GetAnalyzerResult(ctx, backtestID)
				if err != nil {
					return nil, err
				}
				return res, nil
			}
			return nil, fmt.Errorf("%w: backtest %d", exception.ErrNotFound, backtestID)
		},
	}
}

// WatchAnalyzer ждёт результат анализатора и отдаёт его в fn один раз.
func (h *Hub) WatchAnalyzer(ctx context.Context, api AnalyzerAPI, backtestID int64, interval time.Duration, fn func(models.AnalyzerResult)) (*Watcher, error) {
	return h.Watch(ctx, AnalyzerKey(backtestID), AnalyzerReady(api, backtestID, interval), func(v any) bool {
		res, ok := v.(models.AnalyzerResult)
		if !ok {
			return false
		}
		fn(res)
		return true
	})
}

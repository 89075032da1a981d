package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pve_client/internal/models"
)

func (c *Client) ListBacktests(ctx context.Context) ([]models.BacktestRecord, error) {
	var resp struct {
		Backtests []models.BacktestRecord `json:"backtests"`
	}
	err := c.call(ctx, request{
		op:     "list_backtests",
		method: http.MethodGet,
		path:   "/api/get-backtests",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Backtests, nil
}

// GetBacktest — полная запись с данными для графика. Чужой бэктест → ErrAuthentication.
func (c *Client) GetBacktest(ctx context.Context, id int64) (models.Backtest, error) {
	var resp struct {
		Backtest models.Backtest `json:"backtest"`
	}
	err := c.call(ctx, request{
		op:     "get_backtest",
		method: http.MethodGet,
		path:   "/api/get-backtest",
		query:  url.Values{"backtest_id": {strconv.FormatInt(id, 10)}},
	}, &resp)
	if err != nil {
		return models.Backtest{}, err
	}
	return resp.Backtest, nil
}

// LaunchAnalyzer запускает анализатор. Бэкенд пускает не чаще раза в 30с,
// чаще → *exception.RateLimitError.
func (c *Client) LaunchAnalyzer(ctx context.Context, backtestID int64, initialCapital float64) error {
	if initialCapital <= 0 {
		return fmt.Errorf("launch_analyzer: initial capital must be positive, got %v", initialCapital)
	}
	return c.call(ctx, request{
		op:     "launch_analyzer",
		method: http.MethodPost,
		path:   "/api/launch-analyzer",
		body: map[string]any{
			"backtest_id":     backtestID,
			"initial_capital": initialCapital,
		},
	}, nil)
}

// GetAnalyzerResult — результат анализатора; ещё не готов → exception.ErrNotFound.
func (c *Client) GetAnalyzerResult(ctx context.Context, backtestID int64) (models.AnalyzerResult, error) {
	var resp struct {
		AnalyzerResult models.AnalyzerResult `json:"analyzer_result"`
	}
	err := c.call(ctx, request{
		op:     "get_analyzer_result",
		method: http.MethodGet,
		path:   "/api/get-analyzer-result",
		query:  url.Values{"backtest_id": {strconv.FormatInt(backtestID, 10)}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.AnalyzerResult, nil
}

package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"pve_client/pkg/tracing"
)

// DefaultSymbols — список на случай, если биржа недоступна.
var DefaultSymbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}

// SymbolsByTurnover — линейные тикеры Bybit с оборотом за 24ч больше minTurnover.
// Ошибку не возвращает: при любом сбое или пустом результате отдаёт DefaultSymbols.
func (c *Client) SymbolsByTurnover(ctx context.Context, minTurnover float64) []string {
	syms, err := c.fetchSymbols(ctx, minTurnover)
	if err != nil {
		c.log.Warn("tickers fetch failed, using defaults", zap.Error(err))
		return append([]string(nil), DefaultSymbols...)
	}
	if len(syms) == 0 {
		return append([]string(nil), DefaultSymbols...)
	}
	return syms
}

func (c *Client) fetchSymbols(ctx context.Context, minTurnover float64) (syms []string, err error) {
	span, ctx := tracing.StartClientSpan(ctx, "market.tickers")
	defer func() { tracing.Finish(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tickersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var payload struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				Symbol      string `json:"symbol"`
				Turnover24h string `json:"turnover24h"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if payload.RetCode != 0 {
		return nil, fmt.Errorf("bybit error %d: %s", payload.RetCode, payload.RetMsg)
	}

	for _, t := range payload.Result.List {
		v, err := strconv.ParseFloat(t.Turnover24h, 64)
		if err != nil {
			continue
		}
		if v > minTurnover {
			syms = append(syms, t.Symbol)
		}
	}
	return syms, nil
}

package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pve_client/internal/models"
	"pve_client/internal/modules/config"
	"pve_client/pkg/exception"
)

var testCreds = StaticCredentials{UserID: "42", Token: "secret"}

func newTestClient(t *testing.T, baseURL string, creds CredentialSource) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Market.TickersURL = baseURL + "/v5/market/tickers?category=linear"
	return NewClient(&cfg, creds, nil)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	raw, _ := sonic.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(raw)
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, sonic.Unmarshal(raw, &m))
	return m
}

func TestMissingCredentialsShortCircuit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, StaticCredentials{UserID: "42"})

	_, err := c.ListGraphs(context.Background())
	require.ErrorIs(t, err, exception.ErrAuthentication)
	err = c.CompileGraph(context.Background(), "g", models.Metadata{})
	require.ErrorIs(t, err, exception.ErrAuthentication)
	assert.Zero(t, hits.Load())
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		name  string
		code  int
		body  map[string]any
		check func(t *testing.T, err error)
	}{
		{"forbidden", 403, map[string]any{"status": "error", "message": "Invalid user token or user ID"}, func(t *testing.T, err error) {
			require.ErrorIs(t, err, exception.ErrAuthentication)
		}},
		{"not found", 404, map[string]any{"status": "error", "message": "Graph not found"}, func(t *testing.T, err error) {
			require.ErrorIs(t, err, exception.ErrNotFound)
		}},
		{"conflict", 409, map[string]any{"status": "error"}, func(t *testing.T, err error) {
			require.ErrorIs(t, err, exception.ErrConflict)
		}},
		{"rate limited", 429, map[string]any{"status": "error", "retry_after": 12}, func(t *testing.T, err error) {
			var rl *exception.RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, 12, rl.RetryAfter)
			assert.ErrorIs(t, err, exception.ErrRateLimited)
		}},
		{"rate limited default", 429, map[string]any{"status": "error"}, func(t *testing.T, err error) {
			var rl *exception.RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, defaultRetryAfter, rl.RetryAfter)
		}},
		{"server error", 500, map[string]any{"status": "error", "message": "Failed to process graph"}, func(t *testing.T, err error) {
			var apiErr *exception.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, 500, apiErr.Status)
			assert.Equal(t, "Failed to process graph", apiErr.Message)
		}},
		{"ok status but error body", 200, map[string]any{"status": "error", "message": "nope"}, func(t *testing.T, err error) {
			require.ErrorIs(t, err, exception.ErrBadResponse)
		}},
		{"success", 200, map[string]any{"status": "success"}, func(t *testing.T, err error) {
			require.NoError(t, err)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.code, tc.body)
			}))
			defer srv.Close()

			err := newTestClient(t, srv.URL, testCreds).CompileGraph(context.Background(), "g", models.Metadata{})
			tc.check(t, err)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := newTestClient(t, url, testCreds).DeleteGraph(context.Background(), 1)
	require.ErrorIs(t, err, exception.ErrNetwork)
}

func TestListGraphsSortedAndAuthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/get-saved-graphs", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		writeJSON(w, 200, map[string]any{
			"status": "success",
			"graphs": []map[string]any{
				{"id": 1, "name": "old", "modified_at": "Mon, 04 Nov 2024 10:00:00 GMT"},
				{"id": 2, "name": "new", "modified_at": "Wed, 06 Nov 2024 10:00:00 GMT"},
				{"id": 3, "name": "mid", "modified_at": "2024-11-05T10:00:00"},
			},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv.URL, testCreds).ListGraphs(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{got[0].Name, got[1].Name, got[2].Name})
	assert.Equal(t, int64(2), got[0].ID)
}

func TestLoadGraphTrimsDates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := readBody(t, r)
		assert.Equal(t, "42", body["user_id"])
		assert.Equal(t, "secret", body["token"])
		assert.Equal(t, "alpha", body["name"])
		writeJSON(w, 200, map[string]any{
			"status":     "success",
			"graph_data": `{"nodes":[],"links":[]}`,
			"start_date": "2024-11-01T00:00:00",
			"end_date":   "2024-11-06T00:00:00",
			"symbol":     "ETHUSDT",
		})
	}))
	defer srv.Close()

	g, err := newTestClient(t, srv.URL, testCreds).LoadGraph(context.Background(), "alpha")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"links":[]}`, string(g.Data))
	assert.Equal(t, "2024-11-01", g.Metadata.StartDate)
	assert.Equal(t, "2024-11-06", g.Metadata.EndDate)
	assert.Equal(t, "ETHUSDT", g.Metadata.Symbol)
}

// fakeStore — минимальный бэкенд стратегий для create/save/load/duplicate.
type fakeStore struct {
	mu     sync.Mutex
	graphs map[string]string
}

func (s *fakeStore) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/create-empty-strategy", func(w http.ResponseWriter, r *http.Request) {
		name := readBody(t, r)["name"].(string)
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.graphs[name]; ok {
			writeJSON(w, 409, map[string]any{"status": "error", "message": "Strategy already exists"})
			return
		}
		s.graphs[name] = `{"nodes":[],"links":[]}`
		writeJSON(w, 200, map[string]any{"status": "success"})
	})
	mux.HandleFunc("/api/save-graph", func(w http.ResponseWriter, r *http.Request) {
		body := readBody(t, r)
		raw, _ := sonic.Marshal(body["graph_data"])
		s.mu.Lock()
		s.graphs[body["name"].(string)] = string(raw)
		s.mu.Unlock()
		writeJSON(w, 200, map[string]any{"status": "success"})
	})
	mux.HandleFunc("/api/load-graph", func(w http.ResponseWriter, r *http.Request) {
		name := readBody(t, r)["name"].(string)
		s.mu.Lock()
		data, ok := s.graphs[name]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, 404, map[string]any{"status": "error", "message": "Graph not found"})
			return
		}
		var obj any
		_ = sonic.UnmarshalString(data, &obj)
		writeJSON(w, 200, map[string]any{
			"status":     "success",
			"graph_data": obj,
			"start_date": "2024-01-01",
			"end_date":   "2024-01-02",
			"symbol":     "BTCUSDT",
		})
	})
	return mux
}

func TestCreateConflictLeavesExistingUntouched(t *testing.T) {
	store := &fakeStore{graphs: map[string]string{"alpha": `{"nodes":[{"id":1}],"links":[]}`}}
	srv := httptest.NewServer(store.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testCreds)
	for range 3 {
		err := c.CreateStrategy(context.Background(), "alpha")
		require.ErrorIs(t, err, exception.ErrConflict)
	}

	g, err := c.LoadGraph(context.Background(), "alpha")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[{"id":1}],"links":[]}`, string(g.Data))

	require.NoError(t, c.CreateStrategy(context.Background(), "beta"))
}

func TestDuplicateGraph(t *testing.T) {
	store := &fakeStore{graphs: map[string]string{"alpha": `{"nodes":[{"id":7}],"links":[]}`}}
	srv := httptest.NewServer(store.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testCreds)
	require.NoError(t, c.DuplicateGraph(context.Background(), "alpha", "alpha copy"))

	g, err := c.LoadGraph(context.Background(), "alpha copy")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[{"id":7}],"links":[]}`, string(g.Data))

	err = c.DuplicateGraph(context.Background(), "missing", "x")
	require.ErrorIs(t, err, exception.ErrNotFound)
	store.mu.Lock()
	_, ok := store.graphs["x"]
	store.mu.Unlock()
	assert.False(t, ok, "failed load must not create a copy")
}

func TestDuplicateGraphKeepsExistingTarget(t *testing.T) {
	store := &fakeStore{graphs: map[string]string{
		"alpha": `{"nodes":[{"id":7}],"links":[]}`,
		"beta":  `{"nodes":[{"id":99}],"links":[]}`,
	}}
	srv := httptest.NewServer(store.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testCreds)
	err := c.DuplicateGraph(context.Background(), "alpha", "beta")
	require.ErrorIs(t, err, exception.ErrConflict)

	g, err := c.LoadGraph(context.Background(), "beta")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[{"id":99}],"links":[]}`, string(g.Data))
}

func TestCreateGraph(t *testing.T) {
	store := &fakeStore{graphs: map[string]string{"alpha": `{"nodes":[{"id":1}],"links":[]}`}}
	srv := httptest.NewServer(store.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testCreds)
	doc := []byte(`{"nodes":[{"id":3}],"links":[]}`)
	require.NoError(t, c.CreateGraph(context.Background(), "gamma", doc, models.Metadata{Symbol: "BTCUSDT"}))

	g, err := c.LoadGraph(context.Background(), "gamma")
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(g.Data))

	err = c.CreateGraph(context.Background(), "alpha", doc, models.Metadata{})
	require.ErrorIs(t, err, exception.ErrConflict)
	store.mu.Lock()
	assert.JSONEq(t, `{"nodes":[{"id":1}],"links":[]}`, store.graphs["alpha"])
	store.mu.Unlock()
}

func TestSaveGraphValidates(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", testCreds)
	err := c.SaveGraph(context.Background(), "", []byte(`{}`), models.Metadata{})
	require.Error(t, err)
	err = c.SaveGraph(context.Background(), "g", []byte(`{}`), models.Metadata{StartDate: "06/11/2024"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, exception.ErrNetwork))
}

func TestSymbolsByTurnover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "linear", r.URL.Query().Get("category"))
		writeJSON(w, 200, map[string]any{
			"retCode": 0,
			"result": map[string]any{"list": []map[string]any{
				{"symbol": "BTCUSDT", "turnover24h": "900000000"},
				{"symbol": "DOGEUSDT", "turnover24h": "1000"},
				{"symbol": "SOLUSDT", "turnover24h": "60000000"},
				{"symbol": "BADUSDT", "turnover24h": "n/a"},
			}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testCreds)
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, c.SymbolsByTurnover(context.Background(), 50_000_000))
	assert.Equal(t, DefaultSymbols, c.SymbolsByTurnover(context.Background(), 1e12))
}

func TestSymbolsByTurnoverFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"retCode": 10001, "retMsg": "params error"})
	}))
	defer srv.Close()

	got := newTestClient(t, srv.URL, testCreds).SymbolsByTurnover(context.Background(), 1)
	assert.Equal(t, DefaultSymbols, got)
}

func TestLaunchAnalyzerRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := readBody(t, r)
		assert.InDelta(t, 300.0, body["initial_capital"], 1e-9)
		writeJSON(w, 429, map[string]any{"status": "error", "message": "Too many requests", "retry_after": 25})
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL, testCreds).LaunchAnalyzer(context.Background(), 5, 300)
	var rl *exception.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 25, rl.RetryAfter)
}

func TestBotsEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/bots":
			writeJSON(w, 200, map[string]any{"status": "success", "bots": []map[string]any{
				{"id": 1, "name": "b1", "status": "running"},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/bots":
			body := readBody(t, r)
			assert.Equal(t, "b2", body["name"])
			writeJSON(w, 201, map[string]any{"status": "success", "bot_id": 9})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/bots/1":
			assert.Equal(t, "secret", r.URL.Query().Get("token"))
			writeJSON(w, 409, map[string]any{"status": "error", "message": "Bot must be stopped before deletion"})
		case r.URL.Path == "/api/bots/1/logs":
			assert.Equal(t, "50", r.URL.Query().Get("limit"))
			assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
			writeJSON(w, 200, map[string]any{
				"status":      "success",
				"logs":        []map[string]any{{"message": "started"}},
				"next_cursor": "def",
			})
		default:
			writeJSON(w, 404, map[string]any{"status": "error"})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testCreds)
	ctx := context.Background()

	bots, err := c.ListBots(ctx)
	require.NoError(t, err)
	require.Len(t, bots, 1)
	assert.Equal(t, models.BotRunning, bots[0].Status)

	id, err := c.CreateBot(ctx, models.BotParams{Name: "b2", Parameters: map[string]any{"backtest_id": 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	_, err = c.CreateBot(ctx, models.BotParams{Parameters: map[string]any{"x": 1}})
	require.Error(t, err)

	require.ErrorIs(t, c.DeleteBot(ctx, 1), exception.ErrConflict)

	page, err := c.BotLogs(ctx, 1, 0, "abc")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "def", page.NextCursor)
}

func TestBacktestsAndUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/get-backtests":
			assert.Equal(t, "42", r.URL.Query().Get("user_id"))
			writeJSON(w, 200, map[string]any{"status": "success", "backtests": []map[string]any{
				{"id": 1, "graph_name": "alpha", "analyzer_result_id": nil},
				{"id": 2, "graph_name": "beta", "analyzer_result_id": 7},
			}})
		case "/api/get-backtest":
			assert.Equal(t, "2", r.URL.Query().Get("backtest_id"))
			writeJSON(w, 200, map[string]any{"status": "success", "backtest": map[string]any{
				"graph_name":    "beta",
				"symbol":        "BTCUSDT",
				"backtest_data": []map[string]any{{"close": 1.5}},
				"precision":     "4",
			}})
		case "/api/get-user-info":
			body := readBody(t, r)
			assert.InDelta(t, 42.0, body["id"], 1e-9)
			writeJSON(w, 200, map[string]any{"status": "success", "user_info": map[string]any{
				"id": 42, "first_name": "Ann", "username": "ann",
			}})
		case "/api/bots/3/pnl":
			writeJSON(w, 200, map[string]any{"status": "success", "pnl": []map[string]any{{"value": 1.2}}})
		default:
			writeJSON(w, 404, map[string]any{"status": "error"})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testCreds)
	ctx := context.Background()

	recs, err := c.ListBacktests(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Analyzed())
	assert.True(t, recs[1].Analyzed())

	bt, err := c.GetBacktest(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "beta", bt.GraphName)
	assert.Len(t, bt.BacktestData, 1)

	_, err = c.GetAnalyzerResult(ctx, 2)
	require.ErrorIs(t, err, exception.ErrNotFound)

	u, err := c.UserInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "ann", u.Username)

	page, err := c.BotPnL(ctx, 3, 0, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Empty(t, page.NextCursor)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"pve_client/internal/models"
	"pve_client/pkg/exception"
)

var modifiedAtLayouts = []string{
	time.RFC1123, // flask jsonify
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// ListGraphs — сохранённые стратегии пользователя, свежие сверху.
func (c *Client) ListGraphs(ctx context.Context) ([]models.GraphSummary, error) {
	var resp struct {
		Graphs []struct {
			ID         int64  `json:"id"`
			Name       string `json:"name"`
			ModifiedAt string `json:"modified_at"`
		} `json:"graphs"`
	}
	err := c.call(ctx, request{
		op:      "list_graphs",
		method:  http.MethodGet,
		path:    "/api/get-saved-graphs",
		userKey: "id",
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]models.GraphSummary, 0, len(resp.Graphs))
	for _, g := range resp.Graphs {
		out = append(out, models.GraphSummary{
			ID:         g.ID,
			Name:       g.Name,
			ModifiedAt: parseModifiedAt(g.ModifiedAt),
		})
	}
	slices.SortStableFunc(out, func(a, b models.GraphSummary) int {
		return b.ModifiedAt.Compare(a.ModifiedAt)
	})
	return out, nil
}

func parseModifiedAt(s string) time.Time {
	for _, layout := range modifiedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LoadGraph возвращает сериализованный документ и метаданные.
// Даты обрезаются до YYYY-MM-DD.
func (c *Client) LoadGraph(ctx context.Context, name string) (models.LoadedGraph, error) {
	var resp struct {
		GraphData json.RawMessage `json:"graph_data"`
		StartDate string          `json:"start_date"`
		EndDate   string          `json:"end_date"`
		Symbol    string          `json:"symbol"`
		Timeframe string          `json:"timeframe"`
	}
	err := c.call(ctx, request{
		op:     "load_graph",
		method: http.MethodPost,
		path:   "/api/load-graph",
		body:   map[string]any{"name": name},
	}, &resp)
	if err != nil {
		return models.LoadedGraph{}, err
	}

	data, err := graphBytes(resp.GraphData)
	if err != nil {
		return models.LoadedGraph{}, fmt.Errorf("load_graph %q: %w", name, err)
	}

	return models.LoadedGraph{
		Name: name,
		Data: data,
		Metadata: models.Metadata{
			Symbol:    resp.Symbol,
			Timeframe: resp.Timeframe,
			StartDate: datePart(resp.StartDate),
			EndDate:   datePart(resp.EndDate),
		},
	}, nil
}

// graphBytes: graph_data приходит либо объектом, либо строкой с JSON внутри.
func graphBytes(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: empty graph_data", exception.ErrBadResponse)
	}
	if raw[0] != '"' {
		return []byte(raw), nil
	}
	var s string
	if err := sonic.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: graph_data: %v", exception.ErrBadResponse, err)
	}
	return []byte(s), nil
}

func datePart(s string) string {
	d, _, _ := strings.Cut(s, "T")
	return d
}

type saveRequest struct {
	Name      string `validate:"required"`
	Data      []byte `validate:"required"`
	StartDate string `validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `validate:"omitempty,datetime=2006-01-02"`
}

// SaveGraph — upsert по (user, name).
func (c *Client) SaveGraph(ctx context.Context, name string, data []byte, meta models.Metadata) error {
	meta.StartDate, meta.EndDate = datePart(meta.StartDate), datePart(meta.EndDate)
	if err := c.validate.Struct(saveRequest{
		Name: name, Data: data, StartDate: meta.StartDate, EndDate: meta.EndDate,
	}); err != nil {
		return fmt.Errorf("save_graph: %w", err)
	}

	return c.call(ctx, request{
		op:     "save_graph",
		method: http.MethodPost,
		path:   "/api/save-graph",
		body: map[string]any{
			"name":       name,
			"graph_data": json.RawMessage(data),
			"start_date": meta.StartDate,
			"end_date":   meta.EndDate,
			"timeframe":  meta.Timeframe,
			"symbol":     meta.Symbol,
		},
	}, nil)
}

// CreateStrategy создаёт пустую стратегию; занятое имя → exception.ErrConflict.
func (c *Client) CreateStrategy(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("create_strategy: empty name")
	}
	return c.call(ctx, request{
		op:     "create_strategy",
		method: http.MethodPost,
		path:   "/api/create-empty-strategy",
		body:   map[string]any{"name": name},
	}, nil)
}

// DeleteGraph удаляет по id. Чужой или несуществующий id → exception.ErrNotFound.
func (c *Client) DeleteGraph(ctx context.Context, id int64) error {
	return c.call(ctx, request{
		op:     "delete_graph",
		method: http.MethodPost,
		path:   "/api/delete-graph",
		body:   map[string]any{"strategy_id": id},
	}, nil)
}

// CreateGraph заводит новую стратегию и кладёт в неё документ. Занятое имя
// → exception.ErrConflict, существующий граф не трогается.
func (c *Client) CreateGraph(ctx context.Context, name string, data []byte, meta models.Metadata) error {
	if err := c.CreateStrategy(ctx, name); err != nil {
		return err
	}
	return c.SaveGraph(ctx, name, data, meta)
}

// DuplicateGraph — load + create под новым именем. Существующий target
// → exception.ErrConflict. Не атомарно: ошибка после создания оставляет
// пустую стратегию target.
func (c *Client) DuplicateGraph(ctx context.Context, source, target string) error {
	if source == target {
		return fmt.Errorf("duplicate_graph: target name equals source %q", source)
	}
	g, err := c.LoadGraph(ctx, source)
	if err != nil {
		return err
	}
	return c.CreateGraph(ctx, target, g.Data, g.Metadata)
}

// CompileGraph ставит граф в компиляцию. 429 → *exception.RateLimitError.
func (c *Client) CompileGraph(ctx context.Context, name string, meta models.Metadata) error {
	return c.call(ctx, request{
		op:     "compile_graph",
		method: http.MethodPost,
		path:   "/api/compile-graph",
		body: map[string]any{
			"name":       name,
			"start_date": datePart(meta.StartDate),
			"end_date":   datePart(meta.EndDate),
			"timeframe":  meta.Timeframe,
			"symbol":     meta.Symbol,
		},
	}, nil)
}

package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cast"

	"pve_client/internal/models"
)

const (
	defaultPageLimit  = 50
	defaultStatsLimit = 100
)

func (c *Client) ListBots(ctx context.Context) ([]models.BotInfo, error) {
	var resp struct {
		Bots []models.BotInfo `json:"bots"`
	}
	err := c.call(ctx, request{
		op:     "list_bots",
		method: http.MethodGet,
		path:   "/api/bots",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Bots, nil
}

// CreateBot возвращает id созданного бота.
func (c *Client) CreateBot(ctx context.Context, p models.BotParams) (int64, error) {
	if err := c.validate.Struct(p); err != nil {
		return 0, fmt.Errorf("create_bot: %w", err)
	}
	if len(p.Parameters) == 0 {
		return 0, fmt.Errorf("create_bot: parameters are required")
	}

	var resp struct {
		BotID int64 `json:"bot_id"`
	}
	err := c.call(ctx, request{
		op:     "create_bot",
		method: http.MethodPost,
		path:   "/api/bots",
		body: map[string]any{
			"name":       p.Name,
			"parameters": p.Parameters,
		},
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.BotID, nil
}

func (c *Client) StartBot(ctx context.Context, id int64) error {
	return c.call(ctx, request{
		op:     "start_bot",
		method: http.MethodPost,
		path:   botPath(id, "start"),
	}, nil)
}

func (c *Client) StopBot(ctx context.Context, id int64) error {
	return c.call(ctx, request{
		op:     "stop_bot",
		method: http.MethodPost,
		path:   botPath(id, "stop"),
	}, nil)
}

// DeleteBot — запущенного бота удалить нельзя, сервер отвечает 409 → exception.ErrConflict.
func (c *Client) DeleteBot(ctx context.Context, id int64) error {
	return c.call(ctx, request{
		op:     "delete_bot",
		method: http.MethodDelete,
		path:   botPath(id, ""),
	}, nil)
}

func (c *Client) BotStats(ctx context.Context, id int64, limit int) (models.BotStats, error) {
	if limit <= 0 {
		limit = defaultStatsLimit
	}
	var resp models.BotStats
	err := c.call(ctx, request{
		op:     "bot_stats",
		method: http.MethodGet,
		path:   botPath(id, "stats"),
		query:  url.Values{"limit": {strconv.Itoa(limit)}},
	}, &resp)
	return resp, err
}

func (c *Client) BotPnL(ctx context.Context, id int64, limit int, cursor string) (models.BotPage, error) {
	return c.botPage(ctx, "bot_pnl", botPath(id, "pnl"), limit, cursor)
}

func (c *Client) BotLogs(ctx context.Context, id int64, limit int, cursor string) (models.BotPage, error) {
	return c.botPage(ctx, "bot_logs", botPath(id, "logs"), limit, cursor)
}

// botPage разбирает постраничный ответ. Ключи у pnl и логов разные,
// поэтому берём первый найденный.
func (c *Client) botPage(ctx context.Context, op, path string, limit int, cursor string) (models.BotPage, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp map[string]any
	if err := c.call(ctx, request{op: op, method: http.MethodGet, path: path, query: q}, &resp); err != nil {
		return models.BotPage{}, err
	}

	var page models.BotPage
	for _, key := range []string{"data", "list", "logs", "pnl", "items"} {
		items, ok := resp[key].([]any)
		if !ok {
			continue
		}
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				page.Items = append(page.Items, m)
			}
		}
		break
	}
	for _, key := range []string{"next_cursor", "nextPageCursor", "cursor"} {
		if v, ok := resp[key]; ok && v != nil {
			page.NextCursor = cast.ToString(v)
			break
		}
	}
	return page, nil
}

func botPath(id int64, action string) string {
	p := "/api/bots/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"pve_client/internal/models"
	"pve_client/internal/modules/config"
	"pve_client/pkg/exception"
	"pve_client/pkg/tracing"
)

// defaultRetryAfter — сколько ждать, если 429 пришёл без retry_after.
const defaultRetryAfter = 30

// CredentialSource отдаёт текущую пару user_id/token.
type CredentialSource interface {
	Current() (models.Credentials, error)
}

// StaticCredentials — фиксированные креды из конфига/флагов.
type StaticCredentials models.Credentials

func (s StaticCredentials) Current() (models.Credentials, error) {
	c := models.Credentials(s)
	if c.Empty() {
		return c, exception.ErrAuthentication
	}
	return c, nil
}

// Client — REST-клиент бэкенда стратегий.
type Client struct {
	baseURL    string
	tickersURL string
	http       *http.Client
	creds      CredentialSource
	validate   *validator.Validate
	log        *zap.Logger
}

func NewClient(cfg *config.Config, creds CredentialSource, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		tickersURL: cfg.Market.TickersURL,
		http:       &http.Client{Timeout: cfg.API.Timeout},
		creds:      creds,
		validate:   validator.New(),
		log:        log.Named("pve_api"),
	}
}

// envelope — общие поля любого ответа бэкенда.
type envelope struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	RetryAfter any    `json:"retry_after"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   map[string]any
	// userKey — имя параметра с id пользователя (get-saved-graphs ждёт "id")
	userKey string
}

// call выполняет запрос с user_id/token и раскладывает ответ в out.
func (c *Client) call(ctx context.Context, r request, out any) (err error) {
	creds, err := c.creds.Current()
	if err != nil {
		return fmt.Errorf("%s: %w", r.op, err)
	}

	span, ctx := tracing.StartClientSpan(ctx, "pve_api."+r.op)
	defer func() { tracing.Finish(span, err) }()

	userKey := r.userKey
	if userKey == "" {
		userKey = "user_id"
	}

	q := url.Values{}
	for k, v := range r.query {
		q[k] = v
	}

	var body io.Reader
	if r.method == http.MethodPost || r.method == http.MethodPut {
		payload := make(map[string]any, len(r.body)+2)
		for k, v := range r.body {
			payload[k] = v
		}
		payload[userKey] = creds.UserID
		payload["token"] = creds.Token
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", r.op, err)
		}
		body = bytes.NewReader(raw)
	} else {
		q.Set(userKey, creds.UserID)
		q.Set("token", creds.Token)
	}

	u := c.baseURL + r.path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", r.op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", r.op, ctx.Err())
		}
		return fmt.Errorf("%w: %s: %v", exception.ErrNetwork, r.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", exception.ErrNetwork, r.op, err)
	}

	var env envelope
	// тело может быть не JSON (html от прокси), тогда статус решает сам за себя
	_ = sonic.Unmarshal(raw, &env)

	if err := mapStatus(resp.StatusCode, resp.Header, env); err != nil {
		c.log.Warn("request failed",
			zap.String("op", r.op),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", r.op, err)
	}

	if out != nil {
		if err := sonic.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode: %w", r.op, errors.Join(exception.ErrBadResponse, err))
		}
	}
	return nil
}

// mapStatus переводит HTTP-статус и тело в ошибки из pkg/exception.
func mapStatus(code int, h http.Header, env envelope) error {
	msg := env.text()
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return withMessage(exception.ErrAuthentication, msg)
	case code == http.StatusNotFound:
		return withMessage(exception.ErrNotFound, msg)
	case code == http.StatusConflict:
		return withMessage(exception.ErrConflict, msg)
	case code == http.StatusTooManyRequests:
		return &exception.RateLimitError{RetryAfter: retryAfter(h, env)}
	case code/100 != 2:
		return &exception.APIError{Status: code, Message: msg}
	case env.Status != "success":
		return &exception.APIError{Status: code, Message: msg}
	}
	return nil
}

func withMessage(err error, msg string) error {
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}

func retryAfter(h http.Header, env envelope) int {
	if env.RetryAfter != nil {
		if n, err := cast.ToIntE(env.RetryAfter); err == nil && n > 0 {
			return n
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultRetryAfter
}

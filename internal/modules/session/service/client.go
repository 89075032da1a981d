package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pve_client/internal/models"
	"pve_client/internal/modules/config"
	"pve_client/pkg/exception"
)

// CredentialSource отдаёт текущую пару user_id/token.
type CredentialSource interface {
	Current() (models.Credentials, error)
}

// Dialer — *websocket.Dialer или подмена в тестах.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Client — сессионный канал: одно socket.io соединение на пользователя
// с автоматическим переподключением. События уходят в out.
type Client struct {
	endpoint         string
	handshakeTimeout time.Duration
	reconnectMin     time.Duration
	reconnectMax     time.Duration

	creds   CredentialSource
	out     chan<- models.Event
	dialer  Dialer
	decoder *eventDecoder
	log     *zap.Logger

	state atomic.Uint32

	mu        sync.Mutex
	observers []func(models.StatusEvent)
	conn      *websocket.Conn
	writeMu   sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(cfg *config.Config, creds CredentialSource, out chan<- models.Event, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		endpoint:         sessionEndpoint(cfg),
		handshakeTimeout: cfg.Session.HandshakeTimeout,
		reconnectMin:     cfg.Session.ReconnectMin,
		reconnectMax:     cfg.Session.ReconnectMax,
		creds:            creds,
		out:              out,
		dialer:           &websocket.Dialer{HandshakeTimeout: cfg.Session.HandshakeTimeout},
		decoder:          newEventDecoder(),
		log:              log.Named("session"),
		closed:           make(chan struct{}),
	}
}

// WithDialer подменяет транспорт.
func (c *Client) WithDialer(d Dialer) *Client {
	c.dialer = d
	return c
}

// sessionEndpoint: session.url, иначе api.base_url со схемой ws(s).
func sessionEndpoint(cfg *config.Config) string {
	base := cfg.Session.URL
	if base == "" {
		base = cfg.API.BaseURL
		switch {
		case strings.HasPrefix(base, "https://"):
			base = "wss://" + strings.TrimPrefix(base, "https://")
		case strings.HasPrefix(base, "http://"):
			base = "ws://" + strings.TrimPrefix(base, "http://")
		}
	}
	path := cfg.Session.Path
	if path == "" {
		path = "/socket.io/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return strings.TrimRight(base, "/") + path
}

func (c *Client) State() models.ConnState { return models.ConnState(c.state.Load()) }
func (c *Client) IsConnected() bool       { return c.State() == models.Connected }

// OnStatus подписывает наблюдателя на переходы соединения.
// Подписка переживает переподключения.
func (c *Client) OnStatus(fn func(models.StatusEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Close останавливает Run и рвёт текущее соединение.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteMessage(websocket.TextMessage, []byte{eioMessage, sioDisconnect})
			c.writeMu.Unlock()
			_ = conn.Close()
		}
	})
	return nil
}

// Run держит соединение до отмены ctx или Close. После обрыва первая
// попытка сразу, дальше экспоненциальный backoff с потолком.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.reconnectMin
	bo.MaxInterval = c.reconnectMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2

	attempt := 0
	for {
		if c.stopped(ctx) {
			c.setState(models.Disconnected)
			return nil
		}
		if attempt > 0 {
			c.emit(ctx, models.StatusEvent{Kind: models.StatusReconnectAttempt, State: models.Connecting, Attempt: attempt})
		}

		connected, err := c.runOnce(ctx)
		c.setState(models.Disconnected)

		if c.stopped(ctx) {
			if connected {
				c.emit(ctx, models.StatusEvent{Kind: models.StatusDisconnect, State: models.Disconnected})
			}
			return nil
		}

		var wait time.Duration
		if connected {
			c.log.Warn("session dropped", zap.Error(err))
			c.emit(ctx, models.StatusEvent{Kind: models.StatusDisconnect, State: models.Disconnected, Err: err})
			bo.Reset()
			attempt = 0
		} else {
			c.log.Warn("session connect failed", zap.Int("attempt", attempt), zap.Error(err))
			c.emit(ctx, models.StatusEvent{Kind: models.StatusError, State: models.Disconnected, Attempt: attempt, Err: err})
			wait = bo.NextBackOff()
		}
		attempt++

		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-c.closed:
				t.Stop()
			case <-t.C:
			}
		}
	}
}

func (c *Client) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.closed:
		return true
	default:
		return false
	}
}

// runOnce: dial → handshake → read loop. connected == true, если дошли до 40.
func (c *Client) runOnce(ctx context.Context) (connected bool, err error) {
	creds, err := c.creds.Current()
	if err != nil {
		return false, err
	}
	c.setState(models.Connecting)

	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	q.Set("user_id", creds.UserID)
	q.Set("token", creds.Token)

	dialCtx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, c.endpoint+"?"+q.Encode(), nil)
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// отмена ctx рвёт блокирующее чтение
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	hs, err := c.handshake(conn)
	if err != nil {
		return false, err
	}

	c.setState(models.Connected)
	c.log.Info("session connected", zap.String("sid", hs.SID))
	c.emit(ctx, models.StatusEvent{Kind: models.StatusConnect, State: models.Connected})

	return true, c.readLoop(ctx, conn, hs)
}

func (c *Client) handshake(conn *websocket.Conn) (handshake, error) {
	_ = conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout))

	f, err := c.readFrame(conn)
	if err != nil {
		return handshake{}, err
	}
	if f.eio != eioOpen {
		return handshake{}, fmt.Errorf("%w: expected open packet, got %q", exception.ErrProtocol, f.eio)
	}
	hs, err := decodeHandshake(f.data)
	if err != nil {
		return handshake{}, err
	}

	if err := c.write(conn, encodeConnect("")); err != nil {
		return handshake{}, fmt.Errorf("send connect: %w", err)
	}

	for {
		f, err := c.readFrame(conn)
		if err != nil {
			return handshake{}, err
		}
		switch {
		case f.eio == eioPing:
			if err := c.write(conn, []byte{eioPong}); err != nil {
				return handshake{}, err
			}
		case f.eio == eioMessage && f.sio == sioConnect:
			return hs, nil
		case f.eio == eioMessage && f.sio == sioConnectError:
			return handshake{}, fmt.Errorf("%w: %s", exception.ErrConnectRefused, connectErrorMessage(f.data))
		case f.eio == eioMessage && f.sio == sioDisconnect, f.eio == eioClose:
			return handshake{}, exception.ErrConnectRefused
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, hs handshake) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(hs.deadline()))

		f, err := c.readFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch f.eio {
		case eioPing:
			if err := c.write(conn, []byte{eioPong}); err != nil {
				return err
			}
		case eioClose:
			return fmt.Errorf("%w: server closed transport", exception.ErrSessionClosed)
		case eioMessage:
			switch f.sio {
			case sioDisconnect:
				return fmt.Errorf("%w: server disconnected", exception.ErrSessionClosed)
			case sioEvent:
				c.dispatch(ctx, f.data)
			}
		}
	}
}

func (c *Client) readFrame(conn *websocket.Conn) (frame, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return frame{}, fmt.Errorf("read: %w", err)
	}
	return decodeFrame(msg)
}

func (c *Client) write(conn *websocket.Conn, msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// dispatch: невалидные события логируются и отбрасываются.
func (c *Client) dispatch(ctx context.Context, data []byte) {
	name, payload, err := decodeEvent(data)
	if err != nil {
		c.log.Warn("bad event frame", zap.Error(err))
		return
	}
	ev, err := c.decoder.decode(name, payload)
	if err != nil {
		if errors.Is(err, exception.ErrParse) {
			c.log.Warn("event dropped", zap.String("event", name), zap.Error(err))
		}
		return
	}
	c.publish(ctx, ev)
}

func (c *Client) publish(ctx context.Context, ev models.Event) {
	if c.out == nil {
		return
	}
	select {
	case c.out <- ev:
	case <-ctx.Done():
	case <-c.closed:
	}
}

func (c *Client) setState(s models.ConnState) { c.state.Store(uint32(s)) }

// emit уведомляет наблюдателей и кладёт событие соединения в out.
// Как и события данных, ждёт места в буфере до отмены ctx или Close.
func (c *Client) emit(ctx context.Context, st models.StatusEvent) {
	st.At = time.Now()

	c.mu.Lock()
	obs := append([]func(models.StatusEvent){}, c.observers...)
	c.mu.Unlock()

	for _, fn := range obs {
		fn(st)
	}

	c.publish(ctx, models.Event{Kind: models.EventConnection, ReceivedAt: st.At, Status: &st})
}

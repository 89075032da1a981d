package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/fx"

	"pve_client/internal/modules/config"
	"pve_client/internal/modules/health/service"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: cfg.Health.Addr}
}

type status struct {
	Ready         bool  `json:"ready"`
	WSConnected   bool  `json:"wsConnected"`
	UptimeSec     int64 `json:"uptimeSec"`
	LastEventUnix int64 `json:"lastEventUnix"`
	Reconnects    int64 `json:"reconnects"`
	Compiling     int   `json:"compiling"`
}

func NewMux(state *service.State) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// готов, когда сессия подключена
		if !state.Ready() || !state.WSConnected() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := status{
			Ready:       state.Ready(),
			WSConnected: state.WSConnected(),
			UptimeSec:   int64(state.Uptime().Seconds()),
			Reconnects:  state.Reconnects(),
			Compiling:   state.Compiling(),
		}
		if t := state.LastEvent(); !t.IsZero() {
			resp.LastEventUnix = t.Unix()
		}
		b, err := sonic.Marshal(resp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux, state *service.State) {
	if cfg.Addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			state.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pve_client/internal/catalog"
	"pve_client/internal/models"
	authsvc "pve_client/internal/modules/auth/service"
	"pve_client/internal/modules/config"
	draftsvc "pve_client/internal/modules/drafts/service"
	pveapi "pve_client/internal/modules/pve_api/service"
	"pve_client/pkg/db"
	"pve_client/pkg/logger"
	"pve_client/pkg/tracing"
)

// app — всё, что нужно одной команде CLI.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *authsvc.Store
	creds   pveapi.CredentialSource
	api     *pveapi.Client
	catalog *catalog.Registry
	out     io.Writer
	json    bool

	closers []io.Closer
	pool    *db.PgTxManager
}

func newApp(v *viper.Viper, out io.Writer) (*app, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if s := v.GetString("base-url"); s != "" {
		cfg.API.BaseURL = s
	}
	if d := v.GetDuration("timeout"); d > 0 {
		cfg.API.Timeout = d
	}
	if lvl := v.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	// CLI пишет логи только в stderr
	cfg.Log.FileName = ""
	// CLI следит только за своими компиляциями
	cfg.Compile.TrackExternal = false

	logger.SetServiceName("pvectl")
	log, err := logger.Init(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}

	tracing.SetServiceName("pvectl")
	_, closer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return nil, errors.Wrap(err, "init tracer")
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		store:   authsvc.NewStore(cfg.CredentialsFile, cfg.Credentials),
		catalog: catalog.Builtin(),
		out:     out,
		json:    v.GetBool("json"),
		closers: []io.Closer{closer},
	}

	// явные флаги важнее файла с кредами
	a.creds = a.store
	if uid, tok := v.GetString("user-id"), v.GetString("token"); uid != "" && tok != "" {
		a.creds = pveapi.StaticCredentials(models.Credentials{UserID: uid, Token: tok})
	}
	a.api = pveapi.NewClient(cfg, a.creds, log)
	return a, nil
}

// drafts открывает хранилище черновиков. Без db_dsn черновики из CLI
// не переживут процесс, поэтому это ошибка.
func (a *app) drafts(ctx context.Context) (draftsvc.Store, error) {
	if a.cfg.DB == "" {
		return nil, fmt.Errorf("drafts need db_dsn in config or DATABASE_DSN")
	}
	if a.pool == nil {
		pool, err := db.NewPool(ctx, db.PoolConfig{DSN: a.cfg.DB, MaxConns: 2})
		if err != nil {
			return nil, errors.Wrap(err, "connect postgres")
		}
		a.pool = db.NewPgTxManager(pool)
	}
	store := draftsvc.NewPG(a.pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) draftStore(ctx context.Context) (draftsvc.Store, string, error) {
	owner, err := a.owner()
	if err != nil {
		return nil, "", err
	}
	store, err := a.drafts(ctx)
	if err != nil {
		return nil, "", err
	}
	return store, owner, nil
}

// owner — user_id для черновиков.
func (a *app) owner() (string, error) {
	c, err := a.creds.Current()
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

func (a *app) Close() error {
	var err error
	for _, c := range a.closers {
		err = multierr.Append(err, c.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	logger.Sync()
	return err
}

func (a *app) printJSON(v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

// table печатает строки через tabwriter; в --json режиме печатает v.
func (a *app) table(v any, header string, rows func(w io.Writer)) error {
	if a.json {
		return a.printJSON(v)
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	return w.Flush()
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

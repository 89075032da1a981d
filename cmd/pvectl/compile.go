package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pve_client/internal/models"
	compiler "pve_client/internal/modules/compiler/service"
	notify "pve_client/internal/modules/notify/service"
	session "pve_client/internal/modules/session/service"
	"pve_client/internal/runner"
	"pve_client/internal/stream"
	"pve_client/pkg/exception"
)

const connectWait = 15 * time.Second

func compileCmd(v *viper.Viper) *cobra.Command {
	var (
		meta    metaFlags
		watch   bool
		showLog bool
		maxWait time.Duration
	)
	cmd := &cobra.Command{
		Use:   "compile NAME",
		Short: "Compile a saved graph and optionally follow its progress",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			name := args[0]
			md := meta.resolve(models.Metadata{}, a.cfg.Defaults)

			coord := compiler.NewCoordinator(a.cfg, a.api, a.log)
			if !watch {
				if err := coord.Submit(ctx, name, md); err != nil {
					return compileError(err)
				}
				a.printf("Compilation of %q requested\n", name)
				return nil
			}

			if maxWait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, maxWait)
				defer cancel()
			}
			return a.compileAndWatch(ctx, coord, name, md, showLog)
		}),
	}
	meta.bind(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", true, "Follow progress over the session channel")
	cmd.Flags().BoolVar(&showLog, "logs", false, "Print backend log lines while compiling")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "Give up watching after this long")
	return cmd
}

func (a *app) compileAndWatch(ctx context.Context, coord *compiler.Coordinator, name string, md models.Metadata, showLog bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan models.Event, a.cfg.Session.EventBuffer)
	sess := session.NewClient(a.cfg, a.creds, events, a.log)
	defer sess.Close()

	go func() { _ = sess.Run(ctx) }()
	go coord.RunSweeper(ctx, time.Second)

	logs := stream.NewLogBook(a.cfg.LogCapacity)
	notes := &notify.Memory{}
	router := runner.NewRouter(runner.Deps{
		Logs:     logs,
		Compiler: coord,
		Notifier: notes,
		Log:      a.log,
	})
	go router.Run(ctx, events)

	if err := waitConnected(ctx, sess); err != nil {
		return err
	}

	states, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	// submit синхронный: бэкенд шлёт прогресс, пока идёт запрос
	submitErr := make(chan error, 1)
	go func() { submitErr <- coord.Submit(ctx, name, md) }()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped watching %q: %w", name, ctx.Err())

		case err := <-submitErr:
			if err != nil {
				return compileError(err)
			}
			submitErr = nil

		case s := <-states:
			if s.GraphName != name {
				continue
			}
			if showLog {
				seen = a.flushLogs(logs, seen)
			}
			switch s.State {
			case models.CompileRequested:
				a.printf("requested\n")
			case models.CompileCompiling:
				a.printf("%3d%%  %s\n", s.Progress, s.Stage)
			case models.CompileCompleted:
				a.printf("100%%  completed\n")
				return nil
			case models.CompileFailed:
				return fmt.Errorf("compilation of %q failed: %s", name, s.Message)
			}
		}
	}
}

func (a *app) flushLogs(logs *stream.LogBook, seen int) int {
	recs := logs.Records()
	if seen > len(recs) {
		seen = 0
	}
	for _, r := range recs[seen:] {
		a.printf("      %s %-7s %s\n", r.Timestamp.Format("15:04:05"), r.Level, r.Message)
	}
	return len(recs)
}

func waitConnected(ctx context.Context, sess *session.Client) error {
	errs := make(chan error, 1)
	sess.OnStatus(func(st models.StatusEvent) {
		if st.Kind == models.StatusError && errors.Is(st.Err, exception.ErrAuthentication) {
			select {
			case errs <- st.Err:
			default:
			}
		}
	})

	deadline := time.NewTimer(connectWait)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for !sess.IsConnected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case <-deadline.C:
			return fmt.Errorf("session: not connected after %s", connectWait)
		case <-tick.C:
		}
	}
	return nil
}

func compileError(err error) error {
	var rl *exception.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("compile rate limited, retry in %ds", rl.RetryAfter)
	}
	return err
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("PVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := newRootCmd(v)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pvectl",
		Short:         "Strategy graph client: graphs, compilation, backtests and bots",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "configs/values_local.yaml", "Config file path")
	pf.String("base-url", "", "Backend base URL (overrides config)")
	pf.String("user-id", "", "User id (overrides stored credentials)")
	pf.String("token", "", "Session token (overrides stored credentials)")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.Duration("timeout", 0, "REST call timeout")
	pf.Bool("json", false, "Print machine-readable JSON")
	_ = v.BindPFlags(pf)

	rootCmd.AddCommand(
		loginCmd(v), logoutCmd(v), whoamiCmd(v),
		graphsCmd(v),
		compileCmd(v),
		backtestsCmd(v),
		analyzerCmd(v),
		botsCmd(v),
		catalogCmd(v),
		symbolsCmd(v),
		draftsCmd(v),
	)
	return rootCmd
}

// run оборачивает тело команды: поднимает app, контекст с отменой по
// SIGINT/SIGTERM и закрывает ресурсы.
func run(v *viper.Viper, fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(v, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, a.Close()) }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return fn(ctx, a, args)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

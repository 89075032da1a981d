package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pve_client/internal/models"
	watch "pve_client/internal/modules/watch/service"
	"pve_client/internal/stream"
	"pve_client/pkg/exception"
)

func backtestsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backtests",
		Aliases: []string{"backtest", "bt"},
		Short:   "Backtest results",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List backtests",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			recs, err := a.api.ListBacktests(ctx)
			if err != nil {
				return err
			}
			return a.table(recs, "ID\tGRAPH\tSYMBOL\tTF\tPERIOD\tANALYZED", func(w io.Writer) {
				for _, r := range recs {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s..%s\t%v\n", r.ID, r.GraphName, r.Symbol, r.Timeframe, r.StartDate, r.EndDate, r.Analyzed())
				}
			})
		}),
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a backtest with its orders",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			bt, err := a.api.GetBacktest(ctx, id)
			if err != nil {
				return err
			}
			chart := stream.NewChartState(a.log)
			if !chart.FromBacktest(bt) {
				return fmt.Errorf("backtest %d has no chart data", id)
			}
			snap := chart.Snapshot()
			if a.json {
				return a.printJSON(map[string]any{
					"graph_name": bt.GraphName,
					"symbol":     bt.Symbol,
					"timeframe":  bt.Timeframe,
					"candles":    len(snap.Data),
					"precision":  snap.Precision,
					"min_move":   snap.MinMove,
					"orders":     snap.Orders,
				})
			}
			a.printf("%s %s %s  %s..%s  candles=%d precision=%d min_move=%g\n",
				bt.GraphName, bt.Symbol, bt.Timeframe, bt.StartDate, bt.EndDate, len(snap.Data), snap.Precision, snap.MinMove)
			return a.table(nil, "ORDER\tSIDE\tTYPE\tPRICE\tQTY\tSTATUS\tCREATED", func(w io.Writer) {
				for _, o := range snap.Orders {
					fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%s\t%s\n", o.ID, side(o), o.Type, o.Price, o.Quantity, o.Status, o.TimeCreated)
				}
			})
		}),
	}

	cmd.AddCommand(list, show)
	return cmd
}

func side(o models.Order) string {
	if o.Direction {
		return "buy"
	}
	return "sell"
}

func analyzerCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyzer",
		Short: "Backtest analyzer",
	}

	var (
		capital float64
		wait    bool
	)
	launch := &cobra.Command{
		Use:   "launch BACKTEST_ID",
		Short: "Run the analyzer for a backtest and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if capital <= 0 {
				capital = a.cfg.Compile.InitialCapital
			}
			if err := a.api.LaunchAnalyzer(ctx, id, capital); err != nil {
				var rl *exception.RateLimitError
				if errors.As(err, &rl) {
					return fmt.Errorf("analyzer rate limited, retry in %ds", rl.RetryAfter)
				}
				return err
			}
			if !wait {
				a.printf("Analyzer started for backtest %d\n", id)
				return nil
			}
			a.printf("Analyzer started for backtest %d, waiting for the result...\n", id)
			return a.waitAnalyzer(ctx, id)
		}),
	}
	launch.Flags().Float64Var(&capital, "capital", 0, "Initial capital (default from config)")
	launch.Flags().BoolVarP(&wait, "wait", "w", true, "Poll until the result is ready")

	result := &cobra.Command{
		Use:   "result BACKTEST_ID",
		Short: "Fetch the analyzer result",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := a.api.GetAnalyzerResult(ctx, id)
			if err != nil {
				return err
			}
			return a.showAnalyzer(res)
		}),
	}

	cmd.AddCommand(launch, result)
	return cmd
}

func (a *app) waitAnalyzer(ctx context.Context, id int64) error {
	hub := watch.NewHub(a.log)
	defer hub.Close()

	var res models.AnalyzerResult
	w, err := hub.WatchAnalyzer(ctx, a.api, id, a.cfg.Compile.AnalyzerPoll, func(r models.AnalyzerResult) {
		res = r
	})
	if err != nil {
		return err
	}
	if err := w.Wait(ctx); err != nil {
		return err
	}
	return a.showAnalyzer(res)
}

func (a *app) showAnalyzer(res models.AnalyzerResult) error {
	if a.json {
		return a.printJSON(res)
	}
	keys := slices.Sorted(maps.Keys(res))
	return a.table(nil, "METRIC\tVALUE", func(w io.Writer) {
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, res[k])
		}
	})
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pve_client/internal/models"
)

func botsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bots",
		Aliases: []string{"bot"},
		Short:   "Trading bots",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List bots",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			bots, err := a.api.ListBots(ctx)
			if err != nil {
				return err
			}
			return a.table(bots, "ID\tNAME\tSTATUS\tSYMBOL\tTF\tSTRATEGY", func(w io.Writer) {
				for _, b := range bots {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Status, b.Symbol, b.Timeframe, b.Strategy)
				}
			})
		}),
	}

	var params string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a bot; --params is a JSON object",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			p := models.BotParams{Name: args[0]}
			if err := sonic.Unmarshal([]byte(params), &p.Parameters); err != nil {
				return fmt.Errorf("--params: %w", err)
			}
			id, err := a.api.CreateBot(ctx, p)
			if err != nil {
				return err
			}
			a.printf("Created bot %d\n", id)
			return nil
		}),
	}
	create.Flags().StringVar(&params, "params", "{}", `Bot parameters, e.g. {"strategy":"alpha","symbol":"BTCUSDT"}`)

	action := func(use, short, done string, fn func(a *app) func(context.Context, int64) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: run(v, func(ctx context.Context, a *app, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := fn(a)(ctx, id); err != nil {
					return err
				}
				a.printf("Bot %d %s\n", id, done)
				return nil
			}),
		}
	}
	start := action("start", "Start a bot", "started", func(a *app) func(context.Context, int64) error { return a.api.StartBot })
	stop := action("stop", "Stop a bot", "stopped", func(a *app) func(context.Context, int64) error { return a.api.StopBot })
	del := action("delete", "Delete a stopped bot", "deleted", func(a *app) func(context.Context, int64) error { return a.api.DeleteBot })

	var limit int
	stats := &cobra.Command{
		Use:   "stats ID",
		Short: "Bot performance and recent logs",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := a.api.BotStats(ctx, id, limit)
			if err != nil {
				return err
			}
			return a.printJSON(st)
		}),
	}
	stats.Flags().IntVar(&limit, "limit", 0, "Number of log entries (default 100)")

	cmd.AddCommand(list, create, start, stop, del, stats,
		pageCmd(v, "pnl", "Bot PnL history", func(a *app) pageFunc { return a.api.BotPnL }),
		pageCmd(v, "logs", "Bot logs", func(a *app) pageFunc { return a.api.BotLogs }),
	)
	return cmd
}

type pageFunc func(ctx context.Context, id int64, limit int, cursor string) (models.BotPage, error)

// pageCmd листает страницы по cursor до --pages или до конца.
func pageCmd(v *viper.Viper, use, short string, get func(a *app) pageFunc) *cobra.Command {
	var (
		limit  int
		pages  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var items []map[string]any
			next := cursor
			for i := 0; pages <= 0 || i < pages; i++ {
				page, err := get(a)(ctx, id, limit, next)
				if err != nil {
					return err
				}
				items = append(items, page.Items...)
				next = page.NextCursor
				if next == "" {
					break
				}
			}
			if a.json {
				return a.printJSON(map[string]any{"items": items, "next_cursor": next})
			}
			for _, it := range items {
				b, _ := sonic.Marshal(it)
				a.printf("%s\n", b)
			}
			if next != "" {
				a.printf("next cursor: %s\n", next)
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (default 50)")
	cmd.Flags().IntVar(&pages, "pages", 1, "Pages to fetch, 0 for all")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Start from this cursor")
	return cmd
}

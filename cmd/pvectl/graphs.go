package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pve_client/internal/graph"
	"pve_client/internal/models"
)

type metaFlags struct {
	symbol, timeframe, start, end string
}

func (m *metaFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.symbol, "symbol", "", "Symbol, e.g. BTCUSDT (default from config)")
	cmd.Flags().StringVar(&m.timeframe, "timeframe", "", "Timeframe, e.g. 1min (default from config)")
	cmd.Flags().StringVar(&m.start, "start", "", "Backtest start date YYYY-MM-DD")
	cmd.Flags().StringVar(&m.end, "end", "", "Backtest end date YYYY-MM-DD")
}

// resolve: флаг → base → дефолты конфига.
func (m *metaFlags) resolve(base, defaults models.Metadata) models.Metadata {
	pick := func(flag, b, d string) string {
		switch {
		case flag != "":
			return flag
		case b != "":
			return b
		default:
			return d
		}
	}
	return models.Metadata{
		Symbol:    pick(m.symbol, base.Symbol, defaults.Symbol),
		Timeframe: pick(m.timeframe, base.Timeframe, defaults.Timeframe),
		StartDate: pick(m.start, base.StartDate, defaults.StartDate),
		EndDate:   pick(m.end, base.EndDate, defaults.EndDate),
	}
}

func graphsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "graphs",
		Aliases: []string{"graph", "strategies"},
		Short:   "Saved strategy graphs",
	}
	cmd.AddCommand(
		graphsListCmd(v),
		graphsLoadCmd(v),
		graphsSaveCmd(v),
		graphsCreateCmd(v),
		graphsDeleteCmd(v),
		graphsDuplicateCmd(v),
		graphsCheckCmd(v),
	)
	return cmd
}

func graphsListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved graphs, newest first",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			list, err := a.api.ListGraphs(ctx)
			if err != nil {
				return err
			}
			return a.table(list, "ID\tNAME\tMODIFIED", func(w io.Writer) {
				for _, g := range list {
					fmt.Fprintf(w, "%d\t%s\t%s\n", g.ID, g.Name, formatTime(g.ModifiedAt))
				}
			})
		}),
	}
}

func graphsLoadCmd(v *viper.Viper) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Download a graph document",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			g, err := a.api.LoadGraph(ctx, args[0])
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = a.out.Write(append(g.Data, '\n'))
				return err
			}
			if err := os.WriteFile(out, g.Data, 0o644); err != nil {
				return err
			}
			a.printf("Saved %q to %s (symbol %s, timeframe %s, %s..%s)\n",
				g.Name, out, g.Metadata.Symbol, g.Metadata.Timeframe, g.Metadata.StartDate, g.Metadata.EndDate)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the document to a file instead of stdout")
	return cmd
}

func graphsSaveCmd(v *viper.Viper) *cobra.Command {
	var (
		file string
		meta metaFlags
	)
	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Validate a graph document and upload it",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			raw, err := readInput(file)
			if err != nil {
				return err
			}
			owner, err := a.owner()
			if err != nil {
				return err
			}
			doc, err := graph.Deserialize(a.catalog, args[0], owner, raw)
			if err != nil {
				return err
			}
			data, err := doc.Serialize()
			if err != nil {
				return err
			}
			md := meta.resolve(doc.Metadata, a.cfg.Defaults)
			if err := a.api.SaveGraph(ctx, args[0], data, md); err != nil {
				return err
			}
			a.printf("Saved %q (%d nodes, %d links)\n", args[0], len(doc.Nodes()), len(doc.Links()))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Graph document file, - for stdin")
	meta.bind(cmd)
	return cmd
}

func graphsCreateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty strategy",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			if err := a.api.CreateStrategy(ctx, args[0]); err != nil {
				return err
			}
			a.printf("Created %q\n", args[0])
			return nil
		}),
	}
}

func graphsDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved graph by id",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.api.DeleteGraph(ctx, id); err != nil {
				return err
			}
			a.printf("Deleted %d\n", id)
			return nil
		}),
	}
}

func graphsDuplicateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate SOURCE TARGET",
		Short: "Copy a graph under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			if err := a.api.DuplicateGraph(ctx, args[0], args[1]); err != nil {
				return err
			}
			a.printf("Duplicated %q as %q\n", args[0], args[1])
			return nil
		}),
	}
}

func graphsCheckCmd(v *viper.Viper) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a local graph document against the node catalog",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			raw, err := readInput(file)
			if err != nil {
				return err
			}
			doc, err := graph.Deserialize(a.catalog, "local", "", raw)
			if err != nil {
				return err
			}
			order, err := doc.TopologicalOrder()
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(map[string]any{"nodes": len(doc.Nodes()), "links": len(doc.Links()), "order": order})
			}
			a.printf("OK: %d nodes, %d links, execution order %v\n", len(doc.Nodes()), len(doc.Links()), order)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Graph document file, - for stdin")
	return cmd
}

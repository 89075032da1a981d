package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pve_client/internal/graph"
	"pve_client/internal/models"
	draftsvc "pve_client/internal/modules/drafts/service"
)

func draftsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Local drafts of graph documents (needs db_dsn)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List drafts, newest first",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			store, owner, err := a.draftStore(ctx)
			if err != nil {
				return err
			}
			ds, err := store.List(ctx, owner)
			if err != nil {
				return err
			}
			return a.table(ds, "NAME\tSYMBOL\tTF\tUPDATED", func(w io.Writer) {
				for _, d := range ds {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Metadata.Symbol, d.Metadata.Timeframe, formatTime(d.UpdatedAt))
				}
			})
		}),
	}

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a draft document",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			store, owner, err := a.draftStore(ctx)
			if err != nil {
				return err
			}
			d, err := store.Get(ctx, owner, args[0])
			if err != nil {
				return err
			}
			_, err = a.out.Write(append(d.Data, '\n'))
			return err
		}),
	}

	var (
		file string
		meta metaFlags
	)
	save := &cobra.Command{
		Use:   "save NAME",
		Short: "Store a document as a draft",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			store, owner, err := a.draftStore(ctx)
			if err != nil {
				return err
			}
			raw, err := readInput(file)
			if err != nil {
				return err
			}
			// черновик может быть неполным, но должен разбираться
			if _, err := graph.Deserialize(a.catalog, args[0], owner, raw); err != nil {
				return err
			}
			d := models.Draft{
				Owner:    owner,
				Name:     args[0],
				Data:     raw,
				Metadata: meta.resolve(models.Metadata{}, a.cfg.Defaults),
			}
			if err := store.Save(ctx, d); err != nil {
				return err
			}
			a.printf("Draft %q saved\n", args[0])
			return nil
		}),
	}
	save.Flags().StringVarP(&file, "file", "f", "-", "Graph document file, - for stdin")
	meta.bind(save)

	var all bool
	publish := &cobra.Command{
		Use:   "publish [NAME]",
		Short: "Upload a draft to the backend and drop it locally",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			store, _, err := a.draftStore(ctx)
			if err != nil {
				return err
			}
			pub := draftsvc.NewPublisher(store, a.api, a.creds, a.log)
			if all {
				n, err := pub.Flush(ctx)
				a.printf("Published %d draft(s)\n", n)
				return err
			}
			if len(args) != 1 {
				return fmt.Errorf("draft name or --all required")
			}
			if err := pub.Publish(ctx, args[0]); err != nil {
				return err
			}
			a.printf("Draft %q published\n", args[0])
			return nil
		}),
	}
	publish.Flags().BoolVar(&all, "all", false, "Publish every draft, oldest first")

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			store, owner, err := a.draftStore(ctx)
			if err != nil {
				return err
			}
			if err := store.Delete(ctx, owner, args[0]); err != nil {
				return err
			}
			a.printf("Draft %q deleted\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, show, save, publish, del)
	return cmd
}

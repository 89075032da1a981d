package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pve_client/internal/models"
	pveapi "pve_client/internal/modules/pve_api/service"
)

func loginCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify --user-id/--token against the backend and store them",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			creds := models.Credentials{UserID: v.GetString("user-id"), Token: v.GetString("token")}
			if creds.Empty() {
				return fmt.Errorf("login needs --user-id and --token")
			}
			api := pveapi.NewClient(a.cfg, pveapi.StaticCredentials(creds), a.log)
			user, err := api.UserInfo(ctx)
			if err != nil {
				return err
			}
			if err := a.store.Login(creds, &user); err != nil {
				return err
			}
			a.printf("Logged in as %s (id %d), credentials saved to %s\n", displayName(user), user.ID, a.store.Path())
			return nil
		}),
	}
}

func logoutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget stored credentials",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			if err := a.store.Logout(); err != nil {
				return err
			}
			a.printf("Logged out\n")
			return nil
		}),
	}
}

func whoamiCmd(v *viper.Viper) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			if remote {
				user, err := a.api.UserInfo(ctx)
				if err != nil {
					return err
				}
				return a.showUser(user)
			}
			creds, err := a.creds.Current()
			if err != nil {
				return err
			}
			if user, ok := a.store.User(); ok {
				return a.showUser(*user)
			}
			a.printf("user_id %s (no stored profile, use --remote)\n", creds.UserID)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the profile from the backend")
	return cmd
}

func (a *app) showUser(u models.UserProfile) error {
	if a.json {
		return a.printJSON(u)
	}
	a.printf("%s (id %d)\n", displayName(u), u.ID)
	if u.Username != "" {
		a.printf("@%s\n", u.Username)
	}
	return nil
}

func displayName(u models.UserProfile) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func catalogCmd(v *viper.Viper) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List node types available for strategy graphs",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			var types []models.NodeType
			for _, t := range a.catalog.List() {
				if category == "" || t.Category() == category {
					types = append(types, t)
				}
			}
			return a.table(types, "TYPE\tTITLE\tINPUTS\tOUTPUTS", func(w io.Writer) {
				for _, t := range types {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Title, portList(t.InputPorts(variadicMin(t))), portList(t.Outputs))
				}
			})
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "Only types of this category, e.g. indicators")
	return cmd
}

func variadicMin(t models.NodeType) int {
	if t.Variadic == nil {
		return 0
	}
	return t.Variadic.Min
}

func portList(ps []models.PortSpec) string {
	if len(ps) == 0 {
		return "-"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = fmt.Sprintf("%s:%s", p.Name, p.Type)
	}
	return strings.Join(parts, ", ")
}

func symbolsCmd(v *viper.Viper) *cobra.Command {
	var minTurnover float64
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "Symbols with 24h turnover above the threshold",
		RunE: run(v, func(ctx context.Context, a *app, args []string) error {
			if minTurnover <= 0 {
				minTurnover = a.cfg.Market.MinTurnover
			}
			syms := a.api.SymbolsByTurnover(ctx, minTurnover)
			if a.json {
				return a.printJSON(syms)
			}
			for _, s := range syms {
				a.printf("%s\n", s)
			}
			return nil
		}),
	}
	cmd.Flags().Float64Var(&minTurnover, "min-turnover", 0, "Minimum 24h turnover (default from config)")
	return cmd
}

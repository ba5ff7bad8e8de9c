package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"authentico/internal/admin"
	"authentico/internal/app"
	"authentico/internal/platform/rbac"
)

// usersAppLabel is the permission app label guarding the user changelist.
const usersAppLabel = "users"

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect users",
}

var (
	listSearch     string
	listFilterArgs []string
	listOrdering   []string
	listPage       int
	listPerPage    int
	listAs         string
)

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users as the admin changelist shows them",
	Long: `Lists users using the admin changelist: search over names, email, and id,
filters on is_staff, is_superuser, is_active, and groups, and the declared ordering.
With --as, the acting user must be active staff holding a permission in the users app.`,
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		filters, err := parseFilterArgs(listFilterArgs)
		if err != nil {
			return err
		}

		ctx := cobraCmd.Context()
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if listAs != "" {
			actor, err := lookupUser(ctx, a, listAs)
			if err != nil {
				return err
			}
			ctx = rbac.WithUserID(ctx, actor.ID)
			if _, err := rbac.RequireModulePerms(ctx, a.Users, a.Resolver, usersAppLabel); err != nil {
				return err
			}
		}

		cl, err := a.Admin.Changelist(ctx, a.Users, admin.ChangelistParams{
			Search:   listSearch,
			Filters:  filters,
			Ordering: listOrdering,
			Page:     listPage,
			PerPage:  listPerPage,
		})
		if err != nil {
			return err
		}

		if len(cl.Rows) == 0 {
			pterm.Info.Println("No users found.")
			return nil
		}
		header := make([]string, len(cl.Columns))
		for i, c := range cl.Columns {
			header[i] = strings.ToUpper(c)
		}
		table := pterm.TableData{header}
		table = append(table, cl.Rows...)
		_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		pterm.Info.Printf("Page %d, %d user(s)\n", cl.Page, len(cl.Rows))
		return nil
	},
}

// parseFilterArgs turns key=value arguments into a map.
func parseFilterArgs(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", arg)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func init() {
	usersListCmd.Flags().StringVar(&listSearch, "search", "", "Search names, email, and id")
	usersListCmd.Flags().StringArrayVar(&listFilterArgs, "filter", nil, "Filter as key=value (is_staff, is_superuser, is_active, groups)")
	usersListCmd.Flags().StringSliceVar(&listOrdering, "order", nil, "Ordering columns; prefix with - for descending")
	usersListCmd.Flags().IntVar(&listPage, "page", 1, "Page number (1-based)")
	usersListCmd.Flags().IntVar(&listPerPage, "per-page", admin.DefaultPerPage, "Users per page")
	usersListCmd.Flags().StringVar(&listAs, "as", "", "Email of the acting user to authorize")
	usersCmd.AddCommand(usersListCmd)
}

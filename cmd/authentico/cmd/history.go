package cmd

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"authentico/internal/app"
	auditrepo "authentico/internal/audit/repository"
)

var (
	historyEmail  string
	historyAction string
	historyLimit  int
)

var usersHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show audit events for a user",
	Long:  `Lists recorded audit events (creation, logins, password changes, mail) for a user, newest first.`,
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		ctx := cobraCmd.Context()
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		u, err := lookupUser(ctx, a, historyEmail)
		if err != nil {
			return err
		}
		logs, err := a.AuditLogs.List(ctx, auditrepo.Filter{UserID: u.ID, Action: historyAction, Limit: historyLimit})
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			pterm.Info.Printf("No audit events for %s\n", u.Email)
			return nil
		}
		table := pterm.TableData{{"TIME", "ACTION", "RESOURCE", "METADATA"}}
		for _, l := range logs {
			table = append(table, []string{l.CreatedAt.UTC().Format(time.RFC3339), l.Action, l.Resource, l.Metadata})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		return nil
	},
}

func init() {
	usersHistoryCmd.Flags().StringVar(&historyEmail, "email", "", "Email of the user")
	usersHistoryCmd.Flags().StringVar(&historyAction, "action", "", "Only events with this action (e.g. login_failure)")
	usersHistoryCmd.Flags().IntVar(&historyLimit, "limit", auditrepo.DefaultLimit, "Maximum events to show")
	_ = usersHistoryCmd.MarkFlagRequired("email")
	usersCmd.AddCommand(usersHistoryCmd)
}

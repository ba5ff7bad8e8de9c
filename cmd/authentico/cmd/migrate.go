package cmd

import (
	"github.com/spf13/cobra"

	"authentico/internal/db/migrate"
)

var migrateDirection string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Runs the embedded SQL migrations against DATABASE_URL. Already being at the target version is not an error.`,
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		return migrate.Run(cfg.DatabaseURL, migrateDirection, log)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDirection, "direction", "up", "Migration direction: up or down")
}

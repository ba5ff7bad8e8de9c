package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"authentico/internal/config"
	"authentico/internal/logging"
)

var (
	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "authentico",
	Short: "authentico - email-keyed users and pluggable permissions",
	Long: `authentico manages email-keyed user accounts and resolves permissions through
an ordered chain of backends (model grants, OPA policy, Casbin roles).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		log, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(createSuperuserCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(permsCmd)
	rootCmd.AddCommand(checkPermCmd)
}

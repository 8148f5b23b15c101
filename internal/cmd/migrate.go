package cmd

import (
	"github.com/spf13/cobra"

	"shopdesk.io/app/internal/platform/database"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/platform/schema"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update every table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, closeLog := logging.New(cfg.Log)
		defer closeLog.Close()

		db, err := database.Open(cfg.DB, log)
		if err != nil {
			return err
		}
		if err := schema.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		log.Info("schema migrated", "tables", len(schema.Models()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package commands

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the schema",
	Long:  `Creates the users, books, loans and refresh_tokens tables when missing. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := storeConfig()
		Info("applying schema to the %s store", cfg.DBDriver)
		if cfg.DBDriver == "sqlite" {
			Muted("  file: %s", cfg.SQLitePath)
		}
		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		Success("schema is up to date (%s)", db.DriverName())
		return nil
	},
}

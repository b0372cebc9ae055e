package commands

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/iliyamo/library-lending/internal/config"
	"github.com/iliyamo/library-lending/internal/database"
)

var (
	// Global flags
	dbDriver   string
	sqlitePath string
)

var rootCmd = &cobra.Command{
	Use:   "libctl",
	Short: "Administration tool for the library lending service",
	Long: `libctl manages the library lending store directly, without the HTTP API.

It reads the same DB_* and SQLITE_PATH settings as the server (including
an optional .env file) and can:
  - create or upgrade the schema
  - bootstrap an admin account
  - export the catalog or the loan history as CSV`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDriver, "driver", "", "store driver, mysql or sqlite (default from DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "SQLite database file (default from SQLITE_PATH)")

	rootCmd.AddCommand(migrateCmd, createAdminCmd, exportCmd)
}

// storeConfig merges the flags over the environment.
func storeConfig() config.Config {
	cfg := config.LoadStore()
	if dbDriver != "" {
		cfg.DBDriver = dbDriver
	}
	if sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
	}
	return cfg
}

// openStore opens the configured database and applies the schema.
func openStore(cmd *cobra.Command) (*sqlx.DB, error) {
	cfg := storeConfig()
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	if err := database.EnsureSchema(cmd.Context(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

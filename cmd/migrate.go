package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Taichi-iskw/ingest/internal/config"
	"github.com/Taichi-iskw/ingest/internal/repository"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

// migrateUpCmd applies every pending migration
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long:  `Apply the embedded schema migrations to the configured database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		dbConfig, err := cfg.ParseDatabaseConfig()
		if err != nil {
			return fmt.Errorf("failed to parse database config: %w", err)
		}

		version, dirty, err := repository.Migrate(dbConfig.URL())
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}

		logger.Info("Migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
		fmt.Printf("✅ Schema at version %d\n", version)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	rootCmd.AddCommand(migrateCmd)
}

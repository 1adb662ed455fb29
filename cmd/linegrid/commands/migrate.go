package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linegrid/linegrid/internal/logger"
	"github.com/linegrid/linegrid/pkg/config"
	"github.com/linegrid/linegrid/pkg/store/document/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending document-store migrations",
	Long: `Apply pending Postgres migrations for the document store.

This is the same migration machinery "serve" runs automatically when
database.auto_migrate is set; use this command to migrate ahead of a
deploy, or when auto_migrate is intentionally left off.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	logger.Configure(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output})

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, cfg.Database.DSN); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	store, err := postgres.New(ctx, postgres.Config{DSN: cfg.Database.DSN})
	if err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}
	defer store.Close()

	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Println("migrations completed successfully")
	return nil
}

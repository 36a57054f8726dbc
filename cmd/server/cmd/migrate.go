package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/get-me-through/server/internal/config"
	"github.com/get-me-through/server/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	downSteps      int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the application schema migrations and the River job queue
schema to the database named by DATABASE_URL.

Examples:
  # Apply all pending migrations
  server migrate

  # Roll back the last migration
  server migrate --down 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations()
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsPath, "path", "", "migrations directory (default: "+postgres.DefaultMigrationsPath+")")
	migrateCmd.Flags().IntVar(&downSteps, "down", 0, "roll back this many migrations instead of applying")
}

func runMigrations() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if downSteps > 0 {
		return postgres.MigrateDown(cfg.Database.URL, migrationsPath, downSteps)
	}

	if err := postgres.MigrateUp(cfg.Database.URL, migrationsPath); err != nil {
		return err
	}

	// River keeps its own schema for the job queue tables.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("init river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("migrate river schema: %w", err)
	}
	return nil
}

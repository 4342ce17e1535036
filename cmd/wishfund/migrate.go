package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/wishfund/internal/config"
	"github.com/Kerhoff/wishfund/pkg/logger"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *config.Database, cfg *config.Config) error {
			return db.Migrate(cfg.MigrationsPath)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [STEPS]",
	Short: "Roll back migrations, one step by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive number, got %q", args[0])
			}
			steps = n
		}
		return withDatabase(func(db *config.Database, cfg *config.Config) error {
			return db.MigrateDown(cfg.MigrationsPath, steps)
		})
	},
}

func withDatabase(fn func(db *config.Database, cfg *config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.StoreDriver != config.StorePostgres {
		return fmt.Errorf("migrations need the %s store, got %s", config.StorePostgres, cfg.StoreDriver)
	}

	l := logger.New(cfg.LogLevel)
	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return fn(db, cfg)
}

package migrate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/taskchat/taskchat/engine/infra/postgres"
	"github.com/taskchat/taskchat/engine/infra/repo"
	"github.com/taskchat/taskchat/engine/infra/sqlite"
	"github.com/taskchat/taskchat/pkg/config"
	"github.com/taskchat/taskchat/pkg/logger"
)

// NewMigrateCommand groups schema migration subcommands.
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(c *cobra.Command, _ []string) error {
				return run(c.Context(), Up)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied state of every migration",
			RunE: func(c *cobra.Command, _ []string) error {
				return run(c.Context(), Status)
			},
		},
	)
	return cmd
}

// Action is a migration operation against the configured store.
type Action string

const (
	Up     Action = "up"
	Status Action = "status"
)

func run(ctx context.Context, action Action) error {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return fmt.Errorf("configuration missing from context")
	}
	if err := Run(ctx, &cfg.Database, action); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Migration command completed", "action", action, "driver", cfg.Database.Driver)
	return nil
}

// Run executes action against the database described by cfg.
func Run(ctx context.Context, cfg *config.DatabaseConfig, action Action) error {
	switch cfg.Driver {
	case repo.DriverPostgres:
		dsn := repo.PostgresConfig(cfg).DSN()
		if action == Status {
			return postgres.MigrationStatus(ctx, dsn)
		}
		return postgres.ApplyMigrationsWithLock(ctx, dsn)
	case repo.DriverSQLite, "":
		store, err := sqlite.NewStore(ctx, repo.SQLiteConfig(cfg))
		if err != nil {
			return err
		}
		defer store.Close(ctx)
		if action == Status {
			return sqlite.MigrationStatus(ctx, store.DB())
		}
		return sqlite.ApplyMigrations(ctx, store.DB())
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// With --status it only reports migration state; with --rollback it undoes the latest migration.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Database.Path
	r.logger.Info("initializing database", "path", path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	switch {
	case cmd.Bool("rollback"):
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return r.writeMigrationStatus(db)
	case cmd.Bool("status"):
		return r.writeMigrationStatus(db)
	}

	r.logger.Info("running database migrations")
	applied, err := shared.MigrateUp(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, m := range applied {
		r.writePlainln("applied %04d %s", m.Version, m.Name)
	}
	r.logger.Infof("setup complete for database: %v", path)
	return r.writePlainln(ui.Styles().Success(fmt.Sprintf("✓ Database ready (%d migrations applied)", len(applied))))
}

func (r *Runner) writeMigrationStatus(db *sql.DB) error {
	statuses, err := shared.MigrationStatuses(db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	for _, s := range statuses {
		if err := r.writePlainln("%04d  %-28s %s", s.Version, s.Name, formatApplied(s.AppliedAt)); err != nil {
			return err
		}
	}
	return nil
}

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlainln(ui.Styles().Success("✓ Config written to " + path))
	return r.writePlainln("Set credentials.spotify.access_token or export %s before syncing.", shared.AccessTokenEnv)
}

func formatApplied(at *time.Time) string {
	if at == nil {
		return "pending"
	}
	return at.UTC().Format(time.DateTime)
}

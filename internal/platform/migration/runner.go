// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration provides a thin wrapper around golang-migrate for
// running database schema migrations.
//
// # Architecture
//
// The SQL files are embedded in the binary (one directory per driver) and
// served through the iofs source, so the server and the `migrate` command
// never depend on a migrations directory being present on disk.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/postgres/*.sql sql/sqlite/*.sql
var migrations embed.FS

// Direction selects which way to move the schema.
type Direction string

const (
	// Up applies every pending migration.
	Up Direction = "up"
	// Down reverts the most recent migration.
	Down Direction = "down"
)

// RunPostgres applies migrations to the PostgreSQL database at dsn.
//
// # Parameters
//   - dsn: A postgres:// or postgresql:// URL (rewritten to pgx5://).
//   - direction: [Up] or [Down].
//   - logger: Structured logger for migration events.
func RunPostgres(dsn string, direction Direction, logger *slog.Logger) error {
	source, err := iofs.New(migrations, "sql/postgres")
	if err != nil {
		return fmt.Errorf("migration: failed to open embedded source: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, convertToPgx5DSN(dsn))
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if sourceError != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
		}
		if dbError != nil {
			logger.Error("migration_db_close_failed", slog.Any("error", dbError))
		}
	}()

	return run(migrator, direction, "postgres", logger)
}

// RunSQLite applies migrations to an already opened SQLite handle.
//
// The handle is owned by the caller and stays open afterwards.
func RunSQLite(db *sql.DB, direction Direction, logger *slog.Logger) error {
	source, err := iofs.New(migrations, "sql/sqlite")
	if err != nil {
		return fmt.Errorf("migration: failed to open embedded source: %w", err)
	}
	defer source.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration: failed to wrap sqlite handle: %w", err)
	}

	// migrator.Close would close the caller's *sql.DB through the driver.
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}

	return run(migrator, direction, "sqlite", logger)
}

func run(migrator *migrate.Migrate, direction Direction, driver string, logger *slog.Logger) error {
	migrator.Log = &migrateLogger{logger: logger}

	currentVersion, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to get current version: %w", err)
	}

	if isDirty {
		return fmt.Errorf("migration: database is in a dirty state at version %d (manual intervention required)", currentVersion)
	}

	logger.Info("migration_started",
		slog.String("driver", driver),
		slog.String("direction", string(direction)),
		slog.Int("current_version", int(currentVersion)),
	)

	switch direction {
	case Up:
		err = migrator.Up()
	case Down:
		err = migrator.Steps(-1)
	default:
		return fmt.Errorf("migration: unknown direction %q", direction)
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migration_already_up_to_date", slog.String("driver", driver))
			return nil
		}
		return fmt.Errorf("migration: %s failed: %w", direction, err)
	}

	newVersion, _, _ := migrator.Version()
	logger.Info("migration_successful",
		slog.String("driver", driver),
		slog.Int("from_version", int(currentVersion)),
		slog.Int("to_version", int(newVersion)),
	)

	return nil
}

// convertToPgx5DSN ensures the DSN uses the pgx5:// scheme required by golang-migrate/v4.
func convertToPgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.verbose
}

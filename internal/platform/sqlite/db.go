// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sqlite opens the single-file SQLite credential store used for
// single-node deployments and tests.
//
// # Concurrency
//
// SQLite allows one writer at a time. The pool is capped at one connection so
// every transaction is serialized in-process, which makes the reset-code
// compare-and-swap race free without relying on busy retries.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// Pure Go SQLite driver, registers "sqlite".
	_ "modernc.org/sqlite"
)

const pingTimeout = 2 * time.Second

// Open creates (if needed) and opens the database file at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite_database_opened", slog.String("path", path))
	return db, nil
}

// Ping verifies that the database handle is usable.
func Ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

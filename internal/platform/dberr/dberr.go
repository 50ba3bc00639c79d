// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
//
// Both store drivers go through [Wrap], so services only ever compare against
// [ErrNotFound] and [ErrConflict] and never see pgx or SQLite types.
package dberr

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/taibuivan/ecgscan/internal/platform/apperr"
)

var (
	// ErrNotFound is returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")

	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = apperr.Conflict("Resource already exists")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// # Parameters
//   - err: The raw driver error.
//   - action: A snake_case label recorded in the internal cause (e.g. "sqlite_user_repo_create").
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping (pgx and database/sql)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Unique violations
	if IsUniqueViolation(err) {
		return ErrConflict
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(fmt.Errorf("%s_failed: %w", action, err))
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// either PostgreSQL (SQLSTATE 23505) or SQLite.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}

	return false
}

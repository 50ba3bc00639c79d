// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taibuivan/ecgscan/internal/platform/database/schema"
	"github.com/taibuivan/ecgscan/internal/platform/dberr"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/pagination"
	"github.com/taibuivan/ecgscan/pkg/pointer"
)

// SQLite stores instants as unix milliseconds and booleans as 0/1. The email
// columns are declared COLLATE NOCASE, so plain equality is case-insensitive.

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// # User Repository

// SQLiteUserRepository implements [UserRepository] on a single-file database.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a SQLite implementation of [UserRepository].
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func scanSQLiteUser(row rowScanner) (*User, error) {
	var (
		user                 = &User{}
		role                 string
		lastLogin            sql.NullInt64
		createdAt, updatedAt int64
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&role,
		&user.IsActive,
		&lastLogin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = sec.UserRole(role)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	if lastLogin.Valid {
		user.LastLoginAt = pointer.To(fromMillis(lastLogin.Int64))
	}
	return user, nil
}

// FindByID retrieves an identity by primary key.
func (repository *SQLiteUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		schema.UserAccount.Select(), schema.UserAccount.SQLiteTable, schema.UserAccount.ID)

	user, err := scanSQLiteUser(repository.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "sqlite_user_repo_find_by_id")
	}
	return user, nil
}

// FindByEmail retrieves an identity by email, ignoring case.
func (repository *SQLiteUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		schema.UserAccount.Select(), schema.UserAccount.SQLiteTable, schema.UserAccount.Email)

	user, err := scanSQLiteUser(repository.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, "sqlite_user_repo_find_by_email")
	}
	return user, nil
}

// Create persists a new identity.
func (repository *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		schema.UserAccount.SQLiteTable,
		schema.UserAccount.ID, schema.UserAccount.Email, schema.UserAccount.Password, schema.UserAccount.Name,
		schema.UserAccount.Role, schema.UserAccount.IsActive, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
	)

	_, err := repository.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		string(user.Role),
		user.IsActive,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	return dberr.Wrap(err, "sqlite_user_repo_create")
}

// TouchLastLogin stamps lastloginat for userID.
func (repository *SQLiteUserRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`,
		schema.UserAccount.SQLiteTable, schema.UserAccount.LastLoginAt, schema.UserAccount.ID)

	_, err := repository.db.ExecContext(ctx, query, toMillis(at), userID)
	return dberr.Wrap(err, "sqlite_user_repo_touch_last_login")
}

// CountByRole returns the number of identities holding role.
func (repository *SQLiteUserRepository) CountByRole(ctx context.Context, role sec.UserRole) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = ?`,
		schema.UserAccount.SQLiteTable, schema.UserAccount.Role)

	var total int
	if err := repository.db.QueryRowContext(ctx, query, string(role)).Scan(&total); err != nil {
		return 0, dberr.Wrap(err, "sqlite_user_repo_count_by_role")
	}
	return total, nil
}

// List returns a page of identities other than excludeID, newest first.
func (repository *SQLiteUserRepository) List(ctx context.Context, excludeID string, params pagination.Params) ([]*User, int, error) {
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s <> ?`,
		schema.UserAccount.SQLiteTable, schema.UserAccount.ID)

	var total int
	if err := repository.db.QueryRowContext(ctx, countQuery, excludeID).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "sqlite_user_repo_count")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s <> ?
		ORDER BY %s DESC, %s DESC
		LIMIT ? OFFSET ?`,
		schema.UserAccount.Select(), schema.UserAccount.SQLiteTable,
		schema.UserAccount.ID,
		schema.UserAccount.CreatedAt, schema.UserAccount.ID,
	)

	rows, err := repository.db.QueryContext(ctx, query, excludeID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err, "sqlite_user_repo_list")
	}
	defer rows.Close()

	users := make([]*User, 0, params.Limit)
	for rows.Next() {
		user, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "sqlite_user_repo_scan")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "sqlite_user_repo_list")
	}

	return users, total, nil
}

// # Reset Repository

// SQLiteResetRepository implements [ResetRepository] on a single-file database.
type SQLiteResetRepository struct {
	db *sql.DB
}

// NewSQLiteResetRepository creates a SQLite implementation of [ResetRepository].
func NewSQLiteResetRepository(db *sql.DB) *SQLiteResetRepository {
	return &SQLiteResetRepository{db: db}
}

func scanSQLiteReset(row rowScanner) (*ResetRequest, error) {
	var (
		request              = &ResetRequest{}
		expiresAt, createdAt int64
	)

	err := row.Scan(
		&request.ID,
		&request.UserID,
		&request.Email,
		&request.Code,
		&expiresAt,
		&request.IsUsed,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	request.ExpiresAt = fromMillis(expiresAt)
	request.CreatedAt = fromMillis(createdAt)
	return request, nil
}

// FindActive returns the unconsumed, unexpired request for email.
func (repository *SQLiteResetRepository) FindActive(ctx context.Context, email string, now time.Time) (*ResetRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = ? AND %s = 0 AND %s > ?`,
		schema.PasswordReset.Select(), schema.PasswordReset.SQLiteTable,
		schema.PasswordReset.Email, schema.PasswordReset.IsUsed, schema.PasswordReset.ExpiresAt,
	)

	request, err := scanSQLiteReset(repository.db.QueryRowContext(ctx, query, email, toMillis(now)))
	if err != nil {
		return nil, dberr.Wrap(err, "sqlite_reset_repo_find_active")
	}
	return request, nil
}

// FindActiveByCode returns the active request for email whose code matches exactly.
func (repository *SQLiteResetRepository) FindActiveByCode(ctx context.Context, email, code string, now time.Time) (*ResetRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = ? AND %s = ? AND %s = 0 AND %s > ?`,
		schema.PasswordReset.Select(), schema.PasswordReset.SQLiteTable,
		schema.PasswordReset.Email, schema.PasswordReset.Code, schema.PasswordReset.IsUsed, schema.PasswordReset.ExpiresAt,
	)

	request, err := scanSQLiteReset(repository.db.QueryRowContext(ctx, query, email, code, toMillis(now)))
	if err != nil {
		return nil, dberr.Wrap(err, "sqlite_reset_repo_find_active_by_code")
	}
	return request, nil
}

// Create retires expired requests for the email and inserts the new one.
func (repository *SQLiteResetRepository) Create(ctx context.Context, request *ResetRequest, now time.Time) error {
	transaction, err := repository.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Wrap(err, "sqlite_reset_repo_begin")
	}
	defer transaction.Rollback()

	retire := fmt.Sprintf(`
		UPDATE %s SET %s = 1
		WHERE %s = ? AND %s = 0 AND %s <= ?`,
		schema.PasswordReset.SQLiteTable, schema.PasswordReset.IsUsed,
		schema.PasswordReset.Email, schema.PasswordReset.IsUsed, schema.PasswordReset.ExpiresAt,
	)
	if _, err := transaction.ExecContext(ctx, retire, request.Email, toMillis(now)); err != nil {
		return dberr.Wrap(err, "sqlite_reset_repo_retire_expired")
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		schema.PasswordReset.SQLiteTable,
		schema.PasswordReset.ID, schema.PasswordReset.UserID, schema.PasswordReset.Email, schema.PasswordReset.Code,
		schema.PasswordReset.ExpiresAt, schema.PasswordReset.IsUsed, schema.PasswordReset.CreatedAt,
	)
	_, err = transaction.ExecContext(ctx, insert,
		request.ID,
		request.UserID,
		request.Email,
		request.Code,
		toMillis(request.ExpiresAt),
		toMillis(request.CreatedAt),
	)
	if err != nil {
		return dberr.Wrap(err, "sqlite_reset_repo_create")
	}

	return dberr.Wrap(transaction.Commit(), "sqlite_reset_repo_commit")
}

// Delete removes a request by ID. A missing row is not an error.
func (repository *SQLiteResetRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, schema.PasswordReset.SQLiteTable, schema.PasswordReset.ID)
	_, err := repository.db.ExecContext(ctx, query, id)
	return dberr.Wrap(err, "sqlite_reset_repo_delete")
}

// Consume runs the finalize transaction.
func (repository *SQLiteResetRepository) Consume(ctx context.Context, input ConsumeInput) error {
	transaction, err := repository.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Wrap(err, "sqlite_reset_repo_begin")
	}
	defer transaction.Rollback()

	// ── 1. Claim the request ─────────────────────────────────────────────
	claim := fmt.Sprintf(`
		UPDATE %s SET %s = 1
		WHERE %s = ? AND %s = 0 AND %s > ?`,
		schema.PasswordReset.SQLiteTable, schema.PasswordReset.IsUsed,
		schema.PasswordReset.ID, schema.PasswordReset.IsUsed, schema.PasswordReset.ExpiresAt,
	)
	if err := execOne(ctx, transaction, ErrResetNotActive, "sqlite_reset_repo_claim", claim, input.RequestID, toMillis(input.Now)); err != nil {
		return err
	}

	// ── 2. Replace the password hash ─────────────────────────────────────
	update := fmt.Sprintf(`UPDATE %s SET %s = ?, %s = ? WHERE %s = ?`,
		schema.UserAccount.SQLiteTable, schema.UserAccount.Password, schema.UserAccount.UpdatedAt, schema.UserAccount.ID)
	if err := execOne(ctx, transaction, ErrUserNotFound, "sqlite_reset_repo_update_password", update, input.PasswordHash, toMillis(input.Now), input.UserID); err != nil {
		return err
	}

	// ── 3. Retire siblings ───────────────────────────────────────────────
	retire := fmt.Sprintf(`UPDATE %s SET %s = 1 WHERE %s = ? AND %s = 0`,
		schema.PasswordReset.SQLiteTable, schema.PasswordReset.IsUsed,
		schema.PasswordReset.Email, schema.PasswordReset.IsUsed,
	)
	if _, err := transaction.ExecContext(ctx, retire, input.Email); err != nil {
		return dberr.Wrap(err, "sqlite_reset_repo_retire_siblings")
	}

	return dberr.Wrap(transaction.Commit(), "sqlite_reset_repo_commit")
}

// execOne runs a statement that must affect exactly one row, returning missing otherwise.
func execOne(ctx context.Context, transaction *sql.Tx, missing error, action, query string, args ...any) error {
	result, err := transaction.ExecContext(ctx, query, args...)
	if err != nil {
		return dberr.Wrap(err, action)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, action)
	}
	if affected == 0 {
		return missing
	}
	return nil
}

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/ecgscan/internal/platform/database/schema"
	"github.com/taibuivan/ecgscan/internal/platform/dberr"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/pagination"
)

// # User Repository

// PostgresUserRepository implements [UserRepository] using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a PostgreSQL implementation of [UserRepository].
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func scanPostgresUser(row pgx.Row) (*User, error) {
	user := &User{}
	var role string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&role,
		&user.IsActive,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = sec.UserRole(role)
	return user, nil
}

// FindByID retrieves an identity by primary key.
func (repository *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		schema.UserAccount.Select(), schema.UserAccount.Table, schema.UserAccount.ID)

	user, err := scanPostgresUser(repository.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_id")
	}
	return user, nil
}

// FindByEmail retrieves an identity by email, ignoring case.
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE LOWER(%s) = LOWER($1)`,
		schema.UserAccount.Select(), schema.UserAccount.Table, schema.UserAccount.Email)

	user, err := scanPostgresUser(repository.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_repo_find_by_email")
	}
	return user, nil
}

/*
Create persists a new identity into the users.account table.

The case-insensitive unique index on email turns a duplicate into
[dberr.ErrConflict].
*/
func (repository *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		schema.UserAccount.Table,
		schema.UserAccount.ID, schema.UserAccount.Email, schema.UserAccount.Password, schema.UserAccount.Name,
		schema.UserAccount.Role, schema.UserAccount.IsActive, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
	)

	_, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		string(user.Role),
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return dberr.Wrap(err, "postgres_user_repo_create")
}

// TouchLastLogin stamps lastloginat for userID.
func (repository *PostgresUserRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.LastLoginAt, schema.UserAccount.ID)

	_, err := repository.pool.Exec(ctx, query, userID, at)
	return dberr.Wrap(err, "postgres_user_repo_touch_last_login")
}

// CountByRole returns the number of identities holding role.
func (repository *PostgresUserRepository) CountByRole(ctx context.Context, role sec.UserRole) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.Role)

	var total int
	if err := repository.pool.QueryRow(ctx, query, string(role)).Scan(&total); err != nil {
		return 0, dberr.Wrap(err, "postgres_user_repo_count_by_role")
	}
	return total, nil
}

// List returns a page of identities other than excludeID, newest first.
func (repository *PostgresUserRepository) List(ctx context.Context, excludeID string, params pagination.Params) ([]*User, int, error) {
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s <> $1`,
		schema.UserAccount.Table, schema.UserAccount.ID)

	var total int
	if err := repository.pool.QueryRow(ctx, countQuery, excludeID).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "postgres_user_repo_count")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s <> $1
		ORDER BY %s DESC, %s DESC
		LIMIT $2 OFFSET $3`,
		schema.UserAccount.Select(), schema.UserAccount.Table,
		schema.UserAccount.ID,
		schema.UserAccount.CreatedAt, schema.UserAccount.ID,
	)

	rows, err := repository.pool.Query(ctx, query, excludeID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err, "postgres_user_repo_list")
	}
	defer rows.Close()

	users := make([]*User, 0, params.Limit)
	for rows.Next() {
		user, err := scanPostgresUser(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "postgres_user_repo_scan")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "postgres_user_repo_list")
	}

	return users, total, nil
}

// # Reset Repository

// PostgresResetRepository implements [ResetRepository] using pgx.
//
// Callers pass normalized (lowercase) emails, so lookups compare the raw
// column and stay on uq_passwordreset_active_email / idx_passwordreset_email_code.
type PostgresResetRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresResetRepository creates a PostgreSQL implementation of [ResetRepository].
func NewPostgresResetRepository(pool *pgxpool.Pool) *PostgresResetRepository {
	return &PostgresResetRepository{pool: pool}
}

func scanPostgresReset(row pgx.Row) (*ResetRequest, error) {
	request := &ResetRequest{}
	err := row.Scan(
		&request.ID,
		&request.UserID,
		&request.Email,
		&request.Code,
		&request.ExpiresAt,
		&request.IsUsed,
		&request.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return request, nil
}

// FindActive returns the unconsumed, unexpired request for email.
func (repository *PostgresResetRepository) FindActive(ctx context.Context, email string, now time.Time) (*ResetRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = $1 AND %s = FALSE AND %s > $2`,
		schema.PasswordReset.Select(), schema.PasswordReset.Table,
		schema.PasswordReset.Email, schema.PasswordReset.IsUsed, schema.PasswordReset.ExpiresAt,
	)

	request, err := scanPostgresReset(repository.pool.QueryRow(ctx, query, email, now))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_reset_repo_find_active")
	}
	return request, nil
}

// FindActiveByCode returns the active request for email whose code matches exactly.
func (repository *PostgresResetRepository) FindActiveByCode(ctx context.Context, email, code string, now time.Time) (*ResetRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = $1 AND %s = $2 AND %s = FALSE AND %s > $3`,
		schema.PasswordReset.Select(), schema.PasswordReset.Table,
		schema.PasswordReset.Email, schema.PasswordReset.Code, schema.PasswordReset.IsUsed, schema.PasswordReset.ExpiresAt,
	)

	request, err := scanPostgresReset(repository.pool.QueryRow(ctx, query, email, code, now))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_reset_repo_find_active_by_code")
	}
	return request, nil
}

/*
Create retires expired requests for the email and inserts the new one.

The partial unique index on unconsumed rows rejects a second active request,
which surfaces as [dberr.ErrConflict].
*/
func (repository *PostgresResetRepository) Create(ctx context.Context, request *ResetRequest, now time.Time) error {
	transaction, err := repository.pool.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err, "postgres_reset_repo_begin")
	}
	defer transaction.Rollback(ctx)

	retire := fmt.Sprintf(`
		UPDATE %s SET %s = TRUE
		WHERE %s = $1 AND %s = FALSE AND %s <= $2`,
		schema.PasswordReset.Table, schema.PasswordReset.IsUsed,
		schema.PasswordReset.Email, schema.PasswordReset.IsUsed, schema.PasswordReset.ExpiresAt,
	)
	if _, err := transaction.Exec(ctx, retire, request.Email, now); err != nil {
		return dberr.Wrap(err, "postgres_reset_repo_retire_expired")
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		schema.PasswordReset.Table,
		schema.PasswordReset.ID, schema.PasswordReset.UserID, schema.PasswordReset.Email, schema.PasswordReset.Code,
		schema.PasswordReset.ExpiresAt, schema.PasswordReset.IsUsed, schema.PasswordReset.CreatedAt,
	)
	_, err = transaction.Exec(ctx, insert,
		request.ID,
		request.UserID,
		request.Email,
		request.Code,
		request.ExpiresAt,
		request.CreatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "postgres_reset_repo_create")
	}

	return dberr.Wrap(transaction.Commit(ctx), "postgres_reset_repo_commit")
}

// Delete removes a request by ID. A missing row is not an error.
func (repository *PostgresResetRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.PasswordReset.Table, schema.PasswordReset.ID)
	_, err := repository.pool.Exec(ctx, query, id)
	return dberr.Wrap(err, "postgres_reset_repo_delete")
}

// Consume runs the finalize transaction. The conditional UPDATE on isused is
// the serialization point between concurrent finalize calls.
func (repository *PostgresResetRepository) Consume(ctx context.Context, input ConsumeInput) error {
	return pgx.BeginFunc(ctx, repository.pool, func(transaction pgx.Tx) error {

		// ── 1. Claim the request ─────────────────────────────────────────────
		claim := fmt.Sprintf(`
			UPDATE %s SET %s = TRUE
			WHERE %s = $1 AND %s = FALSE AND %s > $2`,
			schema.PasswordReset.Table, schema.PasswordReset.IsUsed,
			schema.PasswordReset.ID, schema.PasswordReset.IsUsed, schema.PasswordReset.ExpiresAt,
		)
		result, err := transaction.Exec(ctx, claim, input.RequestID, input.Now)
		if err != nil {
			return dberr.Wrap(err, "postgres_reset_repo_claim")
		}
		if result.RowsAffected() == 0 {
			return ErrResetNotActive
		}

		// ── 2. Replace the password hash ─────────────────────────────────────
		update := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1`,
			schema.UserAccount.Table, schema.UserAccount.Password, schema.UserAccount.UpdatedAt, schema.UserAccount.ID)
		result, err = transaction.Exec(ctx, update, input.UserID, input.PasswordHash, input.Now)
		if err != nil {
			return dberr.Wrap(err, "postgres_reset_repo_update_password")
		}
		if result.RowsAffected() == 0 {
			return ErrUserNotFound
		}

		// ── 3. Retire siblings ───────────────────────────────────────────────
		retire := fmt.Sprintf(`
			UPDATE %s SET %s = TRUE
			WHERE %s = $1 AND %s = FALSE`,
			schema.PasswordReset.Table, schema.PasswordReset.IsUsed,
			schema.PasswordReset.Email, schema.PasswordReset.IsUsed,
		)
		if _, err := transaction.Exec(ctx, retire, input.Email); err != nil {
			return dberr.Wrap(err, "postgres_reset_repo_retire_siblings")
		}

		return nil
	})
}

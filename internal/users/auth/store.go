// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/pagination"
)

// # Identity Data Access

// UserRepository defines the data access contract for identities.
//
// Email lookups are case-insensitive in every implementation.
type UserRepository interface {

	/*
		FindByID returns the identity with the given ID.

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or storage failures
	*/
	FindByID(ctx context.Context, id string) (*User, error)

	/*
		FindByEmail returns the identity registered under email.

		Returns:
		  - *User: Hydrated entity
		  - error: dberr.ErrNotFound or storage failures
	*/
	FindByEmail(ctx context.Context, email string) (*User, error)

	/*
		Create persists a brand-new identity.

		Returns:
		  - error: dberr.ErrConflict when the email is taken, or storage failures
	*/
	Create(ctx context.Context, user *User) error

	// TouchLastLogin stamps the last successful authentication time.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// CountByRole returns how many identities hold role.
	CountByRole(ctx context.Context, role sec.UserRole) (int, error)

	/*
		List returns one page of identities ordered by creation time, newest
		first, skipping excludeID.

		Returns:
		  - []*User: Page content
		  - int: Total matching rows across all pages
		  - error: Storage failures
	*/
	List(ctx context.Context, excludeID string, params pagination.Params) ([]*User, int, error)
}

// # Reset Request Data Access

// ConsumeInput describes one atomic finalize operation.
type ConsumeInput struct {
	RequestID    string
	UserID       string
	Email        string
	PasswordHash string
	Now          time.Time
}

// ResetRepository defines the data access contract for reset requests.
//
// Every read re-queries the store. Implementations never cache rows.
type ResetRepository interface {

	// FindActive returns the unconsumed request for email with now < expiry.
	// It returns dberr.ErrNotFound when there is none.
	FindActive(ctx context.Context, email string, now time.Time) (*ResetRequest, error)

	// FindActiveByCode is [ResetRepository.FindActive] restricted to an exact code match.
	FindActiveByCode(ctx context.Context, email, code string, now time.Time) (*ResetRequest, error)

	/*
		Create retires expired unconsumed requests for the email and inserts
		request, in one transaction.

		Returns:
		  - error: dberr.ErrConflict when another active request already exists
	*/
	Create(ctx context.Context, request *ResetRequest, now time.Time) error

	// Delete removes a request that was never delivered.
	Delete(ctx context.Context, id string) error

	/*
		Consume executes the finalize transaction:
		  1. Flip the request from unconsumed to consumed, only if still active at Now.
		  2. Replace the identity's password hash.
		  3. Mark every other unconsumed request for the email consumed.

		Returns:
		  - error: ErrResetNotActive if step 1 matched no row, ErrUserNotFound if
		    step 2 matched no row. Nothing is written in either case.
	*/
	Consume(ctx context.Context, input ConsumeInput) error
}

// # Attempt Throttling

// AttemptLimiter counts reset attempts per email within a fixed window.
type AttemptLimiter interface {
	// Allow records one attempt for key and returns a RATE_LIMITED error once the
	// window's budget is spent.
	Allow(ctx context.Context, key string) error
}

// noopLimiter allows every attempt. Used when Redis is not configured.
type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, string) error { return nil }

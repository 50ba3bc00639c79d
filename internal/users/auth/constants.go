// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/taibuivan/ecgscan/internal/platform/apperr"
)

// # Credential Policy

const (
	// MinPasswordLength applies to both signup and password reset.
	MinPasswordLength = 6

	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72

	// MaxNameLength bounds the display name after sanitation.
	MaxNameLength = 120

	// ResetCodeDigits is the fixed width of reset codes.
	ResetCodeDigits = 6

	// DefaultResetCodeTTL is how long a reset code stays usable.
	DefaultResetCodeTTL = 15 * time.Minute
)

// # Payload Fields

const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldNewPassword = "newPassword"
	FieldCode        = "code"
	FieldVerified    = "verified"
)

// # Metric Labels

const (
	LoginResultSuccess  = "success"
	LoginResultFailure  = "failure"
	LoginResultInactive = "inactive"

	ResetEventRequested      = "requested"
	ResetEventReused         = "reused"
	ResetEventUnknown        = "unknown"
	ResetEventVerified       = "verified"
	ResetEventRejected       = "rejected"
	ResetEventFinalized      = "finalized"
	ResetEventDispatchFailed = "dispatch_failed"
	ResetEventThrottled      = "throttled"
)

// # Domain Errors

var (
	// ErrInvalidCredentials is returned for any failed login. The message never
	// tells whether the email exists.
	ErrInvalidCredentials = apperr.New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")

	// ErrInvalidOrExpiredCode is returned when no active reset request matches.
	ErrInvalidOrExpiredCode = apperr.New(http.StatusBadRequest, "INVALID_OR_EXPIRED_CODE", "Invalid or expired reset code")

	// ErrEmailTaken is returned when signup collides with an existing identity.
	ErrEmailTaken = apperr.Conflict("Email is already registered")

	// ErrUserNotFound is returned by finalize when the reset target vanished.
	ErrUserNotFound = apperr.NotFound("User")

	// ErrResetNotActive is returned by [ResetRepository.Consume] when the
	// request was consumed or expired between read and write.
	ErrResetNotActive = apperr.New(http.StatusBadRequest, "RESET_NOT_ACTIVE", "Reset request is no longer active")

	// ErrDispatchFailed is returned when the reset code could not be handed to
	// the notification sink.
	ErrDispatchFailed = apperr.New(http.StatusInternalServerError, "RESET_DISPATCH_FAILED", "Failed to send reset code")
)

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/ecgscan/internal/notify"
	"github.com/taibuivan/ecgscan/internal/platform/apperr"
	"github.com/taibuivan/ecgscan/internal/platform/ctxutil"
	"github.com/taibuivan/ecgscan/internal/platform/dberr"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/mask"
	"github.com/taibuivan/ecgscan/pkg/uuid"
)

// # Password Recovery

// rollbackTimeout bounds the cleanup of a request whose dispatch failed.
const rollbackTimeout = 5 * time.Second

// ResetTicket is the client-visible result of a reset request. It is built
// the same way for registered and unknown emails.
type ResetTicket struct {
	MaskedEmail string `json:"maskedEmail"`
	UserName    string `json:"userName,omitempty"`
}

/*
RequestReset issues a reset code for email, or reuses the active one.

Flow:
 1. Unknown or inactive email: succeed without creating anything.
 2. Active request exists: succeed without creating or re-sending.
 3. Otherwise persist a new request and dispatch its code. A dispatch failure
    deletes the request again and returns [ErrDispatchFailed].

Returns:
  - *ResetTicket: Masked email (and name when disclosure is enabled)
  - error: RateLimited, ErrDispatchFailed, or storage errors
*/
func (service *Service) RequestReset(ctx context.Context, rawEmail string) (*ResetTicket, error) {
	logger := ctxutil.GetLogger(ctx)
	email := normalizeEmail(rawEmail)
	ticket := &ResetTicket{MaskedEmail: mask.Email(email)}

	if err := service.throttle(ctx, email); err != nil {
		return nil, err
	}

	// ── 1. Identity Lookup ───────────────────────────────────────────────
	user, err := service.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, dberr.ErrNotFound) {
		return nil, err
	}
	if err != nil || !user.IsActive {
		service.recorder.RecordResetEvent(ResetEventUnknown)
		logger.InfoContext(ctx, "password_reset_unknown_email", slog.String("email", ticket.MaskedEmail))
		return ticket, nil
	}

	if service.discloseName {
		ticket.UserName = user.Name
	}

	now := service.now()

	// ── 2. Idempotent Reuse ──────────────────────────────────────────────
	if _, err := service.resets.FindActive(ctx, email, now); err == nil {
		service.recorder.RecordResetEvent(ResetEventReused)
		logger.InfoContext(ctx, "password_reset_reused", slog.String("user_id", user.ID))
		return ticket, nil
	} else if !errors.Is(err, dberr.ErrNotFound) {
		return nil, err
	}

	// ── 3. Issue & Dispatch ──────────────────────────────────────────────
	code, err := service.generateCode()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_code_generation_failed: %w", err))
	}

	request := &ResetRequest{
		ID:        uuid.New(),
		UserID:    user.ID,
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(service.resetCodeTTL),
		CreatedAt: now,
	}

	if err := service.resets.Create(ctx, request, now); err != nil {
		if errors.Is(err, dberr.ErrConflict) {
			// A concurrent request for the same email won the insert.
			service.recorder.RecordResetEvent(ResetEventReused)
			return ticket, nil
		}
		return nil, err
	}

	notice := notify.Notice{Email: email, Name: user.Name, Code: code, ExpiresAt: request.ExpiresAt}
	if err := service.notifier.SendResetCode(ctx, notice); err != nil {
		service.recorder.RecordResetEvent(ResetEventDispatchFailed)
		logger.ErrorContext(ctx, "reset_dispatch_failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)

		if deleteErr := service.rollbackReset(ctx, request.ID); deleteErr != nil {
			logger.ErrorContext(ctx, "reset_rollback_failed",
				slog.String("request_id", request.ID),
				slog.Any("error", deleteErr),
			)
		}
		return nil, ErrDispatchFailed
	}

	service.recorder.RecordResetEvent(ResetEventRequested)
	logger.InfoContext(ctx, "password_reset_requested",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", request.ExpiresAt),
	)

	return ticket, nil
}

/*
VerifyCode checks that an active request for email carries code.

It never mutates the request, so clients may verify before finalizing.

Returns:
  - error: ErrInvalidOrExpiredCode, RateLimited, or storage errors
*/
func (service *Service) VerifyCode(ctx context.Context, rawEmail, code string) error {
	email := normalizeEmail(rawEmail)

	if err := service.throttle(ctx, email); err != nil {
		return err
	}

	if _, err := service.findActiveByCode(ctx, email, code); err != nil {
		return err
	}

	service.recorder.RecordResetEvent(ResetEventVerified)
	return nil
}

// FinalizeInput holds the data required to complete a reset.
type FinalizeInput struct {
	Email       string
	Code        string
	NewPassword string
}

/*
FinalizeReset consumes the matching request and replaces the password hash.

The store runs the claim, the hash update and the sibling cleanup in one
transaction. Of two concurrent calls with the same code exactly one succeeds;
the other gets [ErrInvalidOrExpiredCode].

Returns:
  - error: ValidationError (policy), ErrInvalidOrExpiredCode, ErrUserNotFound,
    RateLimited, or storage errors
*/
func (service *Service) FinalizeReset(ctx context.Context, input FinalizeInput) error {
	email := normalizeEmail(input.Email)

	if err := checkPasswordPolicy(FieldNewPassword, input.NewPassword); err != nil {
		return err
	}

	if err := service.throttle(ctx, email); err != nil {
		return err
	}

	request, err := service.findActiveByCode(ctx, email, input.Code)
	if err != nil {
		return err
	}

	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	hash, err := sec.HashPassword(input.NewPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	err = service.resets.Consume(ctx, ConsumeInput{
		RequestID:    request.ID,
		UserID:       user.ID,
		Email:        email,
		PasswordHash: hash,
		Now:          service.now(),
	})
	switch {
	case errors.Is(err, ErrResetNotActive):
		service.recorder.RecordResetEvent(ResetEventRejected)
		return ErrInvalidOrExpiredCode
	case err != nil:
		return err
	}

	service.recorder.RecordResetEvent(ResetEventFinalized)
	ctxutil.GetLogger(ctx).InfoContext(ctx, "password_reset_finalized", slog.String("user_id", user.ID))

	return nil
}

func (service *Service) findActiveByCode(ctx context.Context, email, code string) (*ResetRequest, error) {
	request, err := service.resets.FindActiveByCode(ctx, email, code, service.now())
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			service.recorder.RecordResetEvent(ResetEventRejected)
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, err
	}
	return request, nil
}

// rollbackReset deletes a request whose code never left the service. It runs
// detached from ctx so a cancelled or timed-out request still removes the row.
func (service *Service) rollbackReset(ctx context.Context, requestID string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	return service.resets.Delete(ctx, requestID)
}

func (service *Service) throttle(ctx context.Context, email string) error {
	if err := service.limiter.Allow(ctx, email); err != nil {
		service.recorder.RecordResetEvent(ResetEventThrottled)
		ctxutil.GetLogger(ctx).WarnContext(ctx, "password_reset_throttled", slog.String("email", mask.Email(email)))
		return err
	}
	return nil
}

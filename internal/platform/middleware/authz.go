// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/ecgscan/internal/platform/apperr"
	"github.com/taibuivan/ecgscan/internal/platform/constants"
	"github.com/taibuivan/ecgscan/internal/platform/ctxutil"
	"github.com/taibuivan/ecgscan/internal/platform/respond"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
)

// # Contracts

// TokenVerifier checks a bearer token at a given instant and returns its subject.
type TokenVerifier interface {
	Verify(token string, now time.Time) (string, error)
}

// IdentityResolver loads the current identity for a verified token subject.
//
// Implementations must return [sec.ErrUnknownSubject] when the subject no
// longer resolves to an active identity.
type IdentityResolver interface {
	ResolvePrincipal(ctx context.Context, subject string) (*sec.Principal, error)
}

// FailureRecorder counts rejected tokens by failure kind.
type FailureRecorder interface {
	RecordTokenFailure(kind string)
}

// # Guard

// Guard authenticates requests carrying 'Authorization: Bearer <token>'.
//
// # Flow
//  1. Extract the bearer token. Missing or badly shaped headers fail with 401.
//  2. Verify the token via [TokenVerifier] at the guard's current time.
//  3. Resolve the subject via [IdentityResolver]. Unknown subjects fail with 401.
//  4. Inject the [*sec.Principal] into the request context.
//
// Every failure short-circuits before the wrapped handler runs.
type Guard struct {
	verifier TokenVerifier
	resolver IdentityResolver
	recorder FailureRecorder
	now      func() time.Time
}

// NewGuard constructs a [Guard]. A nil recorder disables failure counting and
// a nil clock defaults to [time.Now].
func NewGuard(verifier TokenVerifier, resolver IdentityResolver, recorder FailureRecorder, clock func() time.Time) *Guard {
	if clock == nil {
		clock = time.Now
	}
	return &Guard{
		verifier: verifier,
		resolver: resolver,
		recorder: recorder,
		now:      clock,
	}
}

// Authenticate is the strict authentication middleware. Anonymous requests
// never reach next.
func (guard *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal, err := guard.authenticate(request)
		if err != nil {
			guard.reject(writer, request, err)
			return
		}

		noteUserID(writer, principal.UserID)
		ctx := ctxutil.WithPrincipal(request.Context(), principal)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

func (guard *Guard) authenticate(request *http.Request) (*sec.Principal, error) {

	// ── 1. Header Extraction ─────────────────────────────────────────────
	token, err := bearerToken(request.Header.Get(constants.HeaderAuthorization))
	if err != nil {
		return nil, err
	}

	// ── 2. Token Verification ────────────────────────────────────────────
	subject, err := guard.verifier.Verify(token, guard.now())
	if err != nil {
		return nil, err
	}

	// ── 3. Identity Resolution ───────────────────────────────────────────
	return guard.resolver.ResolvePrincipal(request.Context(), subject)
}

func (guard *Guard) reject(writer http.ResponseWriter, request *http.Request, err error) {
	appErr := apperr.As(err)
	if appErr == nil || appErr.HTTPStatus != http.StatusUnauthorized {
		// Store failures during resolution are server errors, not auth failures.
		respond.Error(writer, request, err)
		return
	}

	kind := sec.FailureKind(err)
	if guard.recorder != nil {
		guard.recorder.RecordTokenFailure(kind)
	}

	ctxutil.GetLogger(request.Context()).InfoContext(request.Context(), "auth_token_rejected",
		slog.String("kind", kind),
	)

	respond.Error(writer, request, err)
}

// bearerToken splits an Authorization header of the form "Bearer <token>".
func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", sec.ErrTokenMissing
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], constants.BearerScheme) {
		return "", sec.ErrTokenMalformed
	}

	return parts[1], nil
}

// # Authorization

// RequireRole blocks requests whose principal does not hold the required role.
//
// # Usage
//
// Must be registered AFTER [Guard.Authenticate]. If no principal is present
// the request is answered with 401, so authentication failures are always
// reported before authorization failures.
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetPrincipal(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !principal.Role.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("Admin access required"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

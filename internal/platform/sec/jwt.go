// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, token signing,
// reset-code generation) from the domain logic. The auth service and the
// access guard depend on it through small interfaces.
//
// # Tokens
//
// Session tokens are HS256-signed JWTs carrying only the subject identity
// and the issue/expiry instants. They are not persisted and cannot be revoked
// before expiry.
package sec

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/ecgscan/internal/platform/apperr"
)

// MinSecretLength is the minimum HMAC key size accepted by [NewTokenService].
const MinSecretLength = 32

// # Failure Kinds

var (
	// ErrTokenMissing is returned when no Authorization header is present.
	ErrTokenMissing = apperr.New(http.StatusUnauthorized, "TOKEN_MISSING", "Token is missing")

	// ErrTokenMalformed is returned when the header or token cannot be parsed.
	ErrTokenMalformed = apperr.New(http.StatusUnauthorized, "TOKEN_MALFORMED", "Token is malformed")

	// ErrTokenBadSignature is returned when the MAC does not verify against the secret.
	ErrTokenBadSignature = apperr.New(http.StatusUnauthorized, "TOKEN_INVALID", "Token is invalid")

	// ErrTokenExpired is returned when the current time is at or past the embedded expiry.
	ErrTokenExpired = apperr.New(http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired")

	// ErrUnknownSubject is returned when the subject no longer resolves to an active identity.
	ErrUnknownSubject = apperr.New(http.StatusUnauthorized, "UNKNOWN_SUBJECT", "User not found")
)

// FailureKind maps a token failure to a short label for metrics and logs.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "missing"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	default:
		return "other"
	}
}

// # Token Service

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a new TokenService.
//
// # Parameters
//   - secret: HMAC key, at least [MinSecretLength] bytes.
//   - issuer: Value of the 'iss' claim; verification rejects other issuers.
//   - ttl: Validity window added to the issue instant.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("sec: token secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("sec: token ttl must be positive")
	}

	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// TTL returns the validity window of issued tokens.
func (service *TokenService) TTL() time.Duration {
	return service.ttl
}

// Issue signs a token for subject, valid from now until now + ttl.
//
// JWT numeric dates have second precision, so the returned expiry is
// truncated to the second exactly as it is embedded in the token.
func (service *TokenService) Issue(subject string, now time.Time) (string, time.Time, error) {
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(service.ttl))

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    service.issuer,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, expiresAt.Time, nil
}

// Verify checks the signature and expiry of tokenString at the instant now
// and returns the subject identity reference.
//
// # Returns
//   - [ErrTokenMalformed] when the token cannot be decoded.
//   - [ErrTokenBadSignature] when the MAC, algorithm or issuer does not match.
//   - [ErrTokenExpired] when now is at or after the embedded expiry.
func (service *TokenService) Verify(tokenString string, now time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "", ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	default:
		return "", ErrTokenBadSignature
	}

	if claims.Subject == "" {
		return "", ErrTokenMalformed
	}

	return claims.Subject, nil
}

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements identity, session token and password-reset use cases.

Architecture:

  - Service: Orchestrates signup, login, identity resolution and the reset flow.
  - Repository: Storage contracts with pgx and SQLite implementations.
  - Handler: Thin chi delivery layer; see http.go and http_admin.go.

Session tokens are stateless and never revoked before expiry. Reset requests
are persisted so single-use consumption is enforced by the store.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/ecgscan/internal/notify"
	"github.com/taibuivan/ecgscan/internal/platform/apperr"
	"github.com/taibuivan/ecgscan/internal/platform/ctxutil"
	"github.com/taibuivan/ecgscan/internal/platform/dberr"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/mask"
	"github.com/taibuivan/ecgscan/pkg/pagination"
	"github.com/taibuivan/ecgscan/pkg/pointer"
	"github.com/taibuivan/ecgscan/pkg/uuid"
)

// # Contracts & Types

// TokenProvider issues signed session tokens.
type TokenProvider interface {
	// Issue signs a token for subject valid from now until the returned expiry.
	Issue(subject string, now time.Time) (string, time.Time, error)
}

// Recorder counts auth events. [metrics.Collector] satisfies it.
type Recorder interface {
	RecordSignup()
	RecordLogin(result string)
	RecordResetEvent(event string)
}

type noopRecorder struct{}

func (noopRecorder) RecordSignup()           {}
func (noopRecorder) RecordLogin(string)      {}
func (noopRecorder) RecordResetEvent(string) {}

// Service implements the authentication use cases.
type Service struct {
	users    UserRepository
	resets   ResetRepository
	tokens   TokenProvider
	notifier notify.Sink

	limiter      AttemptLimiter
	recorder     Recorder
	now          func() time.Time
	resetCodeTTL time.Duration
	discloseName bool
	generateCode func() (string, error)
	namePolicy   *bluemonday.Policy
}

// Option customizes a [Service].
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(service *Service) { service.now = clock }
}

// WithLimiter enables reset attempt throttling.
func WithLimiter(limiter AttemptLimiter) Option {
	return func(service *Service) { service.limiter = limiter }
}

// WithRecorder enables event counting.
func WithRecorder(recorder Recorder) Option {
	return func(service *Service) { service.recorder = recorder }
}

// WithResetCodeTTL overrides [DefaultResetCodeTTL].
func WithResetCodeTTL(ttl time.Duration) Option {
	return func(service *Service) { service.resetCodeTTL = ttl }
}

// WithNameDisclosure includes the account's display name in reset responses
// for registered emails.
func WithNameDisclosure(enabled bool) Option {
	return func(service *Service) { service.discloseName = enabled }
}

// WithCodeGenerator overrides [sec.GenerateResetCode].
func WithCodeGenerator(generate func() (string, error)) Option {
	return func(service *Service) { service.generateCode = generate }
}

// NewService constructs a [Service] with its dependencies.
func NewService(users UserRepository, resets ResetRepository, tokens TokenProvider, notifier notify.Sink, options ...Option) *Service {
	service := &Service{
		users:        users,
		resets:       resets,
		tokens:       tokens,
		notifier:     notifier,
		limiter:      noopLimiter{},
		recorder:     noopRecorder{},
		now:          time.Now,
		resetCodeTTL: DefaultResetCodeTTL,
		generateCode: sec.GenerateResetCode,
		namePolicy:   bluemonday.StrictPolicy(),
	}

	for _, option := range options {
		option(service)
	}

	return service
}

// Session is the result of a successful signup or login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// # Registration Flow

// SignupInput holds the data required to create an identity.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

/*
Signup creates a 'user' identity and issues its first session token.

Returns:
  - *Session: Token and created identity
  - error: ValidationError (policy), ErrEmailTaken, or storage errors
*/
func (service *Service) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	email := normalizeEmail(input.Email)

	name, err := service.sanitizeName(input.Name)
	if err != nil {
		return nil, err
	}

	if err := checkPasswordPolicy(FieldPassword, input.Password); err != nil {
		return nil, err
	}

	// Cheap pre-check before paying for bcrypt. The unique index stays authoritative.
	if _, err := service.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, dberr.ErrNotFound) {
		return nil, err
	}

	user, err := service.newUser(email, name, input.Password, sec.RoleUser)
	if err != nil {
		return nil, err
	}

	if err := service.users.Create(ctx, user); err != nil {
		if errors.Is(err, dberr.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	session, err := service.issueSession(user)
	if err != nil {
		return nil, err
	}

	service.recorder.RecordSignup()
	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_registered", slog.String("user_id", user.ID))

	return session, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

/*
Login verifies credentials and issues a session token.

Unknown emails still pay for one bcrypt comparison, and every failure returns
the same [ErrInvalidCredentials].
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	logger := ctxutil.GetLogger(ctx)

	user, err := service.users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if !errors.Is(err, dberr.ErrNotFound) {
			return nil, err
		}
		sec.BurnPasswordCheck(input.Password)
		service.recorder.RecordLogin(LoginResultFailure)
		return nil, ErrInvalidCredentials
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		service.recorder.RecordLogin(LoginResultFailure)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		service.recorder.RecordLogin(LoginResultInactive)
		logger.InfoContext(ctx, "login_rejected_inactive", slog.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	now := service.now()
	if err := service.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.WarnContext(ctx, "last_login_update_failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	} else {
		user.LastLoginAt = pointer.To(now)
	}

	session, err := service.issueSession(user)
	if err != nil {
		return nil, err
	}

	service.recorder.RecordLogin(LoginResultSuccess)
	logger.InfoContext(ctx, "user_logged_in", slog.String("user_id", user.ID))

	return session, nil
}

// # Identity Resolution

// ResolvePrincipal loads the caller for a verified token subject. Missing and
// inactive identities both yield [sec.ErrUnknownSubject].
func (service *Service) ResolvePrincipal(ctx context.Context, subject string) (*sec.Principal, error) {
	user, err := service.users.FindByID(ctx, subject)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, sec.ErrUnknownSubject
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, sec.ErrUnknownSubject
	}

	return user.Principal(), nil
}

// CurrentUser returns the caller's own identity.
func (service *Service) CurrentUser(ctx context.Context, userID string) (*User, error) {
	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, sec.ErrUnknownSubject
		}
		return nil, err
	}
	return user, nil
}

// # Administration

// ListUsers returns one page of identities other than the caller.
func (service *Service) ListUsers(ctx context.Context, callerID string, params pagination.Params) ([]*User, int, error) {
	return service.users.List(ctx, callerID, params)
}

// GetUser returns a single identity by ID.
func (service *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := service.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// AdminSeed holds bootstrap credentials for the first admin identity.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// CreateAdmin creates an 'admin' identity from seed regardless of how many exist.
func (service *Service) CreateAdmin(ctx context.Context, seed AdminSeed) (*User, error) {
	email := normalizeEmail(seed.Email)
	if email == "" || seed.Password == "" {
		return nil, errors.New("auth: admin email and password are required")
	}

	if err := checkPasswordPolicy(FieldPassword, seed.Password); err != nil {
		return nil, fmt.Errorf("auth: admin password: %w", err)
	}

	name, err := service.sanitizeName(seed.Name)
	if err != nil {
		return nil, fmt.Errorf("auth: admin name: %w", err)
	}

	user, err := service.newUser(email, name, seed.Password, sec.RoleAdmin)
	if err != nil {
		return nil, err
	}

	if err := service.users.Create(ctx, user); err != nil {
		if errors.Is(err, dberr.ErrConflict) {
			return nil, fmt.Errorf("auth: %s is already registered", mask.Email(email))
		}
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "admin_created",
		slog.String("user_id", user.ID),
		slog.String("email", mask.Email(email)),
	)
	return user, nil
}

/*
EnsureAdmin guarantees at least one 'admin' identity exists.

Returns:
  - bool: true when an admin was created by this call
  - error: when none exists and seed is incomplete, or on storage errors
*/
func (service *Service) EnsureAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	count, err := service.users.CountByRole(ctx, sec.RoleAdmin)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if strings.TrimSpace(seed.Email) == "" || seed.Password == "" {
		return false, errors.New("auth: no admin identity exists; set ADMIN_EMAIL and ADMIN_PASSWORD")
	}

	if _, err := service.CreateAdmin(ctx, seed); err != nil {
		return false, err
	}
	return true, nil
}

// # Helpers

func (service *Service) newUser(email, name, password string, role sec.UserRole) (*User, error) {
	hash, err := sec.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	now := service.now()
	return &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (service *Service) issueSession(user *User) (*Session, error) {
	token, expiresAt, err := service.tokens.Issue(user.ID, service.now())
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_token_issue_failed: %w", err))
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// sanitizeName strips markup, NFC-normalizes and trims a display name.
func (service *Service) sanitizeName(raw string) (string, error) {
	name := html.UnescapeString(service.namePolicy.Sanitize(raw))
	name = strings.TrimSpace(norm.NFC.String(name))

	switch {
	case name == "":
		return "", apperr.ValidationError("Validation failed", apperr.FieldError{Field: FieldName, Message: "This field is required"})
	case utf8.RuneCountInString(name) > MaxNameLength:
		return "", apperr.ValidationError("Validation failed", apperr.FieldError{Field: FieldName, Message: fmt.Sprintf("Maximum %d characters", MaxNameLength)})
	}
	return name, nil
}

// checkPasswordPolicy applies the single password policy shared by signup and reset.
func checkPasswordPolicy(field, password string) error {
	switch {
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return apperr.ValidationError(
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
			apperr.FieldError{Field: field, Message: fmt.Sprintf("Minimum %d characters", MinPasswordLength)},
		)
	case len(password) > MaxPasswordLength:
		return apperr.ValidationError(
			fmt.Sprintf("Password must be at most %d bytes", MaxPasswordLength),
			apperr.FieldError{Field: field, Message: fmt.Sprintf("Maximum %d bytes", MaxPasswordLength)},
		)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

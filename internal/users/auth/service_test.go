// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ecgscan/internal/notify"
	"github.com/taibuivan/ecgscan/internal/platform/apperr"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/pagination"
)

// # Test Doubles

const testSecret = "test-secret-key-with-at-least-32-bytes!"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *testClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *testClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}

type captureSink struct {
	mu      sync.Mutex
	notices []notify.Notice
	err     error
}

func (sink *captureSink) SendResetCode(_ context.Context, notice notify.Notice) error {
	sink.mu.Lock()
	defer sink.mu.Unlock()

	if sink.err != nil {
		return sink.err
	}
	sink.notices = append(sink.notices, notice)
	return nil
}

func (sink *captureSink) count() int {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return len(sink.notices)
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (recorder *countingRecorder) RecordSignup()             { recorder.add("signup") }
func (recorder *countingRecorder) RecordLogin(r string)      { recorder.add("login:" + r) }
func (recorder *countingRecorder) RecordResetEvent(e string) { recorder.add("reset:" + e) }

func (recorder *countingRecorder) add(key string) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.events == nil {
		recorder.events = make(map[string]int)
	}
	recorder.events[key]++
}

func (recorder *countingRecorder) get(key string) int {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return recorder.events[key]
}

type rejectingLimiter struct{ after int }

func (limiter *rejectingLimiter) Allow(context.Context, string) error {
	if limiter.after <= 0 {
		return apperr.RateLimited(60)
	}
	limiter.after--
	return nil
}

type fixture struct {
	service  *Service
	store    *memStore
	sink     *captureSink
	clock    *testClock
	tokens   *sec.TokenService
	recorder *countingRecorder
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()

	tokens, err := sec.NewTokenService(testSecret, "ecgscan", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		store:    newMemStore(),
		sink:     &captureSink{},
		clock:    &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		tokens:   tokens,
		recorder: &countingRecorder{},
	}

	options = append([]Option{WithClock(f.clock.Now), WithRecorder(f.recorder)}, options...)
	f.service = NewService(f.store, memResets{f.store}, tokens, f.sink, options...)
	return f
}

func (f *fixture) signup(t *testing.T, email, password string) *User {
	t.Helper()
	session, err := f.service.Signup(context.Background(), SignupInput{Name: "Test User", Email: email, Password: password})
	require.NoError(t, err)
	return session.User
}

func fixedCode(code string) Option {
	return WithCodeGenerator(func() (string, error) { return code, nil })
}

func statusOf(err error) int {
	if appErr := apperr.As(err); appErr != nil {
		return appErr.HTTPStatus
	}
	return 0
}

// # Signup

func TestSignup_CreatesIdentityWithVerifiableToken(t *testing.T) {
	f := newFixture(t)

	session, err := f.service.Signup(context.Background(), SignupInput{
		Name:     "Dr. Ana",
		Email:    "  Ana@Example.com ",
		Password: "secret1",
	})
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", session.User.Email)
	assert.Equal(t, sec.RoleUser, session.User.Role)
	assert.True(t, session.User.IsActive)
	assert.NotEqual(t, "secret1", session.User.PasswordHash)
	assert.Equal(t, f.clock.Now().Add(time.Hour), session.ExpiresAt)

	subject, err := f.tokens.Verify(session.Token, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, subject)

	assert.Len(t, f.store.users, 1)
	assert.Equal(t, 1, f.recorder.get("signup"))
}

func TestSignup_DuplicateEmailIgnoresCase(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "user@example.com", "secret1")

	_, err := f.service.Signup(context.Background(), SignupInput{Name: "Other", Email: "USER@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Len(t, f.store.users, 1)
}

func TestSignup_EnforcesPasswordPolicy(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Signup(context.Background(), SignupInput{Name: "Ana", Email: "ana@example.com", Password: "abc12"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Empty(t, f.store.users)
}

func TestSignup_SanitizesName(t *testing.T) {
	f := newFixture(t)

	session, err := f.service.Signup(context.Background(), SignupInput{
		Name:     "<b>Dr.</b> O'Brien",
		Email:    "obrien@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dr. O'Brien", session.User.Name)

	_, err = f.service.Signup(context.Background(), SignupInput{
		Name:     "<script>alert(1)</script>",
		Email:    "script@example.com",
		Password: "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

// # Login

func TestLogin_Outcomes(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	f.clock.Advance(time.Minute)
	session, err := f.service.Login(ctx, LoginInput{Email: "USER@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
	require.NotNil(t, session.User.LastLoginAt)
	assert.Equal(t, f.clock.Now(), *session.User.LastLoginAt)

	_, err = f.service.Login(ctx, LoginInput{Email: "user@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.service.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	assert.Equal(t, 1, f.recorder.get("login:success"))
	assert.Equal(t, 2, f.recorder.get("login:failure"))
}

func TestLogin_RejectsInactiveIdentity(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t, "user@example.com", "secret1")
	f.store.users[user.ID].IsActive = false

	_, err := f.service.Login(context.Background(), LoginInput{Email: "user@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, f.recorder.get("login:inactive"))
}

// # Identity Resolution

func TestResolvePrincipal(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	principal, err := f.service.ResolvePrincipal(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, sec.RoleUser, principal.Role)

	_, err = f.service.ResolvePrincipal(ctx, "0190a8f2-6c3e-7d41-b2a9-3f1e5c7d9a01")
	assert.ErrorIs(t, err, sec.ErrUnknownSubject)

	f.store.users[user.ID].IsActive = false
	_, err = f.service.ResolvePrincipal(ctx, user.ID)
	assert.ErrorIs(t, err, sec.ErrUnknownSubject)
}

// # Administration

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.EnsureAdmin(ctx, AdminSeed{})
	require.Error(t, err)

	created, err := f.service.EnsureAdmin(ctx, AdminSeed{Email: "Admin@Example.com", Password: "admin-pass", Name: "Administrator"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.service.EnsureAdmin(ctx, AdminSeed{Email: "second@example.com", Password: "admin-pass"})
	require.NoError(t, err)
	assert.False(t, created)

	count, err := f.store.CountByRole(ctx, sec.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	admin, err := f.store.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, admin.Role)
}

func TestCreateAdmin_RejectsTakenEmail(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "user@example.com", "secret1")

	_, err := f.service.CreateAdmin(context.Background(), AdminSeed{Email: "user@example.com", Password: "admin-pass", Name: "Admin"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "user@example.com")
}

func TestListUsers_ExcludesCaller(t *testing.T) {
	f := newFixture(t)
	caller := f.signup(t, "caller@example.com", "secret1")
	f.clock.Advance(time.Second)
	f.signup(t, "first@example.com", "secret1")
	f.clock.Advance(time.Second)
	f.signup(t, "second@example.com", "secret1")

	users, total, err := f.service.ListUsers(context.Background(), caller.ID, pagination.Params{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 1)
	assert.Equal(t, "second@example.com", users[0].Email)

	_, err = f.service.GetUser(context.Background(), "0190a8f2-6c3e-7d41-b2a9-3f1e5c7d9a01")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRecorderDefaultsToNoop(t *testing.T) {
	tokens, err := sec.NewTokenService(testSecret, "ecgscan", time.Hour)
	require.NoError(t, err)

	store := newMemStore()
	service := NewService(store, memResets{store}, tokens, &captureSink{})

	_, err = service.Signup(context.Background(), SignupInput{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	assert.NoError(t, err)
}

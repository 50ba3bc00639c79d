// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ecgscan/internal/notify"
	"github.com/taibuivan/ecgscan/internal/platform/dberr"
)

func TestRequestReset_UnknownEmailLooksLikeSuccess(t *testing.T) {
	f := newFixture(t, WithNameDisclosure(true))

	ticket, err := f.service.RequestReset(context.Background(), "ghost@example.com")
	require.NoError(t, err)

	assert.Equal(t, "gh***@*******.com", ticket.MaskedEmail)
	assert.Empty(t, ticket.UserName)
	assert.Zero(t, f.sink.count())
	assert.Empty(t, f.store.resets)
	assert.Equal(t, 1, f.recorder.get("reset:"+ResetEventUnknown))
}

func TestRequestReset_IsIdempotentWhileActive(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	first, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	second, err := f.service.RequestReset(ctx, "USER@example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.sink.count())
	assert.Equal(t, 1, f.store.pending("user@example.com"))
	assert.Equal(t, 1, f.recorder.get("reset:"+ResetEventReused))
}

func TestRequestReset_NotifiesWithCodeAndExpiry(t *testing.T) {
	f := newFixture(t, fixedCode("482913"), WithResetCodeTTL(10*time.Minute))
	f.signup(t, "user@example.com", "secret1")

	_, err := f.service.RequestReset(context.Background(), "user@example.com")
	require.NoError(t, err)

	require.Equal(t, 1, f.sink.count())
	notice := f.sink.notices[0]
	assert.Equal(t, "user@example.com", notice.Email)
	assert.Equal(t, "Test User", notice.Name)
	assert.Equal(t, "482913", notice.Code)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), notice.ExpiresAt)
}

func TestRequestReset_ReplacesExpiredRequest(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	f.clock.Advance(DefaultResetCodeTTL)
	_, err = f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	assert.Equal(t, 2, f.sink.count())
	assert.Len(t, f.store.resets, 2)
	assert.Equal(t, 1, f.store.pending("user@example.com"))
}

func TestRequestReset_DispatchFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	f.sink.err = errors.New("broker unavailable")
	_, err := f.service.RequestReset(ctx, "user@example.com")
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, http.StatusInternalServerError, statusOf(err))
	assert.Empty(t, f.store.resets)

	f.sink.err = nil
	_, err = f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, f.sink.count())
}

// cancelingSink cancels the caller's context and then fails, like a publish
// that ran into the request deadline.
type cancelingSink struct {
	cancel context.CancelFunc
	calls  int
}

func (sink *cancelingSink) SendResetCode(ctx context.Context, _ notify.Notice) error {
	sink.calls++
	if sink.cancel != nil {
		sink.cancel()
	}
	return ctx.Err()
}

func TestRequestReset_RollbackSurvivesCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "user@example.com", "secret1")

	ctx, cancel := context.WithCancel(context.Background())
	sink := &cancelingSink{cancel: cancel}
	service := NewService(f.store, memResets{f.store}, f.tokens, sink, WithClock(f.clock.Now))

	_, err := service.RequestReset(ctx, "user@example.com")
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Empty(t, f.store.resets)

	_, err = f.service.RequestReset(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, f.sink.count())
	assert.Equal(t, 1, f.store.pending("user@example.com"))
}

func TestRequestReset_RollbackSurvivesExpiredDeadline(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "user@example.com", "secret1")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	sink := &cancelingSink{}
	service := NewService(f.store, memResets{f.store}, f.tokens, sink, WithClock(f.clock.Now))

	_, err := service.RequestReset(ctx, "user@example.com")
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, 1, sink.calls)
	assert.Zero(t, f.store.pending("user@example.com"))
}

func TestResetRequests_StoreNormalizedEmail(t *testing.T) {
	f := newFixture(t, fixedCode("482913"))
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "  USER@Example.COM ")
	require.NoError(t, err)

	require.Len(t, f.store.resets, 1)
	for _, request := range f.store.resets {
		assert.Equal(t, "user@example.com", request.Email)
	}

	require.NoError(t, f.service.VerifyCode(ctx, "User@Example.com", "482913"))
	require.NoError(t, f.service.FinalizeReset(ctx, FinalizeInput{Email: "USER@EXAMPLE.COM", Code: "482913", NewPassword: "newpass1"}))
}

func TestRequestReset_LostInsertRaceIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "user@example.com", "secret1")
	f.store.failNextCreate = dberr.ErrConflict

	ticket, err := f.service.RequestReset(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.MaskedEmail)
	assert.Zero(t, f.sink.count())
}

func TestRequestReset_NameDisclosure(t *testing.T) {
	hidden := newFixture(t)
	hidden.signup(t, "user@example.com", "secret1")
	ticket, err := hidden.service.RequestReset(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, ticket.UserName)

	shown := newFixture(t, WithNameDisclosure(true))
	shown.signup(t, "user@example.com", "secret1")
	ticket, err = shown.service.RequestReset(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Test User", ticket.UserName)
}

func TestResetFlow_EndToEnd(t *testing.T) {
	f := newFixture(t, fixedCode("482913"))
	f.signup(t, "user@example.com", "oldpass1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	require.NoError(t, f.service.VerifyCode(ctx, "user@example.com", "482913"))
	require.NoError(t, f.service.FinalizeReset(ctx, FinalizeInput{
		Email:       "user@example.com",
		Code:        "482913",
		NewPassword: "newpass1",
	}))

	_, err = f.service.Login(ctx, LoginInput{Email: "user@example.com", Password: "newpass1"})
	assert.NoError(t, err)

	_, err = f.service.Login(ctx, LoginInput{Email: "user@example.com", Password: "oldpass1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// A consumed code never verifies again.
	assert.ErrorIs(t, f.service.VerifyCode(ctx, "user@example.com", "482913"), ErrInvalidOrExpiredCode)
	err = f.service.FinalizeReset(ctx, FinalizeInput{Email: "user@example.com", Code: "482913", NewPassword: "another1"})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	assert.Zero(t, f.store.pending("user@example.com"))
	assert.Equal(t, 1, f.recorder.get("reset:"+ResetEventFinalized))
}

func TestVerifyCode_IsReadOnly(t *testing.T) {
	f := newFixture(t, fixedCode("123456"))
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, f.service.VerifyCode(ctx, "user@example.com", "123456"))
	}
	assert.Equal(t, 1, f.store.pending("user@example.com"))
}

func TestVerifyCode_RejectsNearMisses(t *testing.T) {
	f := newFixture(t, fixedCode("012345"))
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	for _, code := range []string{"12345", "012345 ", " 012345", "012346", ""} {
		assert.ErrorIs(t, f.service.VerifyCode(ctx, "user@example.com", code), ErrInvalidOrExpiredCode, "code %q", code)
	}
	assert.ErrorIs(t, f.service.VerifyCode(ctx, "other@example.com", "012345"), ErrInvalidOrExpiredCode)
	assert.NoError(t, f.service.VerifyCode(ctx, "user@example.com", "012345"))
}

func TestVerifyCode_ExpiryIsExclusive(t *testing.T) {
	f := newFixture(t, fixedCode("482913"))
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	f.clock.Advance(DefaultResetCodeTTL - time.Millisecond)
	assert.NoError(t, f.service.VerifyCode(ctx, "user@example.com", "482913"))

	f.clock.Advance(time.Millisecond)
	err = f.service.VerifyCode(ctx, "user@example.com", "482913")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	err = f.service.FinalizeReset(ctx, FinalizeInput{Email: "user@example.com", Code: "482913", NewPassword: "newpass1"})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestFinalizeReset_ConcurrentCallsHaveOneWinner(t *testing.T) {
	f := newFixture(t, fixedCode("482913"))
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	const attempts = 4
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.service.FinalizeReset(ctx, FinalizeInput{
				Email:       "user@example.com",
				Code:        "482913",
				NewPassword: "newpass1",
			})
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	}
	assert.Equal(t, 1, winners)
}

func TestFinalizeReset_WeakPasswordKeepsCodeActive(t *testing.T) {
	f := newFixture(t, fixedCode("482913"))
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	err = f.service.FinalizeReset(ctx, FinalizeInput{Email: "user@example.com", Code: "482913", NewPassword: "short"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.NoError(t, f.service.VerifyCode(ctx, "user@example.com", "482913"))
}

func TestFinalizeReset_UnknownUser(t *testing.T) {
	f := newFixture(t, fixedCode("482913"))
	user := f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	delete(f.store.users, user.ID)

	err = f.service.FinalizeReset(ctx, FinalizeInput{Email: "user@example.com", Code: "482913", NewPassword: "newpass1"})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestResetFlow_Throttled(t *testing.T) {
	f := newFixture(t, WithLimiter(&rejectingLimiter{after: 1}))
	f.signup(t, "user@example.com", "secret1")
	ctx := context.Background()

	_, err := f.service.RequestReset(ctx, "user@example.com")
	require.NoError(t, err)

	err = f.service.VerifyCode(ctx, "user@example.com", "000000")
	assert.Equal(t, http.StatusTooManyRequests, statusOf(err))
	assert.Equal(t, 1, f.recorder.get("reset:"+ResetEventThrottled))
}

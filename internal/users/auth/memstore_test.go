// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/ecgscan/internal/platform/dberr"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/pagination"
)

// memStore is an in-memory double for both repositories. A single mutex
// plays the role of the store's transaction isolation.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*User
	resets map[string]*ResetRequest

	// failNextCreate makes the next reset Create return the given error.
	failNextCreate error
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*User),
		resets: make(map[string]*ResetRequest),
	}
}

func copyUser(user *User) *User {
	clone := *user
	return &clone
}

func copyReset(request *ResetRequest) *ResetRequest {
	clone := *request
	return &clone
}

// # UserRepository

func (store *memStore) FindByID(_ context.Context, id string) (*User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if user, ok := store.users[id]; ok {
		return copyUser(user), nil
	}
	return nil, dberr.ErrNotFound
}

func (store *memStore) FindByEmail(_ context.Context, email string) (*User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, user := range store.users {
		if strings.EqualFold(user.Email, email) {
			return copyUser(user), nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (store *memStore) Create(_ context.Context, user *User) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, existing := range store.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return dberr.ErrConflict
		}
	}
	store.users[user.ID] = copyUser(user)
	return nil
}

func (store *memStore) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if user, ok := store.users[userID]; ok {
		user.LastLoginAt = &at
	}
	return nil
}

func (store *memStore) CountByRole(_ context.Context, role sec.UserRole) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	count := 0
	for _, user := range store.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (store *memStore) List(_ context.Context, excludeID string, params pagination.Params) ([]*User, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	all := make([]*User, 0, len(store.users))
	for _, user := range store.users {
		if user.ID != excludeID {
			all = append(all, copyUser(user))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := min(params.Offset(), len(all))
	end := min(start+params.Limit, len(all))
	return all[start:end], len(all), nil
}

// # ResetRepository

type memResets struct{ *memStore }

func (store memResets) FindActive(_ context.Context, email string, now time.Time) (*ResetRequest, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, request := range store.resets {
		if strings.EqualFold(request.Email, email) && request.ActiveAt(now) {
			return copyReset(request), nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (store memResets) FindActiveByCode(_ context.Context, email, code string, now time.Time) (*ResetRequest, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, request := range store.resets {
		if strings.EqualFold(request.Email, email) && request.Code == code && request.ActiveAt(now) {
			return copyReset(request), nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (store memResets) Create(_ context.Context, request *ResetRequest, now time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.failNextCreate; err != nil {
		store.failNextCreate = nil
		return err
	}

	for _, existing := range store.resets {
		if !strings.EqualFold(existing.Email, request.Email) || existing.IsUsed {
			continue
		}
		if !now.Before(existing.ExpiresAt) {
			existing.IsUsed = true
			continue
		}
		return dberr.ErrConflict
	}

	store.resets[request.ID] = copyReset(request)
	return nil
}

func (store memResets) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.resets, id)
	return nil
}

func (store memResets) Consume(_ context.Context, input ConsumeInput) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	request, ok := store.resets[input.RequestID]
	if !ok || !request.ActiveAt(input.Now) {
		return ErrResetNotActive
	}

	user, ok := store.users[input.UserID]
	if !ok {
		return ErrUserNotFound
	}

	request.IsUsed = true
	user.PasswordHash = input.PasswordHash
	user.UpdatedAt = input.Now

	for _, sibling := range store.resets {
		if strings.EqualFold(sibling.Email, input.Email) {
			sibling.IsUsed = true
		}
	}
	return nil
}

// pending counts unconsumed rows for email, regardless of expiry.
func (store *memStore) pending(email string) int {
	store.mu.Lock()
	defer store.mu.Unlock()

	count := 0
	for _, request := range store.resets {
		if strings.EqualFold(request.Email, email) && !request.IsUsed {
			count++
		}
	}
	return count
}

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"time"

	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/mask"
)

// # Domain Entities

// User represents a registered identity in the 'users.account' table.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Name         string       `json:"name"`
	Role         sec.UserRole `json:"role"`
	IsActive     bool         `json:"isActive"`
	LastLoginAt  *time.Time   `json:"lastLogin,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Principal projects the user into the request-scoped caller identity.
func (user *User) Principal() *sec.Principal {
	return &sec.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	}
}

// ResetRequest is a one-time recovery ticket in the 'users.passwordreset' table.
//
// A request is active while it is unconsumed and now < ExpiresAt.
type ResetRequest struct {
	ID        string
	UserID    string
	Email     string
	Code      string
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

// ActiveAt reports whether the request can still be verified or consumed at now.
func (request *ResetRequest) ActiveAt(now time.Time) bool {
	return !request.IsUsed && now.Before(request.ExpiresAt)
}

// # Response Projections

// Summary is the identity payload returned by signup, login and /me.
type Summary struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	Role      sec.UserRole `json:"role"`
	CreatedAt time.Time    `json:"createdAt"`
	LastLogin *time.Time   `json:"lastLogin"`
}

// NewSummary builds the self-view of a user.
func NewSummary(user *User) Summary {
	return Summary{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLoginAt,
	}
}

// AdminView is the masked projection used by the admin listing routes.
type AdminView struct {
	ID          string       `json:"id"`
	MaskedEmail string       `json:"maskedEmail"`
	Name        string       `json:"name"`
	Role        sec.UserRole `json:"role"`
	IsActive    bool         `json:"isActive"`
	CreatedAt   time.Time    `json:"createdAt"`
	LastLogin   *time.Time   `json:"lastLogin"`
}

// NewAdminView builds the masked projection of a user.
func NewAdminView(user *User) AdminView {
	return AdminView{
		ID:          user.ID,
		MaskedEmail: mask.Email(user.Email),
		Name:        user.Name,
		Role:        user.Role,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		LastLogin:   user.LastLoginAt,
	}
}

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import "strings"

// PasswordResetTable represents the 'users.passwordreset' table
type PasswordResetTable struct {
	Table       string
	SQLiteTable string
	ID          string
	UserID      string
	Email       string
	Code        string
	ExpiresAt   string
	IsUsed      string
	CreatedAt   string
}

// PasswordReset is the schema definition for users.passwordreset
var PasswordReset = PasswordResetTable{
	Table:       "users.passwordreset",
	SQLiteTable: "passwordreset",
	ID:          "id",
	UserID:      "userid",
	Email:       "email",
	Code:        "code",
	ExpiresAt:   "expiresat",
	IsUsed:      "isused",
	CreatedAt:   "createdat",
}

// Columns returns all standard column names in scan order
func (t PasswordResetTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.Email, t.Code, t.ExpiresAt, t.IsUsed, t.CreatedAt,
	}
}

// Select returns the column list for a SELECT clause
func (t PasswordResetTable) Select() string {
	return strings.Join(t.Columns(), ", ")
}

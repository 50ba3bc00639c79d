// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema holds table and column identifiers shared by the store drivers.
//
// Column names are identical across PostgreSQL and SQLite; only the table
// name differs, since SQLite has no schemas.
package schema

import "strings"

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table       string
	SQLiteTable string
	ID          string
	Email       string
	Password    string
	Name        string
	Role        string
	IsActive    string
	LastLoginAt string
	CreatedAt   string
	UpdatedAt   string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:       "users.account",
	SQLiteTable: "account",
	ID:          "id",
	Email:       "email",
	Password:    "passwordhash",
	Name:        "name",
	Role:        "role",
	IsActive:    "isactive",
	LastLoginAt: "lastloginat",
	CreatedAt:   "createdat",
	UpdatedAt:   "updatedat",
}

// Columns returns all standard column names in scan order
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.Password, t.Name, t.Role,
		t.IsActive, t.LastLoginAt, t.CreatedAt, t.UpdatedAt,
	}
}

// Select returns the column list for a SELECT clause
func (t UserAccountTable) Select() string {
	return strings.Join(t.Columns(), ", ")
}

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an identity.
// Exactly one role is held per identity and it cannot be changed through the API.
type UserRole string

const (
	// Full access, including the admin listing routes
	RoleAdmin UserRole = "admin"

	// Default role assigned at signup
	RoleUser UserRole = "user"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() > 0 && r.level() >= target.level()
}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r.level() > 0
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleAdmin:
		return 20
	case RoleUser:
		return 10
	default:
		return 0
	}
}

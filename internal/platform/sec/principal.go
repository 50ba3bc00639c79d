// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// Principal is the identity resolved for an authenticated request.
//
// It is loaded from the credential store on every request after the token
// verifies, so a role or active-flag change is visible immediately.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   UserRole
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

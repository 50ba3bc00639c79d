// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ecgscan/internal/platform/apperr"
	"github.com/taibuivan/ecgscan/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "name", "Dr. Nguyen", false},
		{"empty_string", "name", "", true},
		{"whitespace_only", "name", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_Email checks the email format validation rule.
*/
func TestValidator_Email(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		isValid bool
	}{
		{"valid_email", "test@example.com", true},
		{"subdomain", "cardio@lab.hospital.org", true},
		{"invalid_format", "invalid-email", false},
		{"missing_domain", "test@", false},
		{"dotless_domain", "test@localhost", false},
		{"trailing_dot", "test@example.", false},
		{"display_name", "Test <test@example.com>", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Email("email", tt.email)

			if tt.isValid {
				assert.False(t, v.HasErrors())
			} else {
				assert.True(t, v.HasErrors())
			}
		})
	}
}

/*
TestValidator_Digits validates reset code shape checks.
*/
func TestValidator_Digits(t *testing.T) {
	assert.False(t, (&validate.Validator{}).Digits("code", "482913", 6).HasErrors())
	assert.True(t, (&validate.Validator{}).Digits("code", "48291", 6).HasErrors())
	assert.True(t, (&validate.Validator{}).Digits("code", "48291a", 6).HasErrors())
	assert.True(t, (&validate.Validator{}).Digits("code", "", 6).HasErrors())
}

/*
TestValidator_Chain verifies that every failing rule contributes one detail.
*/
func TestValidator_Chain(t *testing.T) {
	v := &validate.Validator{}
	v.Required("email", "").
		MinLen("password", "abc", 6).
		UUID("id", "not-a-uuid").
		Custom("name", true, "Name is reserved")

	ae := apperr.As(v.Err())
	require.NotNil(t, ae)
	assert.Len(t, ae.Details, 4)
}

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// Handlers run the Validator on decoded payloads so the service layer only sees
// syntactically valid input. Business rules (password policy, uniqueness) stay
// in the service.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/ecgscan/internal/platform/apperr"
	"github.com/taibuivan/ecgscan/pkg/uuid"
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

var (
	// digitsRegex matches a fixed-width numeric reset code.
	digitsRegex = regexp.MustCompile(`^[0-9]+$`)

	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// Email fails unless value is a bare address (no display name) whose domain
// has at least one dot.
func (v *Validator) Email(field, value string) *Validator {
	if !IsEmail(value) {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// Digits fails unless value is exactly n ASCII digits.
func (v *Validator) Digits(field, value string, n int) *Validator {
	if len(value) != n || !digitsRegex.MatchString(value) {
		v.add(field, fmt.Sprintf("Must be %d digits", n))
	}
	return v
}

// UUID fails if the value is not a canonical UUID string (case-insensitive).
func (v *Validator) UUID(field, value string) *Validator {
	if !uuid.Valid(value) {
		v.add(field, "Must be a valid UUID")
	}
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("password", len(pw) < 6, "Minimum 6 characters")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method. Call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// IsEmail reports whether value is an acceptable account email.
func IsEmail(value string) bool {
	if value == "" || len(value) > MaxEmailLength {
		return false
	}

	address, err := mail.ParseAddress(value)
	if err != nil || address.Address != value {
		return false
	}

	at := strings.LastIndexByte(value, '@')
	domain := value[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}

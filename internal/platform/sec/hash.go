// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain-text password using the bcrypt algorithm.
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// dummyHash is computed once and compared against when the email is unknown,
// so a failed login costs one bcrypt round either way.
var dummyHash = sync.OnceValue(func() string {
	hashed, err := bcrypt.GenerateFromPassword([]byte("ecgscan-timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		return ""
	}
	return string(hashed)
})

// BurnPasswordCheck runs a bcrypt comparison against a fixed hash and discards
// the result.
func BurnPasswordCheck(plainTextPassword string) {
	_ = CheckPasswordHash(plainTextPassword, dummyHash())
}

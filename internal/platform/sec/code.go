// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	resetCodeMin   = 100000
	resetCodeRange = 900000
)

// GenerateResetCode returns a uniformly random 6-digit decimal code in the
// range 100000-999999. The first digit is never zero.
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(resetCodeRange))
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate reset code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+resetCodeMin), nil
}

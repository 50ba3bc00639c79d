// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer provides generic helpers for optional (nullable) fields.

It is mostly used to set optional timestamps without a temporary variable.
*/
package pointer

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package slice complements the standard [slices] package with generic
projection helpers used when turning domain records into response views.
*/
package slice

// Map projects every element of input through transform.
//
// The result is never nil, so an empty input encodes as a JSON array ("[]")
// rather than null.
func Map[T any, U any](input []T, transform func(T) U) []U {
	result := make([]U, len(input))
	for i, v := range input {
		result[i] = transform(v)
	}
	return result
}

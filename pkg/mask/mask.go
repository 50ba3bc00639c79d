// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mask provides display-safe redaction helpers.

Example:

	mask.Email("ab@example.com")     // "ab@*******.com"
	mask.Email("john@mail.acme.org") // "jo**@****.****.org"
*/
package mask

import "strings"

// Char is the rune substituted for every hidden character.
const Char = '*'

// visibleLocal is the number of leading local-part characters left in clear.
const visibleLocal = 2

// Email redacts an address for display.
//
// The first two characters of the local part and the final domain label stay
// visible. Dots between domain labels are kept so the shape stays readable.
// Input without an '@' is masked entirely, as is a domain with no dot.
func Email(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return hide(email)
	}

	local, domain := email[:at], email[at+1:]
	return maskLocal(local) + "@" + maskDomain(domain)
}

func maskLocal(local string) string {
	runes := []rune(local)
	keep := min(visibleLocal, len(runes))
	return string(runes[:keep]) + hide(string(runes[keep:]))
}

func maskDomain(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return hide(domain)
	}

	last := len(labels) - 1
	for i := range last {
		labels[i] = hide(labels[i])
	}
	return strings.Join(labels, ".")
}

func hide(s string) string {
	return strings.Repeat(string(Char), len([]rune(s)))
}

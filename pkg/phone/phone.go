// Package phone normalizes raw phone strings into canonical dialable numbers.
// Normalization is pure: no I/O, no errors, same input always yields the same
// output for a given policy.
package phone

import "strings"

// Policy describes one region's normalization rules. The zero value does no
// prefix rewriting and accepts any non-empty digit string as dialable.
type Policy struct {
	// TrunkPrefix is the local dialing prefix that marks a number as
	// domestic, e.g. "01".
	TrunkPrefix string
	// CountryCode replaces/precedes the trunk prefix in canonical form,
	// e.g. "20".
	CountryCode string
	// MinDigits is the minimum length for a normalized number to be
	// considered dialable.
	MinDigits int
}

// Egypt is the policy the original deployment targets: local numbers start
// with 01 and canonical form carries the 20 country code.
var Egypt = Policy{
	TrunkPrefix: "01",
	CountryCode: "20",
	MinDigits:   12,
}

// Normalize strips everything that is not a digit and, when the result looks
// like a domestic number (trunk prefix, no country code yet), rewrites it to
// international form. The trunk's leading zero is a domestic dialing artifact
// and is dropped when the country code is prepended, so 01012345678 becomes
// 201012345678. Unrecognized shapes pass through cleaned but otherwise
// untouched; the caller decides what to do with them via IsDialable.
func (p Policy) Normalize(raw string) string {
	digits := stripNonDigits(raw)

	if p.TrunkPrefix != "" && strings.HasPrefix(digits, p.TrunkPrefix) {
		if p.CountryCode != "" && !strings.HasPrefix(digits, p.CountryCode) {
			return p.CountryCode + strings.TrimPrefix(digits, "0")
		}
	}

	return digits
}

// IsDialable reports whether a normalized number is plausible enough to hand
// to a dispatch strategy.
func (p Policy) IsDialable(normalized string) bool {
	if normalized == "" {
		return false
	}
	min := p.MinDigits
	if min <= 0 {
		min = 1
	}
	return len(normalized) >= min
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// NormalizeDigits reduces a phone number to the 10-digit national form used
// as a lead matching key. If parsing fails, it falls back to stripping
// non-digit characters and, when left with 11 digits and a leading country
// code 1, dropping the prefix. Anything that still isn't 10 digits is
// returned as the stripped digits so callers can decide what to do with it.
func NormalizeDigits(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err == nil && phonenumbers.IsValidNumber(number) {
		return strconv.FormatUint(number.GetNationalNumber(), 10)
	}

	digits := stripNonDigits(trimmed)
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}

// IsNormalized reports whether the value is already a 10-digit phone key.
func IsNormalized(value string) bool {
	if len(value) != 10 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stripNonDigits(value string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
}

package domain

import "strings"

// MBILength is the fixed length of a normalized Medicare Beneficiary Identifier.
const MBILength = 11

// mbiExcludedLetters never appear in an MBI (CMS excludes look-alikes of
// digits: S, L, O, I, B, Z).
const mbiExcludedLetters = "SLOIBZ"

// NormalizeMBI uppercases the value and strips dashes and whitespace, the
// punctuation vendors commonly insert ("9AB3-XY7-MK21" -> "9AB3XY7MK21").
func NormalizeMBI(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range strings.ToUpper(strings.TrimSpace(value)) {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidMBI reports whether a normalized value satisfies the CMS MBI format:
// positions (1-based) 1,4,7,10,11 are digits (position 1 is 1-9), positions
// 2,5,8,9 are allowed letters, and positions 3 and 6 are any letter or digit.
// The look-alike exclusion applies only at the letter-only positions; vendor
// feeds carry identifiers like 9AB3XY7MK21 with B at position 3.
func ValidMBI(value string) bool {
	if len(value) != MBILength {
		return false
	}
	for i := 0; i < MBILength; i++ {
		c := value[i]
		switch i {
		case 0:
			if c < '1' || c > '9' {
				return false
			}
		case 3, 6, 9, 10:
			if !isDigit(c) {
				return false
			}
		case 1, 4, 7, 8:
			if !isMBILetter(c) {
				return false
			}
		case 2, 5:
			if !isDigit(c) && !isUpperLetter(c) {
				return false
			}
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isUpperLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isMBILetter(c byte) bool {
	return isUpperLetter(c) && !strings.ContainsRune(mbiExcludedLetters, rune(c))
}

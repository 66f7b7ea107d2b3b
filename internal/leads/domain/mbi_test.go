package domain

import "testing"

func TestNormalizeMBI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9AB3-XY7-MK21", "9AB3XY7MK21"},
		{"9ab3xy7mk21", "9AB3XY7MK21"},
		{" 9AB3 XY7 MK21 ", "9AB3XY7MK21"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := NormalizeMBI(tc.in); got != tc.want {
			t.Errorf("NormalizeMBI(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidMBI(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"9AB3XY7MK21", true},
		{"1EG4TE5MK73", true},
		{"9AI3XY7MK21", true},   // look-alike letters allowed at position 3
		{"9AB3XZ7MK21", true},   // and at position 6
		{"9AB3XY7MK2", false},   // too short
		{"9AB3XY7MK211", false}, // too long
		{"0AB3XY7MK21", false},  // position 1 must be 1-9
		{"9SB3XY7MK21", false},  // S is an excluded letter
		{"9AB3XY7MKA1", false},  // position 10 must be a digit
		{"9ABCXY7MK21", false},  // position 4 must be a digit
		{"", false},
	}

	for _, tc := range tests {
		if got := ValidMBI(tc.in); got != tc.want {
			t.Errorf("ValidMBI(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

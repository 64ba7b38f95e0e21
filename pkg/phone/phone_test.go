package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Normalize(t *testing.T) {
	p := Egypt

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"trunk prefix gets country code", "01012345678", "201012345678"},
		{"trunk zero absorbed, not doubled", "0112 345 6789", "201123456789"},
		{"already canonical unchanged", "201012345678", "201012345678"},
		{"formatting stripped", "+20 101-234-5678", "201012345678"},
		{"trunk prefix with spaces", "010 1234 5678", "201012345678"},
		{"foreign number passes through", "4915112345678", "4915112345678"},
		{"garbage reduced to digits", "call-me-maybe", ""},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Normalize(tt.raw))
		})
	}
}

func TestPolicy_Normalize_Idempotent(t *testing.T) {
	p := Egypt

	inputs := []string{
		"01012345678",
		"201012345678",
		"+20 101 234 5678",
		"00201012345678",
		"12345",
		"",
	}

	for _, raw := range inputs {
		once := p.Normalize(raw)
		assert.Equal(t, once, p.Normalize(once), "normalize must be idempotent for %q", raw)
	}
}

func TestPolicy_Normalize_Deterministic(t *testing.T) {
	p := Egypt

	for i := 0; i < 100; i++ {
		assert.Equal(t, "201012345678", p.Normalize("01012345678"))
	}
}

func TestPolicy_IsDialable(t *testing.T) {
	p := Egypt

	assert.True(t, p.IsDialable("201012345678"))
	assert.False(t, p.IsDialable("0101234567"), "too short")
	assert.False(t, p.IsDialable(""))

	// zero policy accepts any non-empty digit string
	var zero Policy
	assert.True(t, zero.IsDialable("1"))
	assert.False(t, zero.IsDialable(""))
}

func TestPolicy_Normalize_ZeroPolicy(t *testing.T) {
	var zero Policy
	assert.Equal(t, "01012345678", zero.Normalize("010-123-45678"))
}

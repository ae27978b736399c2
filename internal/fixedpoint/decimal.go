package fixedpoint

import (
	"errors"
	"strings"

	"github.com/holiman/uint256"
)

// ErrInvalidDecimal is returned when a decimal string cannot be parsed into
// a scaled value.
var ErrInvalidDecimal = errors.New("fixedpoint: invalid decimal")

// FromDecimal parses a non-negative decimal string (e.g. "123.45") into a
// scaled value without going through float64. Fractional digits beyond
// Decimals are truncated.
func FromDecimal(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, ErrInvalidDecimal
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, ErrInvalidDecimal
	}

	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return nil, ErrInvalidDecimal
	}
	if intPart == "" {
		intPart = "0" // ".5" case
	}

	whole := new(uint256.Int)
	if err := whole.SetFromDecimal(intPart); err != nil {
		return nil, ErrInvalidDecimal
	}

	if len(fracPart) > Decimals {
		fracPart = fracPart[:Decimals]
	} else {
		fracPart += strings.Repeat("0", Decimals-len(fracPart))
	}
	frac := new(uint256.Int)
	if err := frac.SetFromDecimal(fracPart); err != nil {
		return nil, ErrInvalidDecimal
	}

	out, overflow := new(uint256.Int).MulOverflow(whole, Unit)
	if overflow {
		return nil, ErrInvalidDecimal
	}
	if _, overflow = out.AddOverflow(out, frac); overflow {
		return nil, ErrInvalidDecimal
	}
	return out, nil
}

// ToDecimal formats a scaled value as a decimal string, trimming trailing
// fractional zeros ("69.31" rather than "69.310000000000000000").
func ToDecimal(v *uint256.Int) string {
	whole := new(uint256.Int).Div(v, Unit)
	frac := new(uint256.Int).Mod(v, Unit)

	if frac.IsZero() {
		return whole.Dec()
	}

	digits := frac.Dec()
	if pad := Decimals - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	digits = strings.TrimRight(digits, "0")
	return whole.Dec() + "." + digits
}

// MustFromDecimal is FromDecimal for compile-time constants; it panics on a
// malformed literal.
func MustFromDecimal(s string) *uint256.Int {
	v, err := FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Package fixedpoint implements deterministic scaled-integer arithmetic for
// the pricing engine, including the natural logarithm and exponential. Values
// are unsigned 256-bit integers scaled by Unit (10^18), so one whole unit is
// Unit. Every operation truncates toward zero, which makes results bit-exact
// across hosts; native floating point is never used because settlement math
// must be reproducible, not maximally precise. Accuracy of Ln/Exp is bounded
// by the fixed series lengths and is within ~1% over the ranges the engine
// evaluates.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// Decimals is the number of decimal places carried by a scaled value.
const Decimals = 18

var (
	// Unit is the scale factor: one whole unit.
	Unit = uint256.NewInt(1_000_000_000_000_000_000)

	// Ln2 is ln(2) scaled by Unit.
	Ln2 = uint256.NewInt(693_147_180_559_945_309)

	// Euler is e scaled by Unit.
	Euler = uint256.NewInt(2_718_281_828_459_045_235)

	// Max is the largest representable value. Exp saturates to it; callers
	// treat it as effectively infinite.
	Max = new(uint256.Int).Not(uint256.NewInt(0))

	twoUnit   = new(uint256.Int).Lsh(Unit, 1)
	expCutoff = new(uint256.Int).Mul(uint256.NewInt(50), Unit)
)

const (
	lnTerms  = 10
	expTerms = 20
)

// ErrLnDomain is returned when Ln is evaluated outside its domain: at zero,
// or at a value below one whole unit, where the mathematical result is
// negative and not representable in unsigned fixed point. Validated engine
// state never produces such an argument.
var ErrLnDomain = errors.New("fixedpoint: ln argument out of domain")

// Ln returns the natural logarithm of x in scaled fixed point.
//
// The argument is range-reduced into [Unit, 2*Unit) by repeated halving or
// doubling while counting the power-of-two shift k, the alternating Taylor
// series for ln(1+z) is evaluated for a fixed number of terms, and k*ln2 is
// added back.
func Ln(x *uint256.Int) (*uint256.Int, error) {
	if x.IsZero() {
		return nil, ErrLnDomain
	}

	v := new(uint256.Int).Set(x)
	k := 0
	for v.Cmp(twoUnit) >= 0 {
		v.Rsh(v, 1)
		k++
	}
	for v.Lt(Unit) {
		v.Lsh(v, 1)
		k--
	}

	// ln(1+z) = z - z^2/2 + z^3/3 - ... with z in [0, 1). The running power
	// holds z^n/Unit^(n-1); terms strictly decrease, so the alternating
	// partial sums never go negative.
	z := new(uint256.Int).Sub(v, Unit)
	sum := new(uint256.Int)
	power := new(uint256.Int).Set(z)
	for n := uint64(1); n <= lnTerms; n++ {
		term := new(uint256.Int).Div(power, uint256.NewInt(n))
		if n%2 == 1 {
			sum.Add(sum, term)
		} else {
			sum.Sub(sum, term)
		}
		power.MulDivOverflow(power, z, Unit)
		if power.IsZero() {
			break
		}
	}

	if k >= 0 {
		shift := new(uint256.Int).Mul(uint256.NewInt(uint64(k)), Ln2)
		return sum.Add(sum, shift), nil
	}
	shift := new(uint256.Int).Mul(uint256.NewInt(uint64(-k)), Ln2)
	if sum.Lt(shift) {
		return nil, ErrLnDomain
	}
	return sum.Sub(sum, shift), nil
}

// Exp returns e^x in scaled fixed point. For x >= 50*Unit the result
// saturates to Max. The argument is split into integer and fractional parts:
// the integer part is computed by repeated multiplication with Euler, the
// fractional part by a Taylor series that exits early once a term truncates
// to zero.
func Exp(x *uint256.Int) *uint256.Int {
	if x.Cmp(expCutoff) >= 0 {
		return new(uint256.Int).Set(Max)
	}

	i := new(uint256.Int).Div(x, Unit).Uint64()
	f := new(uint256.Int).Mod(x, Unit)

	whole := new(uint256.Int).Set(Unit)
	for n := uint64(0); n < i; n++ {
		whole.MulDivOverflow(whole, Euler, Unit)
	}

	// e^f = 1 + f + f^2/2! + ... ; the running term holds f^n/(n! * Unit^(n-1)).
	sum := new(uint256.Int).Set(Unit)
	term := new(uint256.Int).Set(Unit)
	for n := uint64(1); n <= expTerms; n++ {
		term.MulDivOverflow(term, f, Unit)
		term.Div(term, uint256.NewInt(n))
		if term.IsZero() {
			break
		}
		sum.Add(sum, term)
	}

	out, overflow := new(uint256.Int).MulDivOverflow(whole, sum, Unit)
	if overflow {
		return new(uint256.Int).Set(Max)
	}
	return out
}

// Mul returns a*b/Unit with a 512-bit intermediate, truncated. It saturates
// to Max if the result does not fit, which callers treat the same way as a
// saturated Exp.
func Mul(a, b *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, Unit)
	if overflow {
		return new(uint256.Int).Set(Max)
	}
	return z
}

// Div returns a*Unit/b with a 512-bit intermediate, truncated. A zero
// divisor yields zero, matching uint256 division semantics; engine callers
// check for degenerate b before dividing.
func Div(a, b *uint256.Int) *uint256.Int {
	if b.IsZero() {
		return new(uint256.Int)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, Unit, b)
	if overflow {
		return new(uint256.Int).Set(Max)
	}
	return z
}

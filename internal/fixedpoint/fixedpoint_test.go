package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// approxEqual asserts |want-got| <= want * tolBps / 10000.
func approxEqual(t *testing.T, want, got *uint256.Int, tolBps uint64) {
	t.Helper()
	diff := new(uint256.Int)
	if want.Gt(got) {
		diff.Sub(want, got)
	} else {
		diff.Sub(got, want)
	}
	tol := new(uint256.Int).Div(
		new(uint256.Int).Mul(want, uint256.NewInt(tolBps)),
		uint256.NewInt(10_000),
	)
	require.True(t, !diff.Gt(tol),
		"want %s, got %s, diff %s exceeds %d bps", want.Dec(), got.Dec(), diff.Dec(), tolBps)
}

func wholes(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), Unit)
}

func TestLn(t *testing.T) {
	tests := []struct {
		name   string
		in     *uint256.Int
		want   *uint256.Int
		tolBps uint64 // 0 means exact
	}{
		{"one is zero", new(uint256.Int).Set(Unit), new(uint256.Int), 0},
		{"two is ln2", wholes(2), new(uint256.Int).Set(Ln2), 0},
		{"four is 2*ln2", wholes(4), new(uint256.Int).Mul(uint256.NewInt(2), Ln2), 0},
		{"euler is one", new(uint256.Int).Set(Euler), new(uint256.Int).Set(Unit), 100},
		{"ln(1.5)", MustFromDecimal("1.5"), MustFromDecimal("0.405465108108164381"), 100},
		{"ln(3)", wholes(3), MustFromDecimal("1.098612288668109691"), 100},
		{"ln(10)", wholes(10), MustFromDecimal("2.302585092994045684"), 100},
		{"ln(1000)", wholes(1000), MustFromDecimal("6.907755278982137052"), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Ln(tt.in)
			require.NoError(t, err)
			if tt.tolBps == 0 {
				require.Equal(t, tt.want.Dec(), got.Dec())
			} else {
				approxEqual(t, tt.want, got, tt.tolBps)
			}
		})
	}
}

func TestLnDomain(t *testing.T) {
	_, err := Ln(new(uint256.Int))
	require.ErrorIs(t, err, ErrLnDomain)

	// Below one whole unit the mathematical result is negative, which the
	// unsigned representation cannot hold.
	half := new(uint256.Int).Rsh(Unit, 1)
	_, err = Ln(half)
	require.ErrorIs(t, err, ErrLnDomain)
}

func TestExp(t *testing.T) {
	tests := []struct {
		name   string
		in     *uint256.Int
		want   *uint256.Int
		tolBps uint64
	}{
		{"zero is one", new(uint256.Int), new(uint256.Int).Set(Unit), 0},
		{"one is euler", new(uint256.Int).Set(Unit), new(uint256.Int).Set(Euler), 0},
		{"exp(ln2) is two", new(uint256.Int).Set(Ln2), wholes(2), 100},
		{"exp(0.5)", MustFromDecimal("0.5"), MustFromDecimal("1.648721270700128146"), 100},
		{"exp(2.5)", MustFromDecimal("2.5"), MustFromDecimal("12.182493960703473438"), 100},
		{"exp(10)", wholes(10), MustFromDecimal("22026.465794806716516957"), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exp(tt.in)
			if tt.tolBps == 0 {
				require.Equal(t, tt.want.Dec(), got.Dec())
			} else {
				approxEqual(t, tt.want, got, tt.tolBps)
			}
		})
	}
}

func TestExpSaturates(t *testing.T) {
	require.Equal(t, Max.Dec(), Exp(wholes(50)).Dec())
	require.Equal(t, Max.Dec(), Exp(wholes(1_000_000)).Dec())

	// Just below the cutoff it must stay finite.
	under := new(uint256.Int).Sub(wholes(50), uint256.NewInt(1))
	require.True(t, Exp(under).Lt(Max))
}

func TestExpMonotonic(t *testing.T) {
	prev := Exp(new(uint256.Int))
	for n := uint64(1); n <= 49; n++ {
		cur := Exp(wholes(n))
		require.True(t, cur.Gt(prev), "exp(%d) not greater than exp(%d)", n, n-1)
		prev = cur
	}
}

func TestMulDiv(t *testing.T) {
	a := MustFromDecimal("2.5")
	b := MustFromDecimal("4")
	require.Equal(t, "10", ToDecimal(Mul(a, b)))
	require.Equal(t, "0.625", ToDecimal(Div(a, b)))

	// Truncation, not rounding.
	require.Equal(t, MustFromDecimal("0.333333333333333333").Dec(), Div(Unit, wholes(3)).Dec())

	// Zero divisor yields zero.
	require.True(t, Div(Unit, new(uint256.Int)).IsZero())
}

func TestMulSaturates(t *testing.T) {
	require.Equal(t, Max.Dec(), Mul(Max, wholes(2)).Dec())
}

package engine

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

func TestComputeBMonotonic(t *testing.T) {
	b0 := fixedpoint.MustFromDecimal("100")
	alpha := fixedpoint.MustFromDecimal("0.01")

	volumes := []string{"0", "1", "10", "100", "1000", "5000"}
	prev := new(uint256.Int)
	for _, v := range volumes {
		b := computeB(b0, alpha, fixedpoint.MustFromDecimal(v))
		require.True(t, !b.Lt(prev), "computeB must be non-decreasing, volume %s", v)
		prev = b
	}
}

func TestComputeBConstantWithZeroAlpha(t *testing.T) {
	b0 := fixedpoint.MustFromDecimal("250")
	zero := new(uint256.Int)

	for _, v := range []string{"0", "10", "100000"} {
		b := computeB(b0, zero, fixedpoint.MustFromDecimal(v))
		require.Equal(t, b0.Dec(), b.Dec())
	}
}

func TestComputeBAtZeroVolume(t *testing.T) {
	b0 := fixedpoint.MustFromDecimal("100")
	alpha := fixedpoint.MustFromDecimal("0.01")
	require.Equal(t, b0.Dec(), computeB(b0, alpha, new(uint256.Int)).Dec())
}

func TestComputeBGrowth(t *testing.T) {
	// b0=100, alpha=0.01, volume=100: b = 100 * e^1 ~ 271.83.
	b := computeB(
		fixedpoint.MustFromDecimal("100"),
		fixedpoint.MustFromDecimal("0.01"),
		fixedpoint.MustFromDecimal("100"),
	)
	approxEqual(t, fixedpoint.MustFromDecimal("271.828182845904523500"), b, 100)
}

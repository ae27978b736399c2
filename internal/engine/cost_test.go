package engine

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

func vec(t *testing.T, vals ...string) []*uint256.Int {
	t.Helper()
	out := make([]*uint256.Int, len(vals))
	for i, v := range vals {
		out[i] = dec(t, v)
	}
	return out
}

func TestComputeCostAtOrigin(t *testing.T) {
	// C(0) = b * ln(n).
	b := dec(t, "100")
	cost, err := computeCost(vec(t, "0", "0"), b)
	require.NoError(t, err)
	approxEqual(t, dec(t, "69.314718055994530900"), cost, 10)

	cost, err = computeCost(vec(t, "0", "0", "0", "0"), b)
	require.NoError(t, err)
	approxEqual(t, dec(t, "138.629436111989061800"), cost, 10)
}

func TestComputeCostShiftInvariance(t *testing.T) {
	// Adding a constant to every quantity adds exactly that constant to the
	// cost: C(q + c) = C(q) + c. This is the property the max-shift relies
	// on, and it must hold through the fixed-point evaluation.
	b := dec(t, "100")
	base, err := computeCost(vec(t, "10", "4", "0"), b)
	require.NoError(t, err)

	shifted, err := computeCost(vec(t, "1010", "1004", "1000"), b)
	require.NoError(t, err)

	want := new(uint256.Int).Add(base, dec(t, "1000"))
	approxEqual(t, want, shifted, 1)
}

func TestComputeCostLargeQuantities(t *testing.T) {
	// The log-sum-exp shift keeps the evaluation bounded even when the raw
	// exponents would saturate: exp(q/b) with q/b = 1000 is far beyond the
	// overflow guard, yet the shifted form stays finite and exact.
	b := dec(t, "100")
	cost, err := computeCost(vec(t, "100000", "0"), b)
	require.NoError(t, err)

	// The laggard outcome underflows to zero weight, so C ~ maxQ.
	approxEqual(t, dec(t, "100000"), cost, 1)
}

func TestComputeCostDegenerateLiquidity(t *testing.T) {
	cost, err := computeCost(vec(t, "7", "3"), new(uint256.Int))
	require.NoError(t, err)
	require.Equal(t, dec(t, "7").Dec(), cost.Dec())
}

func TestComputeCostMonotonic(t *testing.T) {
	b := dec(t, "100")
	lo, err := computeCost(vec(t, "10", "5"), b)
	require.NoError(t, err)
	hi, err := computeCost(vec(t, "11", "5"), b)
	require.NoError(t, err)
	require.True(t, hi.Gt(lo), "cost must increase with quantities")
}

func TestComputePricesDegenerate(t *testing.T) {
	t.Run("zero liquidity", func(t *testing.T) {
		prices := computePrices(vec(t, "5", "5", "5"), new(uint256.Int))
		third := new(uint256.Int).Div(fixedpoint.Unit, uint256.NewInt(3))
		for _, p := range prices {
			require.Equal(t, third.Dec(), p.Dec())
		}
	})

	t.Run("no outcomes", func(t *testing.T) {
		require.Nil(t, computePrices(nil, dec(t, "100")))
	})
}

func TestComputePricesOrdering(t *testing.T) {
	// The outcome with more outstanding shares must price higher.
	prices := computePrices(vec(t, "30", "10", "20"), dec(t, "100"))
	require.True(t, prices[0].Gt(prices[2]))
	require.True(t, prices[2].Gt(prices[1]))
	approxEqual(t, fixedpoint.Unit, priceSum(prices), 10)
}

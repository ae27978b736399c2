package engine

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/liquiditysense/lsmm/internal/domain"
	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

var (
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	anchor = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func dec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := fixedpoint.FromDecimal(s)
	require.NoError(t, err)
	return v
}

// newMarket builds an open market with exact required funding.
func newMarket(t *testing.T, numOutcomes int, b0, alpha string) *Market {
	t.Helper()
	b0v := dec(t, b0)
	funding, err := RequiredFunding(numOutcomes, b0v)
	require.NoError(t, err)
	m, err := New("mkt-test", Params{
		NumOutcomes: numOutcomes,
		B0:          b0v,
		Alpha:       dec(t, alpha),
		Funding:     funding,
		Owner:       owner,
	}, anchor)
	require.NoError(t, err)
	return m
}

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

func priceSum(prices []*uint256.Int) *uint256.Int {
	sum := new(uint256.Int)
	for _, p := range prices {
		sum.Add(sum, p)
	}
	return sum
}

func TestNewValidation(t *testing.T) {
	b0 := fixedpoint.MustFromDecimal("100")
	goodFunding := func(n int) *uint256.Int {
		f, err := RequiredFunding(n, b0)
		require.NoError(t, err)
		return f
	}

	tests := []struct {
		name        string
		numOutcomes int
		funding     *uint256.Int
		wantErr     error
	}{
		{"two outcomes", 2, goodFunding(2), nil},
		{"three outcomes", 3, goodFunding(3), nil},
		{"four outcomes", 4, goodFunding(4), nil},
		{"five outcomes", 5, goodFunding(5), nil},
		{"zero outcomes", 0, fixedpoint.MustFromDecimal("100"), domain.ErrInvalidNumOutcomes},
		{"one outcome", 1, fixedpoint.MustFromDecimal("100"), domain.ErrInvalidNumOutcomes},
		{"six outcomes", 6, fixedpoint.MustFromDecimal("100"), domain.ErrInvalidNumOutcomes},
		{"funding off by one", 2, new(uint256.Int).AddUint64(goodFunding(2), 1), domain.ErrInvalidInitialFunding},
		{"funding zero", 2, new(uint256.Int), domain.ErrInvalidInitialFunding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New("m", Params{
				NumOutcomes: tt.numOutcomes,
				B0:          b0,
				Alpha:       new(uint256.Int),
				Funding:     tt.funding,
				Owner:       owner,
			}, anchor)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.funding.Dec(), m.Collateral().Dec())
		})
	}
}

func TestInitialSymmetry(t *testing.T) {
	for n := 2; n <= 5; n++ {
		m := newMarket(t, n, "100", "0")
		prices := m.Prices()
		require.Len(t, prices, n)

		expect := new(uint256.Int).Div(fixedpoint.Unit, uint256.NewInt(uint64(n)))
		for i, p := range prices {
			approxEqual(t, expect, p, 10)
			_ = i
		}
		approxEqual(t, fixedpoint.Unit, priceSum(prices), 10)
	}
}

func TestConcreteScenario(t *testing.T) {
	// numOutcomes=2, b0=100, alpha=0.01; funding = 100*ln(2) ~ 69.31.
	m := newMarket(t, 2, "100", "0.01")
	approxEqual(t, dec(t, "69.3147"), m.Collateral(), 10)

	ten := dec(t, "10")
	q, err := m.Quote(0, domain.SideBuy, ten)
	require.NoError(t, err)

	// Buying 10 shares costs more than nothing and less than 10.
	require.True(t, q.Cost.Gt(new(uint256.Int)))
	require.True(t, q.Cost.Lt(ten))

	xfer, err := m.Trade(alice, 0, domain.SideBuy, ten, ten, anchor)
	require.NoError(t, err)
	require.Equal(t, q.Cost.Dec(), xfer.Cost.Dec())
	require.Equal(t, new(uint256.Int).Sub(ten, q.Cost).Dec(), xfer.Refund.Dec())

	prices := m.Prices()
	half := dec(t, "0.5")
	require.True(t, prices[0].Gt(half), "price of bought outcome must rise above 0.5")
	approxEqual(t, fixedpoint.Unit, priceSum(prices), 10)

	// Collateral tracks the cost function at current state.
	cost, err := computeCost(m.Quantities(), m.B())
	require.NoError(t, err)
	require.Equal(t, cost.Dec(), m.Collateral().Dec())
}

func TestPriceSumInvariant(t *testing.T) {
	m := newMarket(t, 3, "50", "0.02")

	trades := []struct {
		outcome int
		side    domain.Side
		size    string
	}{
		{0, domain.SideBuy, "5"},
		{1, domain.SideBuy, "20"},
		{2, domain.SideBuy, "0.125"},
		{1, domain.SideSell, "7.5"},
		{0, domain.SideBuy, "100"},
		{0, domain.SideSell, "30"},
	}

	for _, tr := range trades {
		size := dec(t, tr.size)
		payment := new(uint256.Int)
		if tr.side == domain.SideBuy {
			payment = new(uint256.Int).Mul(size, uint256.NewInt(2)) // generous
		}
		_, err := m.Trade(alice, tr.outcome, tr.side, size, payment, anchor)
		require.NoError(t, err)

		approxEqual(t, fixedpoint.Unit, priceSum(m.Prices()), 10)
	}
}

func TestSymmetricRoundTrip(t *testing.T) {
	// With alpha=0 the liquidity parameter is constant, so buying and then
	// selling the same size restores quantities and collateral exactly.
	m := newMarket(t, 2, "100", "0")
	before := m.Collateral()

	ten := dec(t, "10")
	buy, err := m.Trade(alice, 0, domain.SideBuy, ten, ten, anchor)
	require.NoError(t, err)

	sell, err := m.Trade(alice, 0, domain.SideSell, ten, nil, anchor)
	require.NoError(t, err)

	require.Equal(t, buy.Cost.Dec(), sell.Cost.Dec(), "sell must return exactly the buy cost")
	require.Equal(t, before.Dec(), m.Collateral().Dec())
	for _, q := range m.Quantities() {
		require.True(t, q.IsZero())
	}
	bal, err := m.Balance(alice, 0)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestRoundTripGrowsCollateralWhenLiquiditySensitive(t *testing.T) {
	// With alpha > 0 the sell leg sees a larger b than the buy leg, so the
	// pool keeps the difference: activity permanently deepens liquidity.
	m := newMarket(t, 2, "100", "0.01")
	before := m.Collateral()

	ten := dec(t, "10")
	_, err := m.Trade(alice, 0, domain.SideBuy, ten, ten, anchor)
	require.NoError(t, err)
	_, err = m.Trade(alice, 0, domain.SideSell, ten, nil, anchor)
	require.NoError(t, err)

	require.True(t, m.Collateral().Gt(before))
}

func TestVolumeAccounting(t *testing.T) {
	m := newMarket(t, 2, "100", "0.01")

	_, err := m.Trade(alice, 0, domain.SideBuy, dec(t, "10"), dec(t, "10"), anchor)
	require.NoError(t, err)
	_, err = m.Trade(alice, 0, domain.SideSell, dec(t, "5"), nil, anchor)
	require.NoError(t, err)

	// Both directions add their magnitude: 10 + 5, not 10 - 5.
	require.Equal(t, dec(t, "15").Dec(), m.TotalVolume().Dec())
}

func TestQuoteDoesNotMutate(t *testing.T) {
	m := newMarket(t, 2, "100", "0.01")
	before := m.Snapshot()

	_, err := m.Quote(1, domain.SideBuy, dec(t, "25"))
	require.NoError(t, err)

	after := m.Snapshot()
	require.Equal(t, before.Collateral.Dec(), after.Collateral.Dec())
	require.Equal(t, before.TotalVolume.Dec(), after.TotalVolume.Dec())
	for i := range before.Quantities {
		require.Equal(t, before.Quantities[i].Dec(), after.Quantities[i].Dec())
	}
}

func TestTradeValidation(t *testing.T) {
	m := newMarket(t, 2, "100", "0")
	ten := dec(t, "10")

	t.Run("invalid outcome", func(t *testing.T) {
		_, err := m.Quote(2, domain.SideBuy, ten)
		require.ErrorIs(t, err, domain.ErrInvalidOutcome)
		_, err = m.Quote(-1, domain.SideBuy, ten)
		require.ErrorIs(t, err, domain.ErrInvalidOutcome)
	})

	t.Run("zero delta", func(t *testing.T) {
		_, err := m.Quote(0, domain.SideBuy, new(uint256.Int))
		require.ErrorIs(t, err, domain.ErrInvalidDelta)
	})

	t.Run("sell exceeding outstanding shares", func(t *testing.T) {
		_, err := m.Quote(0, domain.SideSell, ten)
		require.ErrorIs(t, err, domain.ErrInsufficientShares)
	})

	t.Run("insufficient payment", func(t *testing.T) {
		_, err := m.Trade(alice, 0, domain.SideBuy, ten, dec(t, "0.01"), anchor)
		require.ErrorIs(t, err, domain.ErrInsufficientPayment)
	})

	t.Run("payment attached to sell", func(t *testing.T) {
		_, err := m.Trade(alice, 0, domain.SideBuy, ten, ten, anchor)
		require.NoError(t, err)
		_, err = m.Trade(alice, 0, domain.SideSell, dec(t, "1"), dec(t, "1"), anchor)
		require.ErrorIs(t, err, domain.ErrInvalidDelta)
	})

	t.Run("selling another account's shares", func(t *testing.T) {
		// Aggregate quantities cover the size, but bob holds nothing.
		_, err := m.Trade(bob, 0, domain.SideSell, dec(t, "1"), nil, anchor)
		require.ErrorIs(t, err, domain.ErrInsufficientShares)
	})

	t.Run("failed trade leaves state untouched", func(t *testing.T) {
		before := m.Snapshot()
		_, err := m.Trade(alice, 0, domain.SideBuy, ten, new(uint256.Int), anchor)
		require.ErrorIs(t, err, domain.ErrInsufficientPayment)
		after := m.Snapshot()
		require.Equal(t, before.Collateral.Dec(), after.Collateral.Dec())
		require.Equal(t, before.TotalVolume.Dec(), after.TotalVolume.Dec())
	})
}

func TestResolutionAndClaims(t *testing.T) {
	m := newMarket(t, 2, "100", "0")
	ten := dec(t, "10")

	_, err := m.Trade(alice, 0, domain.SideBuy, ten, ten, anchor)
	require.NoError(t, err)
	_, err = m.Trade(bob, 1, domain.SideBuy, dec(t, "4"), dec(t, "4"), anchor)
	require.NoError(t, err)

	t.Run("claim before resolution fails", func(t *testing.T) {
		_, err := m.Claim(alice, anchor)
		require.ErrorIs(t, err, domain.ErrNotResolved)
	})

	t.Run("non-owner cannot resolve", func(t *testing.T) {
		_, err := m.Resolve(alice, 0, anchor)
		require.ErrorIs(t, err, domain.ErrOnlyOwner)
	})

	t.Run("out of range outcome", func(t *testing.T) {
		_, err := m.Resolve(owner, 2, anchor)
		require.ErrorIs(t, err, domain.ErrInvalidOutcome)
	})

	t.Run("owner resolves once", func(t *testing.T) {
		res, err := m.Resolve(owner, 0, anchor)
		require.NoError(t, err)
		require.Equal(t, 0, res.WinningOutcome)
		require.True(t, m.Resolved())

		_, err = m.Resolve(owner, 1, anchor)
		require.ErrorIs(t, err, domain.ErrMarketResolved)
	})

	t.Run("trading stops after resolution", func(t *testing.T) {
		_, err := m.Trade(alice, 0, domain.SideBuy, ten, ten, anchor)
		require.ErrorIs(t, err, domain.ErrMarketResolved)
	})

	t.Run("winner redeems one-to-one and only once", func(t *testing.T) {
		claim, err := m.Claim(alice, anchor)
		require.NoError(t, err)
		require.Equal(t, ten.Dec(), claim.Amount.Dec())

		bal, err := m.Balance(alice, 0)
		require.NoError(t, err)
		require.True(t, bal.IsZero())

		_, err = m.Claim(alice, anchor)
		require.ErrorIs(t, err, domain.ErrInsufficientShares)
	})

	t.Run("loser has nothing to claim", func(t *testing.T) {
		_, err := m.Claim(bob, anchor)
		require.ErrorIs(t, err, domain.ErrInsufficientShares)
	})
}

func TestRestoreRoundTrip(t *testing.T) {
	m := newMarket(t, 3, "100", "0.01")
	ten := dec(t, "10")
	_, err := m.Trade(alice, 1, domain.SideBuy, ten, ten, anchor)
	require.NoError(t, err)

	snap := m.Snapshot()
	positions := []domain.Position{m.PositionSnapshot(alice)}

	restored := Restore(snap, positions)
	require.Equal(t, m.Collateral().Dec(), restored.Collateral().Dec())
	require.Equal(t, m.TotalVolume().Dec(), restored.TotalVolume().Dec())
	require.Equal(t, m.B().Dec(), restored.B().Dec())

	balWant, err := m.Balance(alice, 1)
	require.NoError(t, err)
	balGot, err := restored.Balance(alice, 1)
	require.NoError(t, err)
	require.Equal(t, balWant.Dec(), balGot.Dec())
}

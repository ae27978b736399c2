package engine

import (
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

// computePrices evaluates the gradient of the cost function — the softmax of
// q/b — reusing the same shifted exponentials as the cost evaluation:
// price_i = rel_i / sumRel. Up to truncation the prices sum to Unit. When
// the market is degenerate (no outcomes, zero liquidity, or total underflow
// of the shifted exponentials) it falls back to the uniform distribution
// rather than dividing by zero.
func computePrices(q []*uint256.Int, b *uint256.Int) []*uint256.Int {
	n := len(q)
	if n == 0 {
		return nil
	}

	if b.IsZero() {
		return uniformPrices(n)
	}

	terms := computeTerms(q, b)
	if terms.sumRel.IsZero() {
		return uniformPrices(n)
	}

	prices := make([]*uint256.Int, n)
	for i, rel := range terms.rel {
		prices[i] = fixedpoint.Div(rel, terms.sumRel)
	}
	return prices
}

func uniformPrices(n int) []*uint256.Int {
	share := new(uint256.Int).Div(fixedpoint.Unit, uint256.NewInt(uint64(n)))
	prices := make([]*uint256.Int, n)
	for i := range prices {
		prices[i] = new(uint256.Int).Set(share)
	}
	return prices
}

// Prices returns the current normalized price vector.
func (m *Market) Prices() []*uint256.Int {
	return computePrices(m.quantities, m.B())
}

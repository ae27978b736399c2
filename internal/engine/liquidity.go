package engine

import (
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

// computeB evaluates the liquidity model b = b0 * exp(alpha * volume).
// Liquidity starts tight, so early trades move prices sharply, and flattens
// as volume accumulates. Monotonic non-decreasing in volume since alpha >= 0;
// constant when alpha is zero. Both buys and sells contribute their magnitude
// to volume: liquidity growth tracks activity, not net position change.
func computeB(b0, alpha, totalVolume *uint256.Int) *uint256.Int {
	if alpha.IsZero() {
		return new(uint256.Int).Set(b0)
	}
	return fixedpoint.Mul(b0, fixedpoint.Exp(fixedpoint.Mul(alpha, totalVolume)))
}

// B returns the current liquidity parameter.
func (m *Market) B() *uint256.Int {
	return computeB(m.b0, m.alpha, m.totalVolume)
}

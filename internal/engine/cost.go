package engine

import (
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

// costTerms holds the shifted exponentials shared by the cost function and
// the price oracle: rel[i] = exp((q[i]-maxQ)/b), kept as a non-negative
// inverted exponential so no intermediate ever exceeds Unit.
type costTerms struct {
	maxQ   *uint256.Int
	rel    []*uint256.Int
	sumRel *uint256.Int
}

// computeTerms evaluates the log-sum-exp shift for the quantity vector q
// under liquidity b. For the maximal outcome the relative exponential is
// exactly Unit; for the rest it is Unit^2 / exp((maxQ-q[i])/b), which
// truncates to zero when the gap is large enough to saturate Exp. b must be
// nonzero.
func computeTerms(q []*uint256.Int, b *uint256.Int) costTerms {
	maxQ := new(uint256.Int)
	for _, qi := range q {
		if qi.Gt(maxQ) {
			maxQ.Set(qi)
		}
	}

	unitSq := new(uint256.Int).Mul(fixedpoint.Unit, fixedpoint.Unit)
	rel := make([]*uint256.Int, len(q))
	sumRel := new(uint256.Int)
	for i, qi := range q {
		delta := new(uint256.Int).Sub(maxQ, qi)
		if delta.IsZero() {
			rel[i] = new(uint256.Int).Set(fixedpoint.Unit)
		} else {
			e := fixedpoint.Exp(fixedpoint.Div(delta, b))
			rel[i] = new(uint256.Int).Div(unitSq, e)
		}
		sumRel.Add(sumRel, rel[i])
	}

	return costTerms{maxQ: maxQ, rel: rel, sumRel: sumRel}
}

// computeCost evaluates the LS-LMSR potential C(q) = b * ln(sum exp(q_i/b))
// as maxQ + b * ln(sum exp((q_i-maxQ)/b)), which is algebraically identical
// but bounded in magnitude regardless of how large q grows. In the
// degenerate b == 0 limit the potential collapses to max(q).
func computeCost(q []*uint256.Int, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		maxQ := new(uint256.Int)
		for _, qi := range q {
			if qi.Gt(maxQ) {
				maxQ.Set(qi)
			}
		}
		return maxQ, nil
	}

	terms := computeTerms(q, b)
	// sumRel >= Unit always: the maximal outcome contributes exactly Unit.
	lnSum, err := fixedpoint.Ln(terms.sumRel)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Add(terms.maxQ, fixedpoint.Mul(b, lnSum)), nil
}

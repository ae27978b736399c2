package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// QuoteResult is the outcome of a side-effect-free trade preview. For a buy,
// Cost is the collateral the buyer owes; for a sell, Cost is the collateral
// paid out to the seller. Prices is the price vector the trade would leave
// behind.
type QuoteResult struct {
	Outcome int
	Side    domain.Side
	Size    *uint256.Int
	Cost    *uint256.Int
	Prices  []*uint256.Int
}

// preview validates a hypothetical trade and computes the post-trade
// quantity vector and cost-function value without touching state.
type preview struct {
	newQuantities []*uint256.Int
	newCost       *uint256.Int
	quote         QuoteResult
}

func (m *Market) previewTrade(outcome int, side domain.Side, size *uint256.Int) (preview, error) {
	if outcome < 0 || outcome >= m.numOutcomes {
		return preview{}, domain.ErrInvalidOutcome
	}
	if size == nil || size.IsZero() {
		return preview{}, domain.ErrInvalidDelta
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return preview{}, domain.ErrInvalidDelta
	}

	newQ := cloneVector(m.quantities)
	if side == domain.SideBuy {
		newQ[outcome].Add(newQ[outcome], size)
	} else {
		// Selling more than the outstanding issued shares is rejected even
		// though quantities are aggregate, not the caller's balance.
		if size.Gt(m.quantities[outcome]) {
			return preview{}, domain.ErrInsufficientShares
		}
		newQ[outcome].Sub(newQ[outcome], size)
	}

	b := m.B()
	newCost, err := computeCost(newQ, b)
	if err != nil {
		return preview{}, err
	}

	// cost = C(newQ) - collateral, with sign carried by the side. Truncation
	// can land the difference a hair on the wrong side of zero; clamp to
	// zero rather than flipping direction.
	cost := new(uint256.Int)
	if side == domain.SideBuy {
		if newCost.Gt(m.collateral) {
			cost.Sub(newCost, m.collateral)
		}
	} else {
		if m.collateral.Gt(newCost) {
			cost.Sub(m.collateral, newCost)
		}
	}

	return preview{
		newQuantities: newQ,
		newCost:       newCost,
		quote: QuoteResult{
			Outcome: outcome,
			Side:    side,
			Size:    new(uint256.Int).Set(size),
			Cost:    cost,
			Prices:  computePrices(newQ, b),
		},
	}, nil
}

// Quote prices a hypothetical trade against current state without mutating
// it. A quote goes stale the moment another trade commits; callers must
// re-quote immediately before trading or tolerate the difference.
func (m *Market) Quote(outcome int, side domain.Side, size *uint256.Int) (QuoteResult, error) {
	p, err := m.previewTrade(outcome, side, size)
	if err != nil {
		return QuoteResult{}, err
	}
	return p.quote, nil
}

// Trade applies a buy or sell to the market. For buys the payment must
// cover the quoted cost and the excess is refunded; sells must not attach a
// payment and are paid the quoted proceeds. On success the quantities,
// cumulative volume, collateral, and the caller's position are updated
// together and a signed transfer record is returned. Any failure leaves
// state untouched.
func (m *Market) Trade(account common.Address, outcome int, side domain.Side, size, payment *uint256.Int, now time.Time) (domain.Transfer, error) {
	if m.status == domain.MarketStatusResolved {
		return domain.Transfer{}, domain.ErrMarketResolved
	}
	if payment == nil {
		payment = new(uint256.Int)
	}

	p, err := m.previewTrade(outcome, side, size)
	if err != nil {
		return domain.Transfer{}, err
	}

	refund := new(uint256.Int)
	switch side {
	case domain.SideBuy:
		if payment.Lt(p.quote.Cost) {
			return domain.Transfer{}, domain.ErrInsufficientPayment
		}
		refund.Sub(payment, p.quote.Cost)
	case domain.SideSell:
		if !payment.IsZero() {
			return domain.Transfer{}, domain.ErrInvalidDelta
		}
		// The aggregate check ran in preview; the caller must also hold the
		// shares being sold, or their position entry would go negative.
		bal, ok := m.positions[account]
		if !ok || size.Gt(bal[outcome]) {
			return domain.Transfer{}, domain.ErrInsufficientShares
		}
	}

	// Commit. All mutations below are infallible.
	m.quantities = p.newQuantities
	m.totalVolume.Add(m.totalVolume, size)
	m.collateral = p.newCost
	m.updatedAt = now

	pos := m.position(account)
	if side == domain.SideBuy {
		pos[outcome].Add(pos[outcome], size)
	} else {
		pos[outcome].Sub(pos[outcome], size)
	}

	return domain.Transfer{
		ID:        uuid.NewString(),
		MarketID:  m.id,
		Account:   account,
		Outcome:   outcome,
		Side:      side,
		Size:      new(uint256.Int).Set(size),
		Cost:      new(uint256.Int).Set(p.quote.Cost),
		Refund:    refund,
		CreatedAt: now,
	}, nil
}

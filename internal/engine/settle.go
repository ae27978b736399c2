package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// Resolve settles the market on the winning outcome. Only the owner may
// resolve, the transition open -> resolved happens exactly once, and it is
// irreversible. Trading stops; claims become possible.
func (m *Market) Resolve(caller common.Address, winningOutcome int, now time.Time) (domain.Resolution, error) {
	if caller != m.owner {
		return domain.Resolution{}, domain.ErrOnlyOwner
	}
	if m.status == domain.MarketStatusResolved {
		return domain.Resolution{}, domain.ErrMarketResolved
	}
	if winningOutcome < 0 || winningOutcome >= m.numOutcomes {
		return domain.Resolution{}, domain.ErrInvalidOutcome
	}

	m.status = domain.MarketStatusResolved
	m.winningOutcome = winningOutcome
	m.updatedAt = now
	resolvedAt := now
	m.resolvedAt = &resolvedAt

	return domain.Resolution{
		MarketID:       m.id,
		WinningOutcome: winningOutcome,
		ResolvedBy:     caller,
		ResolvedAt:     now,
	}, nil
}

// WinningOutcome returns the settled outcome index; valid only after
// resolution.
func (m *Market) WinningOutcome() (int, error) {
	if m.status != domain.MarketStatusResolved {
		return 0, domain.ErrNotResolved
	}
	return m.winningOutcome, nil
}

// Claim redeems the account's winning shares at one payout unit per share.
// The balance is zeroed before the payout amount is reported, so a repeated
// claim always fails with ErrInsufficientShares.
func (m *Market) Claim(account common.Address, now time.Time) (domain.Claim, error) {
	if m.status != domain.MarketStatusResolved {
		return domain.Claim{}, domain.ErrNotResolved
	}

	bal, ok := m.positions[account]
	if !ok || bal[m.winningOutcome].IsZero() {
		return domain.Claim{}, domain.ErrInsufficientShares
	}

	amount := new(uint256.Int).Set(bal[m.winningOutcome])
	bal[m.winningOutcome].Clear()
	m.updatedAt = now

	return domain.Claim{
		ID:        uuid.NewString(),
		MarketID:  m.id,
		Account:   account,
		Outcome:   m.winningOutcome,
		Amount:    amount,
		CreatedAt: now,
	}, nil
}

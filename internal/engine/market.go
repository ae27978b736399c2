// Package engine implements the LS-LMSR pricing and settlement engine: the
// volume-sensitive liquidity model, the numerically-stable cost function,
// the price oracle, the trade state machine, the per-account ledger, and
// one-shot resolution. A Market is a plain owned state object with no I/O
// and no internal locking; the service layer serializes writers and
// persists committed transitions.
package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/domain"
	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

const (
	// MinOutcomes and MaxOutcomes bound the outcome count at creation.
	MinOutcomes = 2
	MaxOutcomes = 5
)

// Market is the in-memory authoritative state of one LS-LMSR market.
type Market struct {
	id             string
	numOutcomes    int
	b0             *uint256.Int
	alpha          *uint256.Int
	quantities     []*uint256.Int
	totalVolume    *uint256.Int
	collateral     *uint256.Int
	status         domain.MarketStatus
	winningOutcome int
	owner          common.Address
	createdAt      time.Time
	updatedAt      time.Time
	resolvedAt     *time.Time

	// ledger: per-account share balances, one entry per outcome. Entries are
	// created lazily on first trade and zeroed (never deleted) on claim.
	positions map[common.Address][]*uint256.Int
}

// Params are the immutable creation parameters of a market.
type Params struct {
	NumOutcomes int
	B0          *uint256.Int
	Alpha       *uint256.Int
	Funding     *uint256.Int
	Owner       common.Address
}

// RequiredFunding returns b0 * ln(numOutcomes), the exact initial funding a
// market with the given parameters demands. The same fixed-point evaluation
// is used by New, so callers computing funding through this helper always
// pass the construction check.
func RequiredFunding(numOutcomes int, b0 *uint256.Int) (*uint256.Int, error) {
	if numOutcomes < MinOutcomes || numOutcomes > MaxOutcomes {
		return nil, domain.ErrInvalidNumOutcomes
	}
	n := new(uint256.Int).Mul(uint256.NewInt(uint64(numOutcomes)), fixedpoint.Unit)
	lnN, err := fixedpoint.Ln(n)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Mul(b0, lnN), nil
}

// New creates a market. The funding amount must equal b0 * ln(numOutcomes)
// exactly; it becomes the initial collateral, matching the cost function's
// value at the all-zero quantity vector.
func New(id string, p Params, now time.Time) (*Market, error) {
	if p.NumOutcomes < MinOutcomes || p.NumOutcomes > MaxOutcomes {
		return nil, domain.ErrInvalidNumOutcomes
	}
	if p.B0 == nil || p.B0.IsZero() {
		return nil, domain.ErrInvalidInitialFunding
	}
	alpha := p.Alpha
	if alpha == nil {
		alpha = new(uint256.Int)
	}

	required, err := RequiredFunding(p.NumOutcomes, p.B0)
	if err != nil {
		return nil, err
	}
	if p.Funding == nil || p.Funding.Cmp(required) != 0 {
		return nil, domain.ErrInvalidInitialFunding
	}

	quantities := make([]*uint256.Int, p.NumOutcomes)
	for i := range quantities {
		quantities[i] = new(uint256.Int)
	}

	return &Market{
		id:          id,
		numOutcomes: p.NumOutcomes,
		b0:          new(uint256.Int).Set(p.B0),
		alpha:       new(uint256.Int).Set(alpha),
		quantities:  quantities,
		totalVolume: new(uint256.Int),
		collateral:  new(uint256.Int).Set(p.Funding),
		status:      domain.MarketStatusOpen,
		owner:       p.Owner,
		createdAt:   now,
		updatedAt:   now,
		positions:   make(map[common.Address][]*uint256.Int),
	}, nil
}

// Restore rebuilds a market engine from persisted snapshots. It is used at
// startup; the snapshot is trusted to have been produced by a prior commit.
func Restore(m domain.Market, positions []domain.Position) *Market {
	mkt := &Market{
		id:             m.ID,
		numOutcomes:    m.NumOutcomes,
		b0:             new(uint256.Int).Set(m.B0),
		alpha:          new(uint256.Int).Set(m.Alpha),
		quantities:     cloneVector(m.Quantities),
		totalVolume:    new(uint256.Int).Set(m.TotalVolume),
		collateral:     new(uint256.Int).Set(m.Collateral),
		status:         m.Status,
		winningOutcome: m.WinningOutcome,
		owner:          m.Owner,
		createdAt:      m.CreatedAt,
		updatedAt:      m.UpdatedAt,
		resolvedAt:     m.ResolvedAt,
		positions:      make(map[common.Address][]*uint256.Int, len(positions)),
	}
	for _, p := range positions {
		mkt.positions[p.Account] = cloneVector(p.Balances)
	}
	return mkt
}

// ID returns the market identifier.
func (m *Market) ID() string { return m.id }

// NumOutcomes returns the fixed outcome count.
func (m *Market) NumOutcomes() int { return m.numOutcomes }

// Owner returns the identity permitted to resolve the market.
func (m *Market) Owner() common.Address { return m.owner }

// Resolved reports whether the market has been settled.
func (m *Market) Resolved() bool { return m.status == domain.MarketStatusResolved }

// Quantity returns the outstanding issued shares of one outcome.
func (m *Market) Quantity(outcome int) (*uint256.Int, error) {
	if outcome < 0 || outcome >= m.numOutcomes {
		return nil, domain.ErrInvalidOutcome
	}
	return new(uint256.Int).Set(m.quantities[outcome]), nil
}

// Quantities returns a copy of the full quantity vector.
func (m *Market) Quantities() []*uint256.Int { return cloneVector(m.quantities) }

// TotalVolume returns the cumulative traded magnitude across both sides.
func (m *Market) TotalVolume() *uint256.Int { return new(uint256.Int).Set(m.totalVolume) }

// Collateral returns the pooled funds backing the market. It equals the cost
// function evaluated at the current state.
func (m *Market) Collateral() *uint256.Int { return new(uint256.Int).Set(m.collateral) }

// Info returns the market info read-model.
func (m *Market) Info() domain.MarketInfo {
	return domain.MarketInfo{
		ID:             m.id,
		NumOutcomes:    m.numOutcomes,
		B0:             new(uint256.Int).Set(m.b0),
		Alpha:          new(uint256.Int).Set(m.alpha),
		CurrentB:       m.B(),
		TotalVolume:    new(uint256.Int).Set(m.totalVolume),
		Collateral:     new(uint256.Int).Set(m.collateral),
		Resolved:       m.status == domain.MarketStatusResolved,
		WinningOutcome: m.winningOutcome,
		Owner:          m.owner,
	}
}

// Snapshot returns the persistable projection of the market state.
func (m *Market) Snapshot() domain.Market {
	return domain.Market{
		ID:             m.id,
		NumOutcomes:    m.numOutcomes,
		B0:             new(uint256.Int).Set(m.b0),
		Alpha:          new(uint256.Int).Set(m.alpha),
		Quantities:     cloneVector(m.quantities),
		TotalVolume:    new(uint256.Int).Set(m.totalVolume),
		Collateral:     new(uint256.Int).Set(m.collateral),
		Status:         m.status,
		WinningOutcome: m.winningOutcome,
		Owner:          m.owner,
		CreatedAt:      m.createdAt,
		UpdatedAt:      m.updatedAt,
		ResolvedAt:     m.resolvedAt,
	}
}

// Balance returns the account's share balance in one outcome. Accounts that
// never traded hold zero everywhere.
func (m *Market) Balance(account common.Address, outcome int) (*uint256.Int, error) {
	if outcome < 0 || outcome >= m.numOutcomes {
		return nil, domain.ErrInvalidOutcome
	}
	bal, ok := m.positions[account]
	if !ok {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Set(bal[outcome]), nil
}

// Balances returns a copy of the account's full balance vector.
func (m *Market) Balances(account common.Address) []*uint256.Int {
	bal, ok := m.positions[account]
	if !ok {
		out := make([]*uint256.Int, m.numOutcomes)
		for i := range out {
			out[i] = new(uint256.Int)
		}
		return out
	}
	return cloneVector(bal)
}

// PositionSnapshot returns the persistable projection of one account's
// position.
func (m *Market) PositionSnapshot(account common.Address) domain.Position {
	return domain.Position{
		MarketID:  m.id,
		Account:   account,
		Balances:  m.Balances(account),
		UpdatedAt: m.updatedAt,
	}
}

func (m *Market) position(account common.Address) []*uint256.Int {
	bal, ok := m.positions[account]
	if !ok {
		bal = make([]*uint256.Int, m.numOutcomes)
		for i := range bal {
			bal[i] = new(uint256.Int)
		}
		m.positions[account] = bal
	}
	return bal
}

func cloneVector(v []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(v))
	for i, x := range v {
		if x == nil {
			out[i] = new(uint256.Int)
			continue
		}
		out[i] = new(uint256.Int).Set(x)
	}
	return out
}

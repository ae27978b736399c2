package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MarketStatus represents the lifecycle state of a market. The transition
// open -> resolved happens exactly once and is irreversible; claims remain
// possible after it.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusResolved MarketStatus = "resolved"
)

// Market is the persisted snapshot of an LS-LMSR market. All monetary and
// share magnitudes are fixed-point values scaled by fixedpoint.Unit.
type Market struct {
	ID             string
	NumOutcomes    int
	B0             *uint256.Int // base liquidity constant, fixed at creation
	Alpha          *uint256.Int // liquidity sensitivity, fixed at creation
	Quantities     []*uint256.Int
	TotalVolume    *uint256.Int // sum of |delta| over all trades, both sides
	Collateral     *uint256.Int // equals the cost function at current state
	Status         MarketStatus
	WinningOutcome int // meaningful only when Status is resolved
	Owner          common.Address
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
}

// MarketInfo is the read-model returned by the market info query.
type MarketInfo struct {
	ID             string
	NumOutcomes    int
	B0             *uint256.Int
	Alpha          *uint256.Int
	CurrentB       *uint256.Int
	TotalVolume    *uint256.Int
	Collateral     *uint256.Int
	Resolved       bool
	WinningOutcome int
	Owner          common.Address
}

package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position holds an account's share balances in a single market, one entry
// per outcome. Positions are created lazily on the account's first trade and
// are never physically destroyed; a successful claim zeroes the winning
// entry.
type Position struct {
	MarketID  string
	Account   common.Address
	Balances  []*uint256.Int
	UpdatedAt time.Time
}

package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Side indicates the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Transfer is the signed transfer record emitted for every committed trade.
// Size is the magnitude of the share delta; Side carries its sign. Cost is
// the collateral charged to a buyer or paid out to a seller, and Refund is
// the buyer's overpayment returned to the caller (always zero for sells).
type Transfer struct {
	ID        string
	MarketID  string
	Account   common.Address
	Outcome   int
	Side      Side
	Size      *uint256.Int
	Cost      *uint256.Int
	Refund    *uint256.Int
	CreatedAt time.Time
}

// Resolution records the one-shot settlement of a market, including the
// operator signature over the receipt so settlements are attributable.
type Resolution struct {
	MarketID       string
	WinningOutcome int
	ResolvedBy     common.Address
	Signature      string // hex-encoded secp256k1 signature over the receipt digest
	ResolvedAt     time.Time
}

// Claim records a winning-share redemption: the zeroed balance is paid out
// one-to-one in the settlement currency.
type Claim struct {
	ID        string
	MarketID  string
	Account   common.Address
	Outcome   int
	Amount    *uint256.Int
	CreatedAt time.Time
}

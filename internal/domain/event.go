package domain

import "time"

// Signal bus channels carrying committed-event JSON payloads.
const (
	ChannelPrices      = "ch:prices"
	ChannelTrades      = "ch:trades"
	ChannelResolutions = "ch:resolutions"
	ChannelClaims      = "ch:claims"
)

// PriceEvent is published after every committed trade with the new price
// vector. Amounts are decimal strings to survive JSON without precision loss.
type PriceEvent struct {
	MarketID  string    `json:"marketId"`
	Prices    []string  `json:"prices"`
	B         string    `json:"b"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeEvent mirrors a committed transfer record.
type TradeEvent struct {
	MarketID  string    `json:"marketId"`
	Account   string    `json:"account"`
	Outcome   int       `json:"outcome"`
	Side      Side      `json:"side"`
	Size      string    `json:"size"`
	Cost      string    `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

// ResolutionEvent announces a market's one-shot settlement.
type ResolutionEvent struct {
	MarketID       string    `json:"marketId"`
	WinningOutcome int       `json:"winningOutcome"`
	ResolvedBy     string    `json:"resolvedBy"`
	Signature      string    `json:"signature"`
	Timestamp      time.Time `json:"timestamp"`
}

// ClaimEvent announces a paid redemption.
type ClaimEvent struct {
	MarketID  string    `json:"marketId"`
	Account   string    `json:"account"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

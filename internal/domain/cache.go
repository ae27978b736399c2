package domain

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

// PriceBook is the cached per-outcome price vector for a market together
// with the liquidity parameter it was computed under.
type PriceBook struct {
	MarketID  string
	Prices    []*uint256.Int
	B         *uint256.Int
	UpdatedAt time.Time
}

// PriceCache provides fast access to the latest committed prices.
type PriceCache interface {
	Set(ctx context.Context, book PriceBook) error
	Get(ctx context.Context, marketID string) (PriceBook, error)
	Invalidate(ctx context.Context, marketID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. The commit path of every market
// takes its lock so that a second replica cannot interleave writers.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of committed events to observers such
// as the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, error)
}

// BusMessage is a single message received from the signal bus.
type BusMessage struct {
	Channel string
	Payload []byte
}

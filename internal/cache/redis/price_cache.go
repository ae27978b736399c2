package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each market's
// price book is stored at key "prices:{marketID}" with fields "prices"
// (comma-joined decimal strings), "b", and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(marketID string) string {
	return "prices:" + marketID
}

// Set stores the latest price book for a market.
func (pc *PriceCache) Set(ctx context.Context, book domain.PriceBook) error {
	prices := make([]string, len(book.Prices))
	for i, p := range book.Prices {
		prices[i] = p.Dec()
	}
	fields := map[string]interface{}{
		"prices": strings.Join(prices, ","),
		"b":      book.B.Dec(),
		"ts":     strconv.FormatInt(book.UpdatedAt.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(book.MarketID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set prices %s: %w", book.MarketID, err)
	}
	return nil
}

// Get retrieves the latest price book for a market. It returns
// domain.ErrNotFound when no book is cached.
func (pc *PriceCache) Get(ctx context.Context, marketID string) (domain.PriceBook, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(marketID)).Result()
	if err != nil {
		return domain.PriceBook{}, fmt.Errorf("redis: get prices %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return domain.PriceBook{}, domain.ErrNotFound
	}

	pricesStr, ok := vals["prices"]
	if !ok {
		return domain.PriceBook{}, domain.ErrNotFound
	}
	parts := strings.Split(pricesStr, ",")
	prices := make([]*uint256.Int, len(parts))
	for i, p := range parts {
		v, err := uint256.FromDecimal(p)
		if err != nil {
			return domain.PriceBook{}, fmt.Errorf("redis: parse price %s: %w", marketID, err)
		}
		prices[i] = v
	}

	b, err := uint256.FromDecimal(vals["b"])
	if err != nil {
		return domain.PriceBook{}, fmt.Errorf("redis: parse liquidity %s: %w", marketID, err)
	}

	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.PriceBook{}, fmt.Errorf("redis: parse ts %s: %w", marketID, err)
	}

	return domain.PriceBook{
		MarketID:  marketID,
		Prices:    prices,
		B:         b,
		UpdatedAt: time.Unix(0, tsNano),
	}, nil
}

// Invalidate drops the cached price book for a market.
func (pc *PriceCache) Invalidate(ctx context.Context, marketID string) error {
	if err := pc.rdb.Del(ctx, priceKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate prices %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)

package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a new ResolutionStore backed by the given pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

// GetByMarket retrieves the resolution receipt for a market.
func (s *ResolutionStore) GetByMarket(ctx context.Context, marketID string) (domain.Resolution, error) {
	var (
		r          domain.Resolution
		resolvedBy string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT market_id, winning_outcome, resolved_by, signature, resolved_at
		 FROM resolutions WHERE market_id = $1`, marketID).
		Scan(&r.MarketID, &r.WinningOutcome, &resolvedBy, &r.Signature, &r.ResolvedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Resolution{}, domain.ErrNotFound
		}
		return domain.Resolution{}, fmt.Errorf("postgres: get resolution %s: %w", marketID, err)
	}
	r.ResolvedBy = common.HexToAddress(resolvedBy)
	return r, nil
}

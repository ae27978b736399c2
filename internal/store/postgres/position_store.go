package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

func scanPosition(row pgx.Row) (domain.Position, error) {
	var (
		p        domain.Position
		account  string
		balances []string
	)
	if err := row.Scan(&p.MarketID, &account, &balances, &p.UpdatedAt); err != nil {
		return domain.Position{}, err
	}
	var err error
	if p.Balances, err = decodeVec(balances); err != nil {
		return domain.Position{}, err
	}
	p.Account = common.HexToAddress(account)
	return p, nil
}

// Get retrieves the position of a single account in a market.
func (s *PositionStore) Get(ctx context.Context, marketID string, account common.Address) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT market_id, account, balances, updated_at
		 FROM positions WHERE market_id = $1 AND account = $2`,
		marketID, account.Hex())
	p, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", marketID, account.Hex(), err)
	}
	return p, nil
}

// ListByMarket returns every account position in a market. Used to rebuild
// engine state at startup.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, account, balances, updated_at
		 FROM positions WHERE market_id = $1 ORDER BY account`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for %s: %w", marketID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: position rows: %w", err)
	}
	return positions, nil
}

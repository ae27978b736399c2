package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, num_outcomes, b0, alpha, quantities,
	total_volume, collateral, status, winning_outcome, owner_address,
	created_at, updated_at, resolved_at`

// Create inserts a newly created market snapshot.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, num_outcomes, b0, alpha, quantities,
			total_volume, collateral, status, winning_outcome, owner_address,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.NumOutcomes, m.B0.Dec(), m.Alpha.Dec(), encodeVec(m.Quantities),
		m.TotalVolume.Dec(), m.Collateral.Dec(), string(m.Status), m.WinningOutcome,
		m.Owner.Hex(), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m          domain.Market
		b0         string
		alpha      string
		quantities []string
		volume     string
		collateral string
		status     string
		owner      string
	)
	err := row.Scan(
		&m.ID, &m.NumOutcomes, &b0, &alpha, &quantities,
		&volume, &collateral, &status, &m.WinningOutcome, &owner,
		&m.CreatedAt, &m.UpdatedAt, &m.ResolvedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	if m.B0, err = decode(b0); err != nil {
		return domain.Market{}, err
	}
	if m.Alpha, err = decode(alpha); err != nil {
		return domain.Market{}, err
	}
	if m.Quantities, err = decodeVec(quantities); err != nil {
		return domain.Market{}, err
	}
	if m.TotalVolume, err = decode(volume); err != nil {
		return domain.Market{}, err
	}
	if m.Collateral, err = decode(collateral); err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	m.Owner = common.HexToAddress(owner)
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets ordered by creation time with pagination and optional
// time filtering.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE TRUE`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// ListResolvedBefore returns resolved markets whose resolution time is before
// the given cutoff. Used by the archival loop.
func (s *MarketStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE status = 'resolved' AND resolved_at < $1
		 ORDER BY resolved_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

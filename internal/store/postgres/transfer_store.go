package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// TransferStore implements domain.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a new TransferStore backed by the given connection pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

const transferCols = `id, market_id, account, outcome, side, size, cost, refund, created_at`

func scanTransferRows(rows pgx.Rows) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	for rows.Next() {
		var (
			t       domain.Transfer
			account string
			side    string
			size    string
			cost    string
			refund  string
		)
		if err := rows.Scan(
			&t.ID, &t.MarketID, &account, &t.Outcome, &side,
			&size, &cost, &refund, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		var err error
		if t.Size, err = decode(size); err != nil {
			return nil, err
		}
		if t.Cost, err = decode(cost); err != nil {
			return nil, err
		}
		if t.Refund, err = decode(refund); err != nil {
			return nil, err
		}
		t.Account = common.HexToAddress(account)
		t.Side = domain.Side(side)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// ListByMarket returns transfers for a given market with pagination and
// optional time filtering, newest first.
func (s *TransferStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Transfer, error) {
	query := `SELECT ` + transferCols + ` FROM transfers WHERE market_id = $1`
	args := []any{marketID}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list transfers by market: %w", err)
	}
	defer rows.Close()

	transfers, err := scanTransferRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transfers by market: %w", err)
	}
	return transfers, nil
}

// ListByAccount returns transfers made by an account across all markets,
// newest first.
func (s *TransferStore) ListByAccount(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.Transfer, error) {
	query := `SELECT ` + transferCols + ` FROM transfers WHERE account = $1`
	args := []any{account.Hex()}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list transfers by account: %w", err)
	}
	defer rows.Close()

	transfers, err := scanTransferRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transfers by account: %w", err)
	}
	return transfers, nil
}

// DeleteByMarket removes all transfer rows for a market and reports how many
// were deleted. The archival loop calls this after the rows have been written
// to object storage.
func (s *TransferStore) DeleteByMarket(ctx context.Context, marketID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transfers WHERE market_id = $1`, marketID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete transfers for %s: %w", marketID, err)
	}
	return tag.RowsAffected(), nil
}

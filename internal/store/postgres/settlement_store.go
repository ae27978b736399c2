package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL. Each
// commit runs in a single transaction so the market snapshot, the position,
// and the produced record always land together or not at all.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *SettlementStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settlement tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settlement tx: %w", err)
	}
	return nil
}

// updateMarket writes the mutable part of the market snapshot.
func updateMarket(ctx context.Context, tx pgx.Tx, m domain.Market) error {
	tag, err := tx.Exec(ctx, `
		UPDATE markets SET
			quantities      = $2,
			total_volume    = $3,
			collateral      = $4,
			status          = $5,
			winning_outcome = $6,
			updated_at      = NOW(),
			resolved_at     = $7
		WHERE id = $1`,
		m.ID, encodeVec(m.Quantities), m.TotalVolume.Dec(), m.Collateral.Dec(),
		string(m.Status), m.WinningOutcome, m.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// upsertPosition writes an account's balance vector.
func upsertPosition(ctx context.Context, tx pgx.Tx, p domain.Position) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO positions (market_id, account, balances, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (market_id, account) DO UPDATE SET
			balances   = EXCLUDED.balances,
			updated_at = NOW()`,
		p.MarketID, p.Account.Hex(), encodeVec(p.Balances),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.MarketID, p.Account.Hex(), err)
	}
	return nil
}

// CommitTrade persists the outcome of a single trade: the new market
// snapshot, the trader's position, and the transfer record.
func (s *SettlementStore) CommitTrade(ctx context.Context, market domain.Market, position domain.Position, transfer domain.Transfer) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := updateMarket(ctx, tx, market); err != nil {
			return err
		}
		if err := upsertPosition(ctx, tx, position); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO transfers (id, market_id, account, outcome, side, size, cost, refund, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			transfer.ID, transfer.MarketID, transfer.Account.Hex(), transfer.Outcome,
			string(transfer.Side), transfer.Size.Dec(), transfer.Cost.Dec(),
			transfer.Refund.Dec(), transfer.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert transfer %s: %w", transfer.ID, err)
		}
		return nil
	})
}

// CommitResolution persists the market's transition to resolved together with
// the signed resolution receipt.
func (s *SettlementStore) CommitResolution(ctx context.Context, market domain.Market, resolution domain.Resolution) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := updateMarket(ctx, tx, market); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO resolutions (market_id, winning_outcome, resolved_by, signature, resolved_at)
			VALUES ($1, $2, $3, $4, $5)`,
			resolution.MarketID, resolution.WinningOutcome, resolution.ResolvedBy.Hex(),
			resolution.Signature, resolution.ResolvedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert resolution %s: %w", resolution.MarketID, err)
		}
		return nil
	})
}

// CommitClaim persists a winning-share redemption: the claimer's zeroed
// position and the claim record.
func (s *SettlementStore) CommitClaim(ctx context.Context, market domain.Market, position domain.Position, claim domain.Claim) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := updateMarket(ctx, tx, market); err != nil {
			return err
		}
		if err := upsertPosition(ctx, tx, position); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO claims (id, market_id, account, outcome, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			claim.ID, claim.MarketID, claim.Account.Hex(), claim.Outcome,
			claim.Amount.Dec(), claim.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert claim %s: %w", claim.ID, err)
		}
		return nil
	})
}

package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market snapshots.
type MarketStore interface {
	Create(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	ListResolvedBefore(ctx context.Context, before time.Time) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// PositionStore persists per-account share balances.
type PositionStore interface {
	Get(ctx context.Context, marketID string, account common.Address) (Position, error)
	ListByMarket(ctx context.Context, marketID string) ([]Position, error)
}

// TransferStore persists transfer records.
type TransferStore interface {
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Transfer, error)
	ListByAccount(ctx context.Context, account common.Address, opts ListOpts) ([]Transfer, error)
	DeleteByMarket(ctx context.Context, marketID string) (int64, error)
}

// ResolutionStore persists resolution receipts.
type ResolutionStore interface {
	GetByMarket(ctx context.Context, marketID string) (Resolution, error)
}

// SettlementStore applies engine state transitions. Each commit writes the
// market snapshot together with the records the transition produced in a
// single database transaction, so a crash can never leave a transfer without
// its matching quantities, collateral, and position update.
type SettlementStore interface {
	CommitTrade(ctx context.Context, market Market, position Position, transfer Transfer) error
	CommitResolution(ctx context.Context, market Market, resolution Resolution) error
	CommitClaim(ctx context.Context, market Market, position Position, claim Claim) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

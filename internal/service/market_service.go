// Package service coordinates the market engines with persistence, caching,
// event fan-out, and notifications. Every market has a single in-process
// writer guarded by its entry mutex; a per-market distributed lock keeps a
// second replica from interleaving commits.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/domain"
	"github.com/liquiditysense/lsmm/internal/engine"
)

// lockTTL bounds how long a crashed replica can hold a market's commit lock.
const lockTTL = 10 * time.Second

// ReceiptSigner signs resolution receipts so the service layer never depends
// on concrete key-management implementations.
type ReceiptSigner interface {
	SignResolution(marketID string, winningOutcome int, resolvedAt time.Time) (string, error)
	Address() common.Address
}

// Notifier delivers operational notifications, filtered by event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// marketEntry pairs an engine with the mutex that serializes its writers.
type marketEntry struct {
	mu  sync.RWMutex
	eng *engine.Market
}

// MarketService owns the registry of live market engines and runs every
// state transition through the settlement store.
type MarketService struct {
	markets     domain.MarketStore
	positions   domain.PositionStore
	transfers   domain.TransferStore
	resolutions domain.ResolutionStore
	settle      domain.SettlementStore
	prices      domain.PriceCache
	locks       domain.LockManager
	bus         domain.SignalBus
	audit       domain.AuditStore
	signer      ReceiptSigner
	notifier    Notifier
	logger      *slog.Logger

	mu      sync.RWMutex
	entries map[string]*marketEntry
}

// NewMarketService creates a MarketService with all required dependencies.
// The notifier may be nil when no notification channels are configured.
func NewMarketService(
	markets domain.MarketStore,
	positions domain.PositionStore,
	transfers domain.TransferStore,
	resolutions domain.ResolutionStore,
	settle domain.SettlementStore,
	prices domain.PriceCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	signer ReceiptSigner,
	notifier Notifier,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:     markets,
		positions:   positions,
		transfers:   transfers,
		resolutions: resolutions,
		settle:      settle,
		prices:      prices,
		locks:       locks,
		bus:         bus,
		audit:       audit,
		signer:      signer,
		notifier:    notifier,
		logger:      logger,
		entries:     make(map[string]*marketEntry),
	}
}

// LoadAll rebuilds the engine registry from persisted snapshots. Called once
// at startup before the server starts accepting requests.
func (s *MarketService) LoadAll(ctx context.Context) error {
	markets, err := s.markets.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("market_service: load markets: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range markets {
		positions, err := s.positions.ListByMarket(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("market_service: load positions for %s: %w", m.ID, err)
		}
		s.entries[m.ID] = &marketEntry{eng: engine.Restore(m, positions)}
	}

	s.logger.InfoContext(ctx, "market_service: restored markets",
		slog.Int("count", len(markets)),
	)
	return nil
}

// entry returns the registry entry for a market, lazily restoring it from
// the store when another replica created the market after our startup load.
func (s *MarketService) entry(ctx context.Context, id string) (*marketEntry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("market_service: get market %s: %w", id, err)
	}
	positions, err := s.positions.ListByMarket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service: load positions for %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e, nil
	}
	e = &marketEntry{eng: engine.Restore(m, positions)}
	s.entries[id] = e
	return e, nil
}

// CreateParams are the caller-supplied parameters for a new market.
type CreateParams struct {
	NumOutcomes int
	B0          *uint256.Int
	Alpha       *uint256.Int
	Funding     *uint256.Int
	Owner       common.Address
}

// CreateMarket validates the parameters, funds the market, persists it, and
// registers the live engine.
func (s *MarketService) CreateMarket(ctx context.Context, p CreateParams) (domain.MarketInfo, error) {
	id := uuid.NewString()
	eng, err := engine.New(id, engine.Params{
		NumOutcomes: p.NumOutcomes,
		B0:          p.B0,
		Alpha:       p.Alpha,
		Funding:     p.Funding,
		Owner:       p.Owner,
	}, time.Now().UTC())
	if err != nil {
		return domain.MarketInfo{}, err
	}

	if err := s.markets.Create(ctx, eng.Snapshot()); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("market_service: create market: %w", err)
	}

	// Snapshot before the entry is published; afterwards the engine may only
	// be touched under the entry lock.
	book := s.priceBook(eng)

	s.mu.Lock()
	s.entries[id] = &marketEntry{eng: eng}
	s.mu.Unlock()

	s.refreshPriceCache(ctx, book)

	if err := s.audit.Log(ctx, "market_created", map[string]any{
		"market_id":    id,
		"num_outcomes": p.NumOutcomes,
		"b0":           p.B0.Dec(),
		"funding":      p.Funding.Dec(),
		"owner":        p.Owner.Hex(),
	}); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.sendNotification(ctx, "market_created", "Market created",
		fmt.Sprintf("Market %s created with %d outcomes", id, p.NumOutcomes))

	s.logger.InfoContext(ctx, "market_service: market created",
		slog.String("market_id", id),
		slog.Int("num_outcomes", p.NumOutcomes),
	)

	return eng.Info(), nil
}

// RequiredFunding reports the exact funding a market with the given
// parameters demands, so clients can compute it before calling CreateMarket.
func (s *MarketService) RequiredFunding(numOutcomes int, b0 *uint256.Int) (*uint256.Int, error) {
	return engine.RequiredFunding(numOutcomes, b0)
}

// Info returns the market info read-model.
func (s *MarketService) Info(ctx context.Context, id string) (domain.MarketInfo, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return domain.MarketInfo{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.eng.Info(), nil
}

// List returns persisted market snapshots with pagination.
func (s *MarketService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}
	return markets, nil
}

// Count returns the total number of persisted markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	return s.markets.Count(ctx)
}

// Quantities returns the outstanding share vector of a market.
func (s *MarketService) Quantities(ctx context.Context, id string) ([]*uint256.Int, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.eng.Quantities(), nil
}

// Prices returns the current price vector, serving from the cache when it is
// fresh and falling back to the engine on a miss.
func (s *MarketService) Prices(ctx context.Context, id string) ([]*uint256.Int, error) {
	if book, err := s.prices.Get(ctx, id); err == nil {
		return book.Prices, nil
	}

	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	book := s.priceBook(e.eng)
	e.mu.RUnlock()

	s.refreshPriceCache(ctx, book)
	return book.Prices, nil
}

// Balances returns an account's share balances in a market.
func (s *MarketService) Balances(ctx context.Context, id string, account common.Address) ([]*uint256.Int, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.eng.Balances(account), nil
}

// TransfersByMarket returns the persisted transfer history of a market.
func (s *MarketService) TransfersByMarket(ctx context.Context, id string, opts domain.ListOpts) ([]domain.Transfer, error) {
	if _, err := s.entry(ctx, id); err != nil {
		return nil, err
	}
	transfers, err := s.transfers.ListByMarket(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: transfers for %s: %w", id, err)
	}
	return transfers, nil
}

// TransfersByAccount returns an account's transfers across all markets.
func (s *MarketService) TransfersByAccount(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.Transfer, error) {
	transfers, err := s.transfers.ListByAccount(ctx, account, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: transfers for %s: %w", account.Hex(), err)
	}
	return transfers, nil
}

// Resolution returns the stored resolution receipt of a market.
func (s *MarketService) Resolution(ctx context.Context, id string) (domain.Resolution, error) {
	r, err := s.resolutions.GetByMarket(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Resolution{}, domain.ErrNotFound
		}
		return domain.Resolution{}, fmt.Errorf("market_service: resolution for %s: %w", id, err)
	}
	return r, nil
}

// priceBook snapshots the engine's current price book. Callers must hold the
// entry lock; once published, an engine may only be read under it.
func (s *MarketService) priceBook(eng *engine.Market) domain.PriceBook {
	return domain.PriceBook{
		MarketID:  eng.ID(),
		Prices:    eng.Prices(),
		B:         eng.B(),
		UpdatedAt: time.Now().UTC(),
	}
}

// refreshPriceCache writes a price book snapshot through to the cache.
// Failures are logged, not propagated; the cache is best-effort.
func (s *MarketService) refreshPriceCache(ctx context.Context, book domain.PriceBook) {
	if err := s.prices.Set(ctx, book); err != nil {
		s.logger.WarnContext(ctx, "market_service: price cache set failed",
			slog.String("market_id", book.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// sendNotification delivers an operator notification when a notifier is
// configured. Failures are logged, not propagated.
func (s *MarketService) sendNotification(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "market_service: notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// reload replaces an entry's engine with the persisted state. Called when a
// commit fails after the in-memory engine already applied the transition, so
// memory never drifts from the database.
func (s *MarketService) reload(ctx context.Context, e *marketEntry, id string) {
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "market_service: reload market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	positions, err := s.positions.ListByMarket(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "market_service: reload positions failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	e.eng = engine.Restore(m, positions)
}

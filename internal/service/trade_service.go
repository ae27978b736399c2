package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/domain"
	"github.com/liquiditysense/lsmm/internal/engine"
)

// Quote prices a hypothetical trade without mutating state. The quote goes
// stale the moment another trade commits.
func (s *MarketService) Quote(ctx context.Context, id string, outcome int, side domain.Side, size *uint256.Int) (engine.QuoteResult, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return engine.QuoteResult{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.eng.Quote(outcome, side, size)
}

// Trade executes a buy or sell against a market. The entry mutex serializes
// in-process writers and the distributed lock fences other replicas; the
// transition is applied to the engine, committed through the settlement
// store, and then fanned out to the cache and the signal bus.
func (s *MarketService) Trade(ctx context.Context, id string, account common.Address, outcome int, side domain.Side, size, payment *uint256.Int) (domain.Transfer, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return domain.Transfer{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := s.locks.Acquire(ctx, "market:"+id, lockTTL)
	if err != nil {
		return domain.Transfer{}, err
	}
	defer unlock()

	transfer, err := e.eng.Trade(account, outcome, side, size, payment, time.Now().UTC())
	if err != nil {
		return domain.Transfer{}, err
	}

	if err := s.settle.CommitTrade(ctx, e.eng.Snapshot(), e.eng.PositionSnapshot(account), transfer); err != nil {
		s.reload(ctx, e, id)
		return domain.Transfer{}, fmt.Errorf("market_service: commit trade: %w", err)
	}

	s.refreshPriceCache(ctx, s.priceBook(e.eng))
	s.publishTrade(ctx, e.eng, transfer)

	if err := s.audit.Log(ctx, "trade_executed", map[string]any{
		"market_id":   id,
		"transfer_id": transfer.ID,
		"account":     account.Hex(),
		"outcome":     outcome,
		"side":        string(side),
		"size":        transfer.Size.Dec(),
		"cost":        transfer.Cost.Dec(),
	}); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("transfer_id", transfer.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "market_service: trade executed",
		slog.String("market_id", id),
		slog.String("account", account.Hex()),
		slog.Int("outcome", outcome),
		slog.String("side", string(side)),
		slog.String("size", transfer.Size.Dec()),
		slog.String("cost", transfer.Cost.Dec()),
	)

	return transfer, nil
}

// publishTrade fans a committed trade out to the signal bus: the transfer on
// the trades channel and the fresh price vector on the prices channel.
// Publish failures are logged, not propagated; the trade is already durable.
func (s *MarketService) publishTrade(ctx context.Context, eng *engine.Market, transfer domain.Transfer) {
	tradeEvt, _ := json.Marshal(domain.TradeEvent{
		MarketID:  transfer.MarketID,
		Account:   transfer.Account.Hex(),
		Outcome:   transfer.Outcome,
		Side:      transfer.Side,
		Size:      transfer.Size.Dec(),
		Cost:      transfer.Cost.Dec(),
		Timestamp: transfer.CreatedAt,
	})
	if err := s.bus.Publish(ctx, domain.ChannelTrades, tradeEvt); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish trade failed",
			slog.String("transfer_id", transfer.ID),
			slog.String("error", err.Error()),
		)
	}

	prices := eng.Prices()
	priceStrs := make([]string, len(prices))
	for i, p := range prices {
		priceStrs[i] = p.Dec()
	}
	priceEvt, _ := json.Marshal(domain.PriceEvent{
		MarketID:  eng.ID(),
		Prices:    priceStrs,
		B:         eng.B().Dec(),
		Timestamp: transfer.CreatedAt,
	})
	if err := s.bus.Publish(ctx, domain.ChannelPrices, priceEvt); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish prices failed",
			slog.String("market_id", eng.ID()),
			slog.String("error", err.Error()),
		)
	}
}

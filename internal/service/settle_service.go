package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// Resolve settles a market on the winning outcome. Only the market owner may
// resolve. The resolution receipt is signed with the operator key before it
// is committed, so the stored record carries an attributable signature.
func (s *MarketService) Resolve(ctx context.Context, id string, caller common.Address, winningOutcome int) (domain.Resolution, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return domain.Resolution{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := s.locks.Acquire(ctx, "market:"+id, lockTTL)
	if err != nil {
		return domain.Resolution{}, err
	}
	defer unlock()

	resolution, err := e.eng.Resolve(caller, winningOutcome, time.Now().UTC())
	if err != nil {
		return domain.Resolution{}, err
	}

	sig, err := s.signer.SignResolution(id, winningOutcome, resolution.ResolvedAt)
	if err != nil {
		s.reload(ctx, e, id)
		return domain.Resolution{}, fmt.Errorf("market_service: sign resolution: %w", err)
	}
	resolution.Signature = sig

	if err := s.settle.CommitResolution(ctx, e.eng.Snapshot(), resolution); err != nil {
		s.reload(ctx, e, id)
		return domain.Resolution{}, fmt.Errorf("market_service: commit resolution: %w", err)
	}

	evt, _ := json.Marshal(domain.ResolutionEvent{
		MarketID:       id,
		WinningOutcome: winningOutcome,
		ResolvedBy:     caller.Hex(),
		Signature:      sig,
		Timestamp:      resolution.ResolvedAt,
	})
	if err := s.bus.Publish(ctx, domain.ChannelResolutions, evt); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish resolution failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "market_resolved", map[string]any{
		"market_id":       id,
		"winning_outcome": winningOutcome,
		"resolved_by":     caller.Hex(),
	}); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.sendNotification(ctx, "market_resolved", "Market resolved",
		fmt.Sprintf("Market %s resolved on outcome %d", id, winningOutcome))

	s.logger.InfoContext(ctx, "market_service: market resolved",
		slog.String("market_id", id),
		slog.Int("winning_outcome", winningOutcome),
	)

	return resolution, nil
}

// Claim redeems an account's winning shares at one payout unit per share.
func (s *MarketService) Claim(ctx context.Context, id string, account common.Address) (domain.Claim, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return domain.Claim{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := s.locks.Acquire(ctx, "market:"+id, lockTTL)
	if err != nil {
		return domain.Claim{}, err
	}
	defer unlock()

	claim, err := e.eng.Claim(account, time.Now().UTC())
	if err != nil {
		return domain.Claim{}, err
	}

	if err := s.settle.CommitClaim(ctx, e.eng.Snapshot(), e.eng.PositionSnapshot(account), claim); err != nil {
		s.reload(ctx, e, id)
		return domain.Claim{}, fmt.Errorf("market_service: commit claim: %w", err)
	}

	evt, _ := json.Marshal(domain.ClaimEvent{
		MarketID:  id,
		Account:   account.Hex(),
		Amount:    claim.Amount.Dec(),
		Timestamp: claim.CreatedAt,
	})
	if err := s.bus.Publish(ctx, domain.ChannelClaims, evt); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish claim failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "claim_paid", map[string]any{
		"market_id": id,
		"claim_id":  claim.ID,
		"account":   account.Hex(),
		"amount":    claim.Amount.Dec(),
	}); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("claim_id", claim.ID),
			slog.String("error", err.Error()),
		)
	}

	s.sendNotification(ctx, "claim_paid", "Claim paid",
		fmt.Sprintf("Account %s claimed %s on market %s", account.Hex(), claim.Amount.Dec(), id))

	s.logger.InfoContext(ctx, "market_service: claim paid",
		slog.String("market_id", id),
		slog.String("account", account.Hex()),
		slog.String("amount", claim.Amount.Dec()),
	)

	return claim, nil
}

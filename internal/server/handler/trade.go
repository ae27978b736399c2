package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/domain"
	"github.com/liquiditysense/lsmm/internal/engine"
	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

// TradeService defines the trading and settlement methods the trade handler
// requires from the service layer.
type TradeService interface {
	Quote(ctx context.Context, id string, outcome int, side domain.Side, size *uint256.Int) (engine.QuoteResult, error)
	Trade(ctx context.Context, id string, account common.Address, outcome int, side domain.Side, size, payment *uint256.Int) (domain.Transfer, error)
	Resolve(ctx context.Context, id string, caller common.Address, winningOutcome int) (domain.Resolution, error)
	Claim(ctx context.Context, id string, account common.Address) (domain.Claim, error)
	TransfersByMarket(ctx context.Context, id string, opts domain.ListOpts) ([]domain.Transfer, error)
	TransfersByAccount(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.Transfer, error)
}

// TradeHandler serves trading and settlement HTTP endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// tradeRequest is the JSON body for trades and quotes. Size and payment are
// fixed-point decimal strings; payment is ignored for sells and for quotes.
type tradeRequest struct {
	Account string `json:"account"`
	Outcome int    `json:"outcome"`
	Side    string `json:"side"`
	Size    string `json:"size"`
	Payment string `json:"payment"`
}

// transferResponse is the JSON shape for a committed transfer record.
type transferResponse struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Account   string    `json:"account"`
	Outcome   int       `json:"outcome"`
	Side      string    `json:"side"`
	Size      string    `json:"size"`
	Cost      string    `json:"cost"`
	Refund    string    `json:"refund"`
	CreatedAt time.Time `json:"created_at"`
}

func toTransferResponse(t domain.Transfer) transferResponse {
	return transferResponse{
		ID:        t.ID,
		MarketID:  t.MarketID,
		Account:   t.Account.Hex(),
		Outcome:   t.Outcome,
		Side:      string(t.Side),
		Size:      fixedpoint.ToDecimal(t.Size),
		Cost:      fixedpoint.ToDecimal(t.Cost),
		Refund:    fixedpoint.ToDecimal(t.Refund),
		CreatedAt: t.CreatedAt,
	}
}

// parseSide validates the trade direction field.
func parseSide(value string) (domain.Side, bool) {
	switch domain.Side(value) {
	case domain.SideBuy:
		return domain.SideBuy, true
	case domain.SideSell:
		return domain.SideSell, true
	}
	return "", false
}

// Quote prices a hypothetical trade without committing it.
// POST /api/markets/{id}/quote
func (h *TradeHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	side, ok := parseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	size, err := parseAmount("size", req.Size)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := h.trades.Quote(r.Context(), id, req.Outcome, side, size)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "quote")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"outcome":   quote.Outcome,
		"side":      string(quote.Side),
		"size":      fixedpoint.ToDecimal(quote.Size),
		"cost":      fixedpoint.ToDecimal(quote.Cost),
		"prices":    decimals(quote.Prices),
	})
}

// Trade executes a buy or sell against a market.
// POST /api/markets/{id}/trades
func (h *TradeHandler) Trade(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	size, err := parseAmount("size", req.Size)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Sells carry no payment.
	payment := uint256.NewInt(0)
	if side == domain.SideBuy {
		payment, err = parseAmount("payment", req.Payment)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	transfer, err := h.trades.Trade(r.Context(), id, account, req.Outcome, side, size, payment)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "trade")
		return
	}

	writeJSON(w, http.StatusCreated, toTransferResponse(transfer))
}

// resolveRequest is the JSON body for market resolution.
type resolveRequest struct {
	Caller         string `json:"caller"`
	WinningOutcome int    `json:"winning_outcome"`
}

// Resolve settles a market on the winning outcome. Only the owner succeeds.
// POST /api/markets/{id}/resolve
func (h *TradeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.trades.Resolve(r.Context(), id, caller, req.WinningOutcome)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "resolve")
		return
	}

	writeJSON(w, http.StatusOK, toResolutionResponse(res))
}

// claimRequest is the JSON body for claiming winnings.
type claimRequest struct {
	Account string `json:"account"`
}

// Claim redeems the caller's winning shares after resolution.
// POST /api/markets/{id}/claims
func (h *TradeHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claim, err := h.trades.Claim(r.Context(), id, account)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "claim")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         claim.ID,
		"market_id":  claim.MarketID,
		"account":    claim.Account.Hex(),
		"outcome":    claim.Outcome,
		"amount":     fixedpoint.ToDecimal(claim.Amount),
		"created_at": claim.CreatedAt,
	})
}

// ListMarketTransfers returns the transfer history of a market.
// GET /api/markets/{id}/transfers?limit=50&offset=0
func (h *TradeHandler) ListMarketTransfers(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	transfers, err := h.trades.TransfersByMarket(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list transfers")
		return
	}

	out := make([]transferResponse, len(transfers))
	for i, t := range transfers {
		out[i] = toTransferResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"transfers": out,
	})
}

// ListAccountTransfers returns an account's transfer history across markets.
// GET /api/accounts/{address}/transfers?limit=50&offset=0
func (h *TradeHandler) ListAccountTransfers(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress("address", pathParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transfers, err := h.trades.TransfersByAccount(r.Context(), account, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "list transfers")
		return
	}

	out := make([]transferResponse, len(transfers))
	for i, t := range transfers {
		out[i] = toTransferResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":   account.Hex(),
		"transfers": out,
	})
}

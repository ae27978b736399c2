package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/domain"
	"github.com/liquiditysense/lsmm/internal/fixedpoint"
	"github.com/liquiditysense/lsmm/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, p service.CreateParams) (domain.MarketInfo, error)
	RequiredFunding(numOutcomes int, b0 *uint256.Int) (*uint256.Int, error)
	Info(ctx context.Context, id string) (domain.MarketInfo, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
	Prices(ctx context.Context, id string) ([]*uint256.Int, error)
	Quantities(ctx context.Context, id string) ([]*uint256.Int, error)
	Resolution(ctx context.Context, id string) (domain.Resolution, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// createMarketRequest is the JSON body for market creation. Amounts are
// fixed-point decimal strings scaled by 10^18.
type createMarketRequest struct {
	NumOutcomes int    `json:"num_outcomes"`
	B0          string `json:"b0"`
	Alpha       string `json:"alpha"`
	Funding     string `json:"funding"`
	Owner       string `json:"owner"`
}

// marketInfoResponse is the read-model JSON shape for a market.
type marketInfoResponse struct {
	ID             string `json:"id"`
	NumOutcomes    int    `json:"num_outcomes"`
	B0             string `json:"b0"`
	Alpha          string `json:"alpha"`
	CurrentB       string `json:"current_b"`
	TotalVolume    string `json:"total_volume"`
	Collateral     string `json:"collateral"`
	Resolved       bool   `json:"resolved"`
	WinningOutcome int    `json:"winning_outcome"`
	Owner          string `json:"owner"`
}

func toMarketInfoResponse(info domain.MarketInfo) marketInfoResponse {
	return marketInfoResponse{
		ID:             info.ID,
		NumOutcomes:    info.NumOutcomes,
		B0:             fixedpoint.ToDecimal(info.B0),
		Alpha:          fixedpoint.ToDecimal(info.Alpha),
		CurrentB:       fixedpoint.ToDecimal(info.CurrentB),
		TotalVolume:    fixedpoint.ToDecimal(info.TotalVolume),
		Collateral:     fixedpoint.ToDecimal(info.Collateral),
		Resolved:       info.Resolved,
		WinningOutcome: info.WinningOutcome,
		Owner:          info.Owner.Hex(),
	}
}

// marketResponse is the persisted-snapshot JSON shape used by list queries.
type marketResponse struct {
	ID             string     `json:"id"`
	NumOutcomes    int        `json:"num_outcomes"`
	B0             string     `json:"b0"`
	Alpha          string     `json:"alpha"`
	Quantities     []string   `json:"quantities"`
	TotalVolume    string     `json:"total_volume"`
	Collateral     string     `json:"collateral"`
	Status         string     `json:"status"`
	WinningOutcome int        `json:"winning_outcome"`
	Owner          string     `json:"owner"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func toMarketResponse(m domain.Market) marketResponse {
	return marketResponse{
		ID:             m.ID,
		NumOutcomes:    m.NumOutcomes,
		B0:             fixedpoint.ToDecimal(m.B0),
		Alpha:          fixedpoint.ToDecimal(m.Alpha),
		Quantities:     decimals(m.Quantities),
		TotalVolume:    fixedpoint.ToDecimal(m.TotalVolume),
		Collateral:     fixedpoint.ToDecimal(m.Collateral),
		Status:         string(m.Status),
		WinningOutcome: m.WinningOutcome,
		Owner:          m.Owner.Hex(),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		ResolvedAt:     m.ResolvedAt,
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []marketResponse `json:"markets"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// CreateMarket creates a new market funded by the caller.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b0, err := parseAmount("b0", req.B0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alpha, err := parseAmount("alpha", req.Alpha)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	funding, err := parseAmount("funding", req.Funding)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.markets.CreateMarket(r.Context(), service.CreateParams{
		NumOutcomes: req.NumOutcomes,
		B0:          b0,
		Alpha:       alpha,
		Funding:     funding,
		Owner:       owner,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "create market")
		return
	}

	writeJSON(w, http.StatusCreated, toMarketInfoResponse(info))
}

// RequiredFunding previews the initial funding a market with the given
// parameters needs, without creating anything.
// GET /api/markets/funding?num_outcomes=3&b0=100
func (h *MarketHandler) RequiredFunding(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	numOutcomes, err := strconv.Atoi(q.Get("num_outcomes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid num_outcomes")
		return
	}
	b0, err := parseAmount("b0", q.Get("b0"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	funding, err := h.markets.RequiredFunding(numOutcomes, b0)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "compute funding")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"funding": fixedpoint.ToDecimal(funding)})
}

// ListMarkets returns persisted markets with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	out := make([]marketResponse, len(markets))
	for i, m := range markets {
		out[i] = toMarketResponse(m)
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: out,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market's live state by ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	info, err := h.markets.Info(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get market")
		return
	}

	writeJSON(w, http.StatusOK, toMarketInfoResponse(info))
}

// GetPrices returns the current price vector of a market. Prices sum to one
// unit across outcomes.
// GET /api/markets/{id}/prices
func (h *MarketHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	prices, err := h.markets.Prices(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get prices")
		return
	}
	info, err := h.markets.Info(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get prices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"prices":    decimals(prices),
		"b":         fixedpoint.ToDecimal(info.CurrentB),
	})
}

// GetQuantities returns the outstanding share vector of a market.
// GET /api/markets/{id}/quantities
func (h *MarketHandler) GetQuantities(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	quantities, err := h.markets.Quantities(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get quantities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":  id,
		"quantities": decimals(quantities),
	})
}

// resolutionResponse is the JSON shape for a resolution receipt.
type resolutionResponse struct {
	MarketID       string    `json:"market_id"`
	WinningOutcome int       `json:"winning_outcome"`
	ResolvedBy     string    `json:"resolved_by"`
	Signature      string    `json:"signature"`
	ResolvedAt     time.Time `json:"resolved_at"`
}

func toResolutionResponse(res domain.Resolution) resolutionResponse {
	return resolutionResponse{
		MarketID:       res.MarketID,
		WinningOutcome: res.WinningOutcome,
		ResolvedBy:     res.ResolvedBy.Hex(),
		Signature:      res.Signature,
		ResolvedAt:     res.ResolvedAt,
	}
}

// GetResolution returns the resolution receipt of a resolved market.
// GET /api/markets/{id}/resolution
func (h *MarketHandler) GetResolution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	res, err := h.markets.Resolution(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get resolution")
		return
	}

	writeJSON(w, http.StatusOK, toResolutionResponse(res))
}

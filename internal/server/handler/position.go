package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	Balances(ctx context.Context, id string, account common.Address) ([]*uint256.Int, error)
}

// PositionHandler serves per-account balance endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// GetBalances returns an account's share balances across all outcomes of a
// market. Accounts that never traded get a zero vector.
// GET /api/markets/{id}/balances?account=0x...
func (h *PositionHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	account, err := parseAddress("account", r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balances, err := h.positions.Balances(r.Context(), id, account)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "get balances")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"account":   account.Hex(),
		"balances":  decimals(balances),
	})
}

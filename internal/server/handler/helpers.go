package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/liquiditysense/lsmm/internal/domain"
	"github.com/liquiditysense/lsmm/internal/fixedpoint"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error to its HTTP status and writes it.
// Unknown errors are logged and surfaced as an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, op string) {
	status, known := statusFromError(err)
	if !known {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
		return
	}
	writeError(w, status, err.Error())
}

// statusFromError maps domain sentinel errors to HTTP status codes. The
// second return value reports whether the error was recognized.
func statusFromError(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrInvalidNumOutcomes),
		errors.Is(err, domain.ErrInvalidInitialFunding),
		errors.Is(err, domain.ErrInvalidOutcome),
		errors.Is(err, domain.ErrInvalidDelta),
		errors.Is(err, domain.ErrInsufficientShares):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrInsufficientPayment):
		return http.StatusPaymentRequired, true
	case errors.Is(err, domain.ErrOnlyOwner),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, true
	case errors.Is(err, domain.ErrMarketResolved),
		errors.Is(err, domain.ErrNotResolved),
		errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, true
	}
	return 0, false
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// parseAmount parses a human-readable decimal amount ("69.31") from a
// request field into its fixed-point representation.
func parseAmount(field, value string) (*uint256.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("missing %s", field)
	}
	v, err := fixedpoint.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return v, nil
}

// parseAddress parses a checksummed or lowercase hex account address.
func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s: not a hex address", field)
	}
	return common.HexToAddress(value), nil
}

// decimals renders a fixed-point vector as human-readable decimal strings
// for JSON output.
func decimals(vec []*uint256.Int) []string {
	out := make([]string, len(vec))
	for i, v := range vec {
		out[i] = fixedpoint.ToDecimal(v)
	}
	return out
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}

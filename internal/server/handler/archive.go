package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Archiver defines the archival operation the archive handler triggers.
type Archiver interface {
	ArchiveResolved(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveHandler exposes a manual trigger for transfer archival, normally
// driven by the background ticker.
type ArchiveHandler struct {
	archiver      Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler with the given archiver.
func NewArchiveHandler(archiver Archiver, retentionDays int, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Trigger archives transfer history of markets resolved longer ago than the
// retention window, then prunes the archived rows.
// POST /api/archive/trigger
func (h *ArchiveHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archival is not enabled")
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -h.retentionDays)
	pruned, err := h.archiver.ArchiveResolved(r.Context(), cutoff)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive trigger failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "archival failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cutoff":           cutoff.Format(time.RFC3339),
		"transfers_pruned": pruned,
	})
}

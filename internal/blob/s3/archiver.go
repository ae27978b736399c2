package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/liquiditysense/lsmm/internal/domain"
)

// transferRecord is the archived form of a transfer, with all fixed-point
// magnitudes rendered as decimal strings.
type transferRecord struct {
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

// ArchiveImpl implements domain.Archiver. For every market resolved before
// the cutoff it exports the market's transfer history to object storage as
// JSONL and then prunes the exported rows from the primary store. Markets
// whose archive object already exists are skipped, so a crash between upload
// and prune is repaired on the next run without duplicating uploads.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	reader    domain.BlobReader
	markets   domain.MarketStore
	transfers domain.TransferStore
	audit     domain.AuditStore
	log       *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	markets domain.MarketStore,
	transfers domain.TransferStore,
	audit domain.AuditStore,
	log *slog.Logger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		reader:    reader,
		markets:   markets,
		transfers: transfers,
		audit:     audit,
		log:       log.With("component", "archiver"),
	}
}

// archivePath builds the S3 key for a market's transfer archive.
//
//	archive/markets/{marketID}/transfers.jsonl
func archivePath(marketID string) string {
	return fmt.Sprintf("archive/markets/%s/transfers.jsonl", marketID)
}

// ArchiveResolved exports and prunes the transfer history of every market
// resolved before the cutoff. It returns the total number of transfer rows
// pruned from the database.
func (a *ArchiveImpl) ArchiveResolved(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list resolved markets: %w", err)
	}

	var pruned int64
	for _, m := range markets {
		n, err := a.archiveMarket(ctx, m)
		if err != nil {
			return pruned, err
		}
		pruned += n
	}
	return pruned, nil
}

func (a *ArchiveImpl) archiveMarket(ctx context.Context, m domain.Market) (int64, error) {
	path := archivePath(m.ID)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: check archive %s: %w", m.ID, err)
	}

	if !exists {
		transfers, err := a.transfers.ListByMarket(ctx, m.ID, domain.ListOpts{})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive %s query: %w", m.ID, err)
		}
		if len(transfers) == 0 {
			return 0, nil
		}

		buf, err := marshalJSONL(transfers)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive %s marshal: %w", m.ID, err)
		}

		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return 0, fmt.Errorf("s3blob: archive %s upload: %w", m.ID, err)
		}
	}

	count, err := a.transfers.DeleteByMarket(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s prune: %w", m.ID, err)
	}

	a.log.Info("archived market transfers",
		"market_id", m.ID,
		"path", path,
		"pruned", count,
	)

	if err := a.audit.Log(ctx, "archive.market", map[string]any{
		"market_id": m.ID,
		"path":      path,
		"pruned":    count,
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive %s audit log: %w", m.ID, err)
	}

	return count, nil
}

// marshalJSONL serialises transfers as newline-delimited JSON. Each element
// is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL(transfers []domain.Transfer) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, t := range transfers {
		rec := transferRecord{
			ID:        t.ID,
			MarketID:  t.MarketID,
			Account:   t.Account.Hex(),
			Outcome:   t.Outcome,
			Side:      string(t.Side),
			Size:      t.Size.Dec(),
			Cost:      t.Cost.Dec(),
			Refund:    t.Refund.Dec(),
			CreatedAt: t.CreatedAt,
		}
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

// Narrow store interfaces covering only the time-ranged queries the archiver
// calls; the Postgres stores satisfy them implicitly.

// TradeArchiveStore provides read access to trades for archival.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
}

// RiskEventArchiveStore provides read access to risk events for archival.
type RiskEventArchiveStore interface {
	ListEventsBefore(ctx context.Context, before time.Time) ([]domain.RiskEvent, error)
}

// TimerEventArchiveStore provides read access to timer extension events for
// archival.
type TimerEventArchiveStore interface {
	ListExtensionsBefore(ctx context.Context, before time.Time) ([]domain.TimerExtensionEvent, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for aged
// audit rows, serializing them to JSONL, and uploading the result to S3.
//
// Deleting the archived rows from the primary store is intentionally NOT
// performed here; that is a separate, explicit step to run after the archive
// has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	trades TradeArchiveStore
	risk   RiskEventArchiveStore
	timers TimerEventArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	trades TradeArchiveStore,
	risk RiskEventArchiveStore,
	timers TimerEventArchiveStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		trades: trades,
		risk:   risk,
		timers: timers,
	}
}

// ArchiveTrades uploads all trades executed before the cutoff to
// archive/trades/YYYY-MM.jsonl and returns the archived count.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}
	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}
	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}
	return int64(len(trades)), nil
}

// ArchiveRiskEvents uploads all risk audit events created before the cutoff
// to archive/risk_events/YYYY-MM.jsonl and returns the archived count.
func (a *ArchiveImpl) ArchiveRiskEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.risk.ListEventsBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive risk events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}
	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive risk events marshal: %w", err)
	}
	path := archivePath("risk_events", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive risk events upload: %w", err)
	}
	return int64(len(events)), nil
}

// ArchiveTimerEvents uploads all auction timer extension events created
// before the cutoff to archive/timer_events/YYYY-MM.jsonl and returns the
// archived count.
func (a *ArchiveImpl) ArchiveTimerEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.timers.ListExtensionsBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive timer events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}
	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive timer events marshal: %w", err)
	}
	path := archivePath("timer_events", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive timer events upload: %w", err)
	}
	return int64(len(events)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/trades/2026-01.jsonl
//	archive/risk_events/2026-01.jsonl
//	archive/timer_events/2026-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)

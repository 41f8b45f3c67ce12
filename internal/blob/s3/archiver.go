package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// TransactionArchiveStore is the narrow read surface the archiver needs from
// the journal: everything created strictly before the cutoff.
type TransactionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error)
}

// Archiver implements domain.Archiver: it queries aged journal entries and
// audit rows, serializes them to JSONL, and uploads the result to the bucket.
//
// Deletion from the primary store is intentionally NOT performed here; that
// is a separate explicit step after the archive has been verified.
type Archiver struct {
	writer       domain.BlobWriter
	transactions TransactionArchiveStore
	audit        domain.AuditStore
}

// NewArchiver creates an Archiver over the given writer and stores.
func NewArchiver(writer domain.BlobWriter, transactions TransactionArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer:       writer,
		transactions: transactions,
		audit:        audit,
	}
}

// ArchiveTransactions queries every journal entry created before the cutoff,
// serializes them to JSONL and uploads the file to
// archive/transactions/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived entries is returned.
func (a *Archiver) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	txs, err := a.transactions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(txs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions marshal: %w", err)
	}

	path := archivePath("transactions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions upload: %w", err)
	}

	count := int64(len(txs))

	if err := a.audit.Log(ctx, "archive.transactions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive transactions audit log: %w", err)
	}

	return count, nil
}

// ArchiveAuditLog snapshots the audit log itself into
// archive/audit/YYYY-MM.jsonl. Entries newer than the cutoff are skipped.
func (a *Archiver) ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.List(ctx, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}

	var aged []domain.AuditEntry
	for _, e := range entries {
		if e.CreatedAt.Before(before) {
			aged = append(aged, e)
		}
	}
	if len(aged) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(aged)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	return int64(len(aged)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/transactions/2026-07.jsonl
//	archive/audit/2026-07.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// object per line.
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

var _ domain.Archiver = (*Archiver)(nil)

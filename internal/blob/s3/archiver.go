package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apexpool/feetier/internal/domain"
)

// DecisionArchiveStore provides read access to fee decisions for archival
// purposes. The Postgres decision store satisfies this implicitly.
type DecisionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.FeeDecision, error)
}

// ArchiveImpl implements domain.Archiver by querying the decision store for
// old records, serializing them to JSONL, and uploading the result to blob
// storage.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	decisions DecisionArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, decisions DecisionArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		decisions: decisions,
	}
}

// ArchiveDecisions queries all fee decisions evaluated before the cutoff,
// serializes them to JSONL, and uploads the file to blob storage under a key
// derived from the full cutoff timestamp. Each run writes its own object;
// archives from earlier runs in the same month are never overwritten, so the
// caller may safely delete the archived rows afterwards. It returns the count
// of archived records.
func (a *ArchiveImpl) ArchiveDecisions(ctx context.Context, before time.Time) (int64, error) {
	decisions, err := a.decisions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive decisions query: %w", err)
	}
	if len(decisions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(decisions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive decisions marshal: %w", err)
	}

	key := archiveKey("fee_decisions", before)
	if err := a.writer.Put(ctx, key, "application/x-ndjson", buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive decisions upload: %w", err)
	}

	return int64(len(decisions)), nil
}

// archiveKey builds the object key for an archive file, partitioned by
// year-month with the full cutoff timestamp as the object name. The key is a
// pure function of the cutoff, so retrying the same cutoff overwrites its own
// object while distinct runs never collide.
//
//	archive/fee_decisions/2026-08/20260823T120000Z.jsonl
func archiveKey(kind string, before time.Time) string {
	t := before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, t.Format("2006-01"), t.Format("20060102T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
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

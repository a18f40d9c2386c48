package s3blob

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apexpool/feetier/internal/domain"
)

type fakeWriter struct {
	key         string
	contentType string
	data        []byte
	err         error
	calls       int
	objects     map[string][]byte
}

func (w *fakeWriter) Put(_ context.Context, key string, contentType string, data []byte) error {
	w.calls++
	w.key = key
	w.contentType = contentType
	w.data = data
	if w.objects == nil {
		w.objects = map[string][]byte{}
	}
	w.objects[key] = data
	return w.err
}

type fakeDecisionStore struct {
	decisions []domain.FeeDecision
	err       error
}

func (s *fakeDecisionStore) ListBefore(_ context.Context, _ time.Time) ([]domain.FeeDecision, error) {
	return s.decisions, s.err
}

func TestArchiveDecisionsUploadsJSONL(t *testing.T) {
	decisions := []domain.FeeDecision{
		{ID: "a", PoolID: "pool-1", Seq: 1, Volatility: 40_000, Tier: domain.TierLow, Fee: 500},
		{ID: "b", PoolID: "pool-1", Seq: 2, Volatility: 160_000, Tier: domain.TierHigh, Fee: 10_000},
	}
	writer := &fakeWriter{}
	arch := NewArchiver(writer, &fakeDecisionStore{decisions: decisions})

	before := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	n, err := arch.ArchiveDecisions(context.Background(), before)
	if err != nil {
		t.Fatalf("ArchiveDecisions: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if writer.key != "archive/fee_decisions/2026-08/20260801T000000Z.jsonl" {
		t.Errorf("key = %q", writer.key)
	}
	if writer.contentType != "application/x-ndjson" {
		t.Errorf("contentType = %q", writer.contentType)
	}
	if lines := bytes.Count(writer.data, []byte("\n")); lines != 2 {
		t.Errorf("jsonl lines = %d, want 2", lines)
	}
}

// Two archive runs in the same month must not share an object key: the rows
// from the first run are deleted from the store after upload, so overwriting
// the first object would lose them for good.
func TestArchiveRunsInSameMonthKeepDistinctObjects(t *testing.T) {
	store := &fakeDecisionStore{decisions: []domain.FeeDecision{
		{ID: "a", PoolID: "pool-1", Seq: 1, Fee: 500},
	}}
	writer := &fakeWriter{}
	arch := NewArchiver(writer, store)
	ctx := context.Background()

	first := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	if _, err := arch.ArchiveDecisions(ctx, first); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstKey := writer.key

	// The caller deletes the archived rows; the next run sees only new ones.
	store.decisions = []domain.FeeDecision{
		{ID: "b", PoolID: "pool-1", Seq: 2, Fee: 3_000},
	}
	second := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if _, err := arch.ArchiveDecisions(ctx, second); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if writer.key == firstKey {
		t.Fatalf("second run reused key %q", firstKey)
	}
	if !bytes.Contains(writer.objects[firstKey], []byte(`"a"`)) {
		t.Errorf("first archive lost decision a: %s", writer.objects[firstKey])
	}
	if !bytes.Contains(writer.objects[writer.key], []byte(`"b"`)) {
		t.Errorf("second archive missing decision b: %s", writer.objects[writer.key])
	}
}

func TestArchiveDecisionsEmptySkipsUpload(t *testing.T) {
	writer := &fakeWriter{}
	arch := NewArchiver(writer, &fakeDecisionStore{})

	n, err := arch.ArchiveDecisions(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ArchiveDecisions: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
	if writer.calls != 0 {
		t.Errorf("writer called %d times, want 0", writer.calls)
	}
}

func TestArchiveDecisionsUploadFailure(t *testing.T) {
	wantErr := errors.New("bucket gone")
	writer := &fakeWriter{err: wantErr}
	arch := NewArchiver(writer, &fakeDecisionStore{
		decisions: []domain.FeeDecision{{ID: "a", PoolID: "pool-1"}},
	})

	_, err := arch.ArchiveDecisions(context.Background(), time.Now())
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}

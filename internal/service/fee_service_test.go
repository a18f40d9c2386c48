package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/apexpool/feetier/internal/domain"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeSource struct {
	readings map[string][]int64
	err      error
}

func (f *fakeSource) Readings(_ context.Context, poolID string) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	rs, ok := f.readings[poolID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rs, nil
}

type fakeConsumer struct {
	once       []uint64
	persistent []uint64
	err        error
}

func (f *fakeConsumer) ApplyOnce(_ context.Context, _ string, fee uint64) error {
	if f.err != nil {
		return f.err
	}
	f.once = append(f.once, fee)
	return nil
}

func (f *fakeConsumer) ApplyPersistent(_ context.Context, _ string, fee uint64) error {
	if f.err != nil {
		return f.err
	}
	f.persistent = append(f.persistent, fee)
	return nil
}

type fakeDecisionStore struct {
	inserted []domain.FeeDecision
}

func (f *fakeDecisionStore) Insert(_ context.Context, d domain.FeeDecision) error {
	f.inserted = append(f.inserted, d)
	return nil
}

func (f *fakeDecisionStore) ListByPool(_ context.Context, poolID string, limit int) ([]domain.FeeDecision, error) {
	var out []domain.FeeDecision
	for _, d := range f.inserted {
		if d.PoolID == poolID {
			out = append(out, d)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeDecisionStore) ListBefore(_ context.Context, before time.Time) ([]domain.FeeDecision, error) {
	var out []domain.FeeDecision
	for _, d := range f.inserted {
		if d.EvaluatedAt.Before(before) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDecisionStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.FeeDecision
	var removed int64
	for _, d := range f.inserted {
		if d.EvaluatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	f.inserted = kept
	return removed, nil
}

type fakeFeeCache struct {
	applied map[string]domain.AppliedFee
}

func (f *fakeFeeCache) SetApplied(_ context.Context, a domain.AppliedFee) error {
	if f.applied == nil {
		f.applied = map[string]domain.AppliedFee{}
	}
	f.applied[a.PoolID] = a
	return nil
}

func (f *fakeFeeCache) GetApplied(_ context.Context, poolID string) (domain.AppliedFee, error) {
	a, ok := f.applied[poolID]
	if !ok {
		return domain.AppliedFee{}, domain.ErrNotFound
	}
	return a, nil
}

// ---------------------------------------------------------------------------

func testPool() domain.Pool {
	return domain.Pool{
		ID:      "p1",
		Windows: []string{"24h"},
		Weights: []uint64{10000},
		Tiers: domain.TierConfig{
			LowTrigger:  50_000,
			HighTrigger: 150_000,
			LowFee:      500,
			RegularFee:  3_000,
			HighFee:     10_000,
		},
	}
}

func newTestService(t *testing.T, src *fakeSource, cons *fakeConsumer, persistent bool) (*FeeService, *fakeDecisionStore, *fakeFeeCache) {
	t.Helper()
	store := &fakeDecisionStore{}
	cache := &fakeFeeCache{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(Options{
		Source:     src,
		Consumer:   cons,
		Decisions:  store,
		FeeCache:   cache,
		Persistent: persistent,
	}, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.RegisterPool(testPool()); err != nil {
		t.Fatalf("register pool: %v", err)
	}
	return svc, store, cache
}

func TestEvaluatePoolFlow(t *testing.T) {
	src := &fakeSource{readings: map[string][]int64{"p1": {160_000}}}
	cons := &fakeConsumer{}
	svc, store, cache := newTestService(t, src, cons, true)
	ctx := context.Background()

	// Bootstrap decision is Regular no matter the readings.
	d, err := svc.EvaluatePool(ctx, "p1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Tier != domain.TierRegular || !d.Bootstrap {
		t.Fatalf("bootstrap decision: %+v", d)
	}

	// Steady state picks High for 160000.
	d, err = svc.EvaluatePool(ctx, "p1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Tier != domain.TierHigh || d.Fee != 10_000 {
		t.Fatalf("steady decision: %+v", d)
	}

	if len(cons.persistent) != 2 {
		t.Errorf("consumer persistent applies=%d want 2", len(cons.persistent))
	}
	if len(cons.once) != 0 {
		t.Errorf("consumer once applies=%d want 0", len(cons.once))
	}
	if len(store.inserted) != 2 {
		t.Errorf("stored decisions=%d want 2", len(store.inserted))
	}

	applied, err := cache.GetApplied(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get applied: %v", err)
	}
	if applied.Fee != 10_000 || applied.Seq != 2 {
		t.Errorf("applied marker: %+v", applied)
	}
}

func TestEvaluatePoolOverrideMode(t *testing.T) {
	src := &fakeSource{readings: map[string][]int64{"p1": {90_000}}}
	cons := &fakeConsumer{}
	svc, _, _ := newTestService(t, src, cons, false)

	if _, err := svc.EvaluatePool(context.Background(), "p1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(cons.once) != 1 || len(cons.persistent) != 0 {
		t.Errorf("once=%d persistent=%d want 1/0", len(cons.once), len(cons.persistent))
	}
}

func TestRejectedEvaluationHasNoSideEffects(t *testing.T) {
	src := &fakeSource{readings: map[string][]int64{"p1": {90_000}}}
	cons := &fakeConsumer{}
	svc, store, cache := newTestService(t, src, cons, true)
	ctx := context.Background()

	if _, err := svc.InitializePool(ctx, "p1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	before, err := svc.LastFee(ctx, "p1")
	if err != nil {
		t.Fatalf("last fee: %v", err)
	}

	// A negative reading rejects the evaluation outright.
	src.readings["p1"] = []int64{-50}
	if _, err := svc.EvaluatePool(ctx, "p1"); !errors.Is(err, domain.ErrNegativeReading) {
		t.Fatalf("err=%v want ErrNegativeReading", err)
	}

	after, err := svc.LastFee(ctx, "p1")
	if err != nil {
		t.Fatalf("last fee: %v", err)
	}
	if after != before {
		t.Errorf("marker changed on rejected evaluation: %+v vs %+v", after, before)
	}
	if len(store.inserted) != 1 {
		t.Errorf("stored decisions=%d want 1 (bootstrap only)", len(store.inserted))
	}
	applied, err := cache.GetApplied(ctx, "p1")
	if err != nil {
		t.Fatalf("get applied: %v", err)
	}
	if applied.Seq != before.Seq {
		t.Errorf("applied marker advanced: %+v", applied)
	}
}

func TestConsumerFailureKeepsAppliedMarker(t *testing.T) {
	src := &fakeSource{readings: map[string][]int64{"p1": {90_000}}}
	cons := &fakeConsumer{}
	svc, store, cache := newTestService(t, src, cons, true)
	ctx := context.Background()

	if _, err := svc.InitializePool(ctx, "p1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	cons.err = errors.New("rpc down")
	if _, err := svc.EvaluatePool(ctx, "p1"); err == nil {
		t.Fatal("expected consumer failure to surface")
	}
	if len(store.inserted) != 1 {
		t.Errorf("stored decisions=%d want 1", len(store.inserted))
	}
	applied, err := cache.GetApplied(ctx, "p1")
	if err != nil {
		t.Fatalf("get applied: %v", err)
	}
	if applied.Seq != 1 {
		t.Errorf("applied marker advanced past bootstrap: %+v", applied)
	}

	// LastFee serves the applied marker, not the decision the consumer
	// failed to apply.
	last, err := svc.LastFee(ctx, "p1")
	if err != nil {
		t.Fatalf("last fee: %v", err)
	}
	if last.Seq != 1 || last.Tier != domain.TierRegular {
		t.Errorf("last fee reports the failed decision: %+v", last)
	}
}

func TestRegisterPoolRejectsBadConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(Options{
		Source:   &fakeSource{},
		Consumer: &fakeConsumer{},
	}, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	bad := testPool()
	bad.Weights = []uint64{5000} // does not sum to the base
	if err := svc.RegisterPool(bad); !errors.Is(err, domain.ErrInvalidWeightSet) {
		t.Fatalf("err=%v want ErrInvalidWeightSet", err)
	}

	good := testPool()
	if err := svc.RegisterPool(good); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.RegisterPool(good); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestEvaluateUnknownPool(t *testing.T) {
	src := &fakeSource{readings: map[string][]int64{}}
	svc, _, _ := newTestService(t, src, &fakeConsumer{}, true)
	if _, err := svc.EvaluatePool(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

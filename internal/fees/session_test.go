package fees

import (
	"errors"
	"testing"
	"time"

	"github.com/apexpool/feetier/internal/domain"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("pool-1", mustWeights(t, 10000), testTiers)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func TestSessionBootstrapAlwaysRegular(t *testing.T) {
	// Even a volatility far above the high trigger must not move the first
	// decision off Regular.
	for _, reading := range []int64{0, 40_000, 160_000, 999_999} {
		s := newTestSession(t)
		d, err := s.Evaluate([]int64{reading}, time.Now())
		if err != nil {
			t.Fatalf("evaluate(%d): %v", reading, err)
		}
		if d.Tier != domain.TierRegular || !d.Bootstrap {
			t.Errorf("first evaluate(%d): tier=%s bootstrap=%v, want regular bootstrap", reading, d.Tier, d.Bootstrap)
		}
		if d.Fee != testTiers.RegularFee {
			t.Errorf("first evaluate(%d): fee=%d want %d", reading, d.Fee, testTiers.RegularFee)
		}
	}
}

func TestSessionInitializeOnce(t *testing.T) {
	s := newTestSession(t)
	d, err := s.Initialize(time.Now())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if d.Tier != domain.TierRegular || !d.Bootstrap || d.Seq != 1 {
		t.Fatalf("initialize: got %+v", d)
	}
	if _, err := s.Initialize(time.Now()); err == nil {
		t.Fatal("second initialize should fail")
	}
}

func TestSessionSteadyStateTransitions(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Initialize(time.Now()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// End-to-end scenario: readings map straight through a full-weight blend.
	steps := []struct {
		reading int64
		want    domain.Tier
	}{
		{160_000, domain.TierHigh},
		{40_000, domain.TierLow},
		{90_000, domain.TierRegular},
		{150_000, domain.TierHigh}, // boundary inclusive
		{50_000, domain.TierLow},   // boundary inclusive
	}
	for i, st := range steps {
		d, err := s.Evaluate([]int64{st.reading}, time.Now())
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if d.Tier != st.want {
			t.Errorf("step %d: reading %d gave %s want %s", i, st.reading, d.Tier, st.want)
		}
		if d.Bootstrap {
			t.Errorf("step %d: steady-state decision flagged bootstrap", i)
		}
		if want := uint64(i) + 2; d.Seq != want {
			t.Errorf("step %d: seq=%d want %d", i, d.Seq, want)
		}
	}
}

func TestSessionRejectedEvaluationKeepsMarker(t *testing.T) {
	s := newTestSession(t)
	now := time.Now()
	if _, err := s.Initialize(now); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	good, err := s.Evaluate([]int64{160_000}, now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if _, err := s.Evaluate([]int64{-50}, now); !errors.Is(err, domain.ErrNegativeReading) {
		t.Fatalf("err=%v want ErrNegativeReading", err)
	}
	if _, err := s.Evaluate([]int64{1, 2}, now); !errors.Is(err, domain.ErrLengthMismatch) {
		t.Fatalf("err=%v want ErrLengthMismatch", err)
	}

	last, err := s.Last()
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last.Seq != good.Seq || last.Fee != good.Fee || last.Tier != good.Tier {
		t.Errorf("marker moved after rejected evaluations: %+v vs decision %+v", last, good)
	}
}

func TestSessionLastBeforeFirstDecision(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Last(); !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("err=%v want ErrNotInitialized", err)
	}
}

func TestNewSessionRejectsBadTiers(t *testing.T) {
	bad := domain.TierConfig{LowTrigger: 9, HighTrigger: 3, LowFee: 1, RegularFee: 2, HighFee: 3}
	if _, err := NewSession("pool-1", mustWeights(t, 10000), bad); !errors.Is(err, domain.ErrInvalidTierConfig) {
		t.Fatalf("err=%v want ErrInvalidTierConfig", err)
	}
}

package fees

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apexpool/feetier/internal/domain"
)

// Session is the per-pool fee state machine:
//
//	uninitialized -> regular (bootstrap) -> {low | regular | high}
//
// The first decision is always a forced Regular so a fresh pool never
// resolves Low off an undefined or zero volatility. Every later Evaluate
// re-runs the aggregation and selection from scratch; tiers are not sticky
// and there is no dwell time beyond what the weighted average provides.
//
// The session owns the only mutable state in the core (the seq counter and
// last-decision marker). A mutex serializes concurrent evaluations so the
// marker update stays atomic with the evaluation that produced it. A failed
// validation leaves the marker untouched.
type Session struct {
	mu sync.Mutex

	poolID  string
	weights domain.WeightSet
	tiers   domain.TierConfig

	initialized    bool
	seq            uint64
	lastTier       domain.Tier
	lastFee        uint64
	lastVolatility uint64
	updatedAt      time.Time
}

// NewSession creates a session for one pool. The tier config is validated
// here, once; evaluation never re-checks it.
func NewSession(poolID string, weights domain.WeightSet, tiers domain.TierConfig) (*Session, error) {
	if err := tiers.Validate(); err != nil {
		return nil, fmt.Errorf("fees: session %s: %w", poolID, err)
	}
	return &Session{
		poolID:  poolID,
		weights: weights,
		tiers:   tiers,
	}, nil
}

// Initialize forces the bootstrap Regular decision without consulting any
// volatility. It errors if the session has already produced a decision.
func (s *Session) Initialize(now time.Time) (domain.FeeDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return domain.FeeDecision{}, fmt.Errorf("fees: session %s already initialized", s.poolID)
	}
	return s.commit(0, domain.TierRegular, true, now), nil
}

// Evaluate runs one pricing event: it validates and blends the readings,
// selects a tier, and advances the session marker. On an uninitialized
// session the readings are still validated but the tier is forced to Regular
// (bootstrap). Errors reject only this evaluation; nothing is mutated.
func (s *Session) Evaluate(readings []int64, now time.Time) (domain.FeeDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	volatility, err := WeightedVolatility(readings, s.weights)
	if err != nil {
		return domain.FeeDecision{}, fmt.Errorf("fees: session %s: %w", s.poolID, err)
	}

	if !s.initialized {
		return s.commit(volatility, domain.TierRegular, true, now), nil
	}
	return s.commit(volatility, TierFor(volatility, s.tiers), false, now), nil
}

// commit advances the marker and builds the decision. Caller holds s.mu.
func (s *Session) commit(volatility uint64, tier domain.Tier, bootstrap bool, now time.Time) domain.FeeDecision {
	s.initialized = true
	s.seq++
	s.lastTier = tier
	s.lastFee = s.tiers.Fee(tier)
	s.lastVolatility = volatility
	s.updatedAt = now

	return domain.FeeDecision{
		ID:          uuid.NewString(),
		PoolID:      s.poolID,
		Seq:         s.seq,
		Volatility:  volatility,
		Tier:        tier,
		Fee:         s.lastFee,
		Bootstrap:   bootstrap,
		EvaluatedAt: now,
	}
}

// Last returns the current marker as an AppliedFee snapshot. It returns
// ErrNotInitialized before the first decision.
func (s *Session) Last() (domain.AppliedFee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return domain.AppliedFee{}, domain.ErrNotInitialized
	}
	return domain.AppliedFee{
		PoolID:    s.poolID,
		Fee:       s.lastFee,
		Tier:      s.lastTier,
		Seq:       s.seq,
		UpdatedAt: s.updatedAt,
	}, nil
}

// Tiers returns the session's immutable tier configuration.
func (s *Session) Tiers() domain.TierConfig {
	return s.tiers
}

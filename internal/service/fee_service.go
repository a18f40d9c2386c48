// Package service coordinates the fee core with its collaborators: the
// volatility source, the fee consumer, decision persistence, the applied-fee
// cache, and the signal bus.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apexpool/feetier/internal/domain"
	"github.com/apexpool/feetier/internal/fees"
)

// lockTTL bounds how long a per-pool evaluation lock may be held.
const lockTTL = 10 * time.Second

// FeeService runs pricing events for registered pools. Each event reads the
// latest volatility, evaluates the pool's session, hands the fee to the
// consumer, and records the decision. A failed evaluation performs none of
// the side effects.
type FeeService struct {
	source    domain.VolatilitySource
	consumer  domain.FeeConsumer
	decisions domain.DecisionStore
	feeCache  domain.FeeCache
	locks     domain.LockManager
	bus       domain.SignalBus
	logger    *slog.Logger

	// persistent selects ApplyPersistent over ApplyOnce for every decision.
	persistent bool

	mu       sync.RWMutex
	pools    map[string]domain.Pool
	sessions map[string]*fees.Session
}

// Options carries the optional collaborators. Decisions, FeeCache, Locks and
// Bus may be nil in the lighter operating modes; Source and Consumer are
// required.
type Options struct {
	Source     domain.VolatilitySource
	Consumer   domain.FeeConsumer
	Decisions  domain.DecisionStore
	FeeCache   domain.FeeCache
	Locks      domain.LockManager
	Bus        domain.SignalBus
	Persistent bool
}

// New creates a FeeService with no pools registered.
func New(opts Options, logger *slog.Logger) (*FeeService, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("fee_service: volatility source is required")
	}
	if opts.Consumer == nil {
		return nil, fmt.Errorf("fee_service: fee consumer is required")
	}
	return &FeeService{
		source:     opts.Source,
		consumer:   opts.Consumer,
		decisions:  opts.Decisions,
		feeCache:   opts.FeeCache,
		locks:      opts.Locks,
		bus:        opts.Bus,
		persistent: opts.Persistent,
		logger:     logger.With(slog.String("component", "fee_service")),
		pools:      make(map[string]domain.Pool),
		sessions:   make(map[string]*fees.Session),
	}, nil
}

// RegisterPool validates the pool configuration and creates its session in
// the uninitialized state. Registering an already-known pool ID is an error;
// pool configuration is fixed for the lifetime of the session.
func (s *FeeService) RegisterPool(pool domain.Pool) error {
	ws, err := pool.WeightSet()
	if err != nil {
		return fmt.Errorf("fee_service: register pool %s: %w", pool.ID, err)
	}
	sess, err := fees.NewSession(pool.ID, ws, pool.Tiers)
	if err != nil {
		return fmt.Errorf("fee_service: register pool %s: %w", pool.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[pool.ID]; exists {
		return fmt.Errorf("fee_service: pool %s already registered", pool.ID)
	}
	s.pools[pool.ID] = pool
	s.sessions[pool.ID] = sess
	return nil
}

// Pools returns the registered pools.
func (s *FeeService) Pools() []domain.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	return out
}

// PoolIDs returns the registered pool IDs.
func (s *FeeService) PoolIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}

func (s *FeeService) session(poolID string) (*fees.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[poolID]
	if !ok {
		return nil, fmt.Errorf("fee_service: pool %s: %w", poolID, domain.ErrNotFound)
	}
	return sess, nil
}

// InitializePool applies the bootstrap Regular decision for a pool that has
// never been evaluated. The volatility formula is deliberately not consulted.
func (s *FeeService) InitializePool(ctx context.Context, poolID string) (domain.FeeDecision, error) {
	sess, err := s.session(poolID)
	if err != nil {
		return domain.FeeDecision{}, err
	}

	unlock, err := s.acquire(ctx, poolID)
	if err != nil {
		return domain.FeeDecision{}, err
	}
	defer unlock()

	d, err := sess.Initialize(time.Now().UTC())
	if err != nil {
		return domain.FeeDecision{}, err
	}
	if err := s.apply(ctx, d); err != nil {
		return domain.FeeDecision{}, err
	}
	return d, nil
}

// EvaluatePool runs one pricing event for the pool: readings from the source,
// session evaluation, fee application, then recording. Validation errors
// reject the event with no side effects and leave the previous fee in effect.
func (s *FeeService) EvaluatePool(ctx context.Context, poolID string) (domain.FeeDecision, error) {
	sess, err := s.session(poolID)
	if err != nil {
		return domain.FeeDecision{}, err
	}

	unlock, err := s.acquire(ctx, poolID)
	if err != nil {
		return domain.FeeDecision{}, err
	}
	defer unlock()

	readings, err := s.source.Readings(ctx, poolID)
	if err != nil {
		return domain.FeeDecision{}, fmt.Errorf("fee_service: readings for pool %s: %w", poolID, err)
	}

	d, err := sess.Evaluate(readings, time.Now().UTC())
	if err != nil {
		return domain.FeeDecision{}, err
	}
	if err := s.apply(ctx, d); err != nil {
		return domain.FeeDecision{}, err
	}
	return d, nil
}

// EvaluateAll runs one pricing event per registered pool, logging failures
// and carrying on; one bad pool must not starve the rest.
func (s *FeeService) EvaluateAll(ctx context.Context) {
	for _, id := range s.PoolIDs() {
		if _, err := s.EvaluatePool(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "pool evaluation failed",
				slog.String("pool_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// LastFee returns the fee in effect for the pool. The applied-fee cache is
// authoritative when wired: it advances only after a successful consumer
// apply, while the session marker tracks the last decision. Without a cache,
// or before anything has landed in it, the session marker stands in.
func (s *FeeService) LastFee(ctx context.Context, poolID string) (domain.AppliedFee, error) {
	sess, err := s.session(poolID)
	if err != nil {
		return domain.AppliedFee{}, err
	}
	if s.feeCache != nil {
		applied, err := s.feeCache.GetApplied(ctx, poolID)
		switch {
		case err == nil:
			return applied, nil
		case !errors.Is(err, domain.ErrNotFound):
			return domain.AppliedFee{}, fmt.Errorf("fee_service: applied marker for pool %s: %w", poolID, err)
		}
	}
	return sess.Last()
}

// History returns the most recent stored decisions for the pool.
func (s *FeeService) History(ctx context.Context, poolID string, limit int) ([]domain.FeeDecision, error) {
	if s.decisions == nil {
		return nil, nil
	}
	return s.decisions.ListByPool(ctx, poolID, limit)
}

// acquire takes the per-pool evaluation lock when a lock manager is wired;
// single-instance deployments rely on the session mutex alone.
func (s *FeeService) acquire(ctx context.Context, poolID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	unlock, err := s.locks.Acquire(ctx, "fee:eval:"+poolID, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("fee_service: lock pool %s: %w", poolID, err)
	}
	return unlock, nil
}

// apply performs the post-decision side effects: consumer apply, decision
// insert, marker cache update, bus publish. The consumer is first; if the fee
// cannot be applied the decision is not recorded and the applied-fee marker
// keeps its previous value.
func (s *FeeService) apply(ctx context.Context, d domain.FeeDecision) error {
	d.Persistent = s.persistent

	var err error
	if s.persistent {
		err = s.consumer.ApplyPersistent(ctx, d.PoolID, d.Fee)
	} else {
		err = s.consumer.ApplyOnce(ctx, d.PoolID, d.Fee)
	}
	if err != nil {
		return fmt.Errorf("fee_service: apply fee for pool %s: %w", d.PoolID, err)
	}

	if s.decisions != nil {
		if err := s.decisions.Insert(ctx, d); err != nil {
			s.logger.WarnContext(ctx, "record decision failed",
				slog.String("pool_id", d.PoolID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.feeCache != nil {
		applied := domain.AppliedFee{
			PoolID:    d.PoolID,
			Fee:       d.Fee,
			Tier:      d.Tier,
			Seq:       d.Seq,
			UpdatedAt: d.EvaluatedAt,
		}
		if err := s.feeCache.SetApplied(ctx, applied); err != nil {
			s.logger.WarnContext(ctx, "update applied-fee marker failed",
				slog.String("pool_id", d.PoolID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":        "fee_decision",
			"pool_id":      d.PoolID,
			"seq":          d.Seq,
			"volatility":   d.Volatility,
			"tier":         d.Tier.String(),
			"fee":          d.Fee,
			"bootstrap":    d.Bootstrap,
			"persistent":   d.Persistent,
			"evaluated_at": d.EvaluatedAt.Format(time.RFC3339Nano),
		})
		if pubErr := s.bus.Publish(ctx, "fees", evt); pubErr != nil {
			s.logger.WarnContext(ctx, "publish fee decision failed",
				slog.String("pool_id", d.PoolID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "fee decision",
		slog.String("pool_id", d.PoolID),
		slog.Uint64("seq", d.Seq),
		slog.Uint64("volatility", d.Volatility),
		slog.String("tier", d.Tier.String()),
		slog.Uint64("fee", d.Fee),
		slog.Bool("bootstrap", d.Bootstrap),
	)
	return nil
}

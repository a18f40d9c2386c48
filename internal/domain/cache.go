package domain

import (
	"context"
	"time"
)

// ReadingCache stores the latest volatility readings per pool.
type ReadingCache interface {
	SetReadings(ctx context.Context, poolID string, readings []int64, ts time.Time) error
	GetReadings(ctx context.Context, poolID string) ([]int64, time.Time, error)
}

// AppliedFee is the externally visible "last update" marker for a pool: the
// fee currently in effect and the decision that produced it.
type AppliedFee struct {
	PoolID    string
	Fee       uint64
	Tier      Tier
	Seq       uint64
	UpdatedAt time.Time
}

// FeeCache stores the applied-fee marker per pool.
type FeeCache interface {
	SetApplied(ctx context.Context, applied AppliedFee) error
	GetApplied(ctx context.Context, poolID string) (AppliedFee, error)
}

// SignalBus provides pub/sub delivery of fee decision events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed locking. The fee service holds a per-pool
// lock across evaluate-apply-record so the marker update stays atomic with
// the evaluation that produced it.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

package domain

import (
	"context"
	"time"
)

// PoolStore persists pool configurations.
type PoolStore interface {
	Upsert(ctx context.Context, pool Pool) error
	Get(ctx context.Context, id string) (Pool, error)
	List(ctx context.Context) ([]Pool, error)
}

// DecisionStore persists fee decision history.
type DecisionStore interface {
	Insert(ctx context.Context, d FeeDecision) error
	ListByPool(ctx context.Context, poolID string, limit int) ([]FeeDecision, error)
	ListBefore(ctx context.Context, before time.Time) ([]FeeDecision, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

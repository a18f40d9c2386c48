package domain

import "context"

// VolatilitySource supplies the latest volatility readings for a pool, one
// per configured window, shortest window first. Readings are signed because
// some upstream feeds report percent-change values; sign policy is enforced
// by the aggregator, not the source.
type VolatilitySource interface {
	Readings(ctx context.Context, poolID string) ([]int64, error)
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apexpool/feetier/internal/domain"
)

// FeeCache implements domain.FeeCache using Redis hashes. Each pool's applied
// fee marker is stored at key "fee:{poolID}" with fields "fee", "tier",
// "seq", and "ts" (Unix nanosecond timestamp).
type FeeCache struct {
	rdb *redis.Client
}

// NewFeeCache creates a FeeCache backed by the given Client.
func NewFeeCache(c *Client) *FeeCache {
	return &FeeCache{rdb: c.Underlying()}
}

func feeKey(poolID string) string {
	return "fee:" + poolID
}

// SetApplied stores the applied-fee marker for a pool.
func (fc *FeeCache) SetApplied(ctx context.Context, a domain.AppliedFee) error {
	fields := map[string]interface{}{
		"fee":  strconv.FormatUint(a.Fee, 10),
		"tier": a.Tier.String(),
		"seq":  strconv.FormatUint(a.Seq, 10),
		"ts":   strconv.FormatInt(a.UpdatedAt.UnixNano(), 10),
	}
	if err := fc.rdb.HSet(ctx, feeKey(a.PoolID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set applied fee %s: %w", a.PoolID, err)
	}
	return nil
}

// GetApplied retrieves the applied-fee marker for a pool. It returns
// domain.ErrNotFound when no fee has been applied yet.
func (fc *FeeCache) GetApplied(ctx context.Context, poolID string) (domain.AppliedFee, error) {
	vals, err := fc.rdb.HGetAll(ctx, feeKey(poolID)).Result()
	if err != nil {
		return domain.AppliedFee{}, fmt.Errorf("redis: get applied fee %s: %w", poolID, err)
	}
	if len(vals) == 0 {
		return domain.AppliedFee{}, domain.ErrNotFound
	}

	fee, err := strconv.ParseUint(vals["fee"], 10, 64)
	if err != nil {
		return domain.AppliedFee{}, fmt.Errorf("redis: parse fee %s: %w", poolID, err)
	}
	tier, err := domain.ParseTier(vals["tier"])
	if err != nil {
		return domain.AppliedFee{}, fmt.Errorf("redis: parse tier %s: %w", poolID, err)
	}
	seq, err := strconv.ParseUint(vals["seq"], 10, 64)
	if err != nil {
		return domain.AppliedFee{}, fmt.Errorf("redis: parse seq %s: %w", poolID, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.AppliedFee{}, fmt.Errorf("redis: parse ts %s: %w", poolID, err)
	}

	return domain.AppliedFee{
		PoolID:    poolID,
		Fee:       fee,
		Tier:      tier,
		Seq:       seq,
		UpdatedAt: time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.FeeCache = (*FeeCache)(nil)

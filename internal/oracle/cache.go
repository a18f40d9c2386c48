package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/apexpool/feetier/internal/domain"
)

// CacheSource reads the latest readings from the reading cache, optionally
// rejecting entries older than maxStale. Staleness is enforced here, at the
// oracle boundary; the fee core assumes nothing about freshness.
type CacheSource struct {
	cache    domain.ReadingCache
	maxStale time.Duration
	now      func() time.Time
}

// NewCacheSource creates a CacheSource. A zero maxStale disables the
// staleness check.
func NewCacheSource(cache domain.ReadingCache, maxStale time.Duration) *CacheSource {
	return &CacheSource{
		cache:    cache,
		maxStale: maxStale,
		now:      time.Now,
	}
}

// Readings returns the cached readings for the pool.
func (s *CacheSource) Readings(ctx context.Context, poolID string) ([]int64, error) {
	readings, ts, err := s.cache.GetReadings(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("oracle: cached readings for pool %s: %w", poolID, err)
	}
	if s.maxStale > 0 {
		if age := s.now().Sub(ts); age > s.maxStale {
			return nil, fmt.Errorf("oracle: readings for pool %s are %s old (max %s): %w",
				poolID, age.Truncate(time.Second), s.maxStale, domain.ErrNotFound)
		}
	}
	return readings, nil
}

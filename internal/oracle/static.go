// Package oracle provides the volatility source implementations that feed
// the fee core: a fixed config-backed source, a redis-cache-backed source,
// and a websocket ingester that keeps the cache current.
package oracle

import (
	"context"
	"fmt"

	"github.com/apexpool/feetier/internal/domain"
)

// Static serves fixed per-pool readings from configuration. Used by the
// one-shot evaluate mode and in tests.
type Static struct {
	readings map[string][]int64
}

// NewStatic creates a Static source. The map is copied.
func NewStatic(readings map[string][]int64) *Static {
	cp := make(map[string][]int64, len(readings))
	for id, rs := range readings {
		vals := make([]int64, len(rs))
		copy(vals, rs)
		cp[id] = vals
	}
	return &Static{readings: cp}
}

// Readings returns the configured readings for the pool.
func (s *Static) Readings(_ context.Context, poolID string) ([]int64, error) {
	rs, ok := s.readings[poolID]
	if !ok {
		return nil, fmt.Errorf("oracle: static readings for pool %s: %w", poolID, domain.ErrNotFound)
	}
	out := make([]int64, len(rs))
	copy(out, rs)
	return out, nil
}

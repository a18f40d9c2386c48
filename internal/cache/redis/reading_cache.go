package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apexpool/feetier/internal/domain"
)

// ReadingCache implements domain.ReadingCache using Redis hashes. Each pool's
// readings are stored at key "readings:{poolID}" with fields "values"
// (comma-joined, shortest window first) and "ts" (Unix nanosecond timestamp).
type ReadingCache struct {
	rdb *redis.Client
}

// NewReadingCache creates a ReadingCache backed by the given Client.
func NewReadingCache(c *Client) *ReadingCache {
	return &ReadingCache{rdb: c.Underlying()}
}

func readingKey(poolID string) string {
	return "readings:" + poolID
}

// SetReadings stores the latest readings and their observation time.
func (rc *ReadingCache) SetReadings(ctx context.Context, poolID string, readings []int64, ts time.Time) error {
	parts := make([]string, len(readings))
	for i, r := range readings {
		parts[i] = strconv.FormatInt(r, 10)
	}
	fields := map[string]interface{}{
		"values": strings.Join(parts, ","),
		"ts":     strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := rc.rdb.HSet(ctx, readingKey(poolID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set readings %s: %w", poolID, err)
	}
	return nil
}

// GetReadings retrieves the latest readings and their observation time. It
// returns domain.ErrNotFound when no readings have been stored for the pool.
func (rc *ReadingCache) GetReadings(ctx context.Context, poolID string) ([]int64, time.Time, error) {
	vals, err := rc.rdb.HGetAll(ctx, readingKey(poolID)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get readings %s: %w", poolID, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	joined, ok := vals["values"]
	if !ok || joined == "" {
		return nil, time.Time{}, domain.ErrNotFound
	}
	parts := strings.Split(joined, ",")
	readings := make([]int64, len(parts))
	for i, p := range parts {
		r, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("redis: parse reading %s[%d]: %w", poolID, i, err)
		}
		readings[i] = r
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", poolID, err)
	}

	return readings, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.ReadingCache = (*ReadingCache)(nil)

package service

import (
	"context"
	"log/slog"
)

// LogConsumer implements domain.FeeConsumer by logging the fee instead of
// applying it anywhere. Used by the evaluate and monitor modes so decisions
// can be inspected without touching a chain.
type LogConsumer struct {
	logger *slog.Logger
}

// NewLogConsumer creates a LogConsumer.
func NewLogConsumer(logger *slog.Logger) *LogConsumer {
	return &LogConsumer{logger: logger.With(slog.String("component", "log_consumer"))}
}

// ApplyOnce logs a single-event fee override.
func (c *LogConsumer) ApplyOnce(ctx context.Context, poolID string, fee uint64) error {
	c.logger.InfoContext(ctx, "fee override (dry run)",
		slog.String("pool_id", poolID),
		slog.Uint64("fee", fee),
	)
	return nil
}

// ApplyPersistent logs a standing fee update.
func (c *LogConsumer) ApplyPersistent(ctx context.Context, poolID string, fee uint64) error {
	c.logger.InfoContext(ctx, "fee update (dry run)",
		slog.String("pool_id", poolID),
		slog.Uint64("fee", fee),
	)
	return nil
}

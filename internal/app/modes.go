package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apexpool/feetier/internal/server"
	"github.com/apexpool/feetier/internal/server/handler"
	"github.com/apexpool/feetier/internal/service"
)

// EvaluateMode runs one pricing event per configured pool and exits. Fees are
// logged, not applied; use it to inspect what the engine would decide.
func (a *App) EvaluateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting evaluate mode")

	svc, err := a.buildFeeService(ctx, deps)
	if err != nil {
		return fmt.Errorf("evaluate mode: %w", err)
	}

	svc.EvaluateAll(ctx)
	return nil
}

// MonitorMode runs the evaluation loop dry (log-only consumer), streams fee
// decision events off the signal bus, and serves the read API. No fee updates
// leave the process.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	svc, err := a.buildFeeService(ctx, deps)
	if err != nil {
		return fmt.Errorf("monitor mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	a.startOracleFeed(ctx, g, deps)
	a.startEvalLoop(ctx, g, svc)
	a.startDecisionLogger(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, svc)
	}

	return g.Wait()
}

// ServeMode runs the full engine: oracle feed, periodic evaluation with the
// configured consumer, decision persistence, archival, and the HTTP API.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	svc, err := a.buildFeeService(ctx, deps)
	if err != nil {
		return fmt.Errorf("serve mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	a.startOracleFeed(ctx, g, deps)
	a.startEvalLoop(ctx, g, svc)
	a.startArchiveLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, svc)
	}

	return g.Wait()
}

// FullMode is serve mode plus the decision event stream logger.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svc, err := a.buildFeeService(ctx, deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	a.startOracleFeed(ctx, g, deps)
	a.startEvalLoop(ctx, g, svc)
	a.startDecisionLogger(ctx, g, deps)
	a.startArchiveLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, svc)
	}

	return g.Wait()
}

// buildFeeService assembles the fee service and registers every known pool:
// the configured set plus, when a pool store is wired, the persisted set.
// Configured pools are upserted into the store so the two views converge.
func (a *App) buildFeeService(ctx context.Context, deps *Dependencies) (*service.FeeService, error) {
	svc, err := service.New(service.Options{
		Source:     deps.Source,
		Consumer:   deps.Consumer,
		Decisions:  deps.DecisionStore,
		FeeCache:   deps.FeeCache,
		Locks:      deps.LockManager,
		Bus:        deps.SignalBus,
		Persistent: a.cfg.Engine.PersistentApply,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	registered := map[string]bool{}
	for _, pc := range a.cfg.Engine.Pools {
		pool := pc.Pool()
		if err := svc.RegisterPool(pool); err != nil {
			return nil, err
		}
		registered[pool.ID] = true

		if deps.PoolStore != nil {
			if err := deps.PoolStore.Upsert(ctx, pool); err != nil {
				a.logger.WarnContext(ctx, "pool upsert failed",
					slog.String("pool_id", pool.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if deps.PoolStore != nil {
		stored, err := deps.PoolStore.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list stored pools: %w", err)
		}
		for _, pool := range stored {
			if registered[pool.ID] {
				continue
			}
			if err := svc.RegisterPool(pool); err != nil {
				a.logger.WarnContext(ctx, "stored pool rejected",
					slog.String("pool_id", pool.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return svc, nil
}

// startOracleFeed runs the websocket oracle feed when one is wired.
func (a *App) startOracleFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Feed == nil {
		return
	}
	g.Go(func() error {
		err := deps.Feed.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("oracle feed: %w", err)
	})
}

// startEvalLoop evaluates every pool on the configured cadence.
func (a *App) startEvalLoop(ctx context.Context, g *errgroup.Group, svc *service.FeeService) {
	interval := a.cfg.Engine.EvalInterval.Duration
	g.Go(func() error {
		a.logger.InfoContext(ctx, "evaluation loop started",
			slog.Duration("interval", interval),
			slog.Int("pools", len(svc.PoolIDs())),
		)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				svc.EvaluateAll(ctx)
			}
		}
	})
}

// startDecisionLogger subscribes to the fee decision channel and logs each
// event. It gives monitor and full modes a live view of decisions made by any
// engine instance sharing the bus.
func (a *App) startDecisionLogger(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		ch, err := deps.SignalBus.Subscribe(ctx, "fees")
		if err != nil {
			return fmt.Errorf("subscribe fees: %w", err)
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case evt, ok := <-ch:
				if !ok {
					return nil
				}
				a.logger.InfoContext(ctx, "fee decision event", slog.String("event", string(evt)))
			}
		}
	})
}

// startArchiveLoop periodically moves aged decisions to blob storage and then
// deletes them from the primary store. Deletion only happens after a
// successful upload.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil || deps.DecisionStore == nil {
		return
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	interval := a.cfg.Archive.Interval.Duration

	g.Go(func() error {
		a.logger.InfoContext(ctx, "archive loop started",
			slog.Duration("interval", interval),
			slog.Int("retention_days", a.cfg.Archive.RetentionDays),
		)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				count, err := deps.Archiver.ArchiveDecisions(ctx, cutoff)
				if err != nil {
					a.logger.WarnContext(ctx, "decision archive failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if count == 0 {
					continue
				}
				deleted, err := deps.DecisionStore.DeleteBefore(ctx, cutoff)
				if err != nil {
					a.logger.WarnContext(ctx, "archived decision cleanup failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				a.logger.InfoContext(ctx, "decisions archived",
					slog.Int64("archived", count),
					slog.Int64("deleted", deleted),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	})
}

// startHTTPServer adds the HTTP API server to the errgroup with graceful
// shutdown on context cancellation.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, svc *service.FeeService) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Mode, svc.PoolIDs, a.logger),
		Fees:   handler.NewFeeHandler(svc, a.logger),
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

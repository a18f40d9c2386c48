package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/apexpool/feetier/internal/blob/s3"
	"github.com/apexpool/feetier/internal/cache/redis"
	"github.com/apexpool/feetier/internal/config"
	"github.com/apexpool/feetier/internal/crypto"
	"github.com/apexpool/feetier/internal/domain"
	"github.com/apexpool/feetier/internal/oracle"
	"github.com/apexpool/feetier/internal/platform/chain"
	"github.com/apexpool/feetier/internal/service"
	"github.com/apexpool/feetier/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores (nil in modes without persistence)
	PoolStore     domain.PoolStore
	DecisionStore domain.DecisionStore

	// Caches
	ReadingCache domain.ReadingCache
	FeeCache     domain.FeeCache
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Oracle
	Source domain.VolatilitySource
	// Feed is non-nil when the ws oracle source is configured; the modes run
	// it alongside the evaluation loop.
	Feed *oracle.WSFeed

	// Fee consumer (chain in serve/full when enabled, log-only otherwise)
	Consumer domain.FeeConsumer

	// Blob storage (nil unless archival is enabled)
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	switch mode {
	case "serve", "full":
		return true
	default:
		return false
	}
}

// appliesOnChain returns true for modes that submit real fee updates. The
// evaluate and monitor modes always use the log-only consumer.
func appliesOnChain(mode string) bool {
	switch mode {
	case "serve", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.PoolStore = postgres.NewPoolStore(pool)
		deps.DecisionStore = postgres.NewDecisionStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.ReadingCache = redis.NewReadingCache(redisClient)
	deps.FeeCache = redis.NewFeeCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Volatility source ---
	switch strings.ToLower(cfg.Oracle.Source) {
	case "static":
		deps.Source = oracle.NewStatic(cfg.Oracle.Static)
	case "cache":
		deps.Source = oracle.NewCacheSource(deps.ReadingCache, cfg.Oracle.MaxStale.Duration)
	case "ws":
		poolIDs := make([]string, 0, len(cfg.Engine.Pools))
		for _, p := range cfg.Engine.Pools {
			poolIDs = append(poolIDs, p.ID)
		}
		deps.Feed = oracle.NewWSFeed(cfg.Oracle.WsURL, poolIDs, deps.ReadingCache, logger)
		deps.Source = oracle.NewCacheSource(deps.ReadingCache, cfg.Oracle.MaxStale.Duration)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown oracle source %q", cfg.Oracle.Source)
	}

	// --- Fee consumer ---
	if cfg.Chain.Enabled && appliesOnChain(mode) {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Chain.PrivateKey,
			EncryptedKeyPath: cfg.Chain.EncryptedKeyPath,
			KeyPassword:      cfg.Chain.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load signing key: %w", err)
		}

		poolAddrs := make(map[string]string, len(cfg.Engine.Pools))
		for _, p := range cfg.Engine.Pools {
			if p.Address != "" {
				poolAddrs[p.ID] = p.Address
			}
		}

		consumer, err := chain.New(ctx, chain.Config{
			RPCURL:        cfg.Chain.RPCURL,
			ChainID:       cfg.Chain.ChainID,
			PoolManager:   cfg.Chain.PoolManager,
			PrivateKeyHex: keyHex,
			GasLimit:      cfg.Chain.GasLimit,
		}, poolAddrs, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain consumer: %w", err)
		}
		closers = append(closers, consumer.Close)
		deps.Consumer = consumer
	} else {
		deps.Consumer = service.NewLogConsumer(logger)
	}

	// --- S3 blob storage (only when archival is enabled and decisions persist) ---
	if cfg.Archive.Enabled && deps.DecisionStore != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.DecisionStore)
	}

	return deps, cleanup, nil
}

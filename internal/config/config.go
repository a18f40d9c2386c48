// Package config defines the top-level configuration for the fee-tier engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/apexpool/feetier/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FEETIER_* environment
// variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Oracle   OracleConfig   `toml:"oracle"`
	Chain    ChainConfig    `toml:"chain"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the evaluation loop parameters and the static pool set.
type EngineConfig struct {
	// Pools configured at startup; pools stored in Postgres are merged in at
	// wire time.
	Pools []PoolConfig `toml:"pools"`
	// EvalInterval is the cadence of the periodic evaluation loop in serve
	// and full modes.
	EvalInterval duration `toml:"eval_interval"`
	// PersistentApply selects ApplyPersistent (standing fee update) instead
	// of ApplyOnce (single-event override) on each decision.
	PersistentApply bool `toml:"persistent_apply"`
}

// PoolConfig declares one pool: its weight blend across volatility windows
// and its tier triggers and fees. Volatility and fees are in pips
// (1,000,000 = 100%); weights are bips summing to 10,000.
type PoolConfig struct {
	ID      string   `toml:"id"`
	Address string   `toml:"address"`
	Windows []string `toml:"windows"`
	Weights []uint64 `toml:"weights"`

	LowTrigger  uint64 `toml:"low_trigger"`
	HighTrigger uint64 `toml:"high_trigger"`
	LowFee      uint64 `toml:"low_fee"`
	RegularFee  uint64 `toml:"regular_fee"`
	HighFee     uint64 `toml:"high_fee"`
}

// Pool converts the config entry to the domain record.
func (p PoolConfig) Pool() domain.Pool {
	return domain.Pool{
		ID:      p.ID,
		Address: p.Address,
		Windows: p.Windows,
		Weights: p.Weights,
		Tiers: domain.TierConfig{
			LowTrigger:  p.LowTrigger,
			HighTrigger: p.HighTrigger,
			LowFee:      p.LowFee,
			RegularFee:  p.RegularFee,
			HighFee:     p.HighFee,
		},
	}
}

// OracleConfig selects and parameterizes the volatility source.
type OracleConfig struct {
	// Source is one of "static", "cache", "ws".
	Source string `toml:"source"`
	// WsURL is the websocket feed endpoint for the ws source.
	WsURL string `toml:"ws_url"`
	// Static maps pool ID to fixed readings for the static source.
	Static map[string][]int64 `toml:"static"`
	// MaxStale rejects cached readings older than this; zero disables the
	// check (staleness is the oracle's concern, not the core's).
	MaxStale duration `toml:"max_stale"`
}

// ChainConfig holds the on-chain fee consumer parameters.
type ChainConfig struct {
	Enabled          bool   `toml:"enabled"`
	RPCURL           string `toml:"rpc_url"`
	ChainID          int64  `toml:"chain_id"`
	PoolManager      string `toml:"pool_manager"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	GasLimit         uint64 `toml:"gas_limit"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the decision
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls decision-history archival.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters. An empty APIKey disables
// authentication.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			EvalInterval:    duration{15 * time.Second},
			PersistentApply: true,
		},
		Oracle: OracleConfig{
			Source:   "cache",
			MaxStale: duration{2 * time.Minute},
			Static:   map[string][]int64{},
		},
		Chain: ChainConfig{
			Enabled:  false,
			ChainID:  1,
			GasLimit: 200_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "feetier",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "feetier-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"evaluate": true,
	"monitor":  true,
	"serve":    true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSources enumerates the accepted values for OracleConfig.Source.
var validSources = map[string]bool{
	"static": true,
	"cache":  true,
	"ws":     true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: evaluate, monitor, serve, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.EvalInterval.Duration <= 0 {
		errs = append(errs, "engine: eval_interval must be positive")
	}
	seen := map[string]bool{}
	for i, p := range c.Engine.Pools {
		prefix := fmt.Sprintf("engine.pools[%d] (%s)", i, p.ID)
		if p.ID == "" {
			errs = append(errs, prefix+": id must not be empty")
		}
		if seen[p.ID] {
			errs = append(errs, prefix+": duplicate pool id")
		}
		seen[p.ID] = true
		if len(p.Weights) == 0 || len(p.Weights) > 3 {
			errs = append(errs, prefix+": must configure 1-3 window weights")
		}
		if len(p.Windows) != len(p.Weights) {
			errs = append(errs, prefix+": windows and weights must have equal length")
		}
		var sum uint64
		for _, w := range p.Weights {
			sum += w
		}
		if sum != domain.BasisPointsBase {
			errs = append(errs, fmt.Sprintf("%s: weights sum to %d, want %d", prefix, sum, domain.BasisPointsBase))
		}
		if err := p.Pool().Tiers.Validate(); err != nil {
			errs = append(errs, prefix+": "+err.Error())
		}
	}

	// Oracle
	if !validSources[strings.ToLower(c.Oracle.Source)] {
		errs = append(errs, fmt.Sprintf("oracle: unknown source %q (valid: static, cache, ws)", c.Oracle.Source))
	}
	if strings.ToLower(c.Oracle.Source) == "ws" && c.Oracle.WsURL == "" {
		errs = append(errs, "oracle: ws_url is required for the ws source")
	}

	// Chain
	if c.Chain.Enabled {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty when enabled")
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
		if c.Chain.PoolManager == "" {
			errs = append(errs, "chain: pool_manager address must not be empty when enabled")
		}
		if c.Chain.PrivateKey == "" && c.Chain.EncryptedKeyPath == "" {
			errs = append(errs, "chain: either private_key or encrypted_key_path must be set when enabled")
		}
		if c.Chain.EncryptedKeyPath != "" && c.Chain.KeyPassword == "" {
			errs = append(errs, "chain: key_password is required when encrypted_key_path is set")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1 when enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive when enabled")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

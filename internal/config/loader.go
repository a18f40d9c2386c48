package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FEETIER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FEETIER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setBool(&cfg.Engine.PersistentApply, "FEETIER_ENGINE_PERSISTENT_APPLY")
	setDuration(&cfg.Engine.EvalInterval, "FEETIER_ENGINE_EVAL_INTERVAL")

	// ── Oracle ──
	setStr(&cfg.Oracle.Source, "FEETIER_ORACLE_SOURCE")
	setStr(&cfg.Oracle.WsURL, "FEETIER_ORACLE_WS_URL")
	setDuration(&cfg.Oracle.MaxStale, "FEETIER_ORACLE_MAX_STALE")

	// ── Chain ──
	setBool(&cfg.Chain.Enabled, "FEETIER_CHAIN_ENABLED")
	setStr(&cfg.Chain.RPCURL, "FEETIER_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "FEETIER_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.PoolManager, "FEETIER_CHAIN_POOL_MANAGER")
	setStr(&cfg.Chain.PrivateKey, "FEETIER_CHAIN_PRIVATE_KEY")
	setStr(&cfg.Chain.EncryptedKeyPath, "FEETIER_CHAIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Chain.KeyPassword, "FEETIER_CHAIN_KEY_PASSWORD")
	setUint64(&cfg.Chain.GasLimit, "FEETIER_CHAIN_GAS_LIMIT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FEETIER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FEETIER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FEETIER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FEETIER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FEETIER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FEETIER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FEETIER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FEETIER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FEETIER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FEETIER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FEETIER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FEETIER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FEETIER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FEETIER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FEETIER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FEETIER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FEETIER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FEETIER_S3_REGION")
	setStr(&cfg.S3.Bucket, "FEETIER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FEETIER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FEETIER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FEETIER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FEETIER_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FEETIER_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FEETIER_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "FEETIER_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FEETIER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FEETIER_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "FEETIER_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "FEETIER_MODE")
	setStr(&cfg.LogLevel, "FEETIER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

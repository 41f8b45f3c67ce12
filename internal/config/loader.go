package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BRICK_* environment variable overrides, and
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

// applyEnvOverrides reads well-known BRICK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Storage ──
	setStr(&cfg.Storage.Driver, "BRICK_STORAGE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BRICK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BRICK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BRICK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BRICK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BRICK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BRICK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BRICK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BRICK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BRICK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BRICK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BRICK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BRICK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BRICK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BRICK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BRICK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BRICK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BRICK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BRICK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BRICK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BRICK_S3_REGION")
	setStr(&cfg.S3.Bucket, "BRICK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BRICK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BRICK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BRICK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BRICK_S3_FORCE_PATH_STYLE")

	// ── Chain ──
	setBool(&cfg.Chain.Enabled, "BRICK_CHAIN_ENABLED")
	setStr(&cfg.Chain.RPCURL, "BRICK_CHAIN_RPC_URL")
	setDuration(&cfg.Chain.Timeout, "BRICK_CHAIN_TIMEOUT")

	// ── Ledger ──
	setStr(&cfg.Ledger.DefaultCurrency, "BRICK_LEDGER_DEFAULT_CURRENCY")
	setDuration(&cfg.Ledger.LockTTL, "BRICK_LEDGER_LOCK_TTL")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "BRICK_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "BRICK_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BRICK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BRICK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BRICK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BRICK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BRICK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "BRICK_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BRICK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BRICK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BRICK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BRICK_NOTIFY_EVENTS")
	setStr(&cfg.Notify.LargeWithdrawalThreshold, "BRICK_NOTIFY_LARGE_WITHDRAWAL_THRESHOLD")

	// ── Top-level ──
	setStr(&cfg.Mode, "BRICK_MODE")
	setStr(&cfg.LogLevel, "BRICK_LOG_LEVEL")
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

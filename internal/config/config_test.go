package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "batch" },
			wantErr: "unknown mode",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: "unknown log_level",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *Config) { c.Storage.Driver = "sqlite" },
			wantErr: "unknown storage driver",
		},
		{
			name: "postgres host required without dsn",
			mutate: func(c *Config) {
				c.Postgres.DSN = ""
				c.Postgres.Host = ""
			},
			wantErr: "postgres: host",
		},
		{
			name: "dsn replaces host checks",
			mutate: func(c *Config) {
				c.Postgres.DSN = "postgres://u:p@db:5432/brickfolio"
				c.Postgres.Host = ""
				c.Postgres.Port = 0
				c.Postgres.Database = ""
			},
		},
		{
			name:   "memory driver skips postgres checks",
			mutate: func(c *Config) { c.Storage.Driver = "memory"; c.Postgres = PostgresConfig{} },
		},
		{
			name: "pool bounds",
			mutate: func(c *Config) {
				c.Postgres.PoolMinConns = 20
				c.Postgres.PoolMaxConns = 10
			},
			wantErr: "pool_min_conns must not exceed",
		},
		{
			name:    "redis addr required when enabled",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis: addr",
		},
		{
			name:   "redis checks skipped when disabled",
			mutate: func(c *Config) { c.Redis = RedisConfig{Enabled: false} },
		},
		{
			name:    "s3 bucket required when enabled",
			mutate:  func(c *Config) { c.S3.Enabled = true; c.S3.Bucket = "" },
			wantErr: "s3: bucket",
		},
		{
			name:    "chain rpc url required when enabled",
			mutate:  func(c *Config) { c.Chain.Enabled = true },
			wantErr: "chain: rpc_url",
		},
		{
			name:    "lock ttl must be positive",
			mutate:  func(c *Config) { c.Ledger.LockTTL = duration{} },
			wantErr: "lock_ttl",
		},
		{
			name:    "archive retention checked when s3 on",
			mutate:  func(c *Config) { c.S3.Enabled = true; c.Archive.RetentionDays = 0 },
			wantErr: "retention_days",
		},
		{
			name:    "server port range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server: port",
		},
		{
			name: "rate limit needs a window",
			mutate: func(c *Config) {
				c.Server.RateLimit = 10
				c.Server.RateLimitWindow = duration{}
			},
			wantErr: "rate_limit_window",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nope"
	cfg.LogLevel = "loud"
	cfg.Storage.Driver = "tape"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "unknown storage driver")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
mode = "server"
log_level = "debug"

[storage]
driver = "memory"

[ledger]
default_currency = "USDC"
lock_ttl = "30s"

[server]
port = 9090

[chain]
enabled = true
rpc_url = "https://rpc.example.com"
timeout = "2s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "USDC", cfg.Ledger.DefaultCurrency)
	assert.Equal(t, 30*time.Second, cfg.Ledger.LockTTL.Duration)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Chain.Timeout.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 365, cfg.Archive.RetentionDays)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[storage]
driver = "memory"

[server]
port = 9090
`)

	t.Setenv("BRICK_STORAGE_DRIVER", "postgres")
	t.Setenv("BRICK_POSTGRES_PASSWORD", "s3cret")
	t.Setenv("BRICK_SERVER_PORT", "8080")
	t.Setenv("BRICK_REDIS_ENABLED", "false")
	t.Setenv("BRICK_LEDGER_LOCK_TTL", "45s")
	t.Setenv("BRICK_SERVER_CORS_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "s3cret", cfg.Postgres.Password)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Ledger.LockTTL.Duration)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	path := writeConfig(t, `
[storage]
driver = "memory"
`)

	t.Setenv("BRICK_SERVER_PORT", "not-a-number")
	t.Setenv("BRICK_REDIS_ENABLED", "maybe")
	t.Setenv("BRICK_LEDGER_LOCK_TTL", "soon")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Unparseable overrides leave the file/default values in place.
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Ledger.LockTTL.Duration)
}

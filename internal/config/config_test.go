package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Operator.PrivateKey = "0x0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	return cfg
}

func TestDefaultsRequireOperatorKey(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "operator")
}

func TestValidateHappyPath(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	cfg.Server.Port = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "log_level")
	require.Contains(t, err.Error(), "server: port")
	require.Contains(t, err.Error(), "redis: addr")
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Operator.PrivateKey = ""
	cfg.Operator.EncryptedKeyPath = "/etc/lsmm/operator.key"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "key_password")

	cfg.Operator.KeyPassword = "hunter2"
	require.NoError(t, cfg.Validate())
}

func TestValidateArchiveRequiresS3(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "s3 must be enabled")

	cfg.S3.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lsmm.toml")
	data := `
log_level = "debug"

[operator]
private_key = "0xabc"

[server]
port = 9090

[archive]
interval = "6h"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 6*time.Hour, cfg.Archive.Interval.Duration)
	// Untouched sections keep their defaults.
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 10, cfg.Postgres.PoolMaxConns)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LSMM_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LSMM_SERVER_PORT", "8443")
	t.Setenv("LSMM_POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("LSMM_NOTIFY_EVENTS", "market_resolved, error")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.Equal(t, 8443, cfg.Server.Port)
	require.False(t, cfg.Postgres.RunMigrations)
	require.Equal(t, []string{"market_resolved", "error"}, cfg.Notify.Events)
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "pgpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.AccessKey = "AKIA123"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.APIKey = "apikey"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	require.Equal(t, "***", red.Operator.PrivateKey)
	require.Equal(t, "***", red.Postgres.Password)
	require.Equal(t, "***", red.Redis.Password)
	require.Equal(t, "***", red.S3.AccessKey)
	require.Equal(t, "***", red.S3.SecretKey)
	require.Equal(t, "***", red.Server.APIKey)
	require.Equal(t, "***", red.Notify.TelegramToken)

	// Original untouched.
	require.Equal(t, "pgpass", cfg.Postgres.Password)

	// Slice copies are independent.
	red.Server.CORSOrigins[0] = "mutated"
	require.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}

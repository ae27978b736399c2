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
// built-in defaults, applies LSMM_* environment variable overrides, and
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

// applyEnvOverrides reads well-known LSMM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Operator ──
	setStr(&cfg.Operator.PrivateKey, "LSMM_OPERATOR_PRIVATE_KEY")
	setStr(&cfg.Operator.EncryptedKeyPath, "LSMM_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "LSMM_OPERATOR_KEY_PASSWORD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "LSMM_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "LSMM_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "LSMM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LSMM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LSMM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LSMM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LSMM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LSMM_POSTGRES_SSLMODE")
	setStr(&cfg.Postgres.SSLMode, "LSMM_POSTGRES_SSL_MODE") // compatibility alias
	setInt(&cfg.Postgres.PoolMaxConns, "LSMM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LSMM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LSMM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LSMM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LSMM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LSMM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LSMM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LSMM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LSMM_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LSMM_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LSMM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LSMM_S3_REGION")
	setStr(&cfg.S3.Bucket, "LSMM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LSMM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LSMM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LSMM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LSMM_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "LSMM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LSMM_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LSMM_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "LSMM_SERVER_RATE_LIMIT_PER_MIN")
	setBool(&cfg.Server.RateLimitEnabled, "LSMM_SERVER_RATE_LIMIT_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "LSMM_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "LSMM_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "LSMM_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LSMM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LSMM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LSMM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LSMM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "LSMM_LOG_LEVEL")
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

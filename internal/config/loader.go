package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBWATCH_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARBWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBWATCH_S3_FORCE_PATH_STYLE")

	// ── Venues ──
	setStr(&cfg.Polymarket.GammaHost, "ARBWATCH_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.PageSize, "ARBWATCH_POLYMARKET_PAGE_SIZE")
	setInt(&cfg.Polymarket.MaxPages, "ARBWATCH_POLYMARKET_MAX_PAGES")
	setStr(&cfg.Kalshi.ApiKey, "ARBWATCH_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "ARBWATCH_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.BaseURL, "ARBWATCH_KALSHI_BASE_URL")
	setInt(&cfg.Kalshi.PageSize, "ARBWATCH_KALSHI_PAGE_SIZE")
	setInt(&cfg.Kalshi.MaxPages, "ARBWATCH_KALSHI_MAX_PAGES")

	// ── Detection ──
	setStr(&cfg.Detection.Schedule, "ARBWATCH_DETECTION_SCHEDULE")
	setInt(&cfg.Detection.Concurrency, "ARBWATCH_DETECTION_CONCURRENCY")
	setDuration(&cfg.Detection.LegTimeout, "ARBWATCH_DETECTION_LEG_TIMEOUT")
	setDuration(&cfg.Detection.LockTTL, "ARBWATCH_DETECTION_LOCK_TTL")
	setDuration(&cfg.Detection.StaleRunAfter, "ARBWATCH_DETECTION_STALE_RUN_AFTER")
	setStr(&cfg.Detection.Settlement, "ARBWATCH_DETECTION_SETTLEMENT")
	setFloat64(&cfg.Detection.MinExecutableSpreadPct, "ARBWATCH_DETECTION_MIN_EXECUTABLE_SPREAD_PCT")
	setFloat64(&cfg.Detection.MinExecutableSizeUSD, "ARBWATCH_DETECTION_MIN_EXECUTABLE_SIZE_USD")
	setFloat64(&cfg.Detection.LiquidityCeilingUSD, "ARBWATCH_DETECTION_LIQUIDITY_CEILING_USD")
	setFloat64(&cfg.Detection.MaxPositionUSD, "ARBWATCH_DETECTION_MAX_POSITION_USD")
	setFloat64(&cfg.Detection.ReferenceCapitalUSD, "ARBWATCH_DETECTION_REFERENCE_CAPITAL_USD")
	setFloat64(&cfg.Detection.VolumeLiquidityFraction, "ARBWATCH_DETECTION_VOLUME_LIQUIDITY_FRACTION")

	// ── Volume ──
	setDuration(&cfg.Volume.Window, "ARBWATCH_VOLUME_WINDOW")
	setFloat64(&cfg.Volume.AlertMultiplier, "ARBWATCH_VOLUME_ALERT_MULTIPLIER")
	setInt(&cfg.Volume.MinSamples, "ARBWATCH_VOLUME_MIN_SAMPLES")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.IngestInterval, "ARBWATCH_PIPELINE_INGEST_INTERVAL")
	setStr(&cfg.Pipeline.ArchiveCron, "ARBWATCH_PIPELINE_ARCHIVE_CRON")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "ARBWATCH_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Pipeline.BackfillBatchSize, "ARBWATCH_PIPELINE_BACKFILL_BATCH_SIZE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBWATCH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramAPIURL, "ARBWATCH_NOTIFY_TELEGRAM_API_URL")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBWATCH_MODE")
	setStr(&cfg.LogLevel, "ARBWATCH_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

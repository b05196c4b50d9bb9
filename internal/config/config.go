// Package config defines the top-level configuration for arbwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBWATCH_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Detection  DetectionConfig  `toml:"detection"`
	Volume     VolumeConfig     `toml:"volume"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters. DSN, when set,
// takes precedence over the individual fields.
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

// S3Config holds S3-compatible object storage parameters. Endpoint is empty
// for AWS itself.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PolymarketConfig holds the Gamma API endpoint and paging limits.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	PageSize  int    `toml:"page_size"`
	MaxPages  int    `toml:"max_pages"`
}

// KalshiConfig holds Kalshi API credentials and paging limits. Market data
// is public, so the key is optional.
type KalshiConfig struct {
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	BaseURL           string `toml:"base_url"`
	PageSize          int    `toml:"page_size"`
	MaxPages          int    `toml:"max_pages"`
}

// DetectionConfig tunes the detection engine.
type DetectionConfig struct {
	Schedule      string   `toml:"schedule"`
	Concurrency   int      `toml:"concurrency"`
	LegTimeout    duration `toml:"leg_timeout"`
	LockTTL       duration `toml:"lock_ttl"`
	StaleRunAfter duration `toml:"stale_run_after"`
	Settlement    string   `toml:"settlement"`

	MinExecutableSpreadPct float64 `toml:"min_executable_spread_pct"`
	MinExecutableSizeUSD   float64 `toml:"min_executable_size_usd"`

	LiquidityCeilingUSD     float64 `toml:"liquidity_ceiling_usd"`
	MaxPositionUSD          float64 `toml:"max_position_usd"`
	ReferenceCapitalUSD     float64 `toml:"reference_capital_usd"`
	VolumeLiquidityFraction float64 `toml:"volume_liquidity_fraction"`
}

// VolumeConfig tunes the volume anomaly detector.
type VolumeConfig struct {
	Window          duration `toml:"window"`
	AlertMultiplier float64  `toml:"alert_multiplier"`
	MinSamples      int      `toml:"min_samples"`
}

// PipelineConfig holds snapshot ingestion, backfill and archive settings.
type PipelineConfig struct {
	IngestInterval       duration `toml:"ingest_interval"`
	ArchiveCron          string   `toml:"archive_cron"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	BackfillBatchSize    int      `toml:"backfill_batch_size"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramAPIURL    string   `toml:"telegram_api_url"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "arbwatch",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			PageSize:  500,
			MaxPages:  20,
		},
		Kalshi: KalshiConfig{
			BaseURL:  "https://api.elections.kalshi.com/trade-api/v2",
			PageSize: 1000,
			MaxPages: 20,
		},
		Detection: DetectionConfig{
			Schedule:      "0 */5 * * * *",
			Concurrency:   8,
			LegTimeout:    duration{10 * time.Second},
			LockTTL:       duration{10 * time.Minute},
			StaleRunAfter: duration{30 * time.Minute},
			Settlement:    "flat",

			MinExecutableSpreadPct: 2,
			MinExecutableSizeUSD:   100,

			LiquidityCeilingUSD:     10000,
			MaxPositionUSD:          5000,
			ReferenceCapitalUSD:     1000,
			VolumeLiquidityFraction: 0.01,
		},
		Volume: VolumeConfig{
			Window:          duration{7 * 24 * time.Hour},
			AlertMultiplier: 1.5,
			MinSamples:      3,
		},
		Pipeline: PipelineConfig{
			IngestInterval:       duration{5 * time.Minute},
			ArchiveCron:          "0 0 3 * * *",
			ArchiveRetentionDays: 30,
			BackfillBatchSize:    500,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_executable", "volume_alert", "run_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"detect":   true,
	"ingest":   true,
	"backfill": true,
	"archive":  true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: detect, ingest, backfill, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
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

	// Redis backs the run lock and the signal bus.
	if mode == "detect" || mode == "full" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 is only touched by the archiver.
	if mode == "archive" || mode == "full" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, "s3: access_key and secret_key must be set together")
		}
	}

	// Venues
	if mode == "ingest" || mode == "full" {
		if c.Polymarket.GammaHost == "" {
			errs = append(errs, "polymarket: gamma_host must not be empty")
		}
		if c.Kalshi.BaseURL == "" {
			errs = append(errs, "kalshi: base_url must not be empty")
		}
		if c.Polymarket.PageSize < 1 || c.Kalshi.PageSize < 1 {
			errs = append(errs, "polymarket/kalshi: page_size must be >= 1")
		}
	}
	if c.Kalshi.RsaPrivateKeyPath != "" && c.Kalshi.ApiKey == "" {
		errs = append(errs, "kalshi: api_key is required when rsa_private_key_path is set")
	}

	// Detection
	if _, err := cronParser.Parse(c.Detection.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("detection: invalid schedule %q: %v", c.Detection.Schedule, err))
	}
	if c.Detection.Concurrency < 1 {
		errs = append(errs, "detection: concurrency must be >= 1")
	}
	if c.Detection.LegTimeout.Duration <= 0 {
		errs = append(errs, "detection: leg_timeout must be > 0")
	}
	if c.Detection.LockTTL.Duration <= 0 {
		errs = append(errs, "detection: lock_ttl must be > 0")
	}
	if c.Detection.StaleRunAfter.Duration < c.Detection.LockTTL.Duration {
		errs = append(errs, "detection: stale_run_after must not be shorter than lock_ttl")
	}
	if s := c.Detection.Settlement; s != "flat" && s != "probability" {
		errs = append(errs, fmt.Sprintf("detection: settlement must be flat or probability, got %q", s))
	}
	if c.Detection.MinExecutableSpreadPct <= 0 {
		errs = append(errs, "detection: min_executable_spread_pct must be > 0")
	}
	if c.Detection.MinExecutableSizeUSD < 0 {
		errs = append(errs, "detection: min_executable_size_usd must be >= 0")
	}
	if c.Detection.ReferenceCapitalUSD <= 0 {
		errs = append(errs, "detection: reference_capital_usd must be > 0")
	}
	if c.Detection.LiquidityCeilingUSD < 0 || c.Detection.MaxPositionUSD < 0 {
		errs = append(errs, "detection: liquidity_ceiling_usd and max_position_usd must be >= 0")
	}
	if f := c.Detection.VolumeLiquidityFraction; f < 0 || f > 1 {
		errs = append(errs, fmt.Sprintf("detection: volume_liquidity_fraction must be within [0, 1], got %g", f))
	}

	// Volume
	if c.Volume.Window.Duration <= 0 {
		errs = append(errs, "volume: window must be > 0")
	}
	if c.Volume.AlertMultiplier <= 1 {
		errs = append(errs, "volume: alert_multiplier must be > 1")
	}
	if c.Volume.MinSamples < 1 {
		errs = append(errs, "volume: min_samples must be >= 1")
	}

	// Pipeline
	if c.Pipeline.IngestInterval.Duration <= 0 {
		errs = append(errs, "pipeline: ingest_interval must be > 0")
	}
	if _, err := cronParser.Parse(c.Pipeline.ArchiveCron); err != nil {
		errs = append(errs, fmt.Sprintf("pipeline: invalid archive_cron %q: %v", c.Pipeline.ArchiveCron, err))
	}
	if c.Pipeline.ArchiveRetentionDays < 1 {
		errs = append(errs, "pipeline: archive_retention_days must be >= 1")
	}
	if c.Pipeline.BackfillBatchSize < 1 {
		errs = append(errs, "pipeline: backfill_batch_size must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

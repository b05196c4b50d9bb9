package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "detect"

[detection]
schedule = "0 * * * * *"
leg_timeout = "3s"
min_executable_spread_pct = 1.5

[volume]
window = "72h"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "detect", cfg.Mode)
	assert.Equal(t, "0 * * * * *", cfg.Detection.Schedule)
	assert.Equal(t, 3*time.Second, cfg.Detection.LegTimeout.Duration)
	assert.InDelta(t, 1.5, cfg.Detection.MinExecutableSpreadPct, 1e-9)
	assert.Equal(t, 72*time.Hour, cfg.Volume.Window.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10*time.Minute, cfg.Detection.LockTTL.Duration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestLoadRejectsBadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeTOML(t, `[detection]
leg_timeout = "soon"`))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARBWATCH_MODE", "ingest")
	t.Setenv("ARBWATCH_POSTGRES_DSN", "postgres://u:p@db:5432/arbwatch")
	t.Setenv("ARBWATCH_DETECTION_CONCURRENCY", "16")
	t.Setenv("ARBWATCH_DETECTION_STALE_RUN_AFTER", "1h")
	t.Setenv("ARBWATCH_VOLUME_ALERT_MULTIPLIER", "2.5")
	t.Setenv("ARBWATCH_SERVER_ENABLED", "false")
	t.Setenv("ARBWATCH_NOTIFY_EVENTS", " volume_alert, ,run_failed ")
	// Unparseable values leave the default in place.
	t.Setenv("ARBWATCH_SERVER_PORT", "eighty")

	cfg, err := Load(writeTOML(t, `mode = "detect"`))
	require.NoError(t, err)

	assert.Equal(t, "ingest", cfg.Mode)
	assert.Equal(t, "postgres://u:p@db:5432/arbwatch", cfg.Postgres.DSN)
	assert.Equal(t, 16, cfg.Detection.Concurrency)
	assert.Equal(t, time.Hour, cfg.Detection.StaleRunAfter.Duration)
	assert.InDelta(t, 2.5, cfg.Volume.AlertMultiplier, 1e-9)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, []string{"volume_alert", "run_failed"}, cfg.Notify.Events)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Detection.Schedule = "every minute"
	cfg.Detection.Settlement = "weekly"
	cfg.Detection.MinExecutableSpreadPct = 0
	cfg.Volume.AlertMultiplier = 1
	cfg.Pipeline.ArchiveRetentionDays = 0
	cfg.Notify.TelegramToken = "token-without-chat"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown log_level "loud"`,
		"detection: invalid schedule",
		"detection: settlement",
		"min_executable_spread_pct",
		"volume: alert_multiplier",
		"archive_retention_days",
		"telegram_token and telegram_chat_id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateByMode(t *testing.T) {
	t.Run("s3 only matters when archiving", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "detect"
		cfg.S3.Bucket = ""
		assert.NoError(t, cfg.Validate())

		cfg.Mode = "archive"
		assert.ErrorContains(t, cfg.Validate(), "s3: bucket")
	})

	t.Run("redis only matters when detecting", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "backfill"
		cfg.Redis.Addr = ""
		assert.NoError(t, cfg.Validate())

		cfg.Mode = "detect"
		assert.ErrorContains(t, cfg.Validate(), "redis: addr")
	})

	t.Run("stale run window covers the lock", func(t *testing.T) {
		cfg := Defaults()
		cfg.Detection.StaleRunAfter.Duration = time.Minute
		assert.ErrorContains(t, cfg.Validate(), "stale_run_after")
	})
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Notify.TelegramToken = "bot-token"
	cfg.Server.APIKey = "api-key"

	red := RedactedConfig(&cfg)
	assert.Equal(t, redacted, red.Postgres.Password)
	assert.Equal(t, redacted, red.S3.SecretKey)
	assert.Equal(t, redacted, red.Notify.TelegramToken)
	assert.Equal(t, redacted, red.Server.APIKey)
	assert.Empty(t, red.Redis.Password, "empty secrets stay empty")

	red.Notify.Events[0] = "mutated"
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)
	assert.Equal(t, "opportunity_executable", cfg.Notify.Events[0])
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

const base = `
db:
  host: db
  port: 5432
  password: ${DB_PASSWORD}
jwt:
  secret: ${JWT_SECRET}
reminder:
  sweep_schedule: "@every 30m"
consumer:
  batch_size: 25
  batch_wait: 2s
rate_limit:
  per_second: 5
  burst: 10
`

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", base)
	writeFile(t, dir, "test.yaml", "reminder:\n  dedup_enabled: true\nlog:\n  level: warn\n")
	writeFile(t, dir, "secrets.env", "DB_PASSWORD=pw\nJWT_SECRET=s3cret\n")

	cfg, err := LoadFrom("test", dir)
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.DB.Host)
	assert.Equal(t, "pw", cfg.DB.Password)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "@every 30m", cfg.Reminder.SweepSchedule)
	assert.True(t, cfg.Reminder.DedupEnabled)
	assert.Equal(t, 25, cfg.Consumer.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Consumer.BatchWait)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 5.0, cfg.RateLimit.PerSecond)
	assert.Equal(t, 10, cfg.RateLimit.Burst)

	// untouched sections keep their defaults
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Consumer.Concurrency)
	assert.Equal(t, int64(3), cfg.Consumer.MaxRetries)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", base)

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("MQ_URL", "amqp://mq:5672/")

	cfg, err := LoadFrom("base", dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, ":9999", cfg.Server.Port)
	assert.Equal(t, "amqp://mq:5672/", cfg.MQ.URL)
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "consumer:\n  batch_size: 0\n")

	_, err := LoadFrom("", dir)
	assert.ErrorContains(t, err, "batch_size")
}

func TestLoadFromMissingDir(t *testing.T) {
	_, err := LoadFrom("local", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

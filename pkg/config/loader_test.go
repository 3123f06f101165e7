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

func TestLoadConfig_MergesEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  password: ${DB_SECRET}
reminder:
  sweep_schedule: "@every 5m"
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
`)
	writeFile(t, dir, "secrets.env", "DB_SECRET=\"s3cret\"\n# comment\n")

	cfgMap, err := LoadConfig("production", dir)
	require.NoError(t, err)

	var out struct {
		DB       DBConfig `yaml:"db"`
		Reminder struct {
			SweepSchedule string `yaml:"sweep_schedule"`
		} `yaml:"reminder"`
	}
	require.NoError(t, Decode(cfgMap, &out))

	assert.Equal(t, "db.internal", out.DB.Host)
	assert.Equal(t, 5432, out.DB.Port)
	assert.Equal(t, "s3cret", out.DB.Password)
	assert.Equal(t, "@every 5m", out.Reminder.SweepSchedule)
}

func TestLoadConfig_MissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base.yaml")
}

func TestLoadConfig_MissingOverlayIsIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: \":8080\"\n")

	cfgMap, err := LoadConfig("staging", dir)
	require.NoError(t, err)

	var out struct {
		Server ServerConfig `yaml:"server"`
	}
	require.NoError(t, Decode(cfgMap, &out))
	assert.Equal(t, ":8080", out.Server.Port)
}

func TestDecode_Duration(t *testing.T) {
	var out struct {
		Wait time.Duration `yaml:"wait"`
	}
	require.NoError(t, Decode(map[string]interface{}{"wait": "250ms"}, &out))
	assert.Equal(t, 250*time.Millisecond, out.Wait)
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("MQ_URL", "amqp://env")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("SERVER_PORT", ":9999")

	db := DBConfig{Host: "h", Port: 1}
	OverrideDBFromEnv(&db)
	assert.Equal(t, "envhost", db.Host)
	assert.Equal(t, 6543, db.Port)

	mq := MQConfig{}
	OverrideMQFromEnv(&mq)
	assert.Equal(t, "amqp://env", mq.URL)

	r := RedisConfig{}
	OverrideRedisFromEnv(&r)
	assert.Equal(t, "redis:6379", r.Addr)

	j := JWTConfig{}
	OverrideJWTFromEnv(&j)
	assert.Equal(t, "jwt", j.Secret)

	s := ServerConfig{}
	OverrideServerFromEnv(&s)
	assert.Equal(t, ":9999", s.Port)
}

func TestMergeMaps_Nested(t *testing.T) {
	dst := map[string]interface{}{"a": map[string]interface{}{"x": 1, "y": 2}, "b": 1}
	src := map[string]interface{}{"a": map[string]interface{}{"y": 3}, "c": 4}

	got := mergeMaps(dst, src)
	assert.Equal(t, map[string]interface{}{"x": 1, "y": 3}, got["a"])
	assert.Equal(t, 1, got["b"])
	assert.Equal(t, 4, got["c"])
}

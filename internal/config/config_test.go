package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "2.7.0", cfg.ServerVersion)

	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.MQTTEnabled)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.False(t, cfg.DatabaseEnabled)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "firewatch", cfg.Database.Database)

	assert.Equal(t, "firewatch:ingest", cfg.Ingest.Stream)
	assert.Equal(t, "firewatch/ingest/#", cfg.Ingest.MQTTTopic)

	assert.Equal(t, 180.0, cfg.Alerts.HeartRateMax)
	assert.Equal(t, 30*time.Second, cfg.Alerts.ManDownStationary)
	assert.Equal(t, 20.0, cfg.Alerts.BatteryWarning)
	assert.Equal(t, 10.0, cfg.Alerts.BatteryCritical)
	assert.Equal(t, 100.0, cfg.Alerts.SCBAWarningBar)
	assert.Equal(t, 50.0, cfg.Alerts.SCBACriticalBar)
	assert.Equal(t, 19.5, cfg.Alerts.O2WarningPercent)
	assert.Equal(t, 30*time.Second, cfg.Alerts.TagOfflineAfter)
	assert.Equal(t, 5*time.Second, cfg.Alerts.SweepInterval)

	assert.Equal(t, 1000, cfg.History.Limit)
	assert.Equal(t, time.Duration(0), cfg.History.MaxAge)
	assert.Equal(t, 100, cfg.History.DefaultQueryLimit)

	assert.Equal(t, 256, cfg.Sessions.QueueSize)
	assert.Equal(t, OverflowDropOldest, cfg.Sessions.OverflowPolicy)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("ALERT_HEART_RATE_MAX", "170.5")
	t.Setenv("TAG_OFFLINE_AFTER", "45s")
	t.Setenv("SESSION_OVERFLOW_POLICY", "disconnect")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "pg", cfg.Database.Host)
	assert.Equal(t, 170.5, cfg.Alerts.HeartRateMax)
	assert.Equal(t, 45*time.Second, cfg.Alerts.TagOfflineAfter)
	assert.Equal(t, OverflowDisconnect, cfg.Sessions.OverflowPolicy)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsInvalidPolicy(t *testing.T) {
	os.Clearenv()
	t.Setenv("SESSION_OVERFLOW_POLICY", "block")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_OVERFLOW_POLICY")
}

func TestLoad_RejectsInvertedThresholds(t *testing.T) {
	os.Clearenv()
	t.Setenv("ALERT_BATTERY_CRITICAL", "30")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALERT_BATTERY_CRITICAL")
}

func TestLoadEnvFile(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "firewatch.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:7000\nLOG_FORMAT=console\n"), 0o600))
	t.Setenv("LOG_FORMAT", "json")

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))

	t.Setenv("TEST_KEY", "env-value")
	assert.Equal(t, "env-value", getEnv("TEST_KEY", "default-value"))

	t.Setenv("TEST_INT", "nope")
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"firewatch/common/config"

	"github.com/joho/godotenv"
)

// Session queue overflow policies.
const (
	OverflowDropOldest = "drop_oldest"
	OverflowDisconnect = "disconnect"
)

// AlertConfig holds rule thresholds for the alert engine.
type AlertConfig struct {
	HeartRateMax         float64
	ManDownStationary    time.Duration
	BatteryWarning       float64
	BatteryCritical      float64
	SCBAWarningBar       float64
	SCBACriticalBar      float64
	TemperatureWarningC  float64
	TemperatureCriticalC float64
	COWarningPPM         float64
	COCriticalPPM        float64
	O2WarningPercent     float64
	O2CriticalPercent    float64
	LELWarningPercent    float64
	LELCriticalPercent   float64

	// TagOfflineAfter is measured from server receipt time.
	TagOfflineAfter time.Duration
	SweepInterval   time.Duration
}

type HistoryConfig struct {
	Limit             int
	MaxAge            time.Duration // 0 disables the time window
	DefaultQueryLimit int
	MaxQueryLimit     int
}

type SessionConfig struct {
	QueueSize      int
	OverflowPolicy string
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
}

type IngestConfig struct {
	Stream       string
	Group        string
	Consumer     string
	BatchSize    int64
	Block        time.Duration
	MQTTTopic    string
	MaxBodyBytes int64
}

type CacheConfig struct {
	KeyPrefix string
	TTL       time.Duration
	// AlertStream receives every alert transition; empty disables it.
	AlertStream string
}

type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
	RetryCount int
	// MQTTAlertTopic is the topic prefix alert transitions are relayed to
	// when MQTT is enabled. Empty disables the relay.
	MQTTAlertTopic string
}

// Config is the firewatch service configuration.
type Config struct {
	ServiceName   string
	ServerVersion string
	BuildingFile  string

	HTTP struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ShutdownTimeout   time.Duration
		AllowedOrigins    []string
	}

	Redis           config.RedisConfig
	RedisEnabled    bool
	MQTT            config.MQTTConfig
	MQTTEnabled     bool
	Database        config.DatabaseConfig
	DatabaseEnabled bool

	Ingest   IngestConfig
	Alerts   AlertConfig
	History  HistoryConfig
	Sessions SessionConfig
	Cache    CacheConfig
	Notify   NotifyConfig

	// SinkQueueSize bounds each asynchronous side output.
	SinkQueueSize int

	Log struct {
		Level  string
		Format string
	}
}

// LoadEnvFile merges KEY=VALUE pairs from path into the process environment.
// Variables already set win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServiceName = getEnv("SERVICE_NAME", "firewatch")
	cfg.ServerVersion = getEnv("SERVER_VERSION", "2.7.0")
	cfg.BuildingFile = getEnv("BUILDING_FILE", "")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.ReadHeaderTimeout = getEnvDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	cfg.HTTP.ShutdownTimeout = getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.HTTP.AllowedOrigins = splitList(getEnv("HTTP_ALLOWED_ORIGINS", "*"))

	cfg.RedisEnabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTTEnabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "firewatch"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.DatabaseEnabled = getEnvBool("DB_ENABLED", false)
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "firewatch"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 2
	cfg.Database.LoadFromEnv("DB")

	cfg.Ingest.Stream = getEnv("INGEST_STREAM", "firewatch:ingest")
	cfg.Ingest.Group = getEnv("INGEST_GROUP", "firewatch")
	cfg.Ingest.Consumer = getEnv("INGEST_CONSUMER", defaultConsumerName())
	cfg.Ingest.BatchSize = int64(getEnvInt("INGEST_BATCH_SIZE", 64))
	cfg.Ingest.Block = getEnvDuration("INGEST_BLOCK", 2*time.Second)
	cfg.Ingest.MQTTTopic = getEnv("MQTT_TOPIC", "firewatch/ingest/#")
	cfg.Ingest.MaxBodyBytes = int64(getEnvInt("INGEST_MAX_BODY_BYTES", 1<<20))

	cfg.Alerts.HeartRateMax = getEnvFloat("ALERT_HEART_RATE_MAX", 180)
	cfg.Alerts.ManDownStationary = getEnvDuration("ALERT_MAN_DOWN_STATIONARY", 30*time.Second)
	cfg.Alerts.BatteryWarning = getEnvFloat("ALERT_BATTERY_WARNING", 20)
	cfg.Alerts.BatteryCritical = getEnvFloat("ALERT_BATTERY_CRITICAL", 10)
	cfg.Alerts.SCBAWarningBar = getEnvFloat("ALERT_SCBA_WARNING_BAR", 100)
	cfg.Alerts.SCBACriticalBar = getEnvFloat("ALERT_SCBA_CRITICAL_BAR", 50)
	cfg.Alerts.TemperatureWarningC = getEnvFloat("ALERT_TEMPERATURE_WARNING_C", 100)
	cfg.Alerts.TemperatureCriticalC = getEnvFloat("ALERT_TEMPERATURE_CRITICAL_C", 250)
	cfg.Alerts.COWarningPPM = getEnvFloat("ALERT_CO_WARNING_PPM", 35)
	cfg.Alerts.COCriticalPPM = getEnvFloat("ALERT_CO_CRITICAL_PPM", 200)
	cfg.Alerts.O2WarningPercent = getEnvFloat("ALERT_O2_WARNING_PERCENT", 19.5)
	cfg.Alerts.O2CriticalPercent = getEnvFloat("ALERT_O2_CRITICAL_PERCENT", 16)
	cfg.Alerts.LELWarningPercent = getEnvFloat("ALERT_LEL_WARNING_PERCENT", 10)
	cfg.Alerts.LELCriticalPercent = getEnvFloat("ALERT_LEL_CRITICAL_PERCENT", 20)
	cfg.Alerts.TagOfflineAfter = getEnvDuration("TAG_OFFLINE_AFTER", 30*time.Second)
	cfg.Alerts.SweepInterval = getEnvDuration("OFFLINE_SWEEP_INTERVAL", 5*time.Second)

	cfg.History.Limit = getEnvInt("HISTORY_LIMIT", 1000)
	cfg.History.MaxAge = getEnvDuration("HISTORY_MAX_AGE", 0)
	cfg.History.DefaultQueryLimit = getEnvInt("HISTORY_DEFAULT_QUERY_LIMIT", 100)
	cfg.History.MaxQueryLimit = getEnvInt("HISTORY_MAX_QUERY_LIMIT", 1000)

	cfg.Sessions.QueueSize = getEnvInt("SESSION_QUEUE_SIZE", 256)
	cfg.Sessions.OverflowPolicy = getEnv("SESSION_OVERFLOW_POLICY", OverflowDropOldest)
	cfg.Sessions.PingInterval = getEnvDuration("SESSION_PING_INTERVAL", 20*time.Second)
	cfg.Sessions.PongWait = getEnvDuration("SESSION_PONG_WAIT", 60*time.Second)
	cfg.Sessions.WriteTimeout = getEnvDuration("SESSION_WRITE_TIMEOUT", 10*time.Second)
	cfg.Sessions.ReadLimit = int64(getEnvInt("SESSION_READ_LIMIT", 4096))

	cfg.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", "firewatch:")
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.AlertStream = getEnv("CACHE_ALERT_STREAM", "firewatch:alerts")

	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", "")
	cfg.Notify.Timeout = getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second)
	cfg.Notify.RetryCount = getEnvInt("NOTIFY_RETRY_COUNT", 3)
	cfg.Notify.MQTTAlertTopic = getEnv("NOTIFY_MQTT_TOPIC", "firewatch/alerts")

	cfg.SinkQueueSize = getEnvInt("SINK_QUEUE_SIZE", 1024)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Sessions.QueueSize <= 0:
		return fmt.Errorf("SESSION_QUEUE_SIZE must be positive, got %d", c.Sessions.QueueSize)
	case c.Sessions.OverflowPolicy != OverflowDropOldest && c.Sessions.OverflowPolicy != OverflowDisconnect:
		return fmt.Errorf("SESSION_OVERFLOW_POLICY must be %q or %q, got %q", OverflowDropOldest, OverflowDisconnect, c.Sessions.OverflowPolicy)
	case c.History.Limit <= 0:
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.History.Limit)
	case c.History.DefaultQueryLimit <= 0 || c.History.DefaultQueryLimit > c.History.MaxQueryLimit:
		return fmt.Errorf("HISTORY_DEFAULT_QUERY_LIMIT must be in 1..%d, got %d", c.History.MaxQueryLimit, c.History.DefaultQueryLimit)
	case c.Alerts.BatteryCritical >= c.Alerts.BatteryWarning:
		return fmt.Errorf("ALERT_BATTERY_CRITICAL (%v) must be below ALERT_BATTERY_WARNING (%v)", c.Alerts.BatteryCritical, c.Alerts.BatteryWarning)
	case c.Alerts.SCBACriticalBar >= c.Alerts.SCBAWarningBar:
		return fmt.Errorf("ALERT_SCBA_CRITICAL_BAR (%v) must be below ALERT_SCBA_WARNING_BAR (%v)", c.Alerts.SCBACriticalBar, c.Alerts.SCBAWarningBar)
	case c.Alerts.TagOfflineAfter <= 0 || c.Alerts.SweepInterval <= 0:
		return fmt.Errorf("TAG_OFFLINE_AFTER and OFFLINE_SWEEP_INTERVAL must be positive")
	case c.SinkQueueSize <= 0:
		return fmt.Errorf("SINK_QUEUE_SIZE must be positive, got %d", c.SinkQueueSize)
	}
	return nil
}

func defaultConsumerName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "firewatch-1"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}

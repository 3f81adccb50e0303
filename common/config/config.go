// Package config holds connection settings shared by every firewatch binary.
// Each section takes its defaults from the caller and lets the environment
// override them under a caller-chosen prefix.
package config

import (
	"os"
	"strconv"
	"strings"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig is the broker tags and beacons publish to. QoS is 0, 1 or 2.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN builds a lib/pq key/value connection string. Values are quoted
// when empty or when they contain spaces, quotes or backslashes.
func (c *DatabaseConfig) GetDSN() string {
	pairs := []struct {
		key, value string
	}{
		{"host", c.Host},
		{"port", strconv.Itoa(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.Database},
		{"sslmode", c.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.key+"="+dsnValue(p.value))
	}
	return strings.Join(parts, " ")
}

func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// LoadFromEnv reads <prefix>_HOST, _PORT, _USER, _PASSWORD, _NAME, _SSLMODE,
// _MAX_CONNS and _MAX_IDLE.
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	env := envPrefix(prefix)
	env.str("HOST", &c.Host)
	env.integer("PORT", &c.Port)
	env.str("USER", &c.User)
	env.str("PASSWORD", &c.Password)
	env.str("NAME", &c.Database)
	env.str("SSLMODE", &c.SSLMode)
	env.integer("MAX_CONNS", &c.MaxConns)
	env.integer("MAX_IDLE", &c.MaxIdle)
}

func (c *RedisConfig) LoadFromEnv(prefix string) {
	env := envPrefix(prefix)
	env.str("ADDR", &c.Addr)
	env.str("PASSWORD", &c.Password)
	env.integer("DB", &c.DB)
}

// LoadFromEnv ignores a QoS outside 0..2.
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	env := envPrefix(prefix)
	env.str("BROKER", &c.Broker)
	env.str("CLIENT_ID", &c.ClientID)
	env.str("USERNAME", &c.Username)
	env.str("PASSWORD", &c.Password)

	qos := -1
	env.integer("QOS", &qos)
	if qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

// envPrefix looks up <prefix>_<name>. Unset, empty or unparsable values
// leave the target alone.
type envPrefix string

func (p envPrefix) lookup(name string) (string, bool) {
	v := os.Getenv(string(p) + "_" + name)
	return v, v != ""
}

func (p envPrefix) str(name string, dst *string) {
	if v, ok := p.lookup(name); ok {
		*dst = v
	}
}

func (p envPrefix) integer(name string, dst *int) {
	if v, ok := p.lookup(name); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

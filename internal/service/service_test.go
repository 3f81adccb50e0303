package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	rediscommon "firewatch/common/redis"
	"firewatch/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const buildingYAML = `
dimensions:
  width_m: 40
  depth_m: 20
  height_m: 9
floors:
  - number: 0
    name: Ground
    height_m: 3
  - number: 1
    name: First
    height_m: 3
entry_points:
  - id: E1
    name: Main door
    floor: 0
    position: {x: 0, y: 10}
`

func testConfig() *config.Config {
	cfg := &config.Config{
		ServiceName:   "firewatch",
		ServerVersion: "2.7.0",
		SinkQueueSize: 64,
	}
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.AllowedOrigins = []string{"*"}
	cfg.Ingest = config.IngestConfig{
		Stream:       "firewatch:ingest",
		Group:        "firewatch",
		Consumer:     "test",
		BatchSize:    16,
		Block:        50 * time.Millisecond,
		MaxBodyBytes: 1 << 16,
	}
	cfg.Alerts = config.AlertConfig{
		HeartRateMax:      180,
		ManDownStationary: 30 * time.Second,
		BatteryWarning:    20,
		BatteryCritical:   10,
		SCBAWarningBar:    100,
		SCBACriticalBar:   50,
		TagOfflineAfter:   30 * time.Second,
		SweepInterval:     time.Second,
	}
	cfg.History = config.HistoryConfig{Limit: 100, DefaultQueryLimit: 50, MaxQueryLimit: 100}
	cfg.Sessions = config.SessionConfig{
		QueueSize:      64,
		OverflowPolicy: config.OverflowDropOldest,
		PingInterval:   time.Hour,
		PongWait:       time.Minute,
		WriteTimeout:   time.Second,
		ReadLimit:      4096,
	}
	cfg.Cache = config.CacheConfig{KeyPrefix: "firewatch:", TTL: time.Minute}
	return cfg
}

func writeBuilding(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "building.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadBuilding(t *testing.T) {
	b, err := LoadBuilding(writeBuilding(t, buildingYAML))
	require.NoError(t, err)
	assert.Equal(t, 40.0, b.Dimensions.WidthM)
	require.Len(t, b.Floors, 2)
	assert.Equal(t, "First", b.Floors[1].Name)
	require.Len(t, b.EntryPoints, 1)
	assert.Equal(t, 10.0, b.EntryPoints[0].Position.Y)
}

func TestLoadBuilding_AcceptsJSON(t *testing.T) {
	b, err := LoadBuilding(writeBuilding(t, `{"dimensions":{"width_m":10,"depth_m":10,"height_m":3},"floors":[{"number":0,"name":"G","height_m":3}]}`))
	require.NoError(t, err)
	assert.Len(t, b.Floors, 1)
}

func TestLoadBuilding_Errors(t *testing.T) {
	_, err := LoadBuilding(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadBuilding(writeBuilding(t, "floors: [unclosed"))
	assert.Error(t, err)

	_, err = LoadBuilding(writeBuilding(t, "dimensions: {width_m: 1, depth_m: 1, height_m: 1}\nfloors: []\n"))
	assert.ErrorContains(t, err, "no floors")
}

func TestNewFirewatchService_BadBuildingFile(t *testing.T) {
	cfg := testConfig()
	cfg.BuildingFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewFirewatchService(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewFirewatchService_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.RedisEnabled = true
	cfg.Redis.Addr = addr
	_, err := NewFirewatchService(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "redis")
}

type running struct {
	svc    *FirewatchService
	server *httptest.Server
	mr     *miniredis.Miniredis
	redis  *redis.Client
}

func startService(t *testing.T) *running {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.BuildingFile = writeBuilding(t, buildingYAML)
	cfg.RedisEnabled = true
	cfg.Redis.Addr = mr.Addr()

	svc, err := NewFirewatchService(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	svc.startWorkers(context.Background())

	srv := httptest.NewServer(svc.Handler())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
		srv.Close()
		_ = client.Close()
	})
	return &running{svc: svc, server: srv, mr: mr, redis: client}
}

func readType(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	typ, _ := m["type"].(string)
	return typ, m
}

const telemetryFallen = `{"type":"tag_telemetry","timestamp":"2026-05-01T10:00:00Z",
	"firefighter":{"id":"FF-1","name":"Anna","role":"nozzle","team":"E1"},
	"position":{"x":3,"y":4,"z":0,"floor":0},
	"vitals":{"heart_rate_bpm":120,"motion_state":"fallen"},
	"device":{"battery_percent":80}}`

func TestService_EndToEnd(t *testing.T) {
	r := startService(t)

	wsURL := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	typ, welcome := readType(t, conn)
	require.Equal(t, "welcome", typ)
	assert.Equal(t, "2.7.0", welcome["simulator_version"])
	typ, _ = readType(t, conn)
	assert.Equal(t, "building_config", typ)
	typ, _ = readType(t, conn)
	assert.Equal(t, "beacons_config", typ)

	resp, err := http.Post(r.server.URL+"/api/v1/ingest", "application/json", strings.NewReader(telemetryFallen))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	typ, _ = readType(t, conn)
	assert.Equal(t, "tag_telemetry", typ)
	typ, alert := readType(t, conn)
	require.Equal(t, "alert", typ)
	assert.Equal(t, "man_down", alert["alert_type"])
	alertID, _ := alert["id"].(string)
	require.NotEmpty(t, alertID)

	// Acknowledge over the websocket; the resolution is broadcast back.
	require.NoError(t, conn.WriteJSON(map[string]string{
		"command":         "acknowledge_alert",
		"alert_id":        alertID,
		"acknowledged_by": "IC",
	}))
	typ, resolved := readType(t, conn)
	require.Equal(t, "alert_resolved", typ)
	assert.Equal(t, alertID, resolved["alert_id"])

	// The redis mirror is written asynchronously.
	require.Eventually(t, func() bool {
		return r.mr.Exists("firewatch:ff:FF-1:realtime")
	}, 2*time.Second, 20*time.Millisecond)

	resp, err = http.Get(r.server.URL + "/firefighters/FF-1/history?limit=10")
	require.NoError(t, err)
	var hist struct {
		FirefighterID string           `json:"firefighter_id"`
		Records       []map[string]any `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hist))
	resp.Body.Close()
	assert.Equal(t, "FF-1", hist.FirefighterID)
	assert.Len(t, hist.Records, 1)
}

func TestService_StreamFeed(t *testing.T) {
	r := startService(t)

	_, err := rediscommon.PublishRawToStream(context.Background(), r.redis, "firewatch:ingest",
		[]byte(strings.ReplaceAll(telemetryFallen, "FF-1", "FF-7")))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := r.svc.registry.Tag("FF-7")
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestService_Metrics(t *testing.T) {
	r := startService(t)

	resp, err := http.Post(r.server.URL+"/api/v1/ingest", "application/json", strings.NewReader(`{"type":"bogus"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(r.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "firewatch_ingest_rejected_total")
}

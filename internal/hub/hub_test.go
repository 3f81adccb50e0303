package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/events"
	"firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(queue int, policy string) *Hub {
	return New(config.SessionConfig{QueueSize: queue, OverflowPolicy: policy}, "2.7.0", zap.NewNop(), nil)
}

func nextType(t *testing.T, s *Session) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	raw, err := s.Next(ctx)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestHub_SubscribeSendsWelcomeThenSnapshot(t *testing.T) {
	h := newTestHub(8, config.OverflowDropOldest)
	h.RegisterCommand(models.CommandAcknowledgeAlert, func(context.Context, string, json.RawMessage) error { return nil })

	building := models.Building{Floors: []models.Floor{{Number: 0, Name: "Ground"}}}
	s, err := h.Subscribe(func() []any {
		return []any{
			models.BuildingConfigMessage{Type: models.MessageBuildingConfig, Building: &building},
			models.BeaconsConfigMessage{Type: models.MessageBeaconsConfig, Beacons: []models.Beacon{}},
		}
	})
	require.NoError(t, err)

	welcome := nextType(t, s)
	assert.Equal(t, "welcome", welcome["type"])
	assert.Equal(t, "2.7.0", welcome["simulator_version"])
	assert.Equal(t, s.ID, welcome["session_id"])
	assert.Equal(t, []any{"acknowledge_alert"}, welcome["commands"])

	assert.Equal(t, "building_config", nextType(t, s)["type"])
	assert.Equal(t, "beacons_config", nextType(t, s)["type"])
	assert.Equal(t, 1, h.SessionCount())
}

func TestHub_SnapshotLargerThanQueueIsKept(t *testing.T) {
	h := newTestHub(2, config.OverflowDisconnect)
	s, err := h.Subscribe(func() []any {
		out := make([]any, 0, 10)
		for i := 0; i < 10; i++ {
			out = append(out, map[string]any{"type": "tag_telemetry", "n": i})
		}
		return out
	})
	require.NoError(t, err)
	assert.Equal(t, 11, s.Pending())

	// Live messages get the full queue on top of the snapshot.
	h.Broadcast(map[string]any{"type": "alert", "n": 100})
	h.Broadcast(map[string]any{"type": "alert", "n": 101})
	assert.Empty(t, s.Reason())
	assert.Equal(t, 13, s.Pending())

	h.Broadcast(map[string]any{"type": "alert", "n": 102})
	assert.Equal(t, ReasonOverflow, s.Reason())
}

func snapshotOf(n int) func() []any {
	return func() []any {
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, map[string]any{"type": "tag_telemetry", "n": i})
		}
		return out
	}
}

func TestHub_DropOldestNeverEvictsSnapshot(t *testing.T) {
	h := newTestHub(4, config.OverflowDropOldest)
	s, err := h.Subscribe(snapshotOf(10))
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		h.Broadcast(map[string]any{"type": "alert", "n": 100 + i})
	}
	assert.Equal(t, 2, s.Dropped())
	assert.Equal(t, 15, s.Pending())

	assert.Equal(t, "welcome", nextType(t, s)["type"])
	for i := 0; i < 10; i++ {
		m := nextType(t, s)
		assert.Equal(t, "tag_telemetry", m["type"])
		assert.Equal(t, float64(i), m["n"])
	}
	for i := 2; i < 6; i++ {
		m := nextType(t, s)
		assert.Equal(t, "alert", m["type"])
		assert.Equal(t, float64(100+i), m["n"])
	}
}

func TestHub_BoundAppliesToLiveMessagesAfterSnapshotDrains(t *testing.T) {
	h := newTestHub(2, config.OverflowDropOldest)
	s, err := h.Subscribe(snapshotOf(3))
	require.NoError(t, err)

	h.Broadcast(map[string]any{"type": "alert", "n": 1})
	// Consume the welcome, the snapshot and one live message.
	for i := 0; i < 5; i++ {
		nextType(t, s)
	}
	h.Broadcast(map[string]any{"type": "alert", "n": 2})
	h.Broadcast(map[string]any{"type": "alert", "n": 3})
	h.Broadcast(map[string]any{"type": "alert", "n": 4})
	assert.Equal(t, 1, s.Dropped())
	assert.Equal(t, float64(3), nextType(t, s)["n"])
	assert.Equal(t, float64(4), nextType(t, s)["n"])
}

func TestHub_PublishReachesEverySession(t *testing.T) {
	h := newTestHub(8, config.OverflowDropOldest)
	a, _ := h.Subscribe(nil)
	b, _ := h.Subscribe(nil)
	nextType(t, a)
	nextType(t, b)

	alert := models.Alert{ID: "a1", AlertType: models.AlertManDown, Severity: models.SeverityCritical}
	h.Publish(events.Event{Kind: events.KindAlertRaised, Alert: &alert})

	for _, s := range []*Session{a, b} {
		m := nextType(t, s)
		assert.Equal(t, "alert", m["type"])
		assert.Equal(t, "a1", m["id"])
	}
}

func TestHub_DropOldestKeepsNewest(t *testing.T) {
	h := newTestHub(3, config.OverflowDropOldest)
	s, _ := h.Subscribe(nil)
	nextType(t, s)

	for i := 0; i < 10; i++ {
		h.Broadcast(map[string]any{"type": "tick", "n": i})
	}

	assert.Equal(t, 7, s.Dropped())
	for want := 7; want < 10; want++ {
		assert.Equal(t, float64(want), nextType(t, s)["n"])
	}
	assert.Equal(t, 1, h.SessionCount())
}

func TestHub_DisconnectOnOverflow(t *testing.T) {
	h := newTestHub(2, config.OverflowDisconnect)
	slow, _ := h.Subscribe(nil)
	fast, _ := h.Subscribe(nil)
	nextType(t, slow)
	nextType(t, fast)

	h.Broadcast(map[string]any{"type": "tick", "n": 0})
	nextType(t, fast)
	h.Broadcast(map[string]any{"type": "tick", "n": 1})
	nextType(t, fast)
	h.Broadcast(map[string]any{"type": "tick", "n": 2})

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow session was not disconnected")
	}
	assert.Equal(t, ReasonOverflow, slow.Reason())
	_, err := slow.Next(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.Equal(t, 1, h.SessionCount())
	assert.Equal(t, float64(2), nextType(t, fast)["n"])
}

func TestHub_SlowSessionDoesNotBlockPublish(t *testing.T) {
	h := newTestHub(4, config.OverflowDropOldest)
	_, _ = h.Subscribe(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			h.Broadcast(map[string]int{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow session")
	}
}

func TestHub_SubmitCommandRoutesToHandler(t *testing.T) {
	h := newTestHub(8, config.OverflowDropOldest)
	s, _ := h.Subscribe(nil)

	var gotSession string
	var gotCmd models.AcknowledgeAlertCommand
	h.RegisterCommand(models.CommandAcknowledgeAlert, func(_ context.Context, sessionID string, raw json.RawMessage) error {
		gotSession = sessionID
		return json.Unmarshal(raw, &gotCmd)
	})

	err := h.SubmitCommand(context.Background(), s.ID, []byte(`{"command":"acknowledge_alert","alert_id":"a1","acknowledged_by":"IC"}`))
	require.NoError(t, err)
	assert.Equal(t, s.ID, gotSession)
	assert.Equal(t, "a1", gotCmd.AlertID)
	assert.Equal(t, "IC", gotCmd.AcknowledgedBy)
}

func TestHub_UnknownCommandReportedToOriginOnly(t *testing.T) {
	h := newTestHub(8, config.OverflowDropOldest)
	origin, _ := h.Subscribe(nil)
	other, _ := h.Subscribe(nil)
	nextType(t, origin)
	nextType(t, other)

	err := h.SubmitCommand(context.Background(), origin.ID, []byte(`{"command":"self_destruct"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	m := nextType(t, origin)
	assert.Equal(t, "command_error", m["type"])
	assert.Equal(t, "self_destruct", m["command"])
	assert.Contains(t, m["error"], "unknown command")

	assert.Equal(t, 0, other.Pending())
	assert.Equal(t, 2, h.SessionCount())
}

func TestHub_InvalidCommand(t *testing.T) {
	h := newTestHub(8, config.OverflowDropOldest)
	s, _ := h.Subscribe(nil)
	nextType(t, s)

	assert.ErrorIs(t, h.SubmitCommand(context.Background(), s.ID, []byte(`not json`)), ErrInvalidCommand)
	assert.ErrorIs(t, h.SubmitCommand(context.Background(), s.ID, []byte(`{"alert_id":"x"}`)), ErrInvalidCommand)
	assert.Equal(t, 2, s.Pending())
}

func TestHub_HandlerErrorReported(t *testing.T) {
	h := newTestHub(8, config.OverflowDropOldest)
	s, _ := h.Subscribe(nil)
	nextType(t, s)

	notFound := errors.New("alert not found")
	h.RegisterCommand(models.CommandAcknowledgeAlert, func(context.Context, string, json.RawMessage) error { return notFound })

	err := h.SubmitCommand(context.Background(), s.ID, []byte(`{"command":"acknowledge_alert","alert_id":"zzz"}`))
	assert.ErrorIs(t, err, notFound)

	m := nextType(t, s)
	assert.Equal(t, "command_error", m["type"])
	assert.Equal(t, "zzz", m["alert_id"])
}

func TestHub_CloseShutsEverySession(t *testing.T) {
	h := newTestHub(8, config.OverflowDropOldest)
	a, _ := h.Subscribe(nil)
	b, _ := h.Subscribe(nil)

	h.Close()

	for _, s := range []*Session{a, b} {
		<-s.Done()
		assert.Equal(t, ReasonShutdown, s.Reason())
	}
	assert.Equal(t, 0, h.SessionCount())

	_, err := h.Subscribe(nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_PerEntityOrdering(t *testing.T) {
	h := newTestHub(100000, config.OverflowDropOldest)
	s, _ := h.Subscribe(nil)
	nextType(t, s)

	const perKey = 500
	keys := []string{"tag:FF-1", "tag:FF-2", "beacon:B1", "beacon:B2"}
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; i < perKey; i++ {
				h.Broadcast(map[string]any{"key": key, "seq": i})
			}
		}(k)
	}
	wg.Wait()

	last := map[string]float64{}
	for _, k := range keys {
		last[k] = -1
	}
	for i := 0; i < perKey*len(keys); i++ {
		m := nextType(t, s)
		key := m["key"].(string)
		seq := m["seq"].(float64)
		require.Greater(t, seq, last[key], fmt.Sprintf("out of order for %s", key))
		last[key] = seq
	}
}

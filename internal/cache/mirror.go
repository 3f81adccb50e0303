// Package cache mirrors live state into Redis for external readers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	rediscommon "firewatch/common/redis"
	"firewatch/internal/config"
	"firewatch/internal/events"
	"firewatch/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Mirror is an events.Sink. It writes the latest telemetry per firefighter
// with a TTL and keeps a hash of open alerts keyed by alert id. Alert
// transitions are also appended to cfg.AlertStream when set.
type Mirror struct {
	client *redis.Client
	cfg    config.CacheConfig
	logger *zap.Logger
}

func NewMirror(client *redis.Client, cfg config.CacheConfig, logger *zap.Logger) *Mirror {
	return &Mirror{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// RealtimeKey is the key holding a firefighter's latest telemetry.
func (m *Mirror) RealtimeKey(firefighterID string) string {
	return fmt.Sprintf("%sff:%s:realtime", m.cfg.KeyPrefix, firefighterID)
}

// OpenAlertsKey is the hash of open alerts.
func (m *Mirror) OpenAlertsKey() string {
	return m.cfg.KeyPrefix + "alerts:open"
}

// AlertStreamEntry is the document appended to the alert stream.
type AlertStreamEntry struct {
	Event string       `json:"event"`
	Alert models.Alert `json:"alert"`
}

func (m *Mirror) Handle(ctx context.Context, e events.Event) error {
	var err error
	switch e.Kind {
	case events.KindTelemetry:
		return m.updateRealtime(ctx, e)
	case events.KindAlertRaised, events.KindAlertUpdated:
		err = m.putAlert(ctx, e)
	case events.KindAlertResolved:
		err = m.client.HDel(ctx, m.OpenAlertsKey(), e.Alert.ID).Err()
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return m.appendAlert(ctx, e)
}

func (m *Mirror) appendAlert(ctx context.Context, e events.Event) error {
	if m.cfg.AlertStream == "" {
		return nil
	}
	entry := AlertStreamEntry{Event: string(e.Kind), Alert: *e.Alert}
	if _, err := rediscommon.PublishJSONToStream(ctx, m.client, m.cfg.AlertStream, entry); err != nil {
		return fmt.Errorf("failed to append alert %s to stream: %w", e.Alert.ID, err)
	}
	return nil
}

func (m *Mirror) updateRealtime(ctx context.Context, e events.Event) error {
	id := e.Tag.Telemetry.Firefighter.ID
	data, err := json.Marshal(e.Tag.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime data: %w", err)
	}
	key := m.RealtimeKey(id)
	if err := m.client.Set(ctx, key, data, m.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	m.logger.Debug("Updated realtime cache", zap.String("firefighter_id", id), zap.String("key", key))
	return nil
}

func (m *Mirror) putAlert(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e.Alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := m.client.HSet(ctx, m.OpenAlertsKey(), e.Alert.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to store open alert: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"firewatch/internal/events"

	"go.uber.org/zap"
)

var ErrBrokerDisconnected = errors.New("mqtt broker disconnected")

// BrokerPublisher is the part of the MQTT client the relay needs.
type BrokerPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// MQTTRelay is an events.Sink that republishes every alert transition, any
// severity, to <prefix>/<alert_type>.
type MQTTRelay struct {
	broker BrokerPublisher
	prefix string
	qos    byte
	logger *zap.Logger
	nowFn  func() time.Time
}

func NewMQTTRelay(broker BrokerPublisher, prefix string, qos byte, logger *zap.Logger) *MQTTRelay {
	return &MQTTRelay{
		broker: broker,
		prefix: prefix,
		qos:    qos,
		logger: logger,
		nowFn:  time.Now,
	}
}

func (r *MQTTRelay) Handle(_ context.Context, e events.Event) error {
	var kind string
	switch e.Kind {
	case events.KindAlertRaised:
		kind = NotificationRaised
	case events.KindAlertUpdated:
		kind = NotificationEscalated
	case events.KindAlertResolved:
		kind = NotificationResolved
	default:
		return nil
	}
	if !r.broker.IsConnected() {
		return ErrBrokerDisconnected
	}

	payload, err := json.Marshal(Notification{Event: kind, SentAt: r.nowFn().UTC(), Alert: *e.Alert})
	if err != nil {
		return fmt.Errorf("failed to encode alert %s: %w", e.Alert.ID, err)
	}
	topic := r.prefix + "/" + string(e.Alert.AlertType)
	if err := r.broker.Publish(topic, r.qos, false, payload); err != nil {
		return err
	}
	r.logger.Debug("Alert relayed",
		zap.String("alert_id", e.Alert.ID),
		zap.String("topic", topic),
		zap.String("event", kind),
	)
	return nil
}

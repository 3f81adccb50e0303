package consumer

import (
	"context"
	"fmt"

	mqttcommon "firewatch/common/mqtt"

	"go.uber.org/zap"
)

// Subscriber is the part of the MQTT client the consumer needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer ingests every message published under a topic filter.
type MQTTConsumer struct {
	client   Subscriber
	topic    string
	qos      byte
	ingester Ingester
	logger   *zap.Logger

	ctx context.Context
}

func NewMQTTConsumer(client Subscriber, topic string, qos byte, ingester Ingester, logger *zap.Logger) *MQTTConsumer {
	return &MQTTConsumer{
		client:   client,
		topic:    topic,
		qos:      qos,
		ingester: ingester,
		logger:   logger,
		ctx:      context.Background(),
	}
}

// Start subscribes and blocks until ctx ends.
func (c *MQTTConsumer) Start(ctx context.Context) error {
	c.ctx = ctx
	if err := c.client.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}

	c.logger.Info("MQTT consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.client.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.String("topic", c.topic), zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage never fails the subscription; rejected events are counted
// and logged by the pipeline.
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)
	if err := c.ingester.Ingest(c.ctx, payload); err != nil {
		c.logger.Debug("MQTT event not applied", zap.String("topic", topic), zap.Error(err))
	}
	return nil
}

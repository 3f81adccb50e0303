package consumer

import (
	"context"
	"fmt"
	"time"

	"firewatch/internal/config"

	rediscommon "firewatch/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamConsumer reads raw events from a Redis stream through a consumer
// group. Entries are acknowledged once ingested, accepted or rejected;
// rejection is final and never retried. Entries this consumer left
// unacknowledged in an earlier run are replayed first.
type StreamConsumer struct {
	cfg      config.IngestConfig
	client   *redis.Client
	ingester Ingester
	logger   *zap.Logger

	backlog bool
}

func NewStreamConsumer(cfg config.IngestConfig, client *redis.Client, ingester Ingester, logger *zap.Logger) *StreamConsumer {
	return &StreamConsumer{
		cfg:      cfg,
		client:   client,
		ingester: ingester,
		logger:   logger,
	}
}

// Start blocks until ctx ends. Read failures back off from 1s doubling to 30s.
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.client, c.cfg.Stream, c.cfg.Group); err != nil {
		return err
	}

	c.backlog = true
	c.logger.Info("Stream consumer started",
		zap.String("stream", c.cfg.Stream),
		zap.String("consumer_group", c.cfg.Group),
		zap.String("consumer_name", c.cfg.Consumer),
	)

	var bo backoff
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := bo.next()
			c.logger.Error("Failed to consume stream",
				zap.String("stream", c.cfg.Stream),
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.reset()
	}
}

func (c *StreamConsumer) consume(ctx context.Context) error {
	var (
		messages []rediscommon.StreamMessage
		err      error
	)
	if c.backlog {
		messages, err = rediscommon.ReadPendingFromStream(ctx, c.client, c.cfg.Stream, c.cfg.Group, c.cfg.Consumer, c.cfg.BatchSize)
		if err == nil && len(messages) == 0 {
			c.backlog = false
			c.logger.Debug("Pending stream entries drained", zap.String("stream", c.cfg.Stream))
		}
	} else {
		messages, err = rediscommon.ReadFromStream(ctx, c.client, c.cfg.Stream, c.cfg.Group, c.cfg.Consumer, c.cfg.BatchSize, c.cfg.Block)
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.process(ctx, msg)
		if ctx.Err() != nil {
			return nil
		}
		if err := rediscommon.Ack(ctx, c.client, c.cfg.Stream, c.cfg.Group, msg.ID); err != nil {
			return fmt.Errorf("failed to ack %s: %w", msg.ID, err)
		}
	}
	return nil
}

func (c *StreamConsumer) process(ctx context.Context, msg rediscommon.StreamMessage) {
	payload, ok := msg.Payload()
	if !ok {
		c.logger.Warn("Stream entry has no payload",
			zap.String("stream_id", msg.ID),
			zap.String("field", rediscommon.PayloadField),
		)
		return
	}
	if err := c.ingester.Ingest(ctx, payload); err != nil {
		c.logger.Debug("Stream event not applied", zap.String("stream_id", msg.ID), zap.Error(err))
	}
}

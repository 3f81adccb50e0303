// Package notify pushes critical alerts to an external webhook.
package notify

import (
	"context"
	"fmt"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/events"
	"firewatch/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notification is the webhook request body.
type Notification struct {
	Event  string       `json:"event"`
	SentAt time.Time    `json:"sent_at"`
	Alert  models.Alert `json:"alert"`
}

const (
	NotificationRaised    = "alert_raised"
	NotificationEscalated = "alert_escalated"
	NotificationResolved  = "alert_resolved"
)

// WebhookNotifier is an events.Sink that posts every raised or escalated
// critical alert. Delivery is retried on transport errors and 5xx replies.
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewWebhookNotifier(cfg config.NotifyConfig, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        cfg.WebhookURL,
		logger:     logger,
	}
}

func (n *WebhookNotifier) Handle(ctx context.Context, e events.Event) error {
	var kind string
	switch e.Kind {
	case events.KindAlertRaised:
		kind = NotificationRaised
	case events.KindAlertUpdated:
		kind = NotificationEscalated
	default:
		return nil
	}
	if e.Alert.Severity != models.SeverityCritical {
		return nil
	}
	return n.Send(ctx, Notification{Event: kind, SentAt: time.Now().UTC(), Alert: *e.Alert})
}

func (n *WebhookNotifier) Send(ctx context.Context, body Notification) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post(n.url)
	if err != nil {
		n.logger.Error("Webhook call failed",
			zap.String("alert_id", body.Alert.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		n.logger.Error("Webhook returned error",
			zap.String("alert_id", body.Alert.ID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("webhook error: status %d", resp.StatusCode())
	}

	n.logger.Info("Alert notification sent",
		zap.String("alert_id", body.Alert.ID),
		zap.String("alert_type", string(body.Alert.AlertType)),
		zap.String("event", body.Event),
	)
	return nil
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"firewatch/internal/evaluator"
	"firewatch/internal/hub"
	"firewatch/internal/models"

	"go.uber.org/zap"
)

// AcknowledgeAlert resolves an alert on operator request. The subject's
// entity lock is held so the resolution is ordered against that entity's
// telemetry. Acknowledging an already resolved alert returns it unchanged.
func (p *Pipeline) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) (models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return models.Alert{}, err
	}
	if alertID == "" {
		return models.Alert{}, ErrMissingAlertID
	}

	subject, ok := p.engine.SubjectOf(alertID)
	if !ok {
		if p.engine.Expired(alertID) {
			p.logger.Debug("Alert already resolved and aged out", zap.String("alert_id", alertID))
			return models.Alert{ID: alertID, Resolved: true}, nil
		}
		return models.Alert{}, fmt.Errorf("%w: %s", evaluator.ErrAlertNotFound, alertID)
	}

	unlock := p.registry.Lock(subject)
	defer unlock()

	t, changed, err := p.engine.Acknowledge(alertID, acknowledgedBy, p.nowFn())
	if err != nil {
		return models.Alert{}, fmt.Errorf("%w: %s", err, alertID)
	}
	if changed {
		p.publishTransitions([]evaluator.Transition{t})
	} else {
		p.logger.Debug("Alert already resolved", zap.String("alert_id", alertID))
	}
	return t.Alert, nil
}

// HandleAcknowledge is the hub command handler for acknowledge_alert.
func (p *Pipeline) HandleAcknowledge(ctx context.Context, sessionID string, raw json.RawMessage) error {
	var cmd models.AcknowledgeAlertCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: %v", hub.ErrInvalidCommand, err)
	}
	if cmd.AlertID == "" {
		return fmt.Errorf("%w: %v", hub.ErrInvalidCommand, ErrMissingAlertID)
	}
	_, err := p.AcknowledgeAlert(ctx, cmd.AlertID, cmd.AcknowledgedBy)
	if err == nil {
		p.logger.Info("Alert acknowledged",
			zap.String("alert_id", cmd.AlertID),
			zap.String("acknowledged_by", cmd.AcknowledgedBy),
			zap.String("session_id", sessionID),
		)
	}
	return err
}

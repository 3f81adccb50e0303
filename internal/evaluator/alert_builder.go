package evaluator

import (
	"time"

	"firewatch/internal/models"

	"github.com/google/uuid"
)

// AlertBuilder stamps new alerts for one subject.
type AlertBuilder struct {
	subject     string
	firefighter *models.Firefighter
	beaconID    string
	position    models.Position
	newID       func() string
}

// NewTagAlertBuilder builds alerts scoped to a firefighter's tag.
func NewTagAlertBuilder(subject string, ff models.Firefighter, pos models.Position) *AlertBuilder {
	return &AlertBuilder{subject: subject, firefighter: &ff, position: pos, newID: newAlertID}
}

// NewBeaconAlertBuilder builds alerts scoped to a beacon.
func NewBeaconAlertBuilder(subject, beaconID string, pos models.Position) *AlertBuilder {
	return &AlertBuilder{subject: subject, beaconID: beaconID, position: pos, newID: newAlertID}
}

// Build returns a fresh open alert.
func (b *AlertBuilder) Build(alertType models.AlertType, severity models.Severity, at time.Time) models.Alert {
	a := models.Alert{
		ID:        b.newID(),
		AlertType: alertType,
		Severity:  severity,
		BeaconID:  b.beaconID,
		Position:  b.position,
		Timestamp: at,
		Subject:   b.subject,
	}
	if b.firefighter != nil {
		ff := *b.firefighter
		a.Firefighter = &ff
	}
	return a
}

func newAlertID() string {
	return uuid.New().String()
}

package models

import "time"

type AlertType string

const (
	AlertSOSPressed      AlertType = "sos_pressed"
	AlertManDown         AlertType = "man_down"
	AlertHighHeartRate   AlertType = "high_heart_rate"
	AlertLowBattery      AlertType = "low_battery"
	AlertSCBALowPressure AlertType = "scba_low_pressure"
	AlertSCBACritical    AlertType = "scba_critical"
	AlertBeaconOffline   AlertType = "beacon_offline"
	AlertTagOffline      AlertType = "tag_offline"
	AlertHighTemperature AlertType = "high_temperature"
	AlertHighCO          AlertType = "high_co"
	AlertLowOxygen       AlertType = "low_oxygen"
	AlertExplosiveGas    AlertType = "explosive_gas"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities so escalation can be detected.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Resolution records how an alert was closed.
type Resolution string

const (
	ResolutionAuto         Resolution = "auto"
	ResolutionAcknowledged Resolution = "acknowledged"
)

// Alert is one emergency condition. Firefighter is nil for beacon alerts.
type Alert struct {
	ID             string       `json:"id"`
	AlertType      AlertType    `json:"alert_type"`
	Severity       Severity     `json:"severity"`
	Firefighter    *Firefighter `json:"firefighter,omitempty"`
	BeaconID       string       `json:"beacon_id,omitempty"`
	Position       Position     `json:"position"`
	Timestamp      time.Time    `json:"timestamp"`
	Resolved       bool         `json:"resolved"`
	Resolution     Resolution   `json:"resolution,omitempty"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
	AcknowledgedBy string       `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time   `json:"acknowledged_at,omitempty"`
	// Subject is the entity key the alert is scoped to (tag:<id> or beacon:<id>).
	Subject string `json:"-"`
}

func (a Alert) Clone() Alert {
	out := a
	if a.Firefighter != nil {
		ff := *a.Firefighter
		out.Firefighter = &ff
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		out.AcknowledgedAt = &t
	}
	return out
}

package models

import "time"

// Wire message discriminators.
const (
	MessageWelcome        = "welcome"
	MessageBuildingConfig = "building_config"
	MessageBeaconsConfig  = "beacons_config"
	MessageBeaconsStatus  = "beacons_status"
	MessageTagTelemetry   = "tag_telemetry"
	MessageAlert          = "alert"
	MessageAlertResolved  = "alert_resolved"
	MessageCommandError   = "command_error"
)

// CommandAcknowledgeAlert is the only operator command.
const CommandAcknowledgeAlert = "acknowledge_alert"

type WelcomeMessage struct {
	Type             string    `json:"type"`
	SimulatorVersion string    `json:"simulator_version"`
	SessionID        string    `json:"session_id,omitempty"`
	ServerTime       time.Time `json:"server_time"`
	Commands         []string  `json:"commands,omitempty"`
}

type BuildingConfigMessage struct {
	Type     string    `json:"type"`
	Building *Building `json:"building"`
}

type BeaconsConfigMessage struct {
	Type    string   `json:"type"`
	Beacons []Beacon `json:"beacons"`
}

type BeaconsStatusMessage struct {
	Type    string        `json:"type"`
	Beacons []BeaconPatch `json:"beacons"`
}

type TagTelemetryMessage struct {
	Type string `json:"type"`
	Telemetry
}

type AlertMessage struct {
	Type string `json:"type"`
	Alert
}

type AlertResolvedMessage struct {
	Type           string     `json:"type"`
	AlertID        string     `json:"alert_id"`
	AlertType      AlertType  `json:"alert_type,omitempty"`
	Resolution     Resolution `json:"resolution,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// CommandErrorMessage is sent only to the session that issued the failing command.
type CommandErrorMessage struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	AlertID string `json:"alert_id,omitempty"`
	Error   string `json:"error"`
}

// AcknowledgeAlertCommand is the client's acknowledgment request.
type AcknowledgeAlertCommand struct {
	Command        string `json:"command"`
	AlertID        string `json:"alert_id"`
	AcknowledgedBy string `json:"acknowledged_by"`
}

func NewTagTelemetryMessage(t Telemetry) TagTelemetryMessage {
	return TagTelemetryMessage{Type: MessageTagTelemetry, Telemetry: t}
}

func NewAlertMessage(a Alert) AlertMessage {
	return AlertMessage{Type: MessageAlert, Alert: a}
}

func NewAlertResolvedMessage(a Alert) AlertResolvedMessage {
	return AlertResolvedMessage{
		Type:           MessageAlertResolved,
		AlertID:        a.ID,
		AlertType:      a.AlertType,
		Resolution:     a.Resolution,
		AcknowledgedBy: a.AcknowledgedBy,
		AcknowledgedAt: a.AcknowledgedAt,
	}
}

package ingest

import (
	"encoding/json"
	"math"
	"time"

	"firewatch/internal/models"
)

// Event type discriminators accepted from producers.
const (
	EventTagTelemetry   = "tag_telemetry"
	EventBeaconsConfig  = "beacons_config"
	EventBeaconsStatus  = "beacons_status"
	EventBuildingConfig = "building_config"
)

type envelope struct {
	Type string `json:"type"`
}

// telemetryEvent shadows position so an absent one can be told apart from
// the origin.
type telemetryEvent struct {
	models.Telemetry
	Position *models.Position `json:"position"`
	Device   *deviceEvent     `json:"device"`
}

type deviceEvent struct {
	BatteryPercent *float64 `json:"battery_percent"`
	UptimeS        *float64 `json:"uptime_s"`
}

type beaconsConfigEvent struct {
	Beacons []models.Beacon `json:"beacons"`
}

type beaconsStatusEvent struct {
	Beacons []models.BeaconPatch `json:"beacons"`
}

type buildingEvent struct {
	Building *models.Building `json:"building"`
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func finitePtr(vs ...*float64) bool {
	for _, v := range vs {
		if v != nil && !finite(*v) {
			return false
		}
	}
	return true
}

func decode(eventType string, raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &ValidationError{EventType: eventType, Reason: "malformed payload: " + err.Error(), Err: err}
	}
	return nil
}

func parseTelemetry(raw []byte, receivedAt time.Time) (models.Telemetry, error) {
	var ev telemetryEvent
	if err := decode(EventTagTelemetry, raw, &ev); err != nil {
		return models.Telemetry{}, err
	}
	t := ev.Telemetry

	if t.Firefighter.ID == "" {
		return t, invalid(EventTagTelemetry, "missing firefighter.id")
	}
	if ev.Position == nil {
		return t, invalid(EventTagTelemetry, "missing position")
	}
	t.Position = *ev.Position
	if ev.Device == nil || ev.Device.BatteryPercent == nil {
		return t, invalid(EventTagTelemetry, "missing device.battery_percent")
	}
	t.Device = models.Device{BatteryPercent: *ev.Device.BatteryPercent, UptimeS: ev.Device.UptimeS}
	if !finite(t.Position.X, t.Position.Y, t.Position.Z) {
		return t, invalid(EventTagTelemetry, "non-finite position")
	}
	if !t.Vitals.MotionState.Valid() {
		return t, invalid(EventTagTelemetry, "invalid vitals.motion_state %q", t.Vitals.MotionState)
	}
	if !finite(t.Vitals.HeartRateBPM, t.Device.BatteryPercent) || !finitePtr(t.HeadingDeg, t.Vitals.StationaryDurationS) {
		return t, invalid(EventTagTelemetry, "non-finite reading")
	}
	if t.SCBA != nil && !finite(t.SCBA.CylinderPressureBar, t.SCBA.RemainingTimeMin, t.SCBA.BatteryPercent) {
		return t, invalid(EventTagTelemetry, "non-finite scba reading")
	}
	if env := t.Environment; env != nil && !finitePtr(env.TemperatureC, env.COPPM, env.O2Percent, env.LELPercent) {
		return t, invalid(EventTagTelemetry, "non-finite environment reading")
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = receivedAt
	}
	return t, nil
}

func validateBeacon(eventType string, b models.Beacon) error {
	if b.ID == "" {
		return invalid(eventType, "beacon missing id")
	}
	if b.Type != "" && !b.Type.Valid() {
		return invalid(eventType, "beacon %s has invalid type %q", b.ID, b.Type)
	}
	if b.Status != "" && !b.Status.Valid() {
		return invalid(eventType, "beacon %s has invalid status %q", b.ID, b.Status)
	}
	if !finite(b.Position.X, b.Position.Y, b.Position.Z) || !finitePtr(b.BatteryPercent, b.RangeM) {
		return invalid(eventType, "beacon %s has non-finite fields", b.ID)
	}
	return nil
}

func parseBeaconsConfig(raw []byte) ([]models.Beacon, error) {
	var ev beaconsConfigEvent
	if err := decode(EventBeaconsConfig, raw, &ev); err != nil {
		return nil, err
	}
	if ev.Beacons == nil {
		return nil, invalid(EventBeaconsConfig, "missing beacons")
	}
	for i := range ev.Beacons {
		if ev.Beacons[i].Status == "" {
			ev.Beacons[i].Status = models.BeaconActive
		}
		if err := validateBeacon(EventBeaconsConfig, ev.Beacons[i]); err != nil {
			return nil, err
		}
	}
	return ev.Beacons, nil
}

func parseBeaconsStatus(raw []byte) ([]models.BeaconPatch, error) {
	var ev beaconsStatusEvent
	if err := decode(EventBeaconsStatus, raw, &ev); err != nil {
		return nil, err
	}
	if len(ev.Beacons) == 0 {
		return nil, invalid(EventBeaconsStatus, "missing beacons")
	}
	for _, p := range ev.Beacons {
		if p.ID == "" {
			return nil, invalid(EventBeaconsStatus, "beacon missing id")
		}
		if p.Status != nil && !p.Status.Valid() {
			return nil, invalid(EventBeaconsStatus, "beacon %s has invalid status %q", p.ID, *p.Status)
		}
		if p.Type != nil && !p.Type.Valid() {
			return nil, invalid(EventBeaconsStatus, "beacon %s has invalid type %q", p.ID, *p.Type)
		}
		if !finitePtr(p.BatteryPercent, p.RangeM) {
			return nil, invalid(EventBeaconsStatus, "beacon %s has non-finite fields", p.ID)
		}
		if p.Position != nil && !finite(p.Position.X, p.Position.Y, p.Position.Z) {
			return nil, invalid(EventBeaconsStatus, "beacon %s has non-finite position", p.ID)
		}
	}
	return ev.Beacons, nil
}

func parseBuilding(raw []byte) (models.Building, error) {
	var ev buildingEvent
	if err := decode(EventBuildingConfig, raw, &ev); err != nil {
		return models.Building{}, err
	}
	if ev.Building == nil {
		return models.Building{}, invalid(EventBuildingConfig, "missing building")
	}
	if err := ValidateBuilding(*ev.Building); err != nil {
		return models.Building{}, err
	}
	return *ev.Building, nil
}

// ValidateBuilding checks a building model from any source.
func ValidateBuilding(b models.Building) error {
	d := b.Dimensions
	if !finite(d.WidthM, d.DepthM, d.HeightM) || d.WidthM < 0 || d.DepthM < 0 || d.HeightM < 0 {
		return invalid(EventBuildingConfig, "invalid dimensions")
	}
	if len(b.Floors) == 0 {
		return invalid(EventBuildingConfig, "building has no floors")
	}
	seen := make(map[int]struct{}, len(b.Floors))
	for _, f := range b.Floors {
		if _, dup := seen[f.Number]; dup {
			return invalid(EventBuildingConfig, "duplicate floor %d", f.Number)
		}
		seen[f.Number] = struct{}{}
	}
	return nil
}

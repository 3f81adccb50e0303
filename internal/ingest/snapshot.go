package ingest

import (
	"firewatch/internal/models"
)

// Snapshot returns the messages that bring a new viewer up to date: the
// building when one is loaded, the beacon set, the latest telemetry of every
// tag and every open alert.
func (p *Pipeline) Snapshot() []any {
	var out []any
	if b, ok := p.registry.Building(); ok {
		out = append(out, models.BuildingConfigMessage{Type: models.MessageBuildingConfig, Building: &b})
	}
	out = append(out, models.BeaconsConfigMessage{Type: models.MessageBeaconsConfig, Beacons: p.registry.Beacons()})
	for _, t := range p.registry.Tags() {
		out = append(out, models.NewTagTelemetryMessage(t.Telemetry))
	}
	for _, a := range p.engine.OpenAlerts() {
		out = append(out, models.NewAlertMessage(a))
	}
	return out
}

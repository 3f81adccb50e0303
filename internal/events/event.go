// Package events carries accepted state changes from the ingestion path to
// every downstream consumer.
package events

import (
	"context"

	"firewatch/internal/models"
)

type Kind string

const (
	KindTelemetry     Kind = "tag_telemetry"
	KindBeaconsConfig Kind = "beacons_config"
	KindBeaconsStatus Kind = "beacons_status"
	KindBuilding      Kind = "building_config"
	KindAlertRaised   Kind = "alert_raised"
	KindAlertUpdated  Kind = "alert_updated"
	KindAlertResolved Kind = "alert_resolved"
)

// Event is one applied change. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind Kind
	// Key is the entity key the change belongs to; empty for multi-entity events.
	Key string

	Tag      *models.TagState
	Beacons  []models.Beacon
	Patches  []models.BeaconPatch
	Building *models.Building
	Alert    *models.Alert
}

// Message returns the wire message viewers receive for e.
func (e Event) Message() any {
	switch e.Kind {
	case KindTelemetry:
		return models.NewTagTelemetryMessage(e.Tag.Telemetry)
	case KindBeaconsConfig:
		return models.BeaconsConfigMessage{Type: models.MessageBeaconsConfig, Beacons: e.Beacons}
	case KindBeaconsStatus:
		return models.BeaconsStatusMessage{Type: models.MessageBeaconsStatus, Beacons: e.Patches}
	case KindBuilding:
		return models.BuildingConfigMessage{Type: models.MessageBuildingConfig, Building: e.Building}
	case KindAlertRaised, KindAlertUpdated:
		return models.NewAlertMessage(*e.Alert)
	case KindAlertResolved:
		return models.NewAlertResolvedMessage(*e.Alert)
	}
	return nil
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(e Event)
}

// Sink processes events on its own goroutine; see Async.
type Sink interface {
	Handle(ctx context.Context, e Event) error
}

// Fanout publishes to every member in order.
type Fanout []Publisher

func (f Fanout) Publish(e Event) {
	for _, p := range f {
		p.Publish(e)
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(e Event)

func (fn PublisherFunc) Publish(e Event) { fn(e) }

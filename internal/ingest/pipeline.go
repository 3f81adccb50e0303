// Package ingest validates producer events and applies them to live state.
//
// Every accepted event runs one critical section per entity key: registry
// mutation, alert evaluation, history append and publication all happen
// while the entity lock is held, so downstream consumers observe each
// entity's changes in the order they were applied.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"firewatch/internal/evaluator"
	"firewatch/internal/events"
	"firewatch/internal/history"
	"firewatch/internal/metrics"
	"firewatch/internal/models"
	"firewatch/internal/registry"

	"go.uber.org/zap"
)

type Pipeline struct {
	registry  *registry.Registry
	engine    *evaluator.Engine
	history   *history.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	nowFn func() time.Time
}

func NewPipeline(
	reg *registry.Registry,
	engine *evaluator.Engine,
	hist *history.Store,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		registry:  reg,
		engine:    engine,
		history:   hist,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		nowFn:     time.Now,
	}
}

// Ingest applies one raw producer event. A rejected event returns a
// *ValidationError and leaves all state untouched.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return p.reject(&ValidationError{Reason: "malformed json: " + err.Error(), Err: err})
	}

	var err error
	switch env.Type {
	case "":
		err = invalid("", "missing type")
	case EventTagTelemetry:
		err = p.ingestTelemetry(raw)
	case EventBeaconsConfig:
		err = p.ingestBeaconsConfig(raw)
	case EventBeaconsStatus:
		err = p.ingestBeaconsStatus(raw)
	case EventBuildingConfig:
		err = p.ingestBuilding(raw)
	default:
		err = &ValidationError{EventType: env.Type, Reason: "unknown event type", Err: ErrUnknownEventType}
	}
	if err != nil {
		return p.reject(err)
	}
	p.metrics.IngestAccepted(env.Type)
	return nil
}

func (p *Pipeline) reject(err error) error {
	eventType := ""
	reason := err.Error()
	if ve, ok := err.(*ValidationError); ok {
		eventType = ve.EventType
		reason = ve.Reason
	}
	p.metrics.IngestRejected(rejectLabel(err))
	p.logger.Warn("Event rejected",
		zap.String("event_type", eventType),
		zap.String("reason", reason),
	)
	return err
}

func (p *Pipeline) ingestTelemetry(raw []byte) error {
	receivedAt := p.nowFn()
	t, err := parseTelemetry(raw, receivedAt)
	if err != nil {
		return err
	}

	key := registry.TagKey(t.Firefighter.ID)
	unlock := p.registry.Lock(key)
	defer unlock()

	change := p.registry.UpsertTelemetry(t, receivedAt)
	transitions := p.engine.EvaluateTag(change.Previous, change.Current, t.Timestamp)
	p.history.Append(t.Firefighter.ID, models.HistoryPoint{
		Position:  t.Position,
		Timestamp: t.Timestamp,
	})

	cur := change.Current
	p.publisher.Publish(events.Event{Kind: events.KindTelemetry, Key: key, Tag: &cur})
	p.publishTransitions(transitions)
	return nil
}

func (p *Pipeline) ingestBeaconsConfig(raw []byte) error {
	beacons, err := parseBeaconsConfig(raw)
	if err != nil {
		return err
	}

	unlock := p.lockBeaconSet(beacons)
	defer unlock()

	now := p.nowFn()
	keep := make(map[string]struct{}, len(beacons))
	for _, b := range beacons {
		keep[b.ID] = struct{}{}
	}

	// A config event is the full beacon set; anything it leaves out is gone.
	var transitions []evaluator.Transition
	for _, b := range p.registry.Beacons() {
		if _, ok := keep[b.ID]; ok {
			continue
		}
		p.registry.RemoveBeacon(b.ID)
		transitions = append(transitions, p.engine.ResolveSubject(registry.BeaconKey(b.ID), now)...)
		p.logger.Info("Beacon removed by config", zap.String("beacon_id", b.ID))
	}
	for _, b := range beacons {
		change := p.registry.UpsertBeaconConfig(b)
		transitions = append(transitions, p.engine.EvaluateBeacon(change.Previous, change.Current, now)...)
	}

	p.publisher.Publish(events.Event{Kind: events.KindBeaconsConfig, Beacons: p.registry.Beacons()})
	p.publishTransitions(transitions)
	return nil
}

// lockBeaconSet locks the incoming beacons and every known one, since the set
// may shrink. A beacon created by a concurrent status event while waiting
// forces another attempt.
func (p *Pipeline) lockBeaconSet(beacons []models.Beacon) func() {
	for {
		locked := make(map[string]struct{}, len(beacons))
		keys := make([]string, 0, len(beacons))
		add := func(id string) {
			k := registry.BeaconKey(id)
			if _, ok := locked[k]; !ok {
				locked[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		for _, b := range beacons {
			add(b.ID)
		}
		for _, b := range p.registry.Beacons() {
			add(b.ID)
		}
		unlock := p.registry.Lock(keys...)

		covered := true
		for _, b := range p.registry.Beacons() {
			if _, ok := locked[registry.BeaconKey(b.ID)]; !ok {
				covered = false
				break
			}
		}
		if covered {
			return unlock
		}
		unlock()
	}
}

func (p *Pipeline) ingestBeaconsStatus(raw []byte) error {
	patches, err := parseBeaconsStatus(raw)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(patches))
	for _, patch := range patches {
		keys = append(keys, registry.BeaconKey(patch.ID))
	}
	unlock := p.registry.Lock(keys...)
	defer unlock()

	now := p.nowFn()
	var transitions []evaluator.Transition
	for _, patch := range patches {
		change := p.registry.PatchBeaconStatus(patch)
		transitions = append(transitions, p.engine.EvaluateBeacon(change.Previous, change.Current, now)...)
	}

	p.publisher.Publish(events.Event{Kind: events.KindBeaconsStatus, Patches: patches})
	p.publishTransitions(transitions)
	return nil
}

func (p *Pipeline) ingestBuilding(raw []byte) error {
	b, err := parseBuilding(raw)
	if err != nil {
		return err
	}
	p.SetBuilding(b)
	return nil
}

// SetBuilding installs the building model and announces it.
func (p *Pipeline) SetBuilding(b models.Building) {
	unlock := p.registry.Lock(registry.BuildingKey)
	defer unlock()

	p.registry.SetBuilding(b)
	stored, _ := p.registry.Building()
	p.publisher.Publish(events.Event{Kind: events.KindBuilding, Key: registry.BuildingKey, Building: &stored})
}

func transitionKind(k evaluator.TransitionKind) events.Kind {
	switch k {
	case evaluator.TransitionRaised:
		return events.KindAlertRaised
	case evaluator.TransitionUpdated:
		return events.KindAlertUpdated
	}
	return events.KindAlertResolved
}

func (p *Pipeline) publishTransitions(transitions []evaluator.Transition) {
	for _, t := range transitions {
		a := t.Alert
		p.publisher.Publish(events.Event{Kind: transitionKind(t.Kind), Key: a.Subject, Alert: &a})
	}
}

// Package registry owns the canonical live state of tags, beacons and the
// building model.
//
// Reads return deep copies. Writers must hold the entity lock obtained from
// Lock for the keys they mutate; the lock is what gives each entity a single
// writer and a receipt-ordered history of changes.
package registry

import (
	"sort"
	"sync"
	"time"

	"firewatch/internal/models"
)

// TagChange describes one accepted telemetry update.
type TagChange struct {
	Previous *models.TagState
	Current  models.TagState
}

// BeaconChange describes one accepted beacon mutation.
type BeaconChange struct {
	Previous *models.Beacon
	Current  models.Beacon
}

type Registry struct {
	locks keyLocks

	mu       sync.RWMutex
	tags     map[string]*models.TagState
	beacons  map[string]*models.Beacon
	building *models.Building
}

func New() *Registry {
	return &Registry{
		tags:    make(map[string]*models.TagState),
		beacons: make(map[string]*models.Beacon),
	}
}

// Lock serializes mutation of the given entity keys. Different keys never
// contend. The returned func releases all of them.
func (r *Registry) Lock(keys ...string) func() {
	return r.locks.lock(keys...)
}

// UpsertTelemetry replaces the snapshot for t.Firefighter.ID.
// The firefighter identity recorded on first sight is kept.
func (r *Registry) UpsertTelemetry(t models.Telemetry, receivedAt time.Time) TagChange {
	next := models.TagState{
		Telemetry:  t.Clone(),
		ReceivedAt: receivedAt,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var change TagChange
	if prev, ok := r.tags[t.Firefighter.ID]; ok {
		p := cloneTag(*prev)
		change.Previous = &p
		next.Telemetry.Firefighter = prev.Telemetry.Firefighter
	}
	next.StationarySince = stationarySince(change.Previous, next.Telemetry)
	r.tags[t.Firefighter.ID] = &next
	change.Current = cloneTag(next)
	return change
}

// MarkStale flags the tag as offline when nothing has been received for at
// least after, measured against now. It reports whether the flag flipped.
func (r *Registry) MarkStale(firefighterID string, now time.Time, after time.Duration) (TagChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tags[firefighterID]
	if !ok || cur.Stale || now.Sub(cur.ReceivedAt) < after {
		return TagChange{}, false
	}
	prev := cloneTag(*cur)
	cur.Stale = true
	return TagChange{Previous: &prev, Current: cloneTag(*cur)}, true
}

// UpsertBeaconConfig replaces the beacon wholesale.
func (r *Registry) UpsertBeaconConfig(b models.Beacon) BeaconChange {
	next := b.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	var change BeaconChange
	if prev, ok := r.beacons[b.ID]; ok {
		p := prev.Clone()
		change.Previous = &p
	}
	r.beacons[b.ID] = &next
	change.Current = next.Clone()
	return change
}

// PatchBeaconStatus merges only the fields present in p. An unknown id
// creates a beacon holding just the patched fields.
func (r *Registry) PatchBeaconStatus(p models.BeaconPatch) BeaconChange {
	r.mu.Lock()
	defer r.mu.Unlock()

	var change BeaconChange
	base := models.Beacon{ID: p.ID}
	if prev, ok := r.beacons[p.ID]; ok {
		c := prev.Clone()
		change.Previous = &c
		base = *prev
	}
	next := p.Apply(base)
	next.ID = p.ID
	r.beacons[p.ID] = &next
	change.Current = next.Clone()
	return change
}

func (r *Registry) SetBuilding(b models.Building) {
	c := b.Clone()
	r.mu.Lock()
	r.building = &c
	r.mu.Unlock()
}

func (r *Registry) Building() (models.Building, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.building == nil {
		return models.Building{}, false
	}
	return r.building.Clone(), true
}

func (r *Registry) Tag(firefighterID string) (models.TagState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tags[firefighterID]
	if !ok {
		return models.TagState{}, false
	}
	return cloneTag(*t), true
}

// Tags returns every known tag ordered by firefighter id.
func (r *Registry) Tags() []models.TagState {
	r.mu.RLock()
	out := make([]models.TagState, 0, len(r.tags))
	for _, t := range r.tags {
		out = append(out, cloneTag(*t))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Telemetry.Firefighter.ID < out[j].Telemetry.Firefighter.ID
	})
	return out
}

func (r *Registry) TagIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.tags))
	for id := range r.tags {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) Beacon(id string) (models.Beacon, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.beacons[id]
	if !ok {
		return models.Beacon{}, false
	}
	return b.Clone(), true
}

// RemoveBeacon drops a beacon and reports whether it was known.
func (r *Registry) RemoveBeacon(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.beacons[id]; !ok {
		return false
	}
	delete(r.beacons, id)
	return true
}

// Beacons returns every known beacon ordered by id.
func (r *Registry) Beacons() []models.Beacon {
	r.mu.RLock()
	out := make([]models.Beacon, 0, len(r.beacons))
	for _, b := range r.beacons {
		out = append(out, b.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func stationarySince(prev *models.TagState, t models.Telemetry) *time.Time {
	if t.Vitals.MotionState != models.MotionStationary {
		return nil
	}
	if prev != nil && prev.StationarySince != nil && prev.Telemetry.Vitals.MotionState == models.MotionStationary {
		since := *prev.StationarySince
		return &since
	}
	since := t.Timestamp
	return &since
}

func cloneTag(t models.TagState) models.TagState {
	out := t
	out.Telemetry = t.Telemetry.Clone()
	if t.StationarySince != nil {
		since := *t.StationarySince
		out.StationarySince = &since
	}
	return out
}

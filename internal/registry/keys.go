package registry

import (
	"sort"
	"strings"
	"sync"
)

// BuildingKey serializes building model replacement.
const BuildingKey = "building"

const (
	tagPrefix    = "tag:"
	beaconPrefix = "beacon:"
)

// TagKey is the entity key of a firefighter's tag.
func TagKey(firefighterID string) string { return tagPrefix + firefighterID }

// BeaconKey is the entity key of a beacon.
func BeaconKey(beaconID string) string { return beaconPrefix + beaconID }

// SplitKey returns the kind ("tag", "beacon", "building") and id of an entity key.
func SplitKey(key string) (kind, id string) {
	switch {
	case strings.HasPrefix(key, tagPrefix):
		return "tag", strings.TrimPrefix(key, tagPrefix)
	case strings.HasPrefix(key, beaconPrefix):
		return "beacon", strings.TrimPrefix(key, beaconPrefix)
	}
	return key, ""
}

// keyLocks hands out one mutex per entity key.
type keyLocks struct {
	m sync.Map
}

func (l *keyLocks) get(key string) *sync.Mutex {
	if mu, ok := l.m.Load(key); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := l.m.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// lock acquires the mutexes for keys in sorted order so that callers locking
// overlapping sets cannot deadlock.
func (l *keyLocks) lock(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for i, k := range sorted {
		if i > 0 && sorted[i-1] == k {
			continue
		}
		mu := l.get(k)
		mu.Lock()
		held = append(held, mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// Package history keeps a bounded per-firefighter trajectory.
package history

import (
	"sort"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/models"
)

type trail struct {
	mu   sync.Mutex
	ring *ring
}

// Store holds one ring buffer per firefighter. Capacity bounds memory; the
// optional MaxAge window additionally hides points older than MaxAge.
type Store struct {
	capacity int
	maxAge   time.Duration
	nowFn    func() time.Time

	mu     sync.RWMutex
	trails map[string]*trail
}

func NewStore(cfg config.HistoryConfig) *Store {
	return &Store{
		capacity: cfg.Limit,
		maxAge:   cfg.MaxAge,
		nowFn:    time.Now,
		trails:   make(map[string]*trail),
	}
}

// Append records a point. O(1).
func (s *Store) Append(firefighterID string, p models.HistoryPoint) {
	s.trail(firefighterID).append(p)
}

// Query returns the most recent limit points in ascending time order.
// limit <= 0 means everything retained.
func (s *Store) Query(firefighterID string, limit int) []models.HistoryPoint {
	s.mu.RLock()
	t, ok := s.trails[firefighterID]
	s.mu.RUnlock()
	if !ok {
		return []models.HistoryPoint{}
	}

	t.mu.Lock()
	points := t.ring.last(0)
	t.mu.Unlock()

	if s.maxAge > 0 {
		cutoff := s.nowFn().Add(-s.maxAge)
		kept := points[:0]
		for _, p := range points {
			if !p.Timestamp.Before(cutoff) {
				kept = append(kept, p)
			}
		}
		points = kept
	}

	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// Firefighters lists ids with recorded history.
func (s *Store) Firefighters() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.trails))
	for id := range s.trails {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *Store) trail(firefighterID string) *trail {
	s.mu.RLock()
	t, ok := s.trails[firefighterID]
	s.mu.RUnlock()
	if ok {
		return t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok = s.trails[firefighterID]; ok {
		return t
	}
	t = &trail{ring: newRing(s.capacity)}
	s.trails[firefighterID] = t
	return t
}

func (t *trail) append(p models.HistoryPoint) {
	t.mu.Lock()
	t.ring.push(p)
	t.mu.Unlock()
}

package history

import "firewatch/internal/models"

// ring is a fixed-capacity buffer that overwrites its oldest point when full.
type ring struct {
	items []models.HistoryPoint
	head  int // next write position
	size  int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{items: make([]models.HistoryPoint, capacity)}
}

func (r *ring) push(p models.HistoryPoint) {
	r.items[r.head] = p
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

// last returns up to n most recently pushed points, oldest first.
func (r *ring) last(n int) []models.HistoryPoint {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]models.HistoryPoint, n)
	start := (r.head - n + len(r.items)) % len(r.items)
	for i := 0; i < n; i++ {
		out[i] = r.items[(start+i)%len(r.items)]
	}
	return out
}

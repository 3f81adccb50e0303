package history

import (
	"sync"
	"testing"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func point(i int) models.HistoryPoint {
	return models.HistoryPoint{
		Position:  models.Position{X: float64(i), Y: float64(i) * 2},
		Timestamp: base.Add(time.Duration(i) * time.Second),
	}
}

func TestStore_QueryReturnsMostRecentAscending(t *testing.T) {
	s := NewStore(config.HistoryConfig{Limit: 100})
	for i := 1; i <= 10; i++ {
		s.Append("FF-1", point(i))
	}

	got := s.Query("FF-1", 5)
	require.Len(t, got, 5)
	for i, p := range got {
		assert.Equal(t, point(6+i), p)
	}
}

func TestStore_CapacityEvictsOldest(t *testing.T) {
	s := NewStore(config.HistoryConfig{Limit: 3})
	for i := 1; i <= 7; i++ {
		s.Append("FF-1", point(i))
	}

	got := s.Query("FF-1", 0)
	assert.Equal(t, []models.HistoryPoint{point(5), point(6), point(7)}, got)

	got = s.Query("FF-1", 10)
	assert.Len(t, got, 3)
}

func TestStore_MaxAgeWindow(t *testing.T) {
	s := NewStore(config.HistoryConfig{Limit: 100, MaxAge: 5 * time.Second})
	s.nowFn = func() time.Time { return base.Add(10 * time.Second) }
	for i := 1; i <= 10; i++ {
		s.Append("FF-1", point(i))
	}

	got := s.Query("FF-1", 0)
	require.Len(t, got, 6)
	assert.Equal(t, point(5), got[0])
	assert.Equal(t, point(10), got[5])
}

func TestStore_OutOfOrderTimestampsAreSorted(t *testing.T) {
	s := NewStore(config.HistoryConfig{Limit: 10})
	s.Append("FF-1", point(3))
	s.Append("FF-1", point(1))
	s.Append("FF-1", point(2))

	got := s.Query("FF-1", 0)
	assert.Equal(t, []models.HistoryPoint{point(1), point(2), point(3)}, got)
}

func TestStore_UnknownFirefighter(t *testing.T) {
	s := NewStore(config.HistoryConfig{Limit: 10})
	got := s.Query("nobody", 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_ConcurrentAppendAndQuery(t *testing.T) {
	s := NewStore(config.HistoryConfig{Limit: 50})
	var wg sync.WaitGroup
	for _, id := range []string{"FF-1", "FF-2", "FF-3"} {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.Append(id, point(i))
			}
		}(id)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				pts := s.Query(id, 10)
				assert.LessOrEqual(t, len(pts), 10)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, []string{"FF-1", "FF-2", "FF-3"}, s.Firefighters())
	assert.Len(t, s.Query("FF-2", 0), 50)
}

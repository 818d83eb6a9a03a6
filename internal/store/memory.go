package store

import (
	"context"
	"sync"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// readingHistory holds an identity's readings in insertion order.
type readingHistory struct {
	readings []airquality.Reading
}

// MemoryHistory is a concurrency-safe in-memory history backend.
type MemoryHistory struct {
	mu sync.RWMutex

	// key: identity, value: history
	data map[airquality.Identity]*readingHistory

	// max number of readings per identity; oldest are dropped first
	maxEntries int
}

// NewMemoryHistory creates a new MemoryHistory.
// If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryHistory(maxEntries int) *MemoryHistory {
	return &MemoryHistory{
		data:       make(map[airquality.Identity]*readingHistory),
		maxEntries: maxEntries,
	}
}

// Append upserts r keyed by (id, r.CapturedAt).
func (m *MemoryHistory) Append(_ context.Context, id airquality.Identity, r airquality.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	history, ok := m.data[id]
	if !ok {
		history = &readingHistory{}
		m.data[id] = history
	}

	for i := range history.readings {
		if history.readings[i].CapturedAt.Equal(r.CapturedAt) {
			history.readings[i] = r
			return nil
		}
	}

	history.readings = append(history.readings, r)

	if m.maxEntries > 0 && len(history.readings) > m.maxEntries {
		over := len(history.readings) - m.maxEntries
		history.readings = append([]airquality.Reading(nil), history.readings[over:]...)
	}
	return nil
}

// Query returns a copy of the identity's readings in insertion order.
func (m *MemoryHistory) Query(_ context.Context, id airquality.Identity) ([]airquality.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	out := make([]airquality.Reading, len(history.readings))
	copy(out, history.readings)
	return out, nil
}

func (m *MemoryHistory) Close() error { return nil }

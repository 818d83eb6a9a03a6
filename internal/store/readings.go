// Package store keeps readings: the current reading per identity in memory,
// and history in a pluggable backend (memory or sqlite). It also holds the
// bbolt-backed device pairing slot.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// HistoryBackend is the persistence collaborator. Append is an upsert keyed
// by (identity, capturedAt); Query may return entries in any order.
type HistoryBackend interface {
	Append(ctx context.Context, id airquality.Identity, r airquality.Reading) error
	Query(ctx context.Context, id airquality.Identity) ([]airquality.Reading, error)
	Close() error
}

// Readings implements airquality.ReadingStore.
type Readings struct {
	mu      sync.RWMutex
	current map[airquality.Identity]airquality.Reading

	history HistoryBackend
}

var _ airquality.ReadingStore = (*Readings)(nil)

// NewReadings wraps a history backend. A nil backend means in-memory history.
func NewReadings(history HistoryBackend) *Readings {
	if history == nil {
		history = NewMemoryHistory(0)
	}
	return &Readings{
		current: make(map[airquality.Identity]airquality.Reading),
		history: history,
	}
}

// RecordCurrent replaces the identity's current reading. Last write wins.
func (s *Readings) RecordCurrent(id airquality.Identity, r airquality.Reading) {
	s.mu.Lock()
	s.current[id] = r
	s.mu.Unlock()
}

// Current returns the identity's current reading.
func (s *Readings) Current(id airquality.Identity) (airquality.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.current[id]
	return r, ok
}

// AppendHistory writes r to the history backend.
func (s *Readings) AppendHistory(ctx context.Context, id airquality.Identity, r airquality.Reading) error {
	if err := s.history.Append(ctx, id, r); err != nil {
		return airquality.E(airquality.KindWriteFailed, "history", err)
	}
	return nil
}

// QueryHistory returns the identity's history sorted by CapturedAt, newest
// first. Ties keep insertion order. No history is an empty slice.
func (s *Readings) QueryHistory(ctx context.Context, id airquality.Identity) ([]airquality.Reading, error) {
	out, err := s.history.Query(ctx, id)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return []airquality.Reading{}, nil
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapturedAt.After(out[j].CapturedAt)
	})
	return out, nil
}

// Ping checks the history backend when it can be checked. The memory
// backend is always healthy.
func (s *Readings) Ping(ctx context.Context) error {
	p, ok := s.history.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Close closes the history backend.
func (s *Readings) Close() error {
	return s.history.Close()
}

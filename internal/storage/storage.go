// Package storage keeps the most recent monitoring state in memory so it can
// be served to clients that join between rounds. It holds no history.
package storage

import (
	"sync"
	"time"

	"projectmonitor/internal/models"
)

// Snapshot is the latest known monitoring state.
type Snapshot struct {
	Running   bool                  `json:"running"`
	Overview  models.StatusOverview `json:"overview"`
	Countdown *int                  `json:"countdown"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// SnapshotStore tracks the latest overview and countdown.
type SnapshotStore struct {
	mu        sync.RWMutex
	running   bool
	overview  models.StatusOverview
	countdown *int
	updatedAt time.Time
	now       func() time.Time
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{now: time.Now}
}

// Observe updates the store from a published event.
func (s *SnapshotStore) Observe(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Event {
	case models.EventMonitor:
		overview, ok := ev.Data.(models.StatusOverview)
		if !ok {
			return
		}
		s.running = true
		s.overview = overview
		s.updatedAt = s.now().UTC()
	case models.EventMonitorCountdown:
		remaining, ok := ev.Data.(int)
		if !ok {
			s.countdown = nil
			return
		}
		s.running = true
		s.countdown = &remaining
	case models.EventStopMonitor:
		s.running = false
		s.countdown = nil
	}
}

// Latest returns the current snapshot; false when no round completed yet.
func (s *SnapshotStore) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Running:   s.running,
		Overview:  s.overview,
		UpdatedAt: s.updatedAt,
	}
	if s.countdown != nil {
		remaining := *s.countdown
		snap.Countdown = &remaining
	}
	return snap, s.overview != nil
}

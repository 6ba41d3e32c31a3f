package server

import (
	"sync"
	"time"

	"github.com/afroash/airmon/internal/models"
)

// SnapshotStore holds the latest snapshot. The acquisition cycle is the
// only writer; the API, the publisher and the live stream read copies.
type SnapshotStore struct {
	mutex       sync.RWMutex
	current     models.Snapshot
	updates     int64
	lastUpdate  time.Time
	subscribers map[chan models.Snapshot]struct{}
}

// NewSnapshotStore creates a store whose readings are all invalid
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		current:     models.EmptySnapshot(),
		subscribers: make(map[chan models.Snapshot]struct{}),
	}
}

// Update replaces the snapshot as a whole. The timestamp never goes
// backwards: an older timestamp is raised to the current one.
func (s *SnapshotStore) Update(snap models.Snapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if snap.Timestamp < s.current.Timestamp {
		snap.Timestamp = s.current.Timestamp
	}
	s.current = snap
	s.updates++
	s.lastUpdate = time.Now()

	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber, drop this frame
		}
	}
}

// Latest returns a copy of the current snapshot
func (s *SnapshotStore) Latest() models.Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current
}

// Subscribe returns a channel receiving every future snapshot and a
// function that ends the subscription and closes the channel.
func (s *SnapshotStore) Subscribe(buffer int) (<-chan models.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.Snapshot, buffer)

	s.mutex.Lock()
	s.subscribers[ch] = struct{}{}
	s.mutex.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mutex.Lock()
			delete(s.subscribers, ch)
			s.mutex.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Stats returns statistics about the store
func (s *SnapshotStore) Stats() StoreStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return StoreStats{
		Updates:     s.updates,
		LastUpdate:  s.lastUpdate,
		Subscribers: len(s.subscribers),
	}
}

// StoreStats contains statistics about the snapshot store
type StoreStats struct {
	Updates     int64     `json:"updates"`
	LastUpdate  time.Time `json:"last_update,omitempty"`
	Subscribers int       `json:"subscribers"`
}

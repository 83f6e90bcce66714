// Package tracking keeps the live location state of technicians.
package tracking

import (
	"sort"
	"sync"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/matching/geo"
	"dispatch-workers/internal/models"
)

const DefaultHistoryCap = 100

type entry struct {
	mu      sync.Mutex
	current *models.TrackingSnapshot
	history []models.TrackingSnapshot
	// removed is set under mu once the entry has left the index.
	removed bool
}

// Store maps technician ids to their current snapshot and a bounded history.
// The index is guarded by an RWMutex; each technician has its own mutex, so
// writers for different technicians never wait on each other.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	historyCap int
}

func NewStore(historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Store{
		entries:    make(map[string]*entry),
		historyCap: historyCap,
	}
}

func (s *Store) entry(id string, create bool) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok || !create {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[id]; ok {
		return e
	}
	e = &entry{}
	s.entries[id] = e
	metrics.TrackedTechnicians.Set(float64(len(s.entries)))
	return e
}

// Update records a location report and returns the resulting snapshot. Reports
// older than the current snapshot are kept in history only.
func (s *Store) Update(update models.LocationUpdate) (models.TrackingSnapshot, error) {
	if update.TechnicianID == "" {
		return models.TrackingSnapshot{}, errors.NewInvalidInputError("technicianId is required")
	}
	if !geo.ValidCoordinates(update.Location) {
		return models.TrackingSnapshot{}, errors.NewInvalidLocationError("technician "+update.TechnicianID, update.Location.Latitude, update.Location.Longitude)
	}

	snap := models.TrackingSnapshot{
		TechnicianID:    update.TechnicianID,
		Location:        update.Location,
		Timestamp:       update.Timestamp,
		Status:          update.Status,
		TrackingEnabled: update.TrackingEnabled,
	}
	if snap.Status == "" {
		snap.Status = models.StatusAvailable
	}
	if update.EstimatedArrivalMinutes != nil {
		eta := *update.EstimatedArrivalMinutes
		snap.EstimatedArrivalMinutes = &eta
	}

	e := s.lockLive(update.TechnicianID)
	defer e.mu.Unlock()

	if prev := e.current; prev != nil {
		if elapsed := snap.Timestamp.Sub(prev.Timestamp).Hours(); elapsed > 0 {
			snap.SpeedKmh = geo.Between(prev.Location, snap.Location) / elapsed
		}
	}

	e.insert(snap, s.historyCap)

	if e.current == nil || !snap.Timestamp.Before(e.current.Timestamp) {
		current := snap
		e.current = &current
	}

	return clone(snap), nil
}

// lockLive returns the indexed entry for id with its mutex held. An entry that
// was evicted between lookup and lock is discarded and the lookup repeated.
func (s *Store) lockLive(id string) *entry {
	for {
		e := s.entry(id, true)
		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// insert keeps history ordered by timestamp; equal timestamps keep arrival order.
func (e *entry) insert(snap models.TrackingSnapshot, limit int) {
	i := sort.Search(len(e.history), func(i int) bool {
		return e.history[i].Timestamp.After(snap.Timestamp)
	})
	e.history = append(e.history, models.TrackingSnapshot{})
	copy(e.history[i+1:], e.history[i:])
	e.history[i] = snap

	if over := len(e.history) - limit; over > 0 {
		e.history = append(e.history[:0:0], e.history[over:]...)
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot(id string) (models.TrackingSnapshot, bool) {
	e := s.entry(id, false)
	if e == nil {
		return models.TrackingSnapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return models.TrackingSnapshot{}, false
	}
	return clone(*e.current), true
}

// Snapshots copies the current snapshot of every known id in ids.
func (s *Store) Snapshots(ids []string) map[string]models.TrackingSnapshot {
	out := make(map[string]models.TrackingSnapshot, len(ids))
	for _, id := range ids {
		if snap, ok := s.Snapshot(id); ok {
			out[id] = snap
		}
	}
	return out
}

// History returns the technician's history, oldest first.
func (s *Store) History(id string) []models.TrackingSnapshot {
	e := s.entry(id, false)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.TrackingSnapshot, len(e.history))
	for i := range e.history {
		out[i] = clone(e.history[i])
	}
	return out
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.mu.Lock()
	e.removed = true
	delete(s.entries, id)
	e.mu.Unlock()
	metrics.TrackedTechnicians.Set(float64(len(s.entries)))
}

// EvictStale drops technicians whose current snapshot is older than cutoff and
// returns how many were removed.
func (s *Store) EvictStale(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		if e.current == nil || e.current.Timestamp.Before(cutoff) {
			e.removed = true
			delete(s.entries, id)
			removed++
		}
		e.mu.Unlock()
	}
	if removed > 0 {
		metrics.TrackingEvictions.Add(float64(removed))
		metrics.TrackedTechnicians.Set(float64(len(s.entries)))
	}
	return removed
}

// Len is the number of tracked technicians.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func clone(snap models.TrackingSnapshot) models.TrackingSnapshot {
	if snap.EstimatedArrivalMinutes != nil {
		eta := *snap.EstimatedArrivalMinutes
		snap.EstimatedArrivalMinutes = &eta
	}
	return snap
}

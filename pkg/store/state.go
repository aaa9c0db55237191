package store

import (
	"encoding/json"
	"maps"
	"slices"
	"sync"
)

// StateStore holds the scalar synced state slots of one widget instance.
type StateStore struct {
	mu    sync.RWMutex
	slots map[string]Record
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{slots: make(map[string]Record)}
}

// Get returns the value of a slot. Absent slots report false.
func (s *StateStore) Get(name string) (json.RawMessage, bool) {
	rec, ok := s.Record(name)
	if !ok || rec.Deleted {
		return nil, false
	}
	return rec.Value, true
}

// Record returns the stored record of a slot.
func (s *StateStore) Record(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.slots[name]
	return rec, ok
}

// Put stores a local write. Local writes always apply; their stamps come
// from the session clock and dominate everything it has observed.
func (s *StateStore) Put(name string, value json.RawMessage, stamp Stamp) Record {
	rec := Record{Value: value, Stamp: stamp}
	s.mu.Lock()
	s.slots[name] = rec
	s.mu.Unlock()
	return rec
}

// Merge applies a remote write if its stamp strictly dominates the stored
// one. It reports whether the slot changed.
func (s *StateStore) Merge(name string, rec Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.slots[name]; ok && !rec.Dominates(cur) {
		return false
	}
	s.slots[name] = rec
	return true
}

// Names returns the stored slot names in sorted order.
func (s *StateStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.slots))
}

// Len returns the number of stored slots.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Snapshot returns a copy of every stored record.
func (s *StateStore) Snapshot() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.slots) == 0 {
		return nil
	}
	return maps.Clone(s.slots)
}

// Restore merges a snapshot into the store and returns the number of
// slots that changed.
func (s *StateStore) Restore(snapshot map[string]Record) int {
	changed := 0
	for name, rec := range snapshot {
		if s.Merge(name, rec) {
			changed++
		}
	}
	return changed
}

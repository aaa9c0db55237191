package store

import (
	"encoding/json"
	"maps"
	"slices"
	"sync"
)

// MapStore holds the named synced maps of one widget instance. Entries are
// independent merge units: writes to different keys never conflict.
type MapStore struct {
	mu   sync.RWMutex
	maps map[string]map[string]Record
}

// NewMapStore creates an empty store.
func NewMapStore() *MapStore {
	return &MapStore{maps: make(map[string]map[string]Record)}
}

// Record returns the stored record of an entry, including tombstones.
func (m *MapStore) Record(name, key string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.maps[name][key]
	return rec, ok
}

// Get returns the value of a live entry.
func (m *MapStore) Get(name, key string) (json.RawMessage, bool) {
	rec, ok := m.Record(name, key)
	if !ok || rec.Deleted {
		return nil, false
	}
	return rec.Value, true
}

// Has reports whether a live entry exists.
func (m *MapStore) Has(name, key string) bool {
	_, ok := m.Get(name, key)
	return ok
}

// Keys returns the live keys of a map in sorted order.
func (m *MapStore) Keys(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.maps[name]))
	for key, rec := range m.maps[name] {
		if !rec.Deleted {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of live entries in a map.
func (m *MapStore) Len(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.maps[name] {
		if !rec.Deleted {
			n++
		}
	}
	return n
}

// Put stores a local set.
func (m *MapStore) Put(name, key string, value json.RawMessage, stamp Stamp) Record {
	rec := Record{Value: value, Stamp: stamp}
	m.store(name, key, rec)
	return rec
}

// Delete stores a local tombstone. Deleting an absent key still records the
// tombstone so that an older concurrent set stays discarded.
func (m *MapStore) Delete(name, key string, stamp Stamp) Record {
	rec := Record{Stamp: stamp, Deleted: true}
	m.store(name, key, rec)
	return rec
}

func (m *MapStore) store(name, key string, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.maps[name]
	if entries == nil {
		entries = make(map[string]Record)
		m.maps[name] = entries
	}
	entries[key] = rec
}

// Merge applies a remote set or delete if its stamp strictly dominates the
// stored entry. It reports whether the entry changed.
func (m *MapStore) Merge(name, key string, rec Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.maps[name]
	if cur, ok := entries[key]; ok && !rec.Dominates(cur) {
		return false
	}
	if entries == nil {
		entries = make(map[string]Record)
		m.maps[name] = entries
	}
	entries[key] = rec
	return true
}

// Names returns the names of all maps holding at least one record.
func (m *MapStore) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.maps))
}

// Snapshot returns a deep copy of every map, tombstones included.
func (m *MapStore) Snapshot() map[string]map[string]Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.maps) == 0 {
		return nil
	}
	out := make(map[string]map[string]Record, len(m.maps))
	for name, entries := range m.maps {
		out[name] = maps.Clone(entries)
	}
	return out
}

// Restore merges a snapshot into the store and returns the number of
// entries that changed.
func (m *MapStore) Restore(snapshot map[string]map[string]Record) int {
	changed := 0
	for name, entries := range snapshot {
		for key, rec := range entries {
			if m.Merge(name, key, rec) {
				changed++
			}
		}
	}
	return changed
}

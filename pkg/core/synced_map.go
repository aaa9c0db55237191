package core

import (
	"fmt"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/store"
)

// SyncedMap is a live handle on one named synced map of an instance.
// Entries are independent: concurrent writes to different keys from
// different sessions all survive.
//
// During the render pass that created it, reads see the state as of the
// start of the pass. Afterwards, in handlers, effects and tasks, reads see
// local writes immediately.
//
// An entry whose stored value does not decode into T is treated as absent
// by every read; Get reports the decode error.
type SyncedMap[T any] struct {
	inst *Instance
	ctx  *Context
	name string
}

// Entry is one key/value pair of a SyncedMap.
type Entry[T any] struct {
	Key   string
	Value T
}

// Name returns the map name.
func (m *SyncedMap[T]) Name() string {
	return m.name
}

func (m *SyncedMap[T]) bucket() *store.Bucket {
	if m.ctx != nil {
		return m.ctx.bucket()
	}
	return m.inst.bucket
}

func (m *SyncedMap[T]) lookup(b *store.Bucket, key string) (T, bool, error) {
	var zero T
	raw, ok := b.Maps.Get(m.name, key)
	if !ok {
		return zero, false, nil
	}
	v, err := store.Decode[T](raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Get returns the value stored under key.
func (m *SyncedMap[T]) Get(key string) (T, bool) {
	v, ok, err := m.lookup(m.bucket(), key)
	if err != nil {
		errors.Report(&errors.WidgetError{
			Op:       "core.SyncedMap.Get",
			Kind:     errors.KindConfig,
			Instance: m.inst.id,
			Err:      fmt.Errorf("map %q key %q: %w", m.name, key, err),
		})
	}
	return v, ok
}

// Has reports whether key is present.
func (m *SyncedMap[T]) Has(key string) bool {
	_, ok, _ := m.lookup(m.bucket(), key)
	return ok
}

// Set stores value under key. An empty key is a configuration error.
func (m *SyncedMap[T]) Set(key string, value T) error {
	return m.inst.writeEntry("core.SyncedMap.Set", m.name, key, value, false)
}

// Delete removes key. The deletion is replicated as a tombstone.
func (m *SyncedMap[T]) Delete(key string) error {
	return m.inst.writeEntry("core.SyncedMap.Delete", m.name, key, nil, true)
}

// Keys returns the present keys in sorted order.
func (m *SyncedMap[T]) Keys() []string {
	entries := m.Entries()
	keys := make([]string, len(entries))
	for k, e := range entries {
		keys[k] = e.Key
	}
	return keys
}

// Values returns the values in key order.
func (m *SyncedMap[T]) Values() []T {
	entries := m.Entries()
	values := make([]T, len(entries))
	for k, e := range entries {
		values[k] = e.Value
	}
	return values
}

// Entries returns the key/value pairs in key order.
func (m *SyncedMap[T]) Entries() []Entry[T] {
	b := m.bucket()
	keys := b.Maps.Keys(m.name)
	entries := make([]Entry[T], 0, len(keys))
	for _, key := range keys {
		if v, ok, _ := m.lookup(b, key); ok {
			entries = append(entries, Entry[T]{Key: key, Value: v})
		}
	}
	return entries
}

// Len returns the number of present keys.
func (m *SyncedMap[T]) Len() int {
	return len(m.Entries())
}

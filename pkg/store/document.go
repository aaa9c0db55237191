package store

import (
	"maps"
	"slices"
	"sync"
)

// Bucket is the synced state owned by one widget instance.
type Bucket struct {
	State *StateStore
	Maps  *MapStore
}

// NewBucket creates an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{State: NewStateStore(), Maps: NewMapStore()}
}

// Snapshot copies the bucket contents.
func (b *Bucket) Snapshot() InstanceSnapshot {
	return InstanceSnapshot{State: b.State.Snapshot(), Maps: b.Maps.Snapshot()}
}

// Clone returns an independent copy of the bucket. Callers that need a
// copy consistent across state and maps must hold off writers while
// cloning.
func (b *Bucket) Clone() *Bucket {
	c := NewBucket()
	c.Restore(b.Snapshot())
	return c
}

// Restore merges a snapshot into the bucket.
func (b *Bucket) Restore(snap InstanceSnapshot) int {
	return b.State.Restore(snap.State) + b.Maps.Restore(snap.Maps)
}

// InstanceSnapshot is the persisted form of one instance's state.
type InstanceSnapshot struct {
	State map[string]Record            `json:"state,omitempty"`
	Maps  map[string]map[string]Record `json:"maps,omitempty"`
}

// Empty reports whether the snapshot holds no records.
func (s InstanceSnapshot) Empty() bool {
	return len(s.State) == 0 && len(s.Maps) == 0
}

// DocumentSnapshot is the persisted form of every instance in a document.
// The host supplies one on load and stores one on save.
type DocumentSnapshot struct {
	Document  string                      `json:"document"`
	Instances map[string]InstanceSnapshot `json:"instances,omitempty"`
}

// MaxStamp returns the highest stamp in the snapshot. A session restoring
// the snapshot observes it so that new local writes dominate stored ones.
func (d DocumentSnapshot) MaxStamp() Stamp {
	var high Stamp
	bump := func(rec Record) {
		if rec.Stamp.After(high) {
			high = rec.Stamp
		}
	}
	for _, inst := range d.Instances {
		for _, rec := range inst.State {
			bump(rec)
		}
		for _, entries := range inst.Maps {
			for _, rec := range entries {
				bump(rec)
			}
		}
	}
	return high
}

// Document holds the buckets of every instance of one open document,
// including instances that have stored state but are not mounted.
type Document struct {
	mu      sync.RWMutex
	id      string
	buckets map[string]*Bucket
}

// NewDocument creates an empty document.
func NewDocument(id string) *Document {
	return &Document{id: id, buckets: make(map[string]*Bucket)}
}

// ID returns the document id.
func (d *Document) ID() string {
	return d.id
}

// Bucket returns the bucket of an instance, creating it if needed.
func (d *Document) Bucket(instance string) *Bucket {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buckets[instance]
	if !ok {
		b = NewBucket()
		d.buckets[instance] = b
	}
	return b
}

// Lookup returns the bucket of an instance if one exists.
func (d *Document) Lookup(instance string) (*Bucket, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.buckets[instance]
	return b, ok
}

// Drop forgets an instance's state.
func (d *Document) Drop(instance string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buckets, instance)
}

// Instances returns the ids of all instances with a bucket, sorted.
func (d *Document) Instances() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.buckets))
}

// Snapshot copies the whole document.
func (d *Document) Snapshot() DocumentSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := DocumentSnapshot{Document: d.id}
	for id, b := range d.buckets {
		inst := b.Snapshot()
		if inst.Empty() {
			continue
		}
		if snap.Instances == nil {
			snap.Instances = make(map[string]InstanceSnapshot)
		}
		snap.Instances[id] = inst
	}
	return snap
}

// Restore merges a snapshot into the document. Records only replace stored
// ones they dominate.
func (d *Document) Restore(snap DocumentSnapshot) int {
	changed := 0
	for id, inst := range snap.Instances {
		changed += d.Bucket(id).Restore(inst)
	}
	return changed
}

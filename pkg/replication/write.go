// Package replication carries synced state writes between sessions of the
// same document.
//
// Delivery is at-least-once and unordered across sessions. Receivers merge
// writes with the last-writer-wins rule in the store package, which makes
// duplicate and late deliveries harmless.
package replication

import (
	"fmt"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/store"
)

// Scope tells which store a write targets.
type Scope string

const (
	// ScopeState targets a scalar slot; Key is the slot name.
	ScopeState Scope = "state"
	// ScopeMap targets an entry of the map named Map.
	ScopeMap Scope = "map"
)

// Write is one replicated mutation of one slot or map entry.
type Write struct {
	Document string       `json:"document"`
	Instance string       `json:"instance"`
	Scope    Scope        `json:"scope"`
	Map      string       `json:"map,omitempty"`
	Key      string       `json:"key"`
	Record   store.Record `json:"record"`
	// Origin is the session that issued the write.
	Origin string `json:"origin"`
}

// ErrInvalidWrite is returned for writes that target nothing.
var ErrInvalidWrite = errors.New("replication: invalid write")

// Validate checks that w addresses a slot or map entry.
func (w Write) Validate() error {
	switch {
	case w.Instance == "":
		return fmt.Errorf("%w: missing instance", ErrInvalidWrite)
	case w.Key == "":
		return fmt.Errorf("%w: missing key", ErrInvalidWrite)
	case w.Scope == ScopeMap && w.Map == "":
		return fmt.Errorf("%w: missing map name", ErrInvalidWrite)
	case w.Scope != ScopeState && w.Scope != ScopeMap:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidWrite, w.Scope)
	}
	return nil
}

// Target identifies the slot or entry a write addresses.
func (w Write) Target() string {
	if w.Scope == ScopeMap {
		return w.Instance + "/map/" + w.Map + "/" + w.Key
	}
	return w.Instance + "/state/" + w.Key
}

// ApplyTo merges the write into an instance bucket. It reports whether the
// stored value changed; stale and duplicate writes report false.
func (w Write) ApplyTo(b *store.Bucket) bool {
	if w.Scope == ScopeMap {
		return b.Maps.Merge(w.Map, w.Key, w.Record)
	}
	return b.State.Merge(w.Key, w.Record)
}

func (w Write) String() string {
	op := "set"
	if w.Record.Deleted {
		op = "delete"
	}
	return fmt.Sprintf("%s %s @%s", op, w.Target(), w.Record.Stamp)
}

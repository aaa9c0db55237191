package store

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/go-drift/widgetkit/pkg/errors"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode(%v): %v", v, err)
	}
	return data
}

func TestStamp_Order(t *testing.T) {
	tests := []struct {
		a, b Stamp
		want int
	}{
		{Stamp{1, "a"}, Stamp{2, "a"}, -1},
		{Stamp{3, "a"}, Stamp{2, "z"}, 1},
		{Stamp{2, "a"}, Stamp{2, "b"}, -1},
		{Stamp{2, "b"}, Stamp{2, "b"}, 0},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := tt.b.Compare(tt.a); got != -tt.want {
			t.Errorf("order is not antisymmetric for %s, %s", tt.a, tt.b)
		}
	}
}

func TestClock(t *testing.T) {
	c := NewClock("s1")
	first := c.Next()
	if first.Counter != 1 || first.Session != "s1" {
		t.Errorf("first stamp = %s", first)
	}
	c.Observe(Stamp{Counter: 10, Session: "s2"})
	next := c.Next()
	if !next.After(Stamp{Counter: 10, Session: "s2"}) {
		t.Errorf("%s does not dominate observed stamp", next)
	}
	c.Observe(Stamp{Counter: 2, Session: "s3"})
	if c.Now().Counter != 11 {
		t.Errorf("Observe moved the clock backwards: %s", c.Now())
	}
}

func TestEncode_RejectsUnserializable(t *testing.T) {
	type cyclic struct {
		Next *cyclic
	}
	loop := &cyclic{}
	loop.Next = loop

	values := map[string]any{
		"func":    func() {},
		"chan":    make(chan int),
		"nan":     math.NaN(),
		"inf":     math.Inf(1),
		"complex": complex(1, 2),
		"cycle":   loop,
		"nested":  map[string]any{"f": func() {}},
	}
	for name, v := range values {
		t.Run(name, func(t *testing.T) {
			if _, err := Encode(v); !errors.Is(err, errors.ErrUnserializable) {
				t.Errorf("expected ErrUnserializable, got %v", err)
			}
		})
	}
}

func TestEncode_Canonical(t *testing.T) {
	a := raw(t, map[string]int{"b": 2, "a": 1})
	b := raw(t, map[string]int{"a": 1, "b": 2})
	if string(a) != string(b) || string(a) != `{"a":1,"b":2}` {
		t.Errorf("encodings differ: %s vs %s", a, b)
	}
}

func TestDecode(t *testing.T) {
	n, err := Decode[int](raw(t, 42))
	if err != nil || n != 42 {
		t.Errorf("Decode = %d, %v", n, err)
	}
	zero, err := Decode[string](nil)
	if err != nil || zero != "" {
		t.Errorf("Decode(nil) = %q, %v", zero, err)
	}
	if _, err := Decode[int](json.RawMessage(`"x"`)); err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestStateStore_LastWriterWins(t *testing.T) {
	// Two sessions write the same slot and exchange their writes in
	// opposite orders; both must converge on the higher stamp.
	w1 := Record{Value: raw(t, 1), Stamp: Stamp{Counter: 4, Session: "s1"}}
	w2 := Record{Value: raw(t, 5), Stamp: Stamp{Counter: 4, Session: "s2"}}

	s1 := NewStateStore()
	s1.Put("count", w1.Value, w1.Stamp)
	s1.Merge("count", w2)

	s2 := NewStateStore()
	s2.Put("count", w2.Value, w2.Stamp)
	s2.Merge("count", w1)

	v1, _ := s1.Get("count")
	v2, _ := s2.Get("count")
	if string(v1) != "5" || string(v2) != "5" {
		t.Errorf("sessions diverged: %s vs %s", v1, v2)
	}
}

func TestStateStore_StaleAndDuplicate(t *testing.T) {
	s := NewStateStore()
	s.Put("x", raw(t, "new"), Stamp{Counter: 5, Session: "a"})

	if s.Merge("x", Record{Value: raw(t, "old"), Stamp: Stamp{Counter: 3, Session: "b"}}) {
		t.Error("stale write applied")
	}
	dup := Record{Value: raw(t, "new"), Stamp: Stamp{Counter: 5, Session: "a"}}
	if s.Merge("x", dup) {
		t.Error("duplicate delivery reported a change")
	}
	if v, _ := s.Get("x"); string(v) != `"new"` {
		t.Errorf("value = %s", v)
	}
}

func TestStateStore_SnapshotRestore(t *testing.T) {
	a := NewStateStore()
	a.Put("x", raw(t, 1), Stamp{Counter: 1, Session: "a"})
	a.Put("y", raw(t, 2), Stamp{Counter: 2, Session: "a"})

	b := NewStateStore()
	b.Put("y", raw(t, 9), Stamp{Counter: 7, Session: "b"})
	if changed := b.Restore(a.Snapshot()); changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}
	if v, _ := b.Get("y"); string(v) != "9" {
		t.Errorf("restore overwrote a newer slot: %s", v)
	}
	if got := b.Names(); len(got) != 2 || got[0] != "x" {
		t.Errorf("Names = %v", got)
	}
}

func TestMapStore_Independence(t *testing.T) {
	s1 := NewMapStore()
	s2 := NewMapStore()
	w1 := s1.Put("votes", "u1", raw(t, "yes"), Stamp{Counter: 1, Session: "s1"})
	w2 := s2.Put("votes", "u2", raw(t, "no"), Stamp{Counter: 1, Session: "s2"})

	if !s1.Merge("votes", "u2", w2) || !s2.Merge("votes", "u1", w1) {
		t.Fatal("concurrent writes to distinct keys were discarded")
	}
	for _, s := range []*MapStore{s1, s2} {
		keys := s.Keys("votes")
		if len(keys) != 2 || keys[0] != "u1" || keys[1] != "u2" {
			t.Errorf("Keys = %v, want [u1 u2]", keys)
		}
	}
}

func TestMapStore_Tombstones(t *testing.T) {
	tests := []struct {
		name    string
		setAt   uint64
		present bool
	}{
		{"older set stays deleted", 2, false},
		{"newer set overrides", 9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapStore()
			m.Put("m", "k", raw(t, "v0"), Stamp{Counter: 1, Session: "a"})
			m.Delete("m", "k", Stamp{Counter: 5, Session: "a"})
			if m.Has("m", "k") {
				t.Fatal("deleted key still present")
			}
			m.Merge("m", "k", Record{Value: raw(t, "v"), Stamp: Stamp{Counter: tt.setAt, Session: "b"}})
			if m.Has("m", "k") != tt.present {
				t.Errorf("Has = %v, want %v", m.Has("m", "k"), tt.present)
			}
		})
	}
}

func TestMapStore_DeleteAbsentKeepsTombstone(t *testing.T) {
	m := NewMapStore()
	m.Delete("m", "k", Stamp{Counter: 3, Session: "a"})
	if m.Merge("m", "k", Record{Value: raw(t, 1), Stamp: Stamp{Counter: 2, Session: "b"}}) {
		t.Error("older set resurrected a key deleted before it arrived")
	}
	rec, ok := m.Record("m", "k")
	if !ok || !rec.Deleted {
		t.Errorf("Record = %+v, %v, want tombstone", rec, ok)
	}
	if m.Len("m") != 0 {
		t.Errorf("Len = %d", m.Len("m"))
	}
}

func TestBucket_CloneIsIndependent(t *testing.T) {
	b := NewBucket()
	b.State.Put("a", raw(t, 0), Stamp{Counter: 1, Session: "a"})
	b.Maps.Delete("votes", "u1", Stamp{Counter: 2, Session: "a"})

	c := b.Clone()
	b.State.Put("a", raw(t, 1), Stamp{Counter: 3, Session: "a"})
	b.Maps.Put("votes", "u2", raw(t, "no"), Stamp{Counter: 4, Session: "a"})

	if v, _ := c.State.Get("a"); string(v) != "0" {
		t.Errorf("clone state = %s, want 0", v)
	}
	if c.Maps.Len("votes") != 0 {
		t.Errorf("clone saw a later entry: %v", c.Maps.Keys("votes"))
	}
	if rec, ok := c.Maps.Record("votes", "u1"); !ok || !rec.Deleted {
		t.Errorf("clone lost the tombstone: %+v, %v", rec, ok)
	}
}

func TestDocument_SnapshotAndMaxStamp(t *testing.T) {
	d := NewDocument("doc")
	d.Bucket("w1").State.Put("count", raw(t, 3), Stamp{Counter: 4, Session: "a"})
	d.Bucket("w2").Maps.Put("votes", "u1", raw(t, "yes"), Stamp{Counter: 9, Session: "b"})
	d.Bucket("empty")

	snap := d.Snapshot()
	if len(snap.Instances) != 2 {
		t.Errorf("Instances = %d, want 2", len(snap.Instances))
	}
	if got := snap.MaxStamp(); got != (Stamp{Counter: 9, Session: "b"}) {
		t.Errorf("MaxStamp = %s", got)
	}

	restored := NewDocument("doc")
	if n := restored.Restore(snap); n != 2 {
		t.Errorf("Restore changed %d records, want 2", n)
	}
	if v, ok := restored.Bucket("w2").Maps.Get("votes", "u1"); !ok || string(v) != `"yes"` {
		t.Errorf("restored entry = %s, %v", v, ok)
	}
	if ids := restored.Instances(); len(ids) != 2 || ids[0] != "w1" {
		t.Errorf("Instances = %v", ids)
	}
}

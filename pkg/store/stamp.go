// Package store holds the synced state of widget instances: scalar slots in
// a StateStore and named key/value maps in a MapStore. Every stored value
// carries a write stamp, and remote writes are merged with a last-writer-wins
// rule over stamps.
package store

import (
	"cmp"
	"fmt"
	"sync"
)

// Stamp orders writes across sessions. Stamps compare by Counter first and
// then by Session, which makes the order total.
type Stamp struct {
	Counter uint64 `json:"counter"`
	Session string `json:"session"`
}

// Compare returns -1, 0 or +1 depending on whether s sorts before, equal to
// or after o.
func (s Stamp) Compare(o Stamp) int {
	if c := cmp.Compare(s.Counter, o.Counter); c != 0 {
		return c
	}
	return cmp.Compare(s.Session, o.Session)
}

// After reports whether s strictly dominates o.
func (s Stamp) After(o Stamp) bool {
	return s.Compare(o) > 0
}

// IsZero reports whether s is the zero stamp.
func (s Stamp) IsZero() bool {
	return s.Counter == 0 && s.Session == ""
}

func (s Stamp) String() string {
	return fmt.Sprintf("%d@%s", s.Counter, s.Session)
}

// Clock is a Lamport clock owned by one session.
type Clock struct {
	mu      sync.Mutex
	session string
	counter uint64
}

// NewClock creates a clock for the given session id.
func NewClock(session string) *Clock {
	return &Clock{session: session}
}

// Session returns the owning session id.
func (c *Clock) Session() string {
	return c.session
}

// Next advances the clock and returns a stamp that dominates every stamp
// issued or observed so far.
func (c *Clock) Next() Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return Stamp{Counter: c.counter, Session: c.session}
}

// Observe advances the clock past a stamp seen on a remote write.
func (c *Clock) Observe(s Stamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Counter > c.counter {
		c.counter = s.Counter
	}
}

// Now returns the last issued or observed counter value as a stamp.
func (c *Clock) Now() Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stamp{Counter: c.counter, Session: c.session}
}

package replication

import (
	"context"
	"slices"
	"sync"
)

// Channel is the transport between the sessions of one document.
type Channel interface {
	// Publish broadcasts local writes to every other session. A returned
	// error means the writes may not have been delivered and should be
	// published again.
	Publish(ctx context.Context, writes []Write) error
	// Subscribe registers a receiver for remote writes. The returned
	// function cancels the subscription.
	Subscribe(fn func(Write)) (cancel func())
}

// Outbox queues local writes until they are published. It preserves the
// issue order of a session's writes.
type Outbox struct {
	mu     sync.Mutex
	writes []Write
}

// Add appends writes to the queue.
func (o *Outbox) Add(writes ...Write) {
	o.mu.Lock()
	o.writes = append(o.writes, writes...)
	o.mu.Unlock()
}

// Len returns the number of queued writes.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.writes)
}

// Pending returns a copy of the queued writes.
func (o *Outbox) Pending() []Write {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.writes)
}

// Flush publishes every queued write. On failure the writes stay queued for
// the next flush; writes added during the publish are kept either way.
func (o *Outbox) Flush(ctx context.Context, ch Channel) error {
	o.mu.Lock()
	batch := slices.Clone(o.writes)
	o.mu.Unlock()
	if len(batch) == 0 || ch == nil {
		return nil
	}
	if err := ch.Publish(ctx, batch); err != nil {
		return err
	}
	o.mu.Lock()
	o.writes = slices.Delete(o.writes, 0, len(batch))
	o.mu.Unlock()
	return nil
}

// Discard drops every queued write and returns how many were dropped.
func (o *Outbox) Discard() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.writes)
	o.writes = nil
	return n
}

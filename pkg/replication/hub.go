package replication

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/go-drift/widgetkit/pkg/errors"
)

// ErrClosed is returned when publishing through a closed endpoint.
var ErrClosed = errors.New("replication: endpoint closed")

// Hub is an in-memory bus connecting the sessions of one document. Every
// published envelope passes through the codec, so receivers observe values
// exactly as they would arrive over a network.
//
// In immediate mode Publish delivers synchronously. In manual mode each
// endpoint queues incoming envelopes until Deliver is called, which lets
// tests reorder, duplicate and delay traffic.
type Hub struct {
	mu        sync.Mutex
	manual    bool
	codec     Codec
	endpoints []*Endpoint
	published atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithManualDelivery queues envelopes until the receiving endpoint is
// told to deliver them.
func WithManualDelivery() HubOption {
	return func(h *Hub) {
		h.manual = true
	}
}

// WithCodec sets the wire codec.
func WithCodec(c Codec) HubOption {
	return func(h *Hub) {
		h.codec = c
	}
}

// NewHub creates a hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{codec: DefaultCodec}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect attaches a session to the hub.
func (h *Hub) Connect(session string) *Endpoint {
	e := &Endpoint{hub: h, session: session}
	h.mu.Lock()
	h.endpoints = append(h.endpoints, e)
	h.mu.Unlock()
	return e
}

// Published returns the number of envelopes published through the hub.
func (h *Hub) Published() int64 {
	return h.published.Load()
}

func (h *Hub) peers(from *Endpoint) []*Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := make([]*Endpoint, 0, len(h.endpoints))
	for _, e := range h.endpoints {
		if e != from {
			peers = append(peers, e)
		}
	}
	return peers
}

func (h *Hub) remove(e *Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i := slices.Index(h.endpoints, e); i >= 0 {
		h.endpoints = slices.Delete(h.endpoints, i, i+1)
	}
}

type subscription struct {
	fn       func(Write)
	canceled atomic.Bool
}

// Endpoint is one session's connection to a Hub. It implements Channel.
type Endpoint struct {
	hub     *Hub
	session string

	mu     sync.Mutex
	subs   []*subscription
	queue  [][]byte
	fail   error
	closed bool
}

var _ Channel = (*Endpoint)(nil)

// Session returns the session id of the endpoint.
func (e *Endpoint) Session() string {
	return e.session
}

// Publish encodes writes and sends them to every other endpoint.
func (e *Endpoint) Publish(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	closed, fail := e.closed, e.fail
	e.fail = nil
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if fail != nil {
		return fail
	}
	if len(writes) == 0 {
		return nil
	}

	data, err := e.hub.codec.Encode(Envelope{Origin: e.session, Writes: writes})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	e.hub.published.Add(1)
	for _, peer := range e.hub.peers(e) {
		if e.hub.manual {
			peer.enqueue(data)
			continue
		}
		if err := peer.receive(data); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers fn for writes published by other endpoints.
func (e *Endpoint) Subscribe(fn func(Write)) (cancel func()) {
	sub := &subscription{fn: fn}
	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()
	return func() {
		if !sub.canceled.CompareAndSwap(false, true) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if i := slices.Index(e.subs, sub); i >= 0 {
			e.subs = slices.Delete(e.subs, i, i+1)
		}
	}
}

// FailNext makes the next Publish return err without sending anything.
func (e *Endpoint) FailNext(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

// Close disconnects the endpoint from the hub and drops queued envelopes.
func (e *Endpoint) Close() {
	e.hub.remove(e)
	e.mu.Lock()
	e.closed = true
	e.queue = nil
	e.subs = nil
	e.mu.Unlock()
}

func (e *Endpoint) enqueue(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.queue = append(e.queue, data)
	}
}

func (e *Endpoint) receive(data []byte) error {
	env, err := e.hub.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("decode envelope for %s: %w", e.session, err)
	}
	e.mu.Lock()
	subs := slices.Clone(e.subs)
	e.mu.Unlock()
	for _, w := range env.Writes {
		for _, sub := range subs {
			if !sub.canceled.Load() {
				sub.fn(w)
			}
		}
	}
	return nil
}

// Pending returns the number of queued envelopes.
func (e *Endpoint) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Deliver hands up to n queued envelopes to subscribers, oldest first, and
// returns how many were delivered.
func (e *Endpoint) Deliver(n int) (int, error) {
	delivered := 0
	for delivered < n {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			break
		}
		data := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		if err := e.receive(data); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// DeliverAll delivers every queued envelope, including envelopes queued by
// the subscribers while delivering.
func (e *Endpoint) DeliverAll() (int, error) {
	total := 0
	for e.Pending() > 0 {
		n, err := e.Deliver(e.Pending())
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Duplicate queues a second copy of every pending envelope.
func (e *Endpoint) Duplicate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, e.queue...)
}

// Reverse reverses the order of the pending envelopes.
func (e *Endpoint) Reverse() {
	e.mu.Lock()
	defer e.mu.Unlock()
	slices.Reverse(e.queue)
}

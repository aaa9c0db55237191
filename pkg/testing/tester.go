package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-drift/widgetkit/pkg/core"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/replication"
	"github.com/go-drift/widgetkit/pkg/store"
)

const (
	// DefaultDocument is the document opened by a tester.
	DefaultDocument = "test-document"
	// DefaultInstance is the instance id of the pumped widget.
	DefaultInstance = "widget"
)

// ErrSettleTimeout is returned when PumpAndSettle exceeds its timeout.
var ErrSettleTimeout = errors.New("PumpAndSettle timed out: widget did not settle")

// Option configures a WidgetTester.
type Option func(*core.Options)

// WithChannel connects the tester's session to other sessions.
func WithChannel(ch replication.Channel) Option {
	return func(o *core.Options) { o.Channel = ch }
}

// WithSessionID fixes the session id used in write stamps.
func WithSessionID(id string) Option {
	return func(o *core.Options) { o.SessionID = id }
}

// WithDocument opens a document other than DefaultDocument.
func WithDocument(id string) Option {
	return func(o *core.Options) { o.Document = id }
}

// WithSnapshot hydrates the session before the first render.
func WithSnapshot(snap store.DocumentSnapshot) Option {
	return func(o *core.Options) { o.Snapshot = &snap }
}

// WithMaxPasses bounds the render rounds of one Pump.
func WithMaxPasses(n int) Option {
	return func(o *core.Options) { o.MaxPasses = n }
}

// WidgetTester drives one widget instance in its own session. It runs the
// same render, reconcile and replication path as a host, synchronously.
type WidgetTester struct {
	session    *core.Session
	inst       *core.Instance
	dispatches []func()
}

// NewWidgetTester opens a session for component. Call Cleanup when done,
// or use NewWidgetTesterWithT instead.
func NewWidgetTester(component core.Component, opts ...Option) (*WidgetTester, error) {
	o := core.Options{Document: DefaultDocument, Component: component}
	for _, opt := range opts {
		opt(&o)
	}
	s, err := core.NewSession(o)
	if err != nil {
		return nil, err
	}
	return &WidgetTester{session: s}, nil
}

// NewWidgetTesterWithT creates a tester that is closed via t.Cleanup().
// This is the recommended constructor for tests.
func NewWidgetTesterWithT(t testing.TB, component core.Component, opts ...Option) *WidgetTester {
	t.Helper()
	tester, err := NewWidgetTester(component, opts...)
	if err != nil {
		t.Fatalf("NewWidgetTester: %v", err)
	}
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup closes the session and unmounts the widget.
func (t *WidgetTester) Cleanup() {
	t.session.Close()
	t.inst = nil
}

// PumpWidget mounts (or remounts) the widget with props and renders it.
func (t *WidgetTester) PumpWidget(props node.Props) error {
	if t.inst != nil {
		if err := t.session.Unmount(t.inst.ID()); err != nil {
			return err
		}
		t.inst = nil
	}
	inst, err := t.session.Mount(DefaultInstance, props)
	if err != nil {
		return err
	}
	t.inst = inst
	return t.Pump()
}

// Pump runs queued dispatches, then renders every scheduled instance and
// publishes pending writes.
func (t *WidgetTester) Pump() error {
	dispatches := t.dispatches
	t.dispatches = nil
	for _, fn := range dispatches {
		fn()
	}
	return t.session.Flush(context.Background())
}

// PumpAndSettle pumps until no render is scheduled, no write is pending
// and no task started with WaitForTask is running. Tasks run on their own
// goroutines, so settling waits in real time.
func (t *WidgetTester) PumpAndSettle(timeout time.Duration) error {
	const interval = time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		if err := t.Pump(); err != nil {
			return err
		}
		if !t.needsWork() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrSettleTimeout
		}
		time.Sleep(interval)
	}
}

// needsWork checks tasks before the scheduler: a finishing task schedules
// its render pass before it stops counting as pending.
func (t *WidgetTester) needsWork() bool {
	if t.inst != nil && t.inst.PendingTasks() > 0 {
		return true
	}
	return t.session.Scheduler().NeedsWork() || t.session.Pending() > 0 || len(t.dispatches) > 0
}

// Dispatch queues a callback for the next Pump.
func (t *WidgetTester) Dispatch(fn func()) {
	t.dispatches = append(t.dispatches, fn)
}

// Session returns the tester's session.
func (t *WidgetTester) Session() *core.Session {
	return t.session
}

// Instance returns the mounted instance, or nil before PumpWidget.
func (t *WidgetTester) Instance() *core.Instance {
	return t.inst
}

// Tree returns the committed tree of the mounted instance.
func (t *WidgetTester) Tree() *node.Node {
	if t.inst == nil {
		return nil
	}
	return t.inst.Tree()
}

// Find evaluates a finder against the committed tree.
func (t *WidgetTester) Find(finder Finder) FinderResult {
	root := t.Tree()
	if root == nil {
		return FinderResult{finder: finder}
	}
	return FinderResult{
		matches: finder.Evaluate(root),
		finder:  finder,
	}
}

package core

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/reconcile"
	"github.com/go-drift/widgetkit/pkg/replication"
	"github.com/go-drift/widgetkit/pkg/scene"
	"github.com/go-drift/widgetkit/pkg/store"
)

const (
	// DefaultMaxPasses bounds the render rounds of one Flush.
	DefaultMaxPasses = 32
	// DefaultConcurrency bounds the instances rendered in parallel.
	DefaultConcurrency = 4
)

// Options configures a Session.
type Options struct {
	// Document identifies the open document. Writes for other documents
	// are ignored.
	Document string
	// SessionID identifies this session in write stamps. Defaults to a
	// random UUID.
	SessionID string
	// Component is the widget render function. Defaults to the component
	// of Registry.
	Component Component
	// Registry supplies the component when Component is nil. Defaults to
	// the process registry used by Register.
	Registry *Registry
	// Channel replicates writes to other sessions. Nil keeps the session
	// local.
	Channel replication.Channel
	// Snapshot hydrates the document before the first render pass.
	Snapshot *store.DocumentSnapshot
	// NewSink creates the scene sink of a mounted instance. Defaults to a
	// new scene.Graph per instance.
	NewSink func(instanceID string) reconcile.Sink
	// MaxPasses bounds the render rounds of one Flush.
	MaxPasses int
	// Concurrency bounds the instances rendered in parallel.
	Concurrency int
}

// Session is one open document in one client. It owns the instances placed
// in the document, their synced state and the replication link.
type Session struct {
	id        string
	component Component
	doc       *store.Document
	clock     *store.Clock
	channel   replication.Channel
	outbox    replication.Outbox
	scheduler *Scheduler
	newSink   func(string) reconcile.Sink
	maxPasses int
	limit     int

	unsubscribe func()
	wake        chan struct{}

	mu        sync.RWMutex
	instances map[string]*Instance
	destroyed map[string]bool
	mounted   int
	closed    bool
}

// NewSession opens a session.
func NewSession(opts Options) (*Session, error) {
	component := opts.Component
	if component == nil {
		registry := opts.Registry
		if registry == nil {
			registry = defaultRegistry
		}
		var err error
		if component, err = registry.Component(); err != nil {
			return nil, err
		}
	}
	s := &Session{
		id:        opts.SessionID,
		component: component,
		channel:   opts.Channel,
		scheduler: NewScheduler(),
		newSink:   opts.NewSink,
		maxPasses: opts.MaxPasses,
		limit:     opts.Concurrency,
		wake:      make(chan struct{}, 1),
		instances: make(map[string]*Instance),
		destroyed: make(map[string]bool),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.maxPasses <= 0 {
		s.maxPasses = DefaultMaxPasses
	}
	if s.limit <= 0 {
		s.limit = DefaultConcurrency
	}
	if s.newSink == nil {
		s.newSink = func(string) reconcile.Sink { return scene.NewGraph() }
	}
	s.clock = store.NewClock(s.id)
	s.doc = store.NewDocument(opts.Document)
	if opts.Snapshot != nil {
		if opts.Snapshot.Document != "" && opts.Document != "" && opts.Snapshot.Document != opts.Document {
			return nil, errors.Config("core.NewSession", fmt.Errorf("snapshot is for document %q, session opens %q", opts.Snapshot.Document, opts.Document))
		}
		s.doc.Restore(*opts.Snapshot)
		s.clock.Observe(opts.Snapshot.MaxStamp())
	}
	s.scheduler.OnNeedsWork = s.signal
	if s.channel != nil {
		s.unsubscribe = s.channel.Subscribe(s.receive)
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Document returns the id of the open document.
func (s *Session) Document() string {
	return s.doc.ID()
}

// Scheduler returns the session's render scheduler.
func (s *Session) Scheduler() *Scheduler {
	return s.scheduler
}

// Mount places a new instance in the document and schedules its first
// render pass. An empty id is replaced with a random UUID. Stored state of
// the id, from the snapshot or from writes received before mounting, is
// visible to the first pass.
func (s *Session) Mount(id string, props node.Props) (*Instance, error) {
	if id == "" {
		id = uuid.NewString()
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.Config("core.Session.Mount", errors.New("session closed"))
	}
	if _, ok := s.instances[id]; ok {
		s.mu.Unlock()
		return nil, errors.Config("core.Session.Mount", fmt.Errorf("instance %q already mounted", id))
	}
	delete(s.destroyed, id)
	s.mounted++
	inst := &Instance{
		id:         id,
		order:      s.mounted,
		session:    s,
		component:  s.component,
		bucket:     s.doc.Bucket(id),
		props:      props.Clone(),
		reconciler: reconcile.New(s.newSink(id)),
	}
	s.instances[id] = inst
	s.mu.Unlock()

	inst.MarkNeedsRender()
	return inst, nil
}

// Unmount removes an instance from the document. Its effects are cleaned
// up, its state is dropped and later writes addressed to it are ignored.
func (s *Session) Unmount(id string) error {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", errors.ErrUnknownInstance, id)
	}
	delete(s.instances, id)
	s.destroyed[id] = true
	s.mu.Unlock()

	inst.destroy()
	s.doc.Drop(id)
	return nil
}

// Instance returns a mounted instance.
func (s *Session) Instance(id string) (*Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	return inst, ok
}

// Instances returns the mounted instances in mount order.
func (s *Session) Instances() []*Instance {
	s.mu.RLock()
	out := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Instance) int { return a.order - b.order })
	return out
}

// Snapshot returns the synced state of the whole document for persisting.
func (s *Session) Snapshot() store.DocumentSnapshot {
	return s.doc.Snapshot()
}

// Pending returns the number of local writes not yet published.
func (s *Session) Pending() int {
	return s.outbox.Len()
}

// Flush renders every scheduled instance until no instance is scheduled,
// then publishes queued writes. Effects that write state cause further
// rounds within the same Flush, up to MaxPasses rounds.
func (s *Session) Flush(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if round >= s.maxPasses {
			if s.scheduler.NeedsWork() {
				err := errors.Config("core.Session.Flush", fmt.Errorf("%w: still scheduled after %d rounds", errors.ErrTooManyPasses, s.maxPasses))
				errors.Report(err)
				errs = append(errs, err)
			}
			break
		}
		dirty := s.scheduler.take()
		if len(dirty) == 0 {
			break
		}
		var g errgroup.Group
		g.SetLimit(s.limit)
		for _, inst := range dirty {
			g.Go(func() error {
				if err := inst.render(); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := s.publish(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) publish(ctx context.Context) error {
	if s.channel == nil {
		s.outbox.Discard()
		return nil
	}
	if err := s.outbox.Flush(ctx, s.channel); err != nil {
		werr := &errors.WidgetError{Op: "core.Session.publish", Kind: errors.KindReplication, Err: err}
		errors.Report(werr)
		return werr
	}
	return nil
}

// Run flushes whenever work is scheduled or writes are queued, until ctx
// is done. Errors are reported through the error handler.
func (s *Session) Run(ctx context.Context) error {
	s.signal()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
			_ = s.Flush(ctx)
		}
	}
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) enqueue(w replication.Write) {
	s.outbox.Add(w)
	s.signal()
}

// receive handles a remote write delivered by the channel.
func (s *Session) receive(w replication.Write) {
	if w.Document != s.doc.ID() || w.Origin == s.id {
		return
	}
	s.clock.Observe(w.Record.Stamp)

	s.mu.RLock()
	inst, mounted := s.instances[w.Instance]
	dropped := s.destroyed[w.Instance] || s.closed
	s.mu.RUnlock()

	switch {
	case mounted:
		inst.merge(w)
	case dropped:
	default:
		w.ApplyTo(s.doc.Bucket(w.Instance))
	}
}

// Close unmounts every instance and detaches from the channel.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	instances := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		instances = append(instances, inst)
	}
	s.instances = make(map[string]*Instance)
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	for _, inst := range instances {
		inst.destroy()
	}
	return nil
}

package core

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/menu"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/reconcile"
	"github.com/go-drift/widgetkit/pkg/replication"
	"github.com/go-drift/widgetkit/pkg/store"
)

// Instance is one placed occurrence of the widget in a document.
//
// Render passes, event handlers and effects of an instance run serially
// under its lock. Setters and synced map mutations may be called from any
// goroutine; they update the store atomically and schedule a render pass.
// Code running on another goroutine that needs to observe a consistent
// instance uses Dispatch.
type Instance struct {
	id        string
	order     int
	session   *Session
	component Component
	bucket    *store.Bucket

	mu         sync.Mutex
	props      node.Props
	reconciler *reconcile.Reconciler
	hooks      []hookCall
	cleanups   []func()
	passes     int

	// writeMu serializes read-modify-write cycles on the bucket.
	writeMu    sync.Mutex
	defaultsMu sync.Mutex
	defaults   map[string]json.RawMessage

	tree      atomic.Pointer[node.Node]
	menu      atomic.Pointer[menu.Descriptor]
	lastErr   atomic.Pointer[errorBox]
	tasks     atomic.Int64
	destroyed atomic.Bool
}

type errorBox struct{ err error }

// ID returns the stable instance id.
func (i *Instance) ID() string {
	return i.id
}

// Tree returns the most recently committed tree.
func (i *Instance) Tree() *node.Node {
	return i.tree.Load()
}

// Sink returns the scene sink the instance commits to.
func (i *Instance) Sink() reconcile.Sink {
	return i.reconciler.Sink()
}

// Menu returns the property menu registered by the last committed pass.
func (i *Instance) Menu() *menu.Descriptor {
	return i.menu.Load()
}

// Busy reports whether the instance has pending tasks. It is advisory: the
// host may use it to defer removing the instance.
func (i *Instance) Busy() bool {
	return i.tasks.Load() > 0
}

// PendingTasks returns the number of outstanding tasks.
func (i *Instance) PendingTasks() int {
	return int(i.tasks.Load())
}

// LastError returns the error of the most recent render pass, or nil if it
// committed.
func (i *Instance) LastError() error {
	if box := i.lastErr.Load(); box != nil {
		return box.err
	}
	return nil
}

// Destroyed reports whether the instance was unmounted.
func (i *Instance) Destroyed() bool {
	return i.destroyed.Load()
}

// Passes returns the number of render passes attempted.
func (i *Instance) Passes() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.passes
}

// Props returns the host-supplied props.
func (i *Instance) Props() node.Props {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.props.Clone()
}

// SetProps replaces the host-supplied props and schedules a render pass.
func (i *Instance) SetProps(props node.Props) {
	if !i.Dispatch(func() { i.props = props.Clone() }) {
		return
	}
	i.MarkNeedsRender()
}

// Bucket returns the synced state of the instance.
func (i *Instance) Bucket() *store.Bucket {
	return i.bucket
}

// Dispatch runs fn on the instance, serialized with render passes and
// event handlers. It returns false if the instance was destroyed.
// Dispatch must not be called from a render pass, handler or effect of the
// same instance.
func (i *Instance) Dispatch(fn func()) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed.Load() {
		return false
	}
	fn()
	return true
}

// MarkNeedsRender schedules a render pass.
func (i *Instance) MarkNeedsRender() {
	if i.destroyed.Load() {
		return
	}
	i.session.scheduler.Schedule(i)
}

// render runs one render pass: evaluate, validate hooks, commit, then run
// effects. A failed pass commits nothing.
func (i *Instance) render() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed.Load() {
		return nil
	}
	i.passes++

	// Writes landing during the pass schedule another one; this pass sees
	// the state as of its start.
	i.writeMu.Lock()
	view := i.bucket.Clone()
	i.writeMu.Unlock()

	ctx := &Context{inst: i, props: i.props, view: view}
	ctx.active.Store(true)
	tree, err := i.evaluate(ctx)
	ctx.active.Store(false)
	if err == nil {
		err = i.checkHooks(ctx.calls)
	}
	if err == nil {
		if _, cerr := i.reconciler.Commit(tree); cerr != nil {
			err = cerr
		}
	}
	if err != nil {
		rerr := i.renderError(err)
		i.lastErr.Store(&errorBox{rerr})
		errors.ReportRenderError(rerr)
		return rerr
	}

	i.lastErr.Store(nil)
	i.hooks = ctx.calls
	i.tree.Store(tree)
	i.menu.Store(ctx.menu)
	i.runEffects(ctx.effects)
	return nil
}

func (i *Instance) evaluate(ctx *Context) (tree *node.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if werr, ok := r.(*errors.WidgetError); ok {
				err = werr
				return
			}
			err = &errors.RenderError{
				Instance:   i.id,
				Component:  componentName(i.component),
				Recovered:  r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
		}
	}()
	return i.component(ctx), nil
}

func (i *Instance) renderError(err error) *errors.RenderError {
	var rerr *errors.RenderError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &errors.RenderError{
		Instance:  i.id,
		Component: componentName(i.component),
		Err:       err,
		Timestamp: time.Now(),
	}
}

// checkHooks compares the named hooks of a pass with the last committed
// pass. Names are the correlation key, so the sequence must not change.
func (i *Instance) checkHooks(calls []hookCall) error {
	if i.reconciler.Commits() == 0 {
		return nil
	}
	if len(calls) != len(i.hooks) {
		return errors.Config("core.render", fmt.Errorf("%w: %d named hooks, previous pass had %d",
			errors.ErrHookOrder, len(calls), len(i.hooks)))
	}
	for k, call := range calls {
		if call != i.hooks[k] {
			return errors.Config("core.render", fmt.Errorf("%w: hook %d is %s, previous pass had %s",
				errors.ErrHookOrder, k, call, i.hooks[k]))
		}
	}
	return nil
}

// runEffects runs, by position, the previous cleanup and then the new
// setup. Positions the new pass no longer registers get their cleanup only.
func (i *Instance) runEffects(setups []func() func()) {
	next := make([]func(), len(setups))
	for k, setup := range setups {
		if k < len(i.cleanups) {
			i.safeCall("core.effect.cleanup", i.cleanups[k])
		}
		next[k] = i.safeSetup(setup)
	}
	for k := len(setups); k < len(i.cleanups); k++ {
		i.safeCall("core.effect.cleanup", i.cleanups[k])
	}
	i.cleanups = next
}

func (i *Instance) safeCall(op string, fn func()) {
	if fn == nil {
		return
	}
	defer errors.Recover(op)
	fn()
}

func (i *Instance) safeSetup(setup func() func()) (cleanup func()) {
	defer errors.Recover("core.effect.setup")
	return setup()
}

// destroy unmounts the instance: effects are cleaned up, the scene is
// cleared and later writes are dropped.
func (i *Instance) destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed.Swap(true) {
		return
	}
	for k := len(i.cleanups) - 1; k >= 0; k-- {
		i.safeCall("core.effect.cleanup", i.cleanups[k])
	}
	i.cleanups = nil
	if err := i.reconciler.Reset(); err != nil {
		errors.Report(&errors.WidgetError{Op: "core.Instance.destroy", Kind: errors.KindRender, Instance: i.id, Err: err})
	}
	i.tree.Store(nil)
	i.menu.Store(nil)
}

// lazyDefault returns the cached encoded default of a slot, computing it
// with init the first time.
func (i *Instance) lazyDefault(name string, init func() (json.RawMessage, error)) (json.RawMessage, error) {
	i.defaultsMu.Lock()
	defer i.defaultsMu.Unlock()
	if raw, ok := i.defaults[name]; ok {
		return raw, nil
	}
	raw, err := init()
	if err != nil {
		return nil, err
	}
	if i.defaults == nil {
		i.defaults = make(map[string]json.RawMessage)
	}
	i.defaults[name] = raw
	return raw, nil
}

// writeSlot performs a local read-modify-write of a state slot.
func (i *Instance) writeSlot(op, name string, compute func(cur json.RawMessage, present bool) (any, error)) error {
	i.writeMu.Lock()
	if i.destroyed.Load() {
		i.writeMu.Unlock()
		return errors.ErrInstanceDestroyed
	}
	cur, present := i.bucket.State.Get(name)
	value, err := compute(cur, present)
	var raw json.RawMessage
	if err == nil {
		raw, err = store.Encode(value)
	}
	if err != nil {
		i.writeMu.Unlock()
		werr := &errors.WidgetError{Op: op, Kind: errors.KindConfig, Instance: i.id, Err: fmt.Errorf("slot %q: %w", name, err)}
		errors.Report(werr)
		return werr
	}
	rec := i.bucket.State.Put(name, raw, i.session.clock.Next())
	i.writeMu.Unlock()

	i.publish(replication.Write{Scope: replication.ScopeState, Key: name, Record: rec})
	return nil
}

// writeEntry performs a local set or delete of a synced map entry.
func (i *Instance) writeEntry(op, mapName, key string, value any, deleted bool) error {
	if key == "" {
		werr := errors.Config(op, fmt.Errorf("map %q: %w", mapName, errors.ErrEmptyKey))
		werr.Instance = i.id
		errors.Report(werr)
		return werr
	}
	var raw json.RawMessage
	if !deleted {
		var err error
		raw, err = store.Encode(value)
		if err != nil {
			werr := &errors.WidgetError{Op: op, Kind: errors.KindConfig, Instance: i.id, Err: fmt.Errorf("map %q key %q: %w", mapName, key, err)}
			errors.Report(werr)
			return werr
		}
	}

	i.writeMu.Lock()
	if i.destroyed.Load() {
		i.writeMu.Unlock()
		return errors.ErrInstanceDestroyed
	}
	var rec store.Record
	stamp := i.session.clock.Next()
	if deleted {
		rec = i.bucket.Maps.Delete(mapName, key, stamp)
	} else {
		rec = i.bucket.Maps.Put(mapName, key, raw, stamp)
	}
	i.writeMu.Unlock()

	i.publish(replication.Write{Scope: replication.ScopeMap, Map: mapName, Key: key, Record: rec})
	return nil
}

func (i *Instance) publish(w replication.Write) {
	w.Document = i.session.doc.ID()
	w.Instance = i.id
	w.Origin = i.session.id
	i.session.enqueue(w)
	i.MarkNeedsRender()
}

// merge applies a remote write. Writes arriving after destruction are
// dropped.
func (i *Instance) merge(w replication.Write) bool {
	i.writeMu.Lock()
	if i.destroyed.Load() {
		i.writeMu.Unlock()
		return false
	}
	changed := w.ApplyTo(i.bucket)
	i.writeMu.Unlock()
	if changed {
		i.MarkNeedsRender()
	}
	return changed
}

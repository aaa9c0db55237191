package core

import (
	"encoding/json"
	"fmt"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/menu"
	"github.com/go-drift/widgetkit/pkg/store"
)

// UseWidgetID returns the stable id of the instance being rendered.
func UseWidgetID(ctx *Context) string {
	ctx.enter("core.UseWidgetID")
	return ctx.inst.id
}

// UseSyncedState returns the value of a synced slot and its setter.
// def is returned while the slot is absent; it is not written.
//
//	count, setCount := core.UseSyncedState(ctx, "count", 0)
//	onClick := func() { setCount.Update(func(n int) int { return n + 1 }) }
func UseSyncedState[T any](ctx *Context, name string, def T) (T, Setter[T]) {
	ctx.use("core.UseSyncedState", hookState, name)
	setter := Setter[T]{inst: ctx.inst, name: name, fallback: func() (T, error) { return def, nil }}
	return readSlot(ctx, "core.UseSyncedState", setter)
}

// UseSyncedStateFunc is UseSyncedState with a lazily computed default.
// init runs at most once per instance while the slot is absent and never
// once the slot is present.
func UseSyncedStateFunc[T any](ctx *Context, name string, init func() T) (T, Setter[T]) {
	ctx.use("core.UseSyncedStateFunc", hookState, name)
	inst := ctx.inst
	fallback := func() (T, error) {
		raw, err := inst.lazyDefault(name, func() (json.RawMessage, error) {
			return store.Encode(init())
		})
		if err != nil {
			var zero T
			return zero, err
		}
		return store.Decode[T](raw)
	}
	setter := Setter[T]{inst: inst, name: name, fallback: fallback}
	return readSlot(ctx, "core.UseSyncedStateFunc", setter)
}

func readSlot[T any](ctx *Context, op string, setter Setter[T]) (T, Setter[T]) {
	var (
		value T
		err   error
	)
	if raw, ok := ctx.bucket().State.Get(setter.name); ok {
		value, err = store.Decode[T](raw)
	} else {
		value, err = setter.fallback()
	}
	if err != nil {
		panic(errors.Config(op, fmt.Errorf("slot %q: %w", setter.name, err)))
	}
	return value, setter
}

// Setter writes a synced slot. Writes apply to the local store at once,
// are queued for replication and schedule a render pass of the instance.
// A Setter may be used from any goroutine.
type Setter[T any] struct {
	inst     *Instance
	name     string
	fallback func() (T, error)
}

// Set stores v.
func (s Setter[T]) Set(v T) error {
	if s.inst == nil {
		return errors.ErrHookOutsideRender
	}
	return s.inst.writeSlot("core.Setter.Set", s.name, func(json.RawMessage, bool) (any, error) {
		return v, nil
	})
}

// Update stores fn applied to the current value, or to the default if the
// slot is absent.
func (s Setter[T]) Update(fn func(T) T) error {
	if s.inst == nil {
		return errors.ErrHookOutsideRender
	}
	return s.inst.writeSlot("core.Setter.Update", s.name, func(raw json.RawMessage, present bool) (any, error) {
		var (
			cur T
			err error
		)
		if present {
			cur, err = store.Decode[T](raw)
		} else {
			cur, err = s.fallback()
		}
		if err != nil {
			return nil, err
		}
		return fn(cur), nil
	})
}

// UseSyncedMap returns a live handle on a named synced map.
func UseSyncedMap[T any](ctx *Context, name string) *SyncedMap[T] {
	ctx.use("core.UseSyncedMap", hookMap, name)
	return &SyncedMap[T]{inst: ctx.inst, ctx: ctx, name: name}
}

// UseEffect registers an effect for this pass. After the pass commits, the
// cleanup returned by the previous pass's effect at the same position runs,
// then setup. setup may return nil.
func UseEffect(ctx *Context, setup func() func()) {
	ctx.enter("core.UseEffect")
	if setup == nil {
		setup = func() func() { return nil }
	}
	ctx.effects = append(ctx.effects, setup)
}

// UsePropertyMenu registers the property menu shown by the host. Items are
// validated; an invalid menu aborts the pass. onChange is invoked by the
// host through Instance.HandlePropertyChange.
func UsePropertyMenu(ctx *Context, items []menu.Item, onChange func(menu.PropertyEvent)) {
	ctx.enter("core.UsePropertyMenu")
	if ctx.menuSet {
		panic(errors.Config("core.UsePropertyMenu", fmt.Errorf("%w: usePropertyMenu called twice in one render", errors.ErrDuplicateHook)))
	}
	if err := menu.Validate(items); err != nil {
		panic(errors.Config("core.UsePropertyMenu", err))
	}
	ctx.menuSet = true
	ctx.menu = &menu.Descriptor{Items: items, OnChange: onChange}
}

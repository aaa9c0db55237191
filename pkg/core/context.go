package core

import (
	"fmt"
	"sync/atomic"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/menu"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/store"
)

type hookKind string

const (
	hookState hookKind = "useSyncedState"
	hookMap   hookKind = "useSyncedMap"
)

// hookCall records one named hook of a render pass.
type hookCall struct {
	kind hookKind
	name string
}

func (c hookCall) String() string {
	return fmt.Sprintf("%s(%q)", c.kind, c.name)
}

// Context is the render context passed to a Component. Hooks take it as
// their first argument and are only valid while the pass that created it
// is running. WaitForTask may be used at any time.
type Context struct {
	inst    *Instance
	props   node.Props
	view    *store.Bucket
	active  atomic.Bool
	calls   []hookCall
	effects []func() func()
	menu    *menu.Descriptor
	menuSet bool
}

// ID returns the instance id.
func (c *Context) ID() string {
	return c.inst.id
}

// Props returns the host-supplied props of the instance.
func (c *Context) Props() node.Props {
	return c.props
}

// bucket returns the state hooks read from: the copy taken when the pass
// started while it runs, the live store afterwards.
func (c *Context) bucket() *store.Bucket {
	if c.active.Load() {
		return c.view
	}
	return c.inst.bucket
}

// enter validates that a hook runs inside the render pass.
func (c *Context) enter(op string) {
	if c == nil || !c.active.Load() {
		panic(errors.Config(op, errors.ErrHookOutsideRender))
	}
}

// use records a named hook and rejects duplicates within the pass.
func (c *Context) use(op string, kind hookKind, name string) {
	c.enter(op)
	if name == "" {
		panic(errors.Config(op, fmt.Errorf("%w: %s requires a name", errors.ErrEmptyName, kind)))
	}
	call := hookCall{kind: kind, name: name}
	for _, prev := range c.calls {
		if prev == call {
			panic(errors.Config(op, fmt.Errorf("%w: %s called twice in one render", errors.ErrDuplicateHook, call)))
		}
	}
	c.calls = append(c.calls, call)
}

package core

import (
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/node"
)

// Component is a widget render function. It reads state through hooks on
// ctx and returns the virtual tree to display; nil renders nothing.
type Component func(ctx *Context) *node.Node

// Registry holds the root component of a widget process.
type Registry struct {
	mu        sync.Mutex
	component Component
}

// Register declares the root component. A registry accepts exactly one
// registration; later calls fail with ErrAlreadyRegistered.
func (r *Registry) Register(c Component) error {
	if c == nil {
		return errors.Config("core.Register", errors.New("component is nil"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.component != nil {
		return errors.Config("core.Register", errors.ErrAlreadyRegistered)
	}
	r.component = c
	return nil
}

// Component returns the registered component.
func (r *Registry) Component() (Component, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.component == nil {
		return nil, errors.Config("core.Registry.Component", errors.ErrNotRegistered)
	}
	return r.component, nil
}

var defaultRegistry = &Registry{}

// Register declares the root component of the process.
func Register(c Component) error {
	return defaultRegistry.Register(c)
}

// Registered returns the component passed to Register.
func Registered() (Component, error) {
	return defaultRegistry.Component()
}

func componentName(c Component) string {
	if c == nil {
		return "<nil>"
	}
	fn := runtime.FuncForPC(reflect.ValueOf(c).Pointer())
	if fn == nil {
		return "<component>"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

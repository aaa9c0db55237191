// Package errors provides structured error handling for the widget runtime.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindConfig indicates a programming defect in widget code: double
	// registration, a hook called outside a render pass, unserializable state.
	KindConfig
	// KindRender indicates a render pass that was aborted.
	KindRender
	// KindReplication indicates a transport failure while publishing writes.
	KindReplication
	// KindTask indicates a failed pending task.
	KindTask
	// KindEvent indicates a malformed or undeliverable host event.
	KindEvent
	// KindStorage indicates a persistence failure.
	KindStorage
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindRender:
		return "render"
	case KindReplication:
		return "replication"
	case KindTask:
		return "task"
	case KindEvent:
		return "event"
	case KindStorage:
		return "storage"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Sentinel errors wrapped by the runtime. Match them with errors.Is.
var (
	ErrAlreadyRegistered = errors.New("widget component already registered")
	ErrNotRegistered     = errors.New("no widget component registered")
	ErrHookOutsideRender = errors.New("hook called outside a render pass")
	ErrDuplicateHook     = errors.New("hook name used more than once in a render pass")
	ErrHookOrder         = errors.New("hook call order changed between renders")
	ErrUnserializable    = errors.New("value is not serializable")
	ErrUnknownNodeType   = errors.New("unknown node type")
	ErrInvalidChild      = errors.New("invalid child")
	ErrInvalidMenu       = errors.New("invalid property menu")
	ErrInstanceDestroyed = errors.New("widget instance destroyed")
	ErrUnknownInstance   = errors.New("unknown widget instance")
	ErrTooManyPasses     = errors.New("render passes did not settle")
	ErrNoHandler         = errors.New("no handler for event")
	ErrEmptyName         = errors.New("synced state or map name is empty")
	ErrEmptyKey          = errors.New("synced map key is empty")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join returns an error that wraps the given errors.
func Join(errs ...error) error { return errors.Join(errs...) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }

// WidgetError represents a structured error in the widget runtime.
type WidgetError struct {
	// Op is the operation that failed (e.g., "core.Session.Flush").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Instance is the widget instance id, if applicable.
	Instance string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *WidgetError) Error() string {
	if e.Instance != "" {
		return fmt.Sprintf("%s [%s] instance=%s: %v", e.Op, e.Kind, e.Instance, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *WidgetError) Unwrap() error {
	return e.Err
}

// Config builds a configuration error for op wrapping err.
func Config(op string, err error) *WidgetError {
	return &WidgetError{Op: op, Kind: KindConfig, Err: err, Timestamp: time.Now()}
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "core.Instance.HandleClick").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ParseError represents a host event payload that could not be decoded.
type ParseError struct {
	// Event is the host event name ("click", "textEditEnd", "propertyChange").
	Event string
	// DataType is the expected type name.
	DataType string
	// Got is the actual data received.
	Got any
	// Reason describes what was wrong, if known.
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("failed to parse %s for event %s: %s", e.DataType, e.Event, e.Reason)
	}
	return fmt.Sprintf("failed to parse %s for event %s: got %T", e.DataType, e.Event, e.Got)
}

// RenderError represents a render pass that failed before commit.
type RenderError struct {
	// Instance is the widget instance id.
	Instance string
	// Component is the type name of the component function.
	Component string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error rendering %s: %v", e.Instance, e.Err)
	}
	if e.Recovered != nil {
		return fmt.Sprintf("panic rendering %s: %v", e.Instance, e.Recovered)
	}
	return fmt.Sprintf("unknown error rendering %s", e.Instance)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives errors reported by the runtime.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *WidgetError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleRenderError is called when a render pass is aborted.
	HandleRenderError(err *RenderError)
}

package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

type handlerBox struct{ h ErrorHandler }

var current atomic.Pointer[handlerBox]

// SetHandler installs the process-wide error handler. Pass nil to restore
// a LogHandler writing to stderr.
func SetHandler(h ErrorHandler) {
	if h == nil {
		h = &LogHandler{}
	}
	current.Store(&handlerBox{h: h})
}

// Handler returns the installed error handler.
func Handler() ErrorHandler {
	if b := current.Load(); b != nil {
		return b.h
	}
	return defaultHandler
}

var defaultHandler ErrorHandler = &LogHandler{}

// Report hands a runtime error to the installed handler, stamping it with
// the current time when the caller left Timestamp unset.
func Report(err *WidgetError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleError(err)
}

// ReportEvent reports a dropped host event as a diagnostic.
func ReportEvent(op, instance string, err error) {
	Report(&WidgetError{Op: op, Kind: KindEvent, Instance: instance, Err: err})
}

// ReportPanic reports a recovered panic. Recover calls it for deferred
// recovery; code that recovers by hand calls it directly.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandlePanic(err)
}

// ReportRenderError reports a render pass that was discarded.
func ReportRenderError(err *RenderError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleRenderError(err)
}

// Recover must be deferred directly. A recovered panic is reported under op
// and swallowed.
//
//	defer errors.Recover("core.Instance.HandleClick")
func Recover(op string) {
	r := recover()
	if r == nil {
		return
	}
	ReportPanic(&PanicError{Op: op, Value: r, StackTrace: CaptureStack()})
}

// CaptureStack formats the caller's stack, one "function\n\tfile:line"
// entry per frame, without the frames of CaptureStack itself.
func CaptureStack() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			return sb.String()
		}
	}
}

package errors

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWidgetErrorString(t *testing.T) {
	err := &WidgetError{
		Op:   "core.Session.Flush",
		Kind: KindReplication,
		Err:  New("connection reset"),
	}
	got := err.Error()
	want := "core.Session.Flush [replication]: connection reset"
	if got != want {
		t.Errorf("WidgetError.Error() = %q, want %q", got, want)
	}
}

func TestWidgetErrorWithInstance(t *testing.T) {
	err := &WidgetError{
		Op:       "core.Instance.HandleClick",
		Kind:     KindEvent,
		Instance: "w-1",
		Err:      &ParseError{Event: "click", DataType: "ClickEvent", Got: nil},
	}
	if !strings.Contains(err.Error(), "instance=w-1") {
		t.Errorf("error string %q should contain instance", err.Error())
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindConfig, "config"},
		{KindRender, "render"},
		{KindReplication, "replication"},
		{KindTask, "task"},
		{KindEvent, "event"},
		{KindStorage, "storage"},
		{KindPanic, "panic"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestConfigWrapsSentinel(t *testing.T) {
	err := Config("core.Registry.Register", ErrAlreadyRegistered)
	if !Is(err, ErrAlreadyRegistered) {
		t.Error("expected Config error to unwrap to ErrAlreadyRegistered")
	}
	if err.Kind != KindConfig {
		t.Errorf("Kind = %v, want config", err.Kind)
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: "boom", Timestamp: time.Now()}
	if got, want := err.Error(), "panic: boom"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
	err.Op = "core.Instance.HandleClick"
	if got, want := err.Error(), "panic in core.Instance.HandleClick: boom"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestParseErrorString(t *testing.T) {
	err := &ParseError{Event: "click", DataType: "ClickEvent", Got: 123}
	if got, want := err.Error(), "failed to parse ClickEvent for event click: got int"; got != want {
		t.Errorf("ParseError.Error() = %q, want %q", got, want)
	}
	err.Reason = "missing canvasX"
	if !strings.Contains(err.Error(), "missing canvasX") {
		t.Errorf("ParseError.Error() = %q, should contain reason", err.Error())
	}
}

func TestRenderErrorString(t *testing.T) {
	err := &RenderError{Instance: "w-1", Recovered: "nil map"}
	if got, want := err.Error(), "panic rendering w-1: nil map"; got != want {
		t.Errorf("RenderError.Error() = %q, want %q", got, want)
	}

	err2 := &RenderError{Instance: "w-1", Err: ErrDuplicateHook}
	if !Is(err2, ErrDuplicateHook) {
		t.Error("RenderError should unwrap to its cause")
	}

	err3 := &RenderError{Instance: "w-1"}
	if got, want := err3.Error(), "unknown error rendering w-1"; got != want {
		t.Errorf("RenderError.Error() = %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	var captured *WidgetError
	handler := &testHandler{onError: func(err *WidgetError) { captured = err }}
	SetHandler(handler)
	defer SetHandler(nil)

	Report(&WidgetError{Op: "test.op", Kind: KindStorage, Err: New("disk full")})

	if captured == nil {
		t.Fatal("expected error to be captured")
	}
	if captured.Op != "test.op" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.op")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestReportEvent(t *testing.T) {
	var captured *WidgetError
	SetHandler(&testHandler{onError: func(err *WidgetError) { captured = err }})
	defer SetHandler(nil)

	ReportEvent("core.Instance.HandleClick", "w-9", &ParseError{Event: "click", DataType: "ClickEvent"})

	if captured == nil || captured.Kind != KindEvent || captured.Instance != "w-9" {
		t.Fatalf("unexpected captured error %+v", captured)
	}
}

func TestRecover(t *testing.T) {
	var captured *PanicError
	SetHandler(&testHandler{onPanic: func(err *PanicError) { captured = err }})
	defer SetHandler(nil)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	if captured == nil {
		t.Fatal("expected panic to be recovered and captured")
	}
	if captured.Value != "intentional test panic" {
		t.Errorf("Value = %v", captured.Value)
	}
	if captured.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.recover")
	}
}

func TestRecover_NoPanic(t *testing.T) {
	called := false
	SetHandler(&testHandler{onPanic: func(*PanicError) { called = true }})
	defer SetHandler(nil)

	func() {
		defer Recover("test.quiet")
	}()
	if called {
		t.Error("Recover reported without a panic")
	}
}

func TestReportRenderError(t *testing.T) {
	var captured *RenderError
	SetHandler(&testHandler{onRender: func(err *RenderError) { captured = err }})
	defer SetHandler(nil)

	ReportRenderError(&RenderError{Instance: "w-1", Recovered: "boom"})

	if captured == nil {
		t.Fatal("expected render error to be captured")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if stack == "" {
		t.Fatal("expected non-empty stack trace")
	}
	if !strings.Contains(stack, "testing") && !strings.Contains(stack, "runtime") {
		t.Errorf("stack trace should contain testing or runtime frames, got: %s", stack)
	}
}

func TestSetHandlerNil(t *testing.T) {
	SetHandler(nil)
	if _, ok := Handler().(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should set LogHandler, got %T", Handler())
	}
}

func TestLogHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	h := &LogHandler{Out: &buf, Verbose: true}

	h.HandleError(&WidgetError{Op: "persist.Save", Kind: KindStorage, Instance: "w-2", Err: New("locked")})
	h.HandlePanic(&PanicError{Op: "effect", Value: "x", StackTrace: "frame"})
	h.HandleRenderError(&RenderError{Instance: "w-2", Err: ErrHookOrder})

	out := buf.String()
	for _, want := range []string{
		"[widget error] persist.Save [storage] instance=w-2: locked",
		"[widget panic] effect: x",
		"Stack trace:\nframe",
		"[widget render error] error rendering w-2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

type testHandler struct {
	onError  func(*WidgetError)
	onPanic  func(*PanicError)
	onRender func(*RenderError)
}

func (h *testHandler) HandleError(err *WidgetError) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}

func (h *testHandler) HandleRenderError(err *RenderError) {
	if h.onRender != nil {
		h.onRender(err)
	}
}

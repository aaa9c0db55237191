package testing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-drift/widgetkit/pkg/node"
)

func capture(t *testing.T, tester *WidgetTester) *Snapshot {
	t.Helper()
	snap, err := tester.CaptureSnapshot()
	if err != nil {
		t.Fatalf("CaptureSnapshot: %v", err)
	}
	return snap
}

func TestCaptureSnapshot_Empty(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	snap := capture(t, tester)
	if snap.Tree != nil || snap.State != nil || snap.Menu != nil {
		t.Errorf("snapshot before PumpWidget = %+v", snap)
	}
}

func TestCaptureSnapshot_Structure(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)
	tester.Tap(ByKey("value"))
	tester.Pump()

	snap := capture(t, tester)
	root := snap.Tree
	if root == nil || root.ID != "autolayout#0" || len(root.Children) != 2 {
		t.Fatalf("root = %+v", root)
	}
	label := root.Children[0]
	if label.ID != "text#0" || label.Key != "value" {
		t.Errorf("label = %+v", label)
	}
	if len(label.Handlers) != 1 || label.Handlers[0] != "onClick" {
		t.Errorf("handlers = %v", label.Handlers)
	}
	if got := label.Children[2]; got.ID != "#text#2" || got.Text != "1" {
		t.Errorf("count leaf = %+v", got)
	}
	if string(snap.State["count"]) != "1" {
		t.Errorf("state = %s", snap.State["count"])
	}
	if !strings.Contains(string(snap.Menu), `"propertyName":"reset"`) {
		t.Errorf("menu = %s", snap.Menu)
	}
}

func TestCaptureSnapshot_MapsSkipTombstones(t *testing.T) {
	tester := NewWidgetTesterWithT(t, note)
	tester.PumpWidget(nil)
	tester.Tap(ByType(node.TypeFrame))
	tester.Pump()

	snap := capture(t, tester)
	if got := string(snap.Maps["tags"]["urgent"]); got != "true" {
		t.Errorf("tags = %v", snap.Maps)
	}
	if !tester.Find(ByText("#urgent")).Exists() {
		t.Errorf("tag not rendered: %q", tester.Tree().TextContent())
	}

	tester.Tap(ByType(node.TypeFrame))
	tester.Pump()
	if snap := capture(t, tester); snap.Maps != nil {
		t.Errorf("maps after delete = %v", snap.Maps)
	}
}

func TestSnapshot_Diff(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)
	a := capture(t, tester)
	b := capture(t, tester)
	if diff := a.Diff(b); diff != "" {
		t.Errorf("expected no diff for identical snapshots, got:\n%s", diff)
	}

	tester.PumpWidget(node.Props{"label": "Votes"})
	c := capture(t, tester)
	diff := a.Diff(c)
	if !strings.Contains(diff, `"text": "Count"`) || !strings.Contains(diff, `"text": "Votes"`) {
		t.Errorf("diff = %s", diff)
	}
}

func TestSnapshot_UpdateAndMatch(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)
	snap := capture(t, tester)

	path := filepath.Join(t.TempDir(), "testdata", "counter.snapshot.json")
	if err := snap.UpdateFile(path); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("snapshot file should exist after UpdateFile")
	}

	// MatchesFile should pass now
	snap.MatchesFile(t, path)
}

func TestSnapshot_MatchesFile_MissingFile(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)
	snap := capture(t, tester)

	failed := false
	sub := &fatalRecorder{name: t.Name(), onFatal: func() { failed = true }}
	snap.MatchesFile(sub, filepath.Join(t.TempDir(), "missing.json"))
	if !failed {
		t.Error("expected MatchesFile to fail for missing file")
	}
}

func TestSnapshot_MatchesFile_Mismatch(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)
	first := capture(t, tester)
	path := filepath.Join(t.TempDir(), "snap.json")
	if err := first.UpdateFile(path); err != nil {
		t.Fatal(err)
	}

	tester.Tap(ByKey("value"))
	tester.Pump()
	second := capture(t, tester)

	errored := false
	sub := &errorRecorder{name: t.Name(), onError: func() { errored = true }}
	second.MatchesFile(sub, path)
	if !errored {
		t.Error("expected MatchesFile to report error for mismatch")
	}
}

func TestSnapshot_UpdateMode(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)
	snap := capture(t, tester)
	path := filepath.Join(t.TempDir(), "update.snapshot.json")

	t.Setenv(UpdateSnapshotsEnv, "1")
	snap.MatchesFile(t, path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("snapshot file should be created in update mode")
	}
}

// fatalRecorder intercepts Fatalf calls for testing MatchesFile failures.
type fatalRecorder struct {
	name    string
	onFatal func()
}

func (r *fatalRecorder) Fatalf(format string, args ...any) { r.onFatal() }
func (r *fatalRecorder) Errorf(format string, args ...any) {}
func (r *fatalRecorder) Helper()                           {}
func (r *fatalRecorder) Name() string                      { return r.name }

// errorRecorder intercepts Errorf calls for testing MatchesFile mismatches.
type errorRecorder struct {
	name    string
	onError func()
}

func (r *errorRecorder) Fatalf(format string, args ...any) {}
func (r *errorRecorder) Errorf(format string, args ...any) { r.onError() }
func (r *errorRecorder) Helper()                           {}
func (r *errorRecorder) Name() string                      { return r.name }

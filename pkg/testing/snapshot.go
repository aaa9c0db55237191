package testing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-drift/widgetkit/pkg/node"
)

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// UpdateSnapshotsEnv names the environment variable that rewrites golden
// files instead of comparing against them.
const UpdateSnapshotsEnv = "WIDGETKIT_UPDATE_SNAPSHOTS"

// Snapshot captures the committed tree, the synced state and the property
// menu of a widget. Stamps are left out so that snapshots do not depend on
// session ids or write order.
type Snapshot struct {
	Tree  *SnapshotNode                         `json:"tree"`
	State map[string]json.RawMessage            `json:"state,omitempty"`
	Maps  map[string]map[string]json.RawMessage `json:"maps,omitempty"`
	Menu  json.RawMessage                       `json:"menu,omitempty"`
}

// SnapshotNode represents a node in the serialized tree.
type SnapshotNode struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Key      string          `json:"key,omitempty"`
	Text     string          `json:"text,omitempty"`
	Props    map[string]any  `json:"props,omitempty"`
	Handlers []string        `json:"handlers,omitempty"`
	Children []*SnapshotNode `json:"children,omitempty"`
}

// CaptureSnapshot captures the current state of the mounted widget.
func (t *WidgetTester) CaptureSnapshot() (*Snapshot, error) {
	snap := &Snapshot{}
	if t.inst == nil {
		return snap, nil
	}
	if tree := t.inst.Tree(); tree != nil {
		snap.Tree = captureNode(tree, &typeCounter{})
	}

	state := t.inst.Bucket().Snapshot()
	for name, rec := range state.State {
		if snap.State == nil {
			snap.State = make(map[string]json.RawMessage)
		}
		snap.State[name] = rec.Value
	}
	for name, entries := range state.Maps {
		live := make(map[string]json.RawMessage)
		for key, rec := range entries {
			if !rec.Deleted {
				live[key] = rec.Value
			}
		}
		if len(live) == 0 {
			continue
		}
		if snap.Maps == nil {
			snap.Maps = make(map[string]map[string]json.RawMessage)
		}
		snap.Maps[name] = live
	}

	if desc := t.inst.Menu(); desc != nil {
		data, err := json.Marshal(desc)
		if err != nil {
			return nil, fmt.Errorf("capture menu: %w", err)
		}
		snap.Menu = data
	}
	return snap, nil
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When
// WIDGETKIT_UPDATE_SNAPSHOTS=1 is set, the file is silently updated
// instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to the given path, creating directories
// as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a line diff between this snapshot and other. Returns
// empty string if equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, errA := marshalSnapshot(s)
	b, errB := marshalSnapshot(other)
	if errA != nil || errB != nil {
		return fmt.Sprintf("cannot compare snapshots: %v", errors.Join(errA, errB))
	}
	if bytes.Equal(a, b) {
		return ""
	}
	return unifiedDiff(string(b), string(a))
}

// --- Internal ---

// typeCounter assigns stable IDs like "text#0", "text#1".
type typeCounter struct {
	counts map[string]int
}

func (c *typeCounter) next(typeName string) string {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	n := c.counts[typeName]
	c.counts[typeName] = n + 1
	return fmt.Sprintf("%s#%d", typeName, n)
}

func captureNode(n *node.Node, counter *typeCounter) *SnapshotNode {
	out := &SnapshotNode{
		ID:   counter.next(string(n.Type)),
		Type: string(n.Type),
		Key:  n.Key,
		Text: n.Text,
	}
	if len(n.Props) > 0 {
		out.Props = make(map[string]any, len(n.Props))
		for name, v := range n.Props {
			out.Props[name] = snapshotValue(v)
		}
	}
	if len(n.Handlers) > 0 {
		out.Handlers = slices.Sorted(maps.Keys(n.Handlers))
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, captureNode(child, counter))
	}
	return out
}

// snapshotValue keeps JSON-representable props and replaces the rest with
// their Go type, so that a snapshot can always be written.
func snapshotValue(v any) any {
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%T", v)
	}
	return v
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	// Round trip through a generic value so that a loaded snapshot and a
	// captured one print identically.
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unifiedDiff produces a simple line-oriented diff.
func unifiedDiff(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var buf strings.Builder
	buf.WriteString("--- expected\n+++ actual\n")

	for i := range max(len(expectedLines), len(actualLines)) {
		var e, a string
		if i < len(expectedLines) {
			e = expectedLines[i]
		}
		if i < len(actualLines) {
			a = actualLines[i]
		}
		if e != a {
			if i < len(expectedLines) {
				fmt.Fprintf(&buf, "-%s\n", e)
			}
			if i < len(actualLines) {
				fmt.Fprintf(&buf, "+%s\n", a)
			}
		}
	}

	return buf.String()
}

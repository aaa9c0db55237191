package reconcile

import (
	"errors"
	"math"
	"testing"

	"github.com/go-drift/widgetkit/pkg/node"
)

func list(keys ...string) *node.Node {
	children := make([]any, len(keys))
	for i, k := range keys {
		children[i] = node.H(node.TypeText, node.Props{"key": k}, k)
	}
	return node.H(node.TypeAutoLayout, nil, children...)
}

func ops(patches []Patch) []Op {
	out := make([]Op, len(patches))
	for i, p := range patches {
		out[i] = p.Op
	}
	return out
}

func TestDiff_SameTreeIsEmpty(t *testing.T) {
	trees := []*node.Node{
		list("a", "b", "c"),
		node.H(node.TypeFrame, node.Props{"width": 100},
			node.H(node.TypeText, nil, "hi ", 3),
			node.H(node.TypeImage, node.Props{"src": "data:image/png;base64,AAAA"}),
		),
		node.H(node.TypeRectangle, nil),
	}
	for _, tree := range trees {
		if patches := Diff(tree, tree); len(patches) != 0 {
			t.Errorf("Diff(t, t) = %v, want empty", patches)
		}
	}
	if patches := Diff(nil, nil); len(patches) != 0 {
		t.Errorf("Diff(nil, nil) = %v, want empty", patches)
	}

	// Separately built equal trees, including values that need deep
	// comparison.
	build := func() *node.Node {
		return node.H(node.TypeFrame, node.Props{
			"width":  math.Inf(1),
			"style":  map[string]any{"dash": []float64{4, 2}},
			"fill":   node.SolidPaint{Color: "#fff", Opacity: 0.5},
			"onDrag": func() {},
		}, node.H(node.TypeText, nil, "x"))
	}
	if patches := Diff(build(), build()); len(patches) != 0 {
		t.Errorf("Diff of equal trees = %v, want empty", patches)
	}
}

func TestDiff_KeyedReorderOnlyMoves(t *testing.T) {
	patches := Diff(list("a", "b", "c"), list("c", "a", "b"))
	if len(patches) == 0 {
		t.Fatal("expected patches")
	}
	for _, p := range patches {
		if p.Op != OpMove {
			t.Errorf("unexpected %s in keyed reorder", p)
		}
	}
	if len(patches) != 1 || patches[0].From != 2 || patches[0].Index != 0 {
		t.Errorf("patches = %v, want single move 2->0", patches)
	}
}

func TestDiff_TextChange(t *testing.T) {
	old := node.H(node.TypeText, nil, "Votes: ", 1)
	new := node.H(node.TypeText, nil, "Votes: ", 2)
	patches := Diff(old, new)
	if len(patches) != 1 || patches[0].Op != OpText || patches[0].Text != "2" {
		t.Fatalf("patches = %v, want single text patch", patches)
	}
	if got := patches[0].Path; len(got) != 1 || got[0] != 1 {
		t.Errorf("path = %v, want [1]", got)
	}
}

func TestDiff_RootTypeChangeReplaces(t *testing.T) {
	patches := Diff(node.H(node.TypeFrame, nil), node.H(node.TypeAutoLayout, nil))
	if len(patches) != 1 || patches[0].Op != OpReplace || len(patches[0].Path) != 0 {
		t.Errorf("patches = %v, want root replace", patches)
	}
}

func TestDiff_KeyedTypeChangeReplaces(t *testing.T) {
	old := node.H(node.TypeFrame, nil, node.H(node.TypeRectangle, node.Props{"key": "x"}))
	new := node.H(node.TypeFrame, nil, node.H(node.TypeEllipse, node.Props{"key": "x"}))
	patches := Diff(old, new)
	if len(patches) != 1 || patches[0].Op != OpReplace || patches[0].Node.Type != node.TypeEllipse {
		t.Errorf("patches = %v, want replace with ellipse", patches)
	}
}

func TestDiff_UnkeyedTypeChangeRemovesAndInserts(t *testing.T) {
	old := node.H(node.TypeFrame, nil, node.H(node.TypeRectangle, nil))
	new := node.H(node.TypeFrame, nil, node.H(node.TypeEllipse, nil))
	got := ops(Diff(old, new))
	if len(got) != 2 || got[0] != OpRemove || got[1] != OpInsert {
		t.Errorf("ops = %v, want [remove insert]", got)
	}
}

func TestDiff_Props(t *testing.T) {
	old := node.H(node.TypeRectangle, node.Props{"width": 10, "fill": "#fff", "name": "a"})
	new := node.H(node.TypeRectangle, node.Props{"width": 20, "fill": "#fff"})
	patches := Diff(old, new)
	if len(patches) != 1 || patches[0].Op != OpProps {
		t.Fatalf("patches = %v, want single props patch", patches)
	}
	p := patches[0]
	if len(p.Props) != 1 || p.Props["width"] != 20 {
		t.Errorf("set = %v, want width=20", p.Props)
	}
	if len(p.Removed) != 1 || p.Removed[0] != "name" {
		t.Errorf("removed = %v, want [name]", p.Removed)
	}
}

func TestDiff_SourceSeparateFromProps(t *testing.T) {
	old := node.H(node.TypeSVG, node.Props{"src": "<svg/>", "width": 10})
	new := node.H(node.TypeSVG, node.Props{"src": "<svg></svg>", "width": 10})
	patches := Diff(old, new)
	if len(patches) != 1 || patches[0].Op != OpSource || patches[0].Source != "<svg></svg>" {
		t.Errorf("patches = %v, want single source patch", patches)
	}
}

func TestDiff_RemovalsDescendingThenInserts(t *testing.T) {
	patches := Diff(list("a", "b", "c", "d"), list("b", "e", "d"))
	want := []Patch{
		{Op: OpRemove, Index: 2},
		{Op: OpRemove, Index: 0},
		{Op: OpInsert, Index: 1},
	}
	if len(patches) != len(want) {
		t.Fatalf("patches = %v, want %d", patches, len(want))
	}
	for i, w := range want {
		if patches[i].Op != w.Op || patches[i].Index != w.Index {
			t.Errorf("patch %d = %s, want %s at %d", i, patches[i], w.Op, w.Index)
		}
	}
}

func TestDiff_HandlersIgnored(t *testing.T) {
	old := node.H(node.TypeFrame, node.Props{"onClick": func() {}})
	new := node.H(node.TypeFrame, node.Props{"onClick": func() {}})
	if patches := Diff(old, new); len(patches) != 0 {
		t.Errorf("patches = %v, want none", patches)
	}
}

func TestReconciler_Commit(t *testing.T) {
	var got [][]Patch
	r := New(SinkFunc(func(p []Patch) error {
		got = append(got, p)
		return nil
	}))

	first := list("a")
	if _, err := r.Commit(first); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if r.Tree() != first || r.Commits() != 1 {
		t.Errorf("tree not committed")
	}
	patches, err := r.Commit(list("a"))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(patches) != 0 || len(got) != 1 {
		t.Errorf("identical commit reached the sink: %v", patches)
	}
}

func TestReconciler_SinkFailureKeepsTree(t *testing.T) {
	fail := errors.New("host rejected")
	calls := 0
	r := New(SinkFunc(func([]Patch) error {
		calls++
		if calls > 1 {
			return fail
		}
		return nil
	}))
	first := list("a")
	if _, err := r.Commit(first); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := r.Commit(list("b")); !errors.Is(err, fail) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if r.Tree() != first {
		t.Error("failed commit replaced the committed tree")
	}
	if r.Commits() != 1 {
		t.Errorf("Commits = %d, want 1", r.Commits())
	}
}

func TestReconciler_Reset(t *testing.T) {
	var last []Patch
	r := New(SinkFunc(func(p []Patch) error {
		last = p
		return nil
	}))
	if err := r.Reset(); err != nil {
		t.Fatalf("Reset on empty: %v", err)
	}
	if _, err := r.Commit(list("a")); err != nil {
		t.Fatal(err)
	}
	if err := r.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if r.Tree() != nil || len(last) != 1 || last[0].Op != OpReplace || last[0].Node != nil {
		t.Errorf("Reset did not clear the sink: %v", last)
	}
}

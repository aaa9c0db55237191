package testing

import (
	"slices"
	"testing"

	"github.com/go-drift/widgetkit/pkg/node"
)

func TestByType(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)

	result := tester.Find(ByType(node.TypeText))
	if !result.Exists() || result.Count() != 1 {
		t.Fatalf("found %d text nodes", result.Count())
	}
	if got := result.First().Path; !slices.Equal(got, []int{0}) {
		t.Errorf("path = %v", got)
	}
	if tester.Find(ByType(node.TypeEllipse)).Exists() {
		t.Error("found an ellipse")
	}
}

func TestByText(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(node.Props{"label": "Votes"})

	if !tester.Find(ByText("Votes: 0")).Exists() {
		t.Error("expected to find text 'Votes: 0'")
	}
	if tester.Find(ByText("Votes")).Exists() {
		t.Error("ByText matched a partial text")
	}
	if !tester.Find(ByTextContaining("Votes")).Exists() {
		t.Error("expected to find text containing 'Votes'")
	}
	if tester.Find(ByTextContaining("99")).Exists() {
		t.Error("should not find text containing '99'")
	}
}

func TestByKeyAndProp(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)

	if n := tester.Find(ByKey("value")).Node(); n.Type != node.TypeText {
		t.Errorf("ByKey found %s", n.Type)
	}
	if !tester.Find(ByProp("width", 8)).Exists() {
		t.Error("ByProp(width=8) found nothing")
	}
	if tester.Find(ByProp("width", 9)).Exists() {
		t.Error("ByProp(width=9) matched")
	}
	if !tester.Find(ByProp("direction", "horizontal")).Exists() {
		t.Error("ByProp(direction) found nothing")
	}
}

func TestByPredicate(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)

	raw := tester.Find(ByPredicate(func(n *node.Node) bool { return n.Type == node.TypeRawText }))
	if raw.Count() != 3 {
		t.Errorf("found %d text leaves, want 3", raw.Count())
	}
	if got := raw.At(2).Node.Text; got != "0" {
		t.Errorf("third leaf = %q", got)
	}
}

func TestDescendantAndAncestor(t *testing.T) {
	tester := NewWidgetTesterWithT(t, note)
	tester.PumpWidget(nil)

	leaves := tester.Find(Descendant(ByType(node.TypeFrame), ByType(node.TypeInput)))
	if leaves.Count() != 1 || !slices.Equal(leaves.First().Path, []int{0}) {
		t.Errorf("Descendant = %+v", leaves.All())
	}
	if tester.Find(Descendant(ByType(node.TypeInput), ByType(node.TypeFrame))).Exists() {
		t.Error("Descendant matched an ancestor")
	}

	frames := tester.Find(Ancestor(ByType(node.TypeInput), ByType(node.TypeFrame)))
	if frames.Count() != 1 || len(frames.First().Path) != 0 {
		t.Errorf("Ancestor = %+v", frames.All())
	}
	if tester.Find(Ancestor(ByType(node.TypeFrame), ByType(node.TypeInput))).Exists() {
		t.Error("Ancestor matched a descendant")
	}
}

func TestFinderResult_Panics(t *testing.T) {
	tester := NewWidgetTesterWithT(t, counter)
	tester.PumpWidget(nil)
	result := tester.Find(ByKey("missing"))

	for name, fn := range map[string]func(){
		"First": func() { result.First() },
		"At":    func() { result.At(1) },
		"Node":  func() { result.Node() },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s did not panic", name)
				}
			}()
			fn()
		})
	}
}

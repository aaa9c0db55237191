package testing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-drift/widgetkit/pkg/node"
)

// Match is one node found in a committed tree, with its child-index path
// from the root. Paths are what the instance event handlers take.
type Match struct {
	Path []int
	Node *node.Node
}

// Finder locates nodes in a committed tree.
type Finder interface {
	// Evaluate returns all matching nodes under root (depth-first pre-order).
	Evaluate(root *node.Node) []Match
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	matches []Match
	finder  Finder
}

func (r FinderResult) describe() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() Match {
	if len(r.matches) == 0 {
		panic(fmt.Sprintf("Finder found no nodes: %s", r.describe()))
	}
	return r.matches[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) Match {
	if index < 0 || index >= len(r.matches) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.matches), r.describe()))
	}
	return r.matches[index]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []Match {
	return r.matches
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.matches)
}

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool {
	return len(r.matches) > 0
}

// Node returns the node of the first match. Panics if no matches.
func (r FinderResult) Node() *node.Node {
	return r.First().Node
}

// --- Concrete finders ---

type typeFinder struct {
	t node.Type
}

func (f *typeFinder) Evaluate(root *node.Node) []Match {
	return collectMatches(root, func(n *node.Node) bool { return n.Type == f.t })
}

func (f *typeFinder) Description() string {
	return fmt.Sprintf("ByType(%s)", f.t)
}

// ByType returns a finder that matches nodes of type t.
func ByType(t node.Type) Finder {
	return &typeFinder{t: t}
}

type keyFinder struct {
	key string
}

func (f *keyFinder) Evaluate(root *node.Node) []Match {
	return collectMatches(root, func(n *node.Node) bool { return n.HasKey() && n.Key == f.key })
}

func (f *keyFinder) Description() string {
	return fmt.Sprintf("ByKey(%q)", f.key)
}

// ByKey returns a finder that matches nodes with the explicit key.
func ByKey(key string) Finder {
	return &keyFinder{key: key}
}

// textFinder matches text nodes by their concatenated content.
type textFinder struct {
	match func(string) bool
	desc  string
}

func (f *textFinder) Evaluate(root *node.Node) []Match {
	return collectMatches(root, func(n *node.Node) bool {
		return n.Type == node.TypeText && f.match(n.TextContent())
	})
}

func (f *textFinder) Description() string {
	return f.desc
}

// ByText returns a finder that matches text nodes whose content, spans
// included, equals text.
func ByText(text string) Finder {
	return &textFinder{
		match: func(s string) bool { return s == text },
		desc:  fmt.Sprintf("ByText(%q)", text),
	}
}

// ByTextContaining returns a finder that matches text nodes whose content,
// spans included, contains substring.
func ByTextContaining(substring string) Finder {
	return &textFinder{
		match: func(s string) bool { return strings.Contains(s, substring) },
		desc:  fmt.Sprintf("ByTextContaining(%q)", substring),
	}
}

type propFinder struct {
	name  string
	value any
}

func (f *propFinder) Evaluate(root *node.Node) []Match {
	return collectMatches(root, func(n *node.Node) bool {
		v, ok := n.Props[f.name]
		return ok && node.PropsEqual(node.Props{f.name: v}, node.Props{f.name: f.value})
	})
}

func (f *propFinder) Description() string {
	return fmt.Sprintf("ByProp(%s=%v)", f.name, f.value)
}

// ByProp returns a finder that matches nodes whose prop name equals value.
func ByProp(name string, value any) Finder {
	return &propFinder{name: name, value: value}
}

type handlerFinder struct {
	name string
}

func (f *handlerFinder) Evaluate(root *node.Node) []Match {
	return collectMatches(root, func(n *node.Node) bool { return n.Handler(f.name) != nil })
}

func (f *handlerFinder) Description() string {
	return fmt.Sprintf("ByHandler(%s)", f.name)
}

// ByHandler returns a finder that matches nodes handling the named event,
// such as "onClick".
func ByHandler(name string) Finder {
	return &handlerFinder{name: name}
}

type predicateFinder struct {
	fn   func(*node.Node) bool
	desc string
}

func (f *predicateFinder) Evaluate(root *node.Node) []Match {
	return collectMatches(root, f.fn)
}

func (f *predicateFinder) Description() string {
	return f.desc
}

// ByPredicate returns a finder that matches nodes satisfying fn.
func ByPredicate(fn func(*node.Node) bool) Finder {
	return &predicateFinder{fn: fn, desc: "ByPredicate(...)"}
}

// descendantFinder finds nodes matching 'matching' that are descendants
// of nodes matching 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(root *node.Node) []Match {
	var results []Match
	for _, ancestor := range f.of.Evaluate(root) {
		for i, child := range ancestor.Node.Children {
			prefix := append(slices.Clip(ancestor.Path), i)
			for _, m := range f.matching.Evaluate(child) {
				path := append(slices.Clone(prefix), m.Path...)
				if !containsPath(results, path) {
					results = append(results, Match{Path: path, Node: m.Node})
				}
			}
		}
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant returns a finder that matches nodes satisfying 'matching'
// that are descendants of nodes matching 'of'.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

// ancestorFinder finds nodes matching 'matching' that are ancestors of
// nodes matching 'of'.
type ancestorFinder struct {
	of       Finder
	matching Finder
}

func (f *ancestorFinder) Evaluate(root *node.Node) []Match {
	descendants := f.of.Evaluate(root)
	var results []Match
	for _, candidate := range f.matching.Evaluate(root) {
		for _, d := range descendants {
			if len(d.Path) > len(candidate.Path) && slices.Equal(d.Path[:len(candidate.Path)], candidate.Path) {
				results = append(results, candidate)
				break
			}
		}
	}
	return results
}

func (f *ancestorFinder) Description() string {
	return fmt.Sprintf("Ancestor(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Ancestor returns a finder that matches nodes satisfying 'matching' that
// are ancestors of nodes matching 'of'.
func Ancestor(of, matching Finder) Finder {
	return &ancestorFinder{of: of, matching: matching}
}

func containsPath(ms []Match, path []int) bool {
	return slices.ContainsFunc(ms, func(m Match) bool { return slices.Equal(m.Path, path) })
}

// collectMatches performs depth-first pre-order traversal, collecting
// nodes that satisfy the predicate.
func collectMatches(root *node.Node, predicate func(*node.Node) bool) []Match {
	var results []Match
	root.Walk(func(path []int, n *node.Node) bool {
		if predicate(n) {
			results = append(results, Match{Path: slices.Clone(path), Node: n})
		}
		return true
	})
	return results
}

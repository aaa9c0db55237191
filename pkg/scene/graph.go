// Package scene implements a retained host scene graph that consumes the
// patch lists produced by the reconcile package.
package scene

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/media"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/reconcile"
)

// ErrInvalidPatch is returned when a patch does not fit the current graph.
var ErrInvalidPatch = errors.New("scene: invalid patch")

// Node is a retained scene node. IDs are assigned on insertion and never
// reused within a Graph.
type Node struct {
	ID        int64
	Type      node.Type
	Key       string
	Props     node.Props
	Text      string
	Source    any
	Intrinsic *media.Info
	Parent    *Node
	Children  []*Node
}

// Graph is a retained scene graph. Apply is atomic: a patch list either
// applies completely or leaves the graph untouched.
type Graph struct {
	mu      sync.RWMutex
	root    *Node
	byID    map[int64]*Node
	nextID  int64
	media   *media.Cache
	applied int
}

// Option configures a Graph.
type Option func(*Graph)

// WithMedia shares a media cache between graphs.
func WithMedia(cache *media.Cache) Option {
	return func(g *Graph) {
		g.media = cache
	}
}

// NewGraph creates an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{byID: make(map[int64]*Node)}
	for _, opt := range opts {
		opt(g)
	}
	if g.media == nil {
		g.media = media.NewCache()
	}
	return g
}

var _ reconcile.Sink = (*Graph)(nil)

// Apply applies patches in order.
func (g *Graph) Apply(patches []reconcile.Patch) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx := &txn{graph: g, root: cloneNode(g.root, nil), nextID: g.nextID}
	for i, p := range patches {
		if err := tx.apply(p); err != nil {
			return fmt.Errorf("patch %d (%s): %w", i, p, err)
		}
	}
	g.root = tx.root
	g.nextID = tx.nextID
	g.applied += len(patches)
	g.reindex()
	return nil
}

func (g *Graph) reindex() {
	clear(g.byID)
	var visit func(n *Node)
	visit = func(n *Node) {
		g.byID[n.ID] = n
		for _, c := range n.Children {
			visit(c)
		}
	}
	if g.root != nil {
		visit(g.root)
	}
}

// Root returns the root scene node, or nil.
func (g *Graph) Root() *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.root
}

// Lookup returns the node with the given id.
func (g *Graph) Lookup(id int64) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byID[id]
	return n, ok
}

// PathOf returns the child-index path of the node with the given id.
func (g *Graph) PathOf(id int64) ([]int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	var path []int
	for n.Parent != nil {
		path = append(path, slices.Index(n.Parent.Children, n))
		n = n.Parent
	}
	slices.Reverse(path)
	return path, true
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}

// Applied returns the number of patches applied so far.
func (g *Graph) Applied() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.applied
}

// Export converts the graph back into a virtual node tree.
func (g *Graph) Export() *node.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return export(g.root)
}

func export(n *Node) *node.Node {
	if n == nil {
		return nil
	}
	out := &node.Node{Type: n.Type, Key: n.Key, Text: n.Text, Props: n.Props.Clone()}
	if n.Source != nil {
		if out.Props == nil {
			out.Props = make(node.Props, 1)
		}
		out.Props["src"] = n.Source
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, export(c))
	}
	return out
}

func cloneNode(n *Node, parent *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Parent = parent
	c.Props = maps.Clone(n.Props)
	c.Children = make([]*Node, len(n.Children))
	for i, child := range n.Children {
		c.Children[i] = cloneNode(child, &c)
	}
	return &c
}

type txn struct {
	graph  *Graph
	root   *Node
	nextID int64
}

func (tx *txn) apply(p reconcile.Patch) error {
	switch p.Op {
	case reconcile.OpReplace:
		if len(p.Path) == 0 {
			tx.root = tx.build(p.Node, nil)
			return nil
		}
		parent, idx, err := tx.child(p.Path)
		if err != nil {
			return err
		}
		if p.Node == nil {
			return fmt.Errorf("%w: replace with nil below the root", ErrInvalidPatch)
		}
		parent.Children[idx] = tx.build(p.Node, parent)
	case reconcile.OpInsert:
		parent, err := tx.at(p.Path)
		if err != nil {
			return err
		}
		if p.Node == nil || p.Index < 0 || p.Index > len(parent.Children) {
			return fmt.Errorf("%w: insert at %d of %d", ErrInvalidPatch, p.Index, len(parent.Children))
		}
		parent.Children = slices.Insert(parent.Children, p.Index, tx.build(p.Node, parent))
	case reconcile.OpRemove:
		parent, err := tx.at(p.Path)
		if err != nil {
			return err
		}
		if p.Index < 0 || p.Index >= len(parent.Children) {
			return fmt.Errorf("%w: remove %d of %d", ErrInvalidPatch, p.Index, len(parent.Children))
		}
		parent.Children = slices.Delete(parent.Children, p.Index, p.Index+1)
	case reconcile.OpMove:
		parent, err := tx.at(p.Path)
		if err != nil {
			return err
		}
		n := len(parent.Children)
		if p.From < 0 || p.From >= n || p.Index < 0 || p.Index >= n {
			return fmt.Errorf("%w: move %d->%d of %d", ErrInvalidPatch, p.From, p.Index, n)
		}
		moved := parent.Children[p.From]
		parent.Children = slices.Delete(parent.Children, p.From, p.From+1)
		parent.Children = slices.Insert(parent.Children, p.Index, moved)
	case reconcile.OpProps:
		target, err := tx.at(p.Path)
		if err != nil {
			return err
		}
		if target.Props == nil && len(p.Props) > 0 {
			target.Props = make(node.Props, len(p.Props))
		}
		maps.Copy(target.Props, p.Props)
		for _, name := range p.Removed {
			delete(target.Props, name)
		}
		if len(target.Props) == 0 {
			target.Props = nil
		}
	case reconcile.OpText:
		target, err := tx.at(p.Path)
		if err != nil {
			return err
		}
		if target.Type != node.TypeRawText {
			return fmt.Errorf("%w: text patch on %s", ErrInvalidPatch, target.Type)
		}
		target.Text = p.Text
	case reconcile.OpSource:
		target, err := tx.at(p.Path)
		if err != nil {
			return err
		}
		if !target.Type.HasSource() {
			return fmt.Errorf("%w: source patch on %s", ErrInvalidPatch, target.Type)
		}
		target.Source = p.Source
		target.Intrinsic = tx.graph.measure(target.Type, p.Source)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidPatch, p.Op)
	}
	return nil
}

func (tx *txn) at(path []int) (*Node, error) {
	current := tx.root
	if current == nil {
		return nil, fmt.Errorf("%w: empty graph", ErrInvalidPatch)
	}
	for _, idx := range path {
		if idx < 0 || idx >= len(current.Children) {
			return nil, fmt.Errorf("%w: no node at %v", ErrInvalidPatch, path)
		}
		current = current.Children[idx]
	}
	return current, nil
}

func (tx *txn) child(path []int) (*Node, int, error) {
	parent, err := tx.at(path[:len(path)-1])
	if err != nil {
		return nil, 0, err
	}
	idx := path[len(path)-1]
	if idx < 0 || idx >= len(parent.Children) {
		return nil, 0, fmt.Errorf("%w: no node at %v", ErrInvalidPatch, path)
	}
	return parent, idx, nil
}

func (tx *txn) build(n *node.Node, parent *Node) *Node {
	if n == nil {
		return nil
	}
	tx.nextID++
	out := &Node{
		ID:     tx.nextID,
		Type:   n.Type,
		Key:    n.Key,
		Text:   n.Text,
		Parent: parent,
	}
	for name, value := range n.Props {
		if name == "src" && n.Type.HasSource() {
			continue
		}
		if out.Props == nil {
			out.Props = make(node.Props, len(n.Props))
		}
		out.Props[name] = value
	}
	if src := n.Source(); src != nil {
		out.Source = src
		out.Intrinsic = tx.graph.measure(n.Type, src)
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, tx.build(c, out))
	}
	return out
}

// measure resolves the intrinsic size of an inline payload. Unresolvable
// payloads leave the size unset.
func (g *Graph) measure(t node.Type, src any) *media.Info {
	s, ok := src.(string)
	if !ok || s == "" {
		return nil
	}
	inspect := media.Inspect
	if t == node.TypeSVG {
		inspect = media.InspectSVG
	}
	info, err := g.media.Get(string(t)+":"+s, func(string) (media.Info, error) {
		return inspect(s)
	})
	if err != nil {
		return nil
	}
	return &info
}

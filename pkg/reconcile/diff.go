// Package reconcile diffs virtual node trees and commits the resulting
// patch lists to a retained scene graph.
package reconcile

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"

	"github.com/go-drift/widgetkit/pkg/node"
)

// Op identifies a patch operation.
type Op string

const (
	// OpReplace swaps the node at Path for Node. An empty Path targets the
	// root; a nil Node clears it.
	OpReplace Op = "replace"
	// OpInsert inserts Node as child Index of the node at Path.
	OpInsert Op = "insert"
	// OpRemove removes child Index of the node at Path.
	OpRemove Op = "remove"
	// OpMove moves child From of the node at Path to position Index.
	OpMove Op = "move"
	// OpProps sets Props and deletes Removed on the node at Path.
	OpProps Op = "props"
	// OpText sets the text of the #text leaf at Path.
	OpText Op = "text"
	// OpSource sets the opaque src payload of the svg or image node at Path.
	OpSource Op = "source"
)

// Patch is one scene graph mutation. Paths are child-index paths that are
// valid at the moment the patch is applied, in list order.
type Patch struct {
	Op      Op         `json:"op"`
	Path    []int      `json:"path"`
	Index   int        `json:"index,omitempty"`
	From    int        `json:"from,omitempty"`
	Node    *node.Node `json:"node,omitempty"`
	Props   node.Props `json:"props,omitempty"`
	Removed []string   `json:"removed,omitempty"`
	Text    string     `json:"text,omitempty"`
	Source  any        `json:"source,omitempty"`
}

func (p Patch) String() string {
	switch p.Op {
	case OpInsert:
		return fmt.Sprintf("insert %v[%d] %s", p.Path, p.Index, p.Node.Type)
	case OpRemove:
		return fmt.Sprintf("remove %v[%d]", p.Path, p.Index)
	case OpMove:
		return fmt.Sprintf("move %v[%d->%d]", p.Path, p.From, p.Index)
	case OpReplace:
		if p.Node == nil {
			return fmt.Sprintf("replace %v <nil>", p.Path)
		}
		return fmt.Sprintf("replace %v %s", p.Path, p.Node.Type)
	case OpProps:
		return fmt.Sprintf("props %v set=%d removed=%v", p.Path, len(p.Props), p.Removed)
	case OpText:
		return fmt.Sprintf("text %v %q", p.Path, p.Text)
	default:
		return fmt.Sprintf("%s %v", p.Op, p.Path)
	}
}

// Diff returns the patches that turn old into new. Diff is deterministic,
// and Diff(t, t) is empty for every tree t.
func Diff(old, new *node.Node) []Patch {
	if old == new {
		return nil
	}
	if old == nil || new == nil || old.Type != new.Type || old.Key != new.Key {
		return []Patch{{Op: OpReplace, Path: []int{}, Node: new}}
	}
	d := &differ{}
	d.node([]int{}, old, new)
	return d.patches
}

type differ struct {
	patches []Patch
}

func (d *differ) emit(p Patch) {
	d.patches = append(d.patches, p)
}

// node diffs two nodes of the same type.
func (d *differ) node(path []int, old, new *node.Node) {
	if old.Type == node.TypeRawText {
		if old.Text != new.Text {
			d.emit(Patch{Op: OpText, Path: path, Text: new.Text})
		}
		return
	}
	if set, removed := diffProps(old, new); len(set) > 0 || len(removed) > 0 {
		d.emit(Patch{Op: OpProps, Path: path, Props: set, Removed: removed})
	}
	if old.Type.HasSource() && !reflect.DeepEqual(old.Source(), new.Source()) {
		d.emit(Patch{Op: OpSource, Path: path, Source: new.Source()})
	}
	d.children(path, old.Children, new.Children)
}

type entry struct {
	id   string
	node *node.Node
}

func (d *differ) children(path []int, oldChildren, newChildren []*node.Node) {
	if len(oldChildren) == 0 && len(newChildren) == 0 {
		return
	}
	oldIDs := identities(oldChildren)
	newIDs := identities(newChildren)

	wanted := make(map[string]bool, len(newIDs))
	for _, id := range newIDs {
		wanted[id] = true
	}

	current := make([]entry, len(oldChildren))
	for i, child := range oldChildren {
		current[i] = entry{id: oldIDs[i], node: child}
	}

	for i := len(current) - 1; i >= 0; i-- {
		if !wanted[current[i].id] {
			d.emit(Patch{Op: OpRemove, Path: path, Index: i})
			current = slices.Delete(current, i, i+1)
		}
	}

	for i, child := range newChildren {
		id := newIDs[i]
		j := -1
		for k := i; k < len(current); k++ {
			if current[k].id == id {
				j = k
				break
			}
		}
		if j < 0 {
			d.emit(Patch{Op: OpInsert, Path: path, Index: i, Node: child})
			current = slices.Insert(current, i, entry{id: id, node: child})
			continue
		}
		if j != i {
			d.emit(Patch{Op: OpMove, Path: path, From: j, Index: i})
			moved := current[j]
			current = slices.Delete(current, j, j+1)
			current = slices.Insert(current, i, moved)
		}
		childPath := append(slices.Clip(path), i)
		if current[i].node.Type != child.Type {
			d.emit(Patch{Op: OpReplace, Path: childPath, Node: child})
			continue
		}
		d.node(childPath, current[i].node, child)
	}
}

// identities assigns each child a stable identity: its explicit key, or
// its ordinal among unkeyed siblings of the same type.
func identities(children []*node.Node) []string {
	ids := make([]string, len(children))
	positional := make(map[node.Type]int)
	keyed := make(map[string]int)
	for i, child := range children {
		if child.HasKey() {
			n := keyed[child.Key]
			keyed[child.Key] = n + 1
			ids[i] = "k:" + child.Key
			if n > 0 {
				ids[i] += "#" + strconv.Itoa(n)
			}
			continue
		}
		n := positional[child.Type]
		positional[child.Type] = n + 1
		ids[i] = "p:" + string(child.Type) + "#" + strconv.Itoa(n)
	}
	return ids
}

func diffProps(old, new *node.Node) (node.Props, []string) {
	skipSource := old.Type.HasSource()
	var set node.Props
	for name, value := range new.Props {
		if skipSource && name == "src" {
			continue
		}
		if prev, ok := old.Props[name]; ok && reflect.DeepEqual(prev, value) {
			continue
		}
		if set == nil {
			set = make(node.Props)
		}
		set[name] = value
	}
	var removed []string
	for name := range old.Props {
		if skipSource && name == "src" {
			continue
		}
		if _, ok := new.Props[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return set, removed
}

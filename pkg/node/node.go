// Package node defines the virtual node tree produced by a widget render.
//
// A render builds an immutable tree of *Node values with H. Trees are
// compared by the reconcile package and committed to a host scene graph.
//
//	var hint *node.Node
//	if showHint {
//	    hint = node.H(node.TypeText, node.Props{"key": "hint"}, "Tap to vote")
//	}
//	root := node.H(node.TypeAutoLayout, node.Props{"spacing": 8},
//	    node.H(node.TypeText, nil, "Votes: ", count),
//	    hint,
//	)
//
// Children are normalized: a slice child is spliced into its parent,
// nil, false and true are dropped, strings and numbers become implicit
// text leaves (TypeRawText).
package node

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-drift/widgetkit/pkg/errors"
)

// Props is the property record of a node. Values must be plain data.
type Props map[string]any

// Clone returns a shallow copy of p.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Node is one virtual node. Nodes are treated as immutable once built.
type Node struct {
	Type     Type    `json:"type"`
	Key      string  `json:"key,omitempty"`
	Props    Props   `json:"props,omitempty"`
	Text     string  `json:"text,omitempty"`
	Children []*Node `json:"children,omitempty"`
	// Handlers holds event callbacks (onClick, onTextEditEnd). They are
	// excluded from equality and diffing.
	Handlers map[string]any `json:"-"`
}

// HasKey reports whether the node carries an explicit key.
func (n *Node) HasKey() bool {
	return n != nil && n.Key != ""
}

// Source returns the opaque src payload of svg and image nodes.
func (n *Node) Source() any {
	if n == nil || !n.Type.HasSource() {
		return nil
	}
	return n.Props["src"]
}

// Handler returns the named event handler, or nil.
func (n *Node) Handler(name string) any {
	if n == nil {
		return nil
	}
	return n.Handlers[name]
}

// At returns the descendant at the given child-index path, or nil.
func (n *Node) At(path []int) *Node {
	current := n
	for _, idx := range path {
		if current == nil || idx < 0 || idx >= len(current.Children) {
			return nil
		}
		current = current.Children[idx]
	}
	return current
}

// Walk visits n and its descendants depth-first. Returning false from
// visit skips the node's children.
func (n *Node) Walk(visit func(path []int, n *Node) bool) {
	if n == nil {
		return
	}
	n.walk(nil, visit)
}

func (n *Node) walk(path []int, visit func([]int, *Node) bool) {
	if !visit(path, n) {
		return
	}
	for i, child := range n.Children {
		child.walk(append(slices.Clip(path), i), visit)
	}
}

// TextContent concatenates the text of all #text descendants.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.Walk(func(_ []int, current *Node) bool {
		if current.Type == TypeRawText {
			sb.WriteString(current.Text)
		}
		return true
	})
	return sb.String()
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	total := 0
	n.Walk(func([]int, *Node) bool {
		total++
		return true
	})
	return total
}

// Equal reports whether a and b describe the same tree. Handlers are ignored.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || a.Key != b.Key || a.Text != b.Text {
		return false
	}
	if !PropsEqual(a.Props, b.Props) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// PropsEqual compares two prop records by value. A nil record equals an
// empty one.
func PropsEqual(a, b Props) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}

// Text returns an implicit text leaf.
func Text(s string) *Node {
	return &Node{Type: TypeRawText, Text: s}
}

// H builds a node and panics with a configuration error if the input is
// invalid. Use Build to receive the error instead.
func H(t Type, props Props, children ...any) *Node {
	n, err := Build(t, props, children...)
	if err != nil {
		panic(errors.Config("node.H", err))
	}
	return n
}

// Build builds a node from a type, props and children.
func Build(t Type, props Props, children ...any) (*Node, error) {
	if !t.Valid() || t == TypeRawText {
		if _, err := ParseType(string(t)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w %q: use strings for text leaves", errors.ErrUnknownNodeType, t)
	}
	n := &Node{Type: t}
	if err := n.setProps(props); err != nil {
		return nil, err
	}
	normalized, err := Normalize(children...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t, err)
	}
	if len(normalized) > 0 && !t.IsContainer() {
		return nil, fmt.Errorf("%w: %s nodes cannot have children", errors.ErrInvalidChild, t)
	}
	if err := checkTextChildren(t, normalized); err != nil {
		return nil, err
	}
	n.Children = normalized
	return n, nil
}

func (n *Node) setProps(props Props) error {
	for name, value := range props {
		switch {
		case name == "key":
			key, err := keyString(value)
			if err != nil {
				return err
			}
			n.Key = key
		case name == "children":
			return fmt.Errorf("%w: pass children as arguments, not props", errors.ErrInvalidChild)
		case value != nil && reflect.TypeOf(value).Kind() == reflect.Func:
			if !strings.HasPrefix(name, "on") {
				return fmt.Errorf("%w: prop %q holds a function", errors.ErrUnserializable, name)
			}
			if n.Handlers == nil {
				n.Handlers = make(map[string]any)
			}
			n.Handlers[name] = value
		default:
			if err := checkProp(name, reflect.ValueOf(value), 0); err != nil {
				return err
			}
			if n.Props == nil {
				n.Props = make(Props, len(props))
			}
			n.Props[name] = value
		}
	}
	return nil
}

// checkProp rejects prop values that never compare equal to themselves:
// NaN and functions nested inside a value.
func checkProp(name string, v reflect.Value, depth int) error {
	const maxDepth = 32
	if depth > maxDepth {
		return fmt.Errorf("%w: prop %q nests deeper than %d levels", errors.ErrUnserializable, name, maxDepth)
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		if math.IsNaN(v.Float()) {
			return fmt.Errorf("%w: prop %q is NaN", errors.ErrUnserializable, name)
		}
	case reflect.Complex64, reflect.Complex128:
		if c := v.Complex(); math.IsNaN(real(c)) || math.IsNaN(imag(c)) {
			return fmt.Errorf("%w: prop %q is NaN", errors.ErrUnserializable, name)
		}
	case reflect.Func:
		if depth > 0 && !v.IsNil() {
			return fmt.Errorf("%w: prop %q holds a nested function", errors.ErrUnserializable, name)
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return checkProp(name, v.Elem(), depth+1)
		}
	case reflect.Slice, reflect.Array:
		for k := range v.Len() {
			if err := checkProp(name, v.Index(k), depth+1); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkProp(name, iter.Value(), depth+1); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for k := range v.NumField() {
			if err := checkProp(name, v.Field(k), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func keyString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("%w: key must be a string or number, got %T", errors.ErrInvalidChild, value)
}

func checkTextChildren(t Type, children []*Node) error {
	switch t {
	case TypeText:
		for _, c := range children {
			if c.Type != TypeRawText && c.Type != TypeSpan {
				return fmt.Errorf("%w: text children must be strings, numbers or spans, got %s", errors.ErrInvalidChild, c.Type)
			}
		}
	case TypeSpan:
		for _, c := range children {
			if c.Type != TypeRawText {
				return fmt.Errorf("%w: span children must be strings or numbers, got %s", errors.ErrInvalidChild, c.Type)
			}
		}
	}
	return nil
}

// Normalize flattens a child list. Slices are spliced one level deep;
// a slice nested inside a spliced slice is rejected.
func Normalize(children ...any) ([]*Node, error) {
	var out []*Node
	for _, child := range children {
		var err error
		out, err = appendChild(out, child, 0)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendChild(out []*Node, child any, depth int) ([]*Node, error) {
	switch v := child.(type) {
	case nil, bool:
		return out, nil
	case *Node:
		if v == nil {
			return out, nil
		}
		return append(out, v), nil
	case string:
		return append(out, Text(v)), nil
	case int:
		return append(out, Text(strconv.Itoa(v))), nil
	case int8, int16, int32, int64:
		return append(out, Text(strconv.FormatInt(reflect.ValueOf(v).Int(), 10))), nil
	case uint, uint8, uint16, uint32, uint64:
		return append(out, Text(strconv.FormatUint(reflect.ValueOf(v).Uint(), 10))), nil
	case float32:
		return append(out, Text(strconv.FormatFloat(float64(v), 'f', -1, 32))), nil
	case float64:
		return append(out, Text(strconv.FormatFloat(v, 'f', -1, 64))), nil
	}

	rv := reflect.ValueOf(child)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if depth > 0 {
			return nil, fmt.Errorf("%w: sequences nest at most one level", errors.ErrInvalidChild)
		}
		var err error
		for i := range rv.Len() {
			out, err = appendChild(out, rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported child type %T", errors.ErrInvalidChild, child)
}

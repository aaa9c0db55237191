package node

import (
	"fmt"
	"slices"

	"github.com/agnivade/levenshtein"

	"github.com/go-drift/widgetkit/pkg/errors"
)

// Type is the tag of a virtual node.
type Type string

const (
	TypeFrame      Type = "frame"
	TypeAutoLayout Type = "autolayout"
	TypeRectangle  Type = "rectangle"
	TypeEllipse    Type = "ellipse"
	TypeLine       Type = "line"
	TypeText       Type = "text"
	TypeSpan       Type = "span"
	TypeSVG        Type = "svg"
	TypeImage      Type = "image"
	TypeInput      Type = "input"
	TypeFragment   Type = "fragment"

	// TypeRawText is the implicit leaf created for string and number children.
	TypeRawText Type = "#text"
)

var knownTypes = []Type{
	TypeFrame, TypeAutoLayout, TypeRectangle, TypeEllipse, TypeLine,
	TypeText, TypeSpan, TypeSVG, TypeImage, TypeInput, TypeFragment, TypeRawText,
}

// Types returns every known node type.
func Types() []Type {
	return slices.Clone(knownTypes)
}

// Valid reports whether t is a known node type.
func (t Type) Valid() bool {
	return slices.Contains(knownTypes, t)
}

// IsContainer reports whether nodes of this type may have children.
func (t Type) IsContainer() bool {
	switch t {
	case TypeFrame, TypeAutoLayout, TypeText, TypeSpan, TypeFragment:
		return true
	}
	return false
}

// HasSource reports whether nodes of this type carry an opaque src payload.
func (t Type) HasSource() bool {
	return t == TypeSVG || t == TypeImage
}

// ParseType converts a host-supplied type name into a Type.
func ParseType(name string) (Type, error) {
	t := Type(name)
	if t.Valid() {
		return t, nil
	}
	if hint := Suggest(name, typeNames()); hint != "" {
		return "", fmt.Errorf("%w %q (did you mean %q?)", errors.ErrUnknownNodeType, name, hint)
	}
	return "", fmt.Errorf("%w %q", errors.ErrUnknownNodeType, name)
}

func typeNames() []string {
	names := make([]string, 0, len(knownTypes))
	for _, t := range knownTypes {
		names = append(names, string(t))
	}
	return names
}

// Suggest returns the candidate closest to name, or "" when nothing is
// within an edit distance of 3.
func Suggest(name string, candidates []string) string {
	best := ""
	bestDist := 4
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

package node

import (
	"encoding/json"
	"fmt"
)

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Vector is a 2D point.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Paint is a closed set of fill variants keyed by their "type" field.
type Paint interface {
	PaintType() string
}

// SolidPaint fills with a single color. Color holds either a Color or a
// hex string.
type SolidPaint struct {
	Color     any     `json:"color"`
	BlendMode string  `json:"blendMode,omitempty"`
	Opacity   float64 `json:"opacity,omitempty"`
	Hidden    bool    `json:"hidden,omitempty"`
}

// ColorStop is one stop in a gradient.
type ColorStop struct {
	Position float64 `json:"position"`
	Color    Color   `json:"color"`
}

// GradientPaint is a linear, radial, angular or diamond gradient.
type GradientPaint struct {
	Kind            string      `json:"-"`
	Stops           []ColorStop `json:"gradientStops"`
	HandlePositions []Vector    `json:"gradientHandlePositions,omitempty"`
	Transform       [][]float64 `json:"gradientTransform,omitempty"`
	Opacity         float64     `json:"opacity,omitempty"`
}

// ImagePaint fills with an image referenced by Src.
type ImagePaint struct {
	Src       string  `json:"src"`
	ScaleMode string  `json:"scaleMode,omitempty"`
	Rotation  float64 `json:"rotation,omitempty"`
	ImageRef  string  `json:"imageRef,omitempty"`
	Opacity   float64 `json:"opacity,omitempty"`
}

func (SolidPaint) PaintType() string      { return "solid" }
func (p GradientPaint) PaintType() string { return p.Kind }
func (ImagePaint) PaintType() string      { return "image" }

var gradientKinds = map[string]bool{
	"gradient-linear":  true,
	"gradient-radial":  true,
	"gradient-angular": true,
	"gradient-diamond": true,
}

// Effect is a closed set of shadow and blur variants.
type Effect interface {
	EffectType() string
}

// ShadowEffect is a drop or inner shadow.
type ShadowEffect struct {
	Inner     bool    `json:"-"`
	Color     any     `json:"color"`
	Offset    Vector  `json:"offset"`
	Blur      float64 `json:"blur"`
	Spread    float64 `json:"spread,omitempty"`
	BlendMode string  `json:"blendMode,omitempty"`
}

// BlurEffect is a layer or background blur.
type BlurEffect struct {
	Background bool    `json:"-"`
	Blur       float64 `json:"blur"`
}

func (e ShadowEffect) EffectType() string {
	if e.Inner {
		return "inner-shadow"
	}
	return "drop-shadow"
}

func (e BlurEffect) EffectType() string {
	if e.Background {
		return "background-blur"
	}
	return "layer-blur"
}

// Constraint pins a node horizontally or vertically inside its parent.
type Constraint struct {
	Type         string  `json:"type"`
	Offset       float64 `json:"offset,omitempty"`
	StartOffset  float64 `json:"startOffset,omitempty"`
	EndOffset    float64 `json:"endOffset,omitempty"`
	StartPercent float64 `json:"startOffsetPercent,omitempty"`
	EndPercent   float64 `json:"endOffsetPercent,omitempty"`
}

var constraintTypes = []string{
	"top", "bottom", "top-bottom", "left", "right", "left-right",
	"center", "horizontal-scale", "vertical-scale",
}

// Validate checks that the constraint names a known variant.
func (c Constraint) Validate() error {
	for _, t := range constraintTypes {
		if t == c.Type {
			return nil
		}
	}
	return unknownVariant("constraint", c.Type, constraintTypes)
}

// MarshalPaint encodes a paint with its type discriminant.
func MarshalPaint(p Paint) ([]byte, error) {
	return marshalTagged(p.PaintType(), p)
}

// MarshalEffect encodes an effect with its type discriminant.
func MarshalEffect(e Effect) ([]byte, error) {
	return marshalTagged(e.EffectType(), e)
}

func marshalTagged(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(tag)
	return json.Marshal(fields)
}

// DecodePaint decodes a host-supplied paint object.
func DecodePaint(data []byte) (Paint, error) {
	tag, err := readTag(data)
	if err != nil {
		return nil, err
	}
	var p Paint
	switch {
	case tag == "solid":
		var solid SolidPaint
		err = json.Unmarshal(data, &solid)
		p = solid
	case tag == "image":
		var img ImagePaint
		err = json.Unmarshal(data, &img)
		p = img
	case gradientKinds[tag]:
		grad := GradientPaint{Kind: tag}
		err = json.Unmarshal(data, &grad)
		p = grad
	default:
		return nil, unknownVariant("paint", tag, []string{"solid", "image", "gradient-linear", "gradient-radial", "gradient-angular", "gradient-diamond"})
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DecodeEffect decodes a host-supplied effect object.
func DecodeEffect(data []byte) (Effect, error) {
	tag, err := readTag(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "drop-shadow", "inner-shadow":
		e := ShadowEffect{Inner: tag == "inner-shadow"}
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "layer-blur", "background-blur":
		e := BlurEffect{Background: tag == "background-blur"}
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, unknownVariant("effect", tag, []string{"drop-shadow", "inner-shadow", "layer-blur", "background-blur"})
}

func readTag(data []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}
	return head.Type, nil
}

func unknownVariant(kind, tag string, known []string) error {
	if hint := Suggest(tag, known); hint != "" {
		return fmt.Errorf("unknown %s type %q (did you mean %q?)", kind, tag, hint)
	}
	return fmt.Errorf("unknown %s type %q", kind, tag)
}

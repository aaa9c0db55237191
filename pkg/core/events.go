package core

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/menu"
)

// ClickEvent is delivered to onClick handlers.
type ClickEvent struct {
	// CanvasX and CanvasY are absolute canvas coordinates.
	CanvasX float64 `json:"canvasX"`
	CanvasY float64 `json:"canvasY"`
	// OffsetX and OffsetY are relative to the clicked node.
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// TextEditEvent is delivered to onTextEditEnd handlers of input nodes.
type TextEditEvent struct {
	Characters string `json:"characters"`
}

// Host payloads may arrive as typed values, decoded JSON objects or raw
// JSON bytes.

func parseClick(payload any) (ClickEvent, error) {
	if ev, ok := payload.(ClickEvent); ok {
		return ev, nil
	}
	fields, err := payloadFields("click", "ClickEvent", payload)
	if err != nil {
		return ClickEvent{}, err
	}
	var ev ClickEvent
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"canvasX", &ev.CanvasX},
		{"canvasY", &ev.CanvasY},
		{"offsetX", &ev.OffsetX},
		{"offsetY", &ev.OffsetY},
	} {
		v, err := number("click", "ClickEvent", fields, f.name)
		if err != nil {
			return ClickEvent{}, err
		}
		*f.dst = v
	}
	return ev, nil
}

func parseTextEdit(payload any) (TextEditEvent, error) {
	if ev, ok := payload.(TextEditEvent); ok {
		return ev, nil
	}
	fields, err := payloadFields("textEditEnd", "TextEditEvent", payload)
	if err != nil {
		return TextEditEvent{}, err
	}
	raw, ok := fields["characters"]
	if !ok {
		return TextEditEvent{}, &errors.ParseError{Event: "textEditEnd", DataType: "TextEditEvent", Got: payload, Reason: "missing characters"}
	}
	s, ok := raw.(string)
	if !ok {
		return TextEditEvent{}, &errors.ParseError{Event: "textEditEnd", DataType: "TextEditEvent", Got: raw, Reason: "characters must be a string"}
	}
	return TextEditEvent{Characters: s}, nil
}

func parsePropertyEvent(payload any) (menu.PropertyEvent, error) {
	switch ev := payload.(type) {
	case menu.PropertyEvent:
		if ev.PropertyName == "" {
			return ev, &errors.ParseError{Event: "propertyChange", DataType: "PropertyEvent", Got: payload, Reason: "missing propertyName"}
		}
		return ev, nil
	case *menu.PropertyEvent:
		if ev == nil {
			break
		}
		return parsePropertyEvent(*ev)
	}
	fields, err := payloadFields("propertyChange", "PropertyEvent", payload)
	if err != nil {
		return menu.PropertyEvent{}, err
	}
	name, ok := fields["propertyName"].(string)
	if !ok || name == "" {
		return menu.PropertyEvent{}, &errors.ParseError{Event: "propertyChange", DataType: "PropertyEvent", Got: payload, Reason: "propertyName must be a non-empty string"}
	}
	ev := menu.PropertyEvent{PropertyName: name}
	switch v := fields["propertyValue"].(type) {
	case nil:
	case string:
		ev.PropertyValue = &v
	default:
		return menu.PropertyEvent{}, &errors.ParseError{Event: "propertyChange", DataType: "PropertyEvent", Got: v, Reason: "propertyValue must be a string"}
	}
	return ev, nil
}

func payloadFields(event, dataType string, payload any) (map[string]any, error) {
	var data []byte
	switch v := payload.(type) {
	case map[string]any:
		return v, nil
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, &errors.ParseError{Event: event, DataType: dataType, Got: payload}
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &errors.ParseError{Event: event, DataType: dataType, Got: string(data), Reason: err.Error()}
	}
	if fields == nil {
		return nil, &errors.ParseError{Event: event, DataType: dataType, Got: string(data), Reason: "payload is not an object"}
	}
	return fields, nil
}

func number(event, dataType string, fields map[string]any, name string) (float64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, &errors.ParseError{Event: event, DataType: dataType, Got: fields, Reason: "missing " + name}
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, &errors.ParseError{Event: event, DataType: dataType, Got: raw, Reason: err.Error()}
		}
		v = f
	default:
		return 0, &errors.ParseError{Event: event, DataType: dataType, Got: raw, Reason: fmt.Sprintf("%s must be a number", name)}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &errors.ParseError{Event: event, DataType: dataType, Got: raw, Reason: fmt.Sprintf("%s is not finite", name)}
	}
	return v, nil
}

// HandleClick delivers a click on the node at path of the committed tree.
// Malformed payloads are reported and dropped without a render pass.
func (i *Instance) HandleClick(path []int, payload any) error {
	ev, err := parseClick(payload)
	if err != nil {
		errors.ReportEvent("core.Instance.HandleClick", i.id, err)
		return err
	}
	return i.invoke("core.Instance.HandleClick", path, "onClick", func(h any) bool {
		switch fn := h.(type) {
		case func(ClickEvent):
			fn(ev)
		case func():
			fn()
		default:
			return false
		}
		return true
	})
}

// HandleTextEditEnd delivers the final text of an input node at path.
func (i *Instance) HandleTextEditEnd(path []int, payload any) error {
	ev, err := parseTextEdit(payload)
	if err != nil {
		errors.ReportEvent("core.Instance.HandleTextEditEnd", i.id, err)
		return err
	}
	return i.invoke("core.Instance.HandleTextEditEnd", path, "onTextEditEnd", func(h any) bool {
		switch fn := h.(type) {
		case func(TextEditEvent):
			fn(ev)
		case func(string):
			fn(ev.Characters)
		default:
			return false
		}
		return true
	})
}

// HandlePropertyChange delivers a property menu interaction to the
// handler registered by the last committed pass.
func (i *Instance) HandlePropertyChange(payload any) error {
	const op = "core.Instance.HandlePropertyChange"
	ev, err := parsePropertyEvent(payload)
	if err != nil {
		errors.ReportEvent(op, i.id, err)
		return err
	}
	desc := i.Menu()
	if desc == nil || desc.OnChange == nil {
		err := fmt.Errorf("%w: no property menu registered", errors.ErrNoHandler)
		errors.ReportEvent(op, i.id, err)
		return err
	}
	if !i.Dispatch(func() {
		defer errors.Recover(op)
		desc.OnChange(ev)
	}) {
		return errors.ErrInstanceDestroyed
	}
	return nil
}

func (i *Instance) invoke(op string, path []int, name string, call func(h any) bool) error {
	var err error
	ran := i.Dispatch(func() {
		target := i.tree.Load().At(path)
		if target == nil {
			err = fmt.Errorf("%w: no node at %v", errors.ErrNoHandler, path)
			return
		}
		h := target.Handler(name)
		if h == nil {
			err = fmt.Errorf("%w: %s node at %v has no %s", errors.ErrNoHandler, target.Type, path, name)
			return
		}
		defer errors.Recover(op)
		if !call(h) {
			err = fmt.Errorf("%w: %s has unsupported signature %T", errors.ErrNoHandler, name, h)
		}
	})
	if !ran {
		return errors.ErrInstanceDestroyed
	}
	if err != nil {
		errors.ReportEvent(op, i.id, err)
	}
	return err
}

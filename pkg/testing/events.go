package testing

import (
	"fmt"

	"github.com/go-drift/widgetkit/pkg/core"
	"github.com/go-drift/widgetkit/pkg/menu"
)

// Tap clicks the first node matched by finder. The resulting writes are
// rendered on the next Pump.
func (t *WidgetTester) Tap(finder Finder) error {
	m, err := t.target(finder)
	if err != nil {
		return err
	}
	return t.inst.HandleClick(m.Path, core.ClickEvent{})
}

// TapAt clicks the first node matched by finder at canvas position x, y.
func (t *WidgetTester) TapAt(finder Finder, x, y float64) error {
	m, err := t.target(finder)
	if err != nil {
		return err
	}
	return t.inst.HandleClick(m.Path, core.ClickEvent{CanvasX: x, CanvasY: y})
}

// EnterText ends a text edit with text on the first input matched by
// finder.
func (t *WidgetTester) EnterText(finder Finder, text string) error {
	m, err := t.target(finder)
	if err != nil {
		return err
	}
	return t.inst.HandleTextEditEnd(m.Path, core.TextEditEvent{Characters: text})
}

// SelectProperty sends a property menu event. Pass an empty value for
// actions and links.
func (t *WidgetTester) SelectProperty(name, value string) error {
	if t.inst == nil {
		return fmt.Errorf("no widget pumped")
	}
	ev := menu.PropertyEvent{PropertyName: name}
	if value != "" {
		ev.PropertyValue = &value
	}
	return t.inst.HandlePropertyChange(ev)
}

// Menu returns the property menu of the mounted widget, or nil.
func (t *WidgetTester) Menu() *menu.Descriptor {
	if t.inst == nil {
		return nil
	}
	return t.inst.Menu()
}

func (t *WidgetTester) target(finder Finder) (Match, error) {
	result := t.Find(finder)
	if !result.Exists() {
		return Match{}, fmt.Errorf("finder found no nodes: %s", finder.Description())
	}
	return result.First(), nil
}

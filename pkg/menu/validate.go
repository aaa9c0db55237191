package menu

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/go-drift/widgetkit/pkg/errors"
)

// Validate checks the shape of an item list. Every problem found is
// returned, joined, and each wraps ErrInvalidMenu.
func Validate(items []Item) error {
	var errs []error
	fail := func(i int, item Item, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: item %d (%s): %s",
			errors.ErrInvalidMenu, i, itemLabel(item), fmt.Sprintf(format, args...)))
	}

	seen := make(map[string]int)
	for i, item := range items {
		if item == nil {
			errs = append(errs, fmt.Errorf("%w: item %d is nil", errors.ErrInvalidMenu, i))
			continue
		}
		if _, ok := item.(Separator); ok {
			continue
		}
		name := PropertyName(item)
		if name == "" {
			fail(i, item, "propertyName is required")
		} else if prev, dup := seen[name]; dup {
			fail(i, item, "propertyName %q already used by item %d", name, prev)
		} else {
			seen[name] = i
		}
		if tooltip(item) == "" {
			fail(i, item, "tooltip is required")
		}

		switch v := item.(type) {
		case ColorSelector:
			if len(v.Options) == 0 {
				fail(i, item, "options must not be empty")
			}
			for j, opt := range v.Options {
				if opt.Option == "" {
					fail(i, item, "option %d has no color", j)
				}
			}
			if v.SelectedOption != "" && !slices.ContainsFunc(v.Options, func(o ColorOption) bool { return o.Option == v.SelectedOption }) {
				fail(i, item, "selectedOption %q is not an option", v.SelectedOption)
			}
		case Dropdown:
			if len(v.Options) == 0 {
				fail(i, item, "options must not be empty")
			}
			if !slices.ContainsFunc(v.Options, func(o DropdownOption) bool { return o.Option == v.SelectedOption }) {
				fail(i, item, "selectedOption %q is not an option", v.SelectedOption)
			}
			if v.Direction != "column" && v.Direction != "row" {
				fail(i, item, "direction must be column or row, got %q", v.Direction)
			}
			switch v.OptionType {
			case "icon", "label", "labelWithIcon":
			default:
				fail(i, item, "optionType must be icon, label or labelWithIcon, got %q", v.OptionType)
			}
		case Link:
			if v.Href == "" {
				fail(i, item, "href is required")
			}
		}
	}
	return errors.Join(errs...)
}

func tooltip(item Item) string {
	switch v := item.(type) {
	case Action:
		return v.Tooltip
	case ColorSelector:
		return v.Tooltip
	case Dropdown:
		return v.Tooltip
	case Toggle:
		return v.Tooltip
	case Link:
		return v.Tooltip
	}
	return ""
}

func itemLabel(item Item) string {
	if name := PropertyName(item); name != "" {
		return string(item.ItemType()) + " " + name
	}
	return string(item.ItemType())
}

// PropertyEvent is delivered to the menu handler when the user interacts
// with an item. PropertyValue is nil for actions and links.
type PropertyEvent struct {
	PropertyName  string  `json:"propertyName"`
	PropertyValue *string `json:"propertyValue,omitempty"`
}

// Value returns the property value, or "" when none was sent.
func (e PropertyEvent) Value() string {
	if e.PropertyValue == nil {
		return ""
	}
	return *e.PropertyValue
}

// Descriptor is the latest validated menu of a widget instance together
// with its change handler. The host reads it; the runtime only stores it.
type Descriptor struct {
	Items    []Item
	OnChange func(PropertyEvent)
}

// Lookup returns the item controlling propertyName.
func (d *Descriptor) Lookup(propertyName string) (Item, bool) {
	if d == nil {
		return nil, false
	}
	for _, item := range d.Items {
		if PropertyName(item) == propertyName {
			return item, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the item list; the handler is not serialized.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	items := d.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(struct {
		Items []Item `json:"items"`
	}{items})
}

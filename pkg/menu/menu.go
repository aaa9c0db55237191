// Package menu defines the property menu a widget registers for the host's
// contextual chrome. Items are closed variants discriminated by itemType.
package menu

import (
	"encoding/json"
	"fmt"

	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/node"
)

// ItemType discriminates menu items.
type ItemType string

const (
	ItemAction        ItemType = "action"
	ItemSeparator     ItemType = "separator"
	ItemColorSelector ItemType = "color-selector"
	ItemDropdown      ItemType = "dropdown"
	ItemToggle        ItemType = "toggle"
	ItemLink          ItemType = "link"
)

var itemTypes = []string{
	string(ItemAction), string(ItemSeparator), string(ItemColorSelector),
	string(ItemDropdown), string(ItemToggle), string(ItemLink),
}

// Item is one property menu entry.
type Item interface {
	ItemType() ItemType
	isItem()
}

// Base holds the fields shared by every item except separators.
type Base struct {
	Tooltip      string `json:"tooltip"`
	PropertyName string `json:"propertyName"`
}

// Action is a plain button.
type Action struct {
	Base
	Icon string `json:"icon,omitempty"`
	Name string `json:"name,omitempty"`
}

// Separator is a visual divider. It carries no property.
type Separator struct{}

// ColorOption is one swatch of a ColorSelector.
type ColorOption struct {
	Tooltip string `json:"tooltip"`
	Option  string `json:"option"`
}

// ColorSelector offers a set of color swatches.
type ColorSelector struct {
	Base
	Options        []ColorOption `json:"options"`
	SelectedOption string        `json:"selectedOption"`
	UseColorPicker bool          `json:"useColorPicker,omitempty"`
}

// DropdownOption is one choice of a Dropdown.
type DropdownOption struct {
	Option  string `json:"option"`
	Label   string `json:"label"`
	Icon    string `json:"icon,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Dropdown offers a list of labelled choices.
type Dropdown struct {
	Base
	Options        []DropdownOption `json:"options"`
	SelectedOption string           `json:"selectedOption"`
	// Direction is "column" or "row".
	Direction string `json:"direction"`
	// OptionType is "icon", "label" or "labelWithIcon".
	OptionType string `json:"optionType"`
}

// Toggle is an on/off button.
type Toggle struct {
	Base
	Icon      string `json:"icon,omitempty"`
	IsToggled bool   `json:"isToggled"`
	Name      string `json:"name,omitempty"`
}

// Link opens Href in the host.
type Link struct {
	Base
	Icon *string `json:"icon,omitempty"`
	Href string  `json:"href"`
}

func (Action) ItemType() ItemType        { return ItemAction }
func (Separator) ItemType() ItemType     { return ItemSeparator }
func (ColorSelector) ItemType() ItemType { return ItemColorSelector }
func (Dropdown) ItemType() ItemType      { return ItemDropdown }
func (Toggle) ItemType() ItemType        { return ItemToggle }
func (Link) ItemType() ItemType          { return ItemLink }

func (Action) isItem()        {}
func (Separator) isItem()     {}
func (ColorSelector) isItem() {}
func (Dropdown) isItem()      {}
func (Toggle) isItem()        {}
func (Link) isItem()          {}

func (a Action) MarshalJSON() ([]byte, error) {
	type plain Action
	return tagged(ItemAction, plain(a))
}

func (s Separator) MarshalJSON() ([]byte, error) {
	return tagged(ItemSeparator, struct{}{})
}

func (c ColorSelector) MarshalJSON() ([]byte, error) {
	type plain ColorSelector
	return tagged(ItemColorSelector, plain(c))
}

func (d Dropdown) MarshalJSON() ([]byte, error) {
	type plain Dropdown
	return tagged(ItemDropdown, plain(d))
}

func (t Toggle) MarshalJSON() ([]byte, error) {
	type plain Toggle
	return tagged(ItemToggle, plain(t))
}

func (l Link) MarshalJSON() ([]byte, error) {
	type plain Link
	return tagged(ItemLink, plain(l))
}

func tagged(tag ItemType, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["itemType"], _ = json.Marshal(tag)
	return json.Marshal(fields)
}

// PropertyName returns the property an item controls, or "" for separators.
func PropertyName(item Item) string {
	switch v := item.(type) {
	case Action:
		return v.PropertyName
	case ColorSelector:
		return v.PropertyName
	case Dropdown:
		return v.PropertyName
	case Toggle:
		return v.PropertyName
	case Link:
		return v.PropertyName
	}
	return ""
}

// Decode parses a JSON item list as sent by a host or stored in a manifest.
func Decode(data []byte) ([]Item, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidMenu, err)
	}
	items := make([]Item, 0, len(raws))
	for i, raw := range raws {
		item, err := decodeItem(raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(raw json.RawMessage) (Item, error) {
	var head struct {
		ItemType ItemType `json:"itemType"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidMenu, err)
	}
	var (
		item Item
		err  error
	)
	switch head.ItemType {
	case ItemAction:
		var v Action
		err = json.Unmarshal(raw, &v)
		item = v
	case ItemSeparator:
		item = Separator{}
	case ItemColorSelector:
		var v ColorSelector
		err = json.Unmarshal(raw, &v)
		item = v
	case ItemDropdown:
		var v Dropdown
		err = json.Unmarshal(raw, &v)
		item = v
	case ItemToggle:
		var v Toggle
		err = json.Unmarshal(raw, &v)
		item = v
	case ItemLink:
		var v Link
		err = json.Unmarshal(raw, &v)
		item = v
	default:
		if hint := node.Suggest(string(head.ItemType), itemTypes); hint != "" {
			return nil, fmt.Errorf("%w: unknown itemType %q (did you mean %q?)", errors.ErrInvalidMenu, head.ItemType, hint)
		}
		return nil, fmt.Errorf("%w: unknown itemType %q", errors.ErrInvalidMenu, head.ItemType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrInvalidMenu, head.ItemType, err)
	}
	return item, nil
}

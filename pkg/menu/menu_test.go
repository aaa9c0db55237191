package menu

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-drift/widgetkit/pkg/errors"
)

func validItems() []Item {
	return []Item{
		Action{Base: Base{Tooltip: "Reset", PropertyName: "reset"}},
		Separator{},
		ColorSelector{
			Base:           Base{Tooltip: "Color", PropertyName: "color"},
			Options:        []ColorOption{{Tooltip: "Red", Option: "#f00"}, {Tooltip: "Blue", Option: "#00f"}},
			SelectedOption: "#f00",
		},
		Dropdown{
			Base:           Base{Tooltip: "Size", PropertyName: "size"},
			Options:        []DropdownOption{{Option: "s", Label: "Small"}, {Option: "l", Label: "Large"}},
			SelectedOption: "s",
			Direction:      "row",
			OptionType:     "label",
		},
		Toggle{Base: Base{Tooltip: "Bold", PropertyName: "bold"}, IsToggled: true},
		Link{Base: Base{Tooltip: "Docs", PropertyName: "docs"}, Href: "https://example.com"},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validItems()); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := Validate(nil); err != nil {
		t.Errorf("Validate(nil): %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  string
	}{
		{"missing name", []Item{Action{Base: Base{Tooltip: "x"}}}, "propertyName is required"},
		{"missing tooltip", []Item{Toggle{Base: Base{PropertyName: "b"}}}, "tooltip is required"},
		{"duplicate name", []Item{
			Action{Base: Base{Tooltip: "a", PropertyName: "p"}},
			Toggle{Base: Base{Tooltip: "b", PropertyName: "p"}},
		}, "already used"},
		{"empty colors", []Item{ColorSelector{Base: Base{Tooltip: "c", PropertyName: "c"}}}, "options must not be empty"},
		{"bad selection", []Item{Dropdown{
			Base:           Base{Tooltip: "d", PropertyName: "d"},
			Options:        []DropdownOption{{Option: "a", Label: "A"}},
			SelectedOption: "z", Direction: "row", OptionType: "label",
		}}, "selectedOption"},
		{"bad direction", []Item{Dropdown{
			Base:           Base{Tooltip: "d", PropertyName: "d"},
			Options:        []DropdownOption{{Option: "a", Label: "A"}},
			SelectedOption: "a", Direction: "diagonal", OptionType: "label",
		}}, "direction"},
		{"link without href", []Item{Link{Base: Base{Tooltip: "l", PropertyName: "l"}}}, "href is required"},
		{"nil item", []Item{nil}, "is nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.items)
			if !errors.Is(err, errors.ErrInvalidMenu) {
				t.Fatalf("expected ErrInvalidMenu, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	items := validItems()
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"itemType":"color-selector"`) {
		t.Errorf("missing discriminant in %s", data)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(items) {
		t.Fatalf("decoded %d items, want %d", len(decoded), len(items))
	}
	for i := range items {
		if decoded[i].ItemType() != items[i].ItemType() {
			t.Errorf("item %d type = %s, want %s", i, decoded[i].ItemType(), items[i].ItemType())
		}
	}
	dd := decoded[3].(Dropdown)
	if dd.SelectedOption != "s" || len(dd.Options) != 2 || dd.PropertyName != "size" {
		t.Errorf("dropdown = %+v", dd)
	}
}

func TestDecode_UnknownItemType(t *testing.T) {
	_, err := Decode([]byte(`[{"itemType":"toggel","propertyName":"x","tooltip":"x"}]`))
	if !errors.Is(err, errors.ErrInvalidMenu) {
		t.Fatalf("expected ErrInvalidMenu, got %v", err)
	}
	if !strings.Contains(err.Error(), `did you mean "toggle"`) {
		t.Errorf("missing suggestion: %v", err)
	}
	if _, err := Decode([]byte(`{`)); !errors.Is(err, errors.ErrInvalidMenu) {
		t.Errorf("expected ErrInvalidMenu for bad JSON, got %v", err)
	}
}

func TestDescriptor(t *testing.T) {
	var got PropertyEvent
	d := &Descriptor{Items: validItems(), OnChange: func(e PropertyEvent) { got = e }}
	item, ok := d.Lookup("size")
	if !ok || item.ItemType() != ItemDropdown {
		t.Errorf("Lookup(size) = %v, %v", item, ok)
	}
	if _, ok := d.Lookup("missing"); ok {
		t.Error("Lookup(missing) succeeded")
	}

	v := "l"
	d.OnChange(PropertyEvent{PropertyName: "size", PropertyValue: &v})
	if got.Value() != "l" {
		t.Errorf("handler got %+v", got)
	}
	if (PropertyEvent{}).Value() != "" {
		t.Error("empty event has a value")
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"items":[`) {
		t.Errorf("descriptor JSON = %s", data)
	}
}

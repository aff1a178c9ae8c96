// Package mapping binds artifact slots to dataset columns or literal text.
package mapping

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

// Slot is a logical field an artifact consumes.
type Slot string

const (
	SlotURL       Slot = "url"
	SlotFirstName Slot = "firstName"
	SlotLastName  Slot = "lastName"
	SlotPlatform  Slot = "platform"
)

// Slots returns every slot in display order.
func Slots() []Slot {
	return []Slot{SlotURL, SlotFirstName, SlotLastName, SlotPlatform}
}

// ParseSlot accepts a slot name case-insensitively.
func ParseSlot(s string) (Slot, error) {
	for _, slot := range Slots() {
		if strings.EqualFold(s, string(slot)) {
			return slot, nil
		}
	}
	return "", fmt.Errorf("unknown slot %q", s)
}

// BindKind says where a slot's value comes from.
type BindKind string

const (
	BindUnset  BindKind = ""
	BindColumn BindKind = "column"
	BindCustom BindKind = "custom"
)

// Binding is one slot's source.
type Binding struct {
	Kind   BindKind `json:"kind"`
	Column string   `json:"column,omitempty"`
	Custom string   `json:"custom,omitempty"`
}

// Column binds to a header.
func Column(header string) Binding {
	return Binding{Kind: BindColumn, Column: header}
}

// Custom binds to literal text applied to every row.
func Custom(text string) Binding {
	return Binding{Kind: BindCustom, Custom: text}
}

// IsSet reports whether the binding has a source.
func (b Binding) IsSet() bool {
	return b.Kind == BindColumn || b.Kind == BindCustom
}

// Mapping is the slot to binding table. The zero value has every slot unset.
type Mapping struct {
	bindings map[Slot]Binding
}

// New returns an empty mapping.
func New() Mapping {
	return Mapping{bindings: make(map[Slot]Binding, 4)}
}

// Get returns the binding for slot.
func (m Mapping) Get(slot Slot) Binding {
	return m.bindings[slot]
}

// Set returns a copy of m with slot bound to b. Mappings are values; the
// receiver is never modified.
func (m Mapping) Set(slot Slot, b Binding) Mapping {
	out := m.clone()
	if b.IsSet() {
		out.bindings[slot] = b
	} else {
		delete(out.bindings, slot)
	}
	return out
}

// Bindings returns a copy of the set bindings.
func (m Mapping) Bindings() map[Slot]Binding {
	out := make(map[Slot]Binding, len(m.bindings))
	for k, v := range m.bindings {
		out[k] = v
	}
	return out
}

// FromBindings builds a mapping from a slot table, ignoring unset entries.
func FromBindings(in map[Slot]Binding) Mapping {
	m := New()
	for slot, b := range in {
		if b.IsSet() {
			m.bindings[slot] = b
		}
	}
	return m
}

// Ready reports whether generation may start: the url slot must be bound to
// a column, or to non-blank literal text.
func (m Mapping) Ready() bool {
	b := m.Get(SlotURL)
	switch b.Kind {
	case BindColumn:
		return b.Column != ""
	case BindCustom:
		return strings.TrimSpace(b.Custom) != ""
	default:
		return false
	}
}

// Validate checks that every column binding names one of headers.
func (m Mapping) Validate(headers []string) error {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}

	for _, slot := range Slots() {
		b := m.Get(slot)
		if b.Kind == BindColumn && !known[b.Column] {
			return fmt.Errorf("slot %s: unknown column %q", slot, b.Column)
		}
	}
	return nil
}

// Value resolves slot for row.
func (m Mapping) Value(row tabular.Row, slot Slot) string {
	b := m.Get(slot)
	switch b.Kind {
	case BindCustom:
		return b.Custom
	case BindColumn:
		return row.Get(b.Column).String()
	default:
		return ""
	}
}

func (m Mapping) clone() Mapping {
	out := New()
	for k, v := range m.bindings {
		out.bindings[k] = v
	}
	return out
}

package mapping

import "encoding/json"

// MarshalJSON encodes the mapping as an object keyed by slot name.
func (m Mapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Bindings())
}

// UnmarshalJSON decodes a slot-keyed object. Unknown slots are rejected.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var raw map[string]Binding
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := New()
	for name, b := range raw {
		slot, err := ParseSlot(name)
		if err != nil {
			return err
		}
		if b.Kind == BindUnset && (b.Column != "" || b.Custom != "") {
			b.Kind = BindColumn
			if b.Column == "" {
				b.Kind = BindCustom
			}
		}
		if b.IsSet() {
			out.bindings[slot] = b
		}
	}
	*m = out
	return nil
}

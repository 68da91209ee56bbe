package proto

import (
	"encoding/json"
	"fmt"
)

// ModifyKind discriminates the atomic mutation variants.
type ModifyKind int

const (
	// ModifyPresent asserts a value on an attribute.
	ModifyPresent ModifyKind = iota
	// ModifyRemoved removes a single value from an attribute.
	ModifyRemoved
	// ModifyPurged removes an attribute entirely.
	ModifyPurged
)

func (k ModifyKind) String() string {
	switch k {
	case ModifyPresent:
		return "Present"
	case ModifyRemoved:
		return "Removed"
	case ModifyPurged:
		return "Purged"
	default:
		return "Unknown"
	}
}

// Modify is one atomic attribute mutation. Value is unused for Purged.
type Modify struct {
	Kind  ModifyKind
	Attr  string
	Value string
}

// Present builds an add-value mutation.
func Present(attr, value string) Modify {
	return Modify{Kind: ModifyPresent, Attr: attr, Value: value}
}

// Removed builds a remove-value mutation.
func Removed(attr, value string) Modify {
	return Modify{Kind: ModifyRemoved, Attr: attr, Value: value}
}

// Purged builds a remove-attribute mutation.
func Purged(attr string) Modify {
	return Modify{Kind: ModifyPurged, Attr: attr}
}

func (m Modify) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case ModifyPresent, ModifyRemoved:
		return json.Marshal(map[string][2]string{m.Kind.String(): {m.Attr, m.Value}})
	case ModifyPurged:
		return json.Marshal(map[string]string{"Purged": m.Attr})
	default:
		return nil, fmt.Errorf("proto: unknown modify kind %d", m.Kind)
	}
}

func (m *Modify) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("proto: malformed modify: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("proto: modify must carry exactly one variant tag")
	}
	for tag, raw := range tagged {
		switch tag {
		case "Present", "Removed":
			var pair [2]string
			if err := json.Unmarshal(raw, &pair); err != nil {
				return fmt.Errorf("proto: malformed %s modify: %w", tag, err)
			}
			kind := ModifyPresent
			if tag == "Removed" {
				kind = ModifyRemoved
			}
			*m = Modify{Kind: kind, Attr: pair[0], Value: pair[1]}
		case "Purged":
			var attr string
			if err := json.Unmarshal(raw, &attr); err != nil {
				return fmt.Errorf("proto: malformed Purged modify: %w", err)
			}
			*m = Purged(attr)
		default:
			return fmt.Errorf("proto: unknown modify variant %q", tag)
		}
	}
	return nil
}

// ModifyList is an ordered sequence of mutations applied left to right.
// Ordering is semantically significant: a later mutation on the same
// attribute overrides an earlier one, so the sequence must survive the wire
// verbatim.
type ModifyList struct {
	Mods []Modify `json:"mods"`
}

// NewModifyList constructs a ModifyList preserving the given order.
func NewModifyList(mods ...Modify) ModifyList {
	return ModifyList{Mods: mods}
}

// Apply evaluates the list left to right against an entry and returns the
// mutated copy. The input entry is never modified. Present appends the value
// to the attribute, Removed drops matching values (deleting the attribute if
// none remain), Purged deletes the attribute outright.
func (ml ModifyList) Apply(e Entry) Entry {
	out := e.Clone()
	if out.Attrs == nil {
		out.Attrs = make(map[string][]string)
	}
	for _, m := range ml.Mods {
		switch m.Kind {
		case ModifyPresent:
			out.Attrs[m.Attr] = append(out.Attrs[m.Attr], m.Value)
		case ModifyRemoved:
			kept := out.Attrs[m.Attr][:0]
			for _, v := range out.Attrs[m.Attr] {
				if v != m.Value {
					kept = append(kept, v)
				}
			}
			if len(kept) == 0 {
				delete(out.Attrs, m.Attr)
			} else {
				out.Attrs[m.Attr] = kept
			}
		case ModifyPurged:
			delete(out.Attrs, m.Attr)
		}
	}
	return out
}

package proto

// Entry is a directory object: a mapping from attribute name to an ordered
// sequence of values. Attributes are multi-valued; values keep their
// insertion order and duplicates are permitted at this layer. Whether
// duplicates survive is a schema policy, not an Entry concern.
//
// Entries are treated as immutable once constructed. Mutation is expressed
// through ModifyList and applied by the backend, never in place.
type Entry struct {
	Attrs map[string][]string `json:"attrs"`
}

// NewEntry constructs an Entry from an attribute map. The map is copied so
// callers cannot alias the entry's internal state.
func NewEntry(attrs map[string][]string) Entry {
	e := Entry{Attrs: make(map[string][]string, len(attrs))}
	for name, values := range attrs {
		e.Attrs[name] = append([]string(nil), values...)
	}
	return e
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	return NewEntry(e.Attrs)
}

// Has reports whether the entry carries the named attribute with at least
// one value.
func (e Entry) Has(attr string) bool {
	return len(e.Attrs[attr]) > 0
}

// Values returns the value sequence for the named attribute, or nil if the
// attribute is absent. The returned slice is a copy.
func (e Entry) Values(attr string) []string {
	vs, ok := e.Attrs[attr]
	if !ok {
		return nil
	}
	return append([]string(nil), vs...)
}

// First returns the first value of the named attribute and whether the
// attribute was present.
func (e Entry) First(attr string) (string, bool) {
	vs := e.Attrs[attr]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Contains reports whether the named attribute holds the exact value.
func (e Entry) Contains(attr, value string) bool {
	for _, v := range e.Attrs[attr] {
		if v == value {
			return true
		}
	}
	return false
}

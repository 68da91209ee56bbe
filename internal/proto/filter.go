package proto

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MaxFilterDepth bounds filter tree nesting. Filters arrive over the wire, so
// the recursive shape is attacker controlled; trees nested deeper than this
// are rejected with a FilterGeneration error instead of being walked.
const MaxFilterDepth = 16

// FilterKind discriminates the filter variants. The declared order is the
// variant rank of the total order over filters, which existing consumers rely
// on for canonical-form comparison; do not reorder.
type FilterKind int

const (
	// FilterEq asserts an attribute holds an exact value.
	FilterEq FilterKind = iota
	// FilterSub asserts an attribute holds a value containing a substring.
	FilterSub
	// FilterPres asserts an attribute is present with at least one value.
	FilterPres
	// FilterOr is true when any child is true. Or of no children is the
	// "always false" filter.
	FilterOr
	// FilterAnd is true when every child is true. And of no children is the
	// "always true" filter.
	FilterAnd
	// FilterAndNot negates its single child.
	FilterAndNot
	// FilterSelfUUID is a placeholder for the UUID of the requesting
	// principal. It is resolved by the backend before evaluation, never by
	// the filter engine itself.
	FilterSelfUUID
)

// String returns the variant tag used on the wire.
func (k FilterKind) String() string {
	switch k {
	case FilterEq:
		return "Eq"
	case FilterSub:
		return "Sub"
	case FilterPres:
		return "Pres"
	case FilterOr:
		return "Or"
	case FilterAnd:
		return "And"
	case FilterAndNot:
		return "AndNot"
	case FilterSelfUUID:
		return "Self"
	default:
		return "Unknown"
	}
}

// Filter is a recursive boolean query expression over entry attributes.
// It is a value type: comparisons, canonicalization, and resolution all
// return new trees and never mutate their input.
type Filter struct {
	Kind     FilterKind
	Attr     string
	Value    string
	Children []Filter // Or / And
	Child    *Filter  // AndNot
}

// Eq builds an exact-match assertion.
func Eq(attr, value string) Filter {
	return Filter{Kind: FilterEq, Attr: attr, Value: value}
}

// Sub builds a substring-match assertion.
func Sub(attr, value string) Filter {
	return Filter{Kind: FilterSub, Attr: attr, Value: value}
}

// Pres builds an attribute-presence assertion.
func Pres(attr string) Filter {
	return Filter{Kind: FilterPres, Attr: attr}
}

// Or combines sub-filters disjunctively. Or() denotes "always false".
func Or(children ...Filter) Filter {
	return Filter{Kind: FilterOr, Children: children}
}

// And combines sub-filters conjunctively. And() denotes "always true".
func And(children ...Filter) Filter {
	return Filter{Kind: FilterAnd, Children: children}
}

// AndNot negates a single sub-filter.
func AndNot(child Filter) Filter {
	return Filter{Kind: FilterAndNot, Child: &child}
}

// SelfUUID builds the requesting-principal placeholder.
func SelfUUID() Filter {
	return Filter{Kind: FilterSelfUUID}
}

// Compare is a three-way comparison defining the total order over filters:
// variant rank first, then attribute, then value, recursing into children.
// The order is hand-specified rather than derived from field layout so it is
// a stable contract.
func Compare(a, b Filter) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case FilterEq, FilterSub:
		if c := strings.Compare(a.Attr, b.Attr); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	case FilterPres:
		return strings.Compare(a.Attr, b.Attr)
	case FilterOr, FilterAnd:
		n := len(a.Children)
		if len(b.Children) < n {
			n = len(b.Children)
		}
		for i := 0; i < n; i++ {
			if c := Compare(a.Children[i], b.Children[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a.Children) < len(b.Children):
			return -1
		case len(a.Children) > len(b.Children):
			return 1
		}
		return 0
	case FilterAndNot:
		return Compare(*a.Child, *b.Child)
	default: // FilterSelfUUID
		return 0
	}
}

// Equal reports structural equality under the total order.
func (f Filter) Equal(other Filter) bool {
	return Compare(f, other) == 0
}

// Canonicalize produces the canonical form of the filter: children are
// canonicalized post-order, nested combinators of the same kind are flattened,
// child sequences are sorted under the total order, and exact duplicate
// children are removed. Two filters are structurally equivalent iff their
// canonical forms are Equal. Canonicalization is idempotent and pure.
//
// Trees nested deeper than MaxFilterDepth are rejected with FilterGeneration.
func (f Filter) Canonicalize() (Filter, error) {
	return canonicalize(f, 1)
}

func canonicalize(f Filter, depth int) (Filter, error) {
	if depth > MaxFilterDepth {
		return Filter{}, NewOperationError(OpFilterGeneration)
	}
	switch f.Kind {
	case FilterOr, FilterAnd:
		out := make([]Filter, 0, len(f.Children))
		for _, child := range f.Children {
			c, err := canonicalize(child, depth+1)
			if err != nil {
				return Filter{}, err
			}
			// A canonical child of the same kind is already flat, so one
			// level of splicing restores associativity.
			if c.Kind == f.Kind {
				out = append(out, c.Children...)
			} else {
				out = append(out, c)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
		out = dedupSorted(out)
		return Filter{Kind: f.Kind, Children: out}, nil
	case FilterAndNot:
		c, err := canonicalize(*f.Child, depth+1)
		if err != nil {
			return Filter{}, err
		}
		return AndNot(c), nil
	default:
		return f, nil
	}
}

// dedupSorted removes exact duplicates from a sorted child sequence.
// Duplicate children are logically redundant inside a pure And/Or, so this
// never changes semantics.
func dedupSorted(fs []Filter) []Filter {
	if len(fs) < 2 {
		return fs
	}
	out := fs[:1]
	for _, f := range fs[1:] {
		if Compare(out[len(out)-1], f) != 0 {
			out = append(out, f)
		}
	}
	return out
}

// IsAlwaysFalse reports whether the filter is the trivially-false sentinel,
// the empty Or. Callers should canonicalize first.
func (f Filter) IsAlwaysFalse() bool {
	return f.Kind == FilterOr && len(f.Children) == 0
}

// IsAlwaysTrue reports whether the filter is the trivially-true sentinel,
// the empty And. Callers should canonicalize first.
func (f Filter) IsAlwaysTrue() bool {
	return f.Kind == FilterAnd && len(f.Children) == 0
}

// ContainsSelf reports whether a SelfUUID placeholder occurs anywhere in the
// tree. The backend uses this to decide resolvability before evaluation.
func (f Filter) ContainsSelf() bool {
	switch f.Kind {
	case FilterSelfUUID:
		return true
	case FilterOr, FilterAnd:
		for _, c := range f.Children {
			if c.ContainsSelf() {
				return true
			}
		}
		return false
	case FilterAndNot:
		return f.Child.ContainsSelf()
	default:
		return false
	}
}

// ResolveSelf substitutes every SelfUUID placeholder with an exact match on
// the uuid attribute of the requesting principal. The result is a new tree;
// substitution can disturb child ordering, so callers re-canonicalize.
func (f Filter) ResolveSelf(uuid string) Filter {
	switch f.Kind {
	case FilterSelfUUID:
		return Eq(AttrUUID, uuid)
	case FilterOr, FilterAnd:
		children := make([]Filter, len(f.Children))
		for i, c := range f.Children {
			children[i] = c.ResolveSelf(uuid)
		}
		return Filter{Kind: f.Kind, Children: children}
	case FilterAndNot:
		return AndNot(f.Child.ResolveSelf(uuid))
	default:
		return f
	}
}

// String renders a debug form of the filter. Not part of the wire contract.
func (f Filter) String() string {
	switch f.Kind {
	case FilterEq, FilterSub:
		return fmt.Sprintf("%s(%s,%s)", f.Kind, f.Attr, f.Value)
	case FilterPres:
		return fmt.Sprintf("Pres(%s)", f.Attr)
	case FilterOr, FilterAnd:
		parts := make([]string, len(f.Children))
		for i, c := range f.Children {
			parts[i] = c.String()
		}
		return fmt.Sprintf("%s[%s]", f.Kind, strings.Join(parts, ","))
	case FilterAndNot:
		return fmt.Sprintf("AndNot(%s)", f.Child)
	default:
		return "Self"
	}
}

// MarshalJSON encodes the filter as an externally tagged union. SelfUUID
// serializes as the bare string "Self" for compatibility with existing
// consumers.
func (f Filter) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FilterEq, FilterSub:
		return json.Marshal(map[string][2]string{f.Kind.String(): {f.Attr, f.Value}})
	case FilterPres:
		return json.Marshal(map[string]string{"Pres": f.Attr})
	case FilterOr, FilterAnd:
		children := f.Children
		if children == nil {
			children = []Filter{}
		}
		return json.Marshal(map[string][]Filter{f.Kind.String(): children})
	case FilterAndNot:
		return json.Marshal(map[string]*Filter{"AndNot": f.Child})
	case FilterSelfUUID:
		return json.Marshal("Self")
	default:
		return nil, fmt.Errorf("proto: cannot marshal unknown filter kind %d", f.Kind)
	}
}

// UnmarshalJSON decodes the externally tagged union form. Nesting beyond
// MaxFilterDepth is rejected during the decode itself, before any recursion
// into the over-deep subtree, so an over-nested wire filter costs at most
// MaxFilterDepth scan passes rather than one per level.
func (f *Filter) UnmarshalJSON(data []byte) error {
	decoded, err := decodeFilter(data, 1)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}

func decodeFilter(data []byte, depth int) (Filter, error) {
	if depth > MaxFilterDepth {
		return Filter{}, NewOperationError(OpFilterGeneration)
	}

	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		if unit != "Self" {
			return Filter{}, fmt.Errorf("proto: unknown filter variant %q", unit)
		}
		return SelfUUID(), nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return Filter{}, fmt.Errorf("proto: malformed filter: %w", err)
	}
	if len(tagged) != 1 {
		return Filter{}, fmt.Errorf("proto: filter must carry exactly one variant tag, got %d", len(tagged))
	}

	for tag, raw := range tagged {
		switch tag {
		case "Eq", "Sub":
			var pair []string
			if err := json.Unmarshal(raw, &pair); err != nil {
				return Filter{}, fmt.Errorf("proto: malformed %s filter: %w", tag, err)
			}
			if len(pair) != 2 {
				return Filter{}, fmt.Errorf("proto: %s filter must carry an attribute and a value", tag)
			}
			kind := FilterEq
			if tag == "Sub" {
				kind = FilterSub
			}
			return Filter{Kind: kind, Attr: pair[0], Value: pair[1]}, nil
		case "Pres":
			var attr string
			if err := json.Unmarshal(raw, &attr); err != nil {
				return Filter{}, fmt.Errorf("proto: malformed Pres filter: %w", err)
			}
			return Pres(attr), nil
		case "Or", "And":
			var raws []json.RawMessage
			if err := json.Unmarshal(raw, &raws); err != nil {
				return Filter{}, fmt.Errorf("proto: malformed %s filter: %w", tag, err)
			}
			children := make([]Filter, len(raws))
			for i, cr := range raws {
				c, err := decodeFilter(cr, depth+1)
				if err != nil {
					return Filter{}, err
				}
				children[i] = c
			}
			kind := FilterOr
			if tag == "And" {
				kind = FilterAnd
			}
			return Filter{Kind: kind, Children: children}, nil
		case "AndNot":
			child, err := decodeFilter(raw, depth+1)
			if err != nil {
				return Filter{}, err
			}
			return AndNot(child), nil
		default:
			return Filter{}, fmt.Errorf("proto: unknown filter variant %q", tag)
		}
	}
	return Filter{}, fmt.Errorf("proto: empty filter")
}

package store

import (
	"strings"

	"castellan/internal/proto"
)

// Matches evaluates a filter against a single entry. Evaluation is pure and
// reentrant; it may run in parallel across independent requests without
// locking. Filters reaching evaluation are canonical and fully resolved:
// an unresolved SelfUUID placeholder never matches anything.
func Matches(f proto.Filter, e proto.Entry) bool {
	switch f.Kind {
	case proto.FilterEq:
		return e.Contains(f.Attr, f.Value)
	case proto.FilterSub:
		for _, v := range e.Attrs[f.Attr] {
			if strings.Contains(v, f.Value) {
				return true
			}
		}
		return false
	case proto.FilterPres:
		return e.Has(f.Attr)
	case proto.FilterOr:
		// Or of no children is "always false".
		for _, c := range f.Children {
			if Matches(c, e) {
				return true
			}
		}
		return false
	case proto.FilterAnd:
		// And of no children is "always true".
		for _, c := range f.Children {
			if !Matches(c, e) {
				return false
			}
		}
		return true
	case proto.FilterAndNot:
		return !Matches(*f.Child, e)
	default:
		return false
	}
}

// Package schema validates entry shape before entries reach the store.
package schema

import (
	"regexp"

	"castellan/internal/proto"
)

var attrNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var knownClasses = map[string]bool{
	proto.ClassAccount:   true,
	proto.ClassGroup:     true,
	proto.ClassAnonymous: true,
	proto.ClassSystem:    true,
}

// mustAttrs are required on every entry. The uuid attribute is assigned by
// the directory service before validation when the client omits it.
var mustAttrs = []string{proto.AttrName, proto.AttrUUID}

// Validator checks an entry against the schema.
type Validator interface {
	Validate(e proto.Entry) *proto.SchemaError
}

// Basic is the built-in validator: legal attribute names, non-empty values,
// required attributes present, and known classes only. It does not
// deduplicate attribute values; duplicates are legal at this layer.
type Basic struct{}

// NewBasic creates the built-in validator.
func NewBasic() *Basic {
	return &Basic{}
}

// Validate returns nil when the entry is well-formed.
func (v *Basic) Validate(e proto.Entry) *proto.SchemaError {
	for name, values := range e.Attrs {
		if !attrNameRe.MatchString(name) {
			err := proto.NewSchemaError(proto.SchemaInvalidAttribute)
			return &err
		}
		if len(values) == 0 {
			err := proto.NewSchemaError(proto.SchemaInvalidAttributeSyntax)
			return &err
		}
		for _, value := range values {
			if value == "" {
				err := proto.NewSchemaError(proto.SchemaInvalidAttributeSyntax)
				return &err
			}
		}
	}
	for _, must := range mustAttrs {
		if !e.Has(must) {
			err := proto.NewMissingMustAttribute(must)
			return &err
		}
	}
	for _, class := range e.Attrs[proto.AttrClass] {
		if !knownClasses[class] {
			err := proto.NewSchemaError(proto.SchemaInvalidClass)
			return &err
		}
	}
	return nil
}

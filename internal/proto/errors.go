package proto

import (
	"encoding/json"
	"fmt"
)

// The error taxonomy is three closed tagged sets. SchemaError covers
// entry-shape violations, ConsistencyError covers structural-integrity
// faults, and OperationError is the top-level set every response can carry.
// Errors are data: fallible operations return them as typed values, and the
// wire form tags every variant by name. Lower layers only construct and
// return these; wrapping between layers goes through the explicit
// constructors below, never blanket conversion.

// SchemaErrorKind enumerates entry-shape violations.
type SchemaErrorKind int

const (
	SchemaNotImplemented SchemaErrorKind = iota
	SchemaInvalidClass
	SchemaMissingMustAttribute
	SchemaInvalidAttribute
	SchemaInvalidAttributeSyntax
	SchemaEmptyFilter
	SchemaCorrupted
)

var schemaKindNames = map[SchemaErrorKind]string{
	SchemaNotImplemented:         "NotImplemented",
	SchemaInvalidClass:           "InvalidClass",
	SchemaMissingMustAttribute:   "MissingMustAttribute",
	SchemaInvalidAttribute:       "InvalidAttribute",
	SchemaInvalidAttributeSyntax: "InvalidAttributeSyntax",
	SchemaEmptyFilter:            "EmptyFilter",
	SchemaCorrupted:              "Corrupted",
}

// SchemaError is an entry-shape violation. Attr is only meaningful for
// MissingMustAttribute.
type SchemaError struct {
	Kind SchemaErrorKind
	Attr string
}

// NewSchemaError constructs a payload-free schema error.
func NewSchemaError(kind SchemaErrorKind) SchemaError {
	return SchemaError{Kind: kind}
}

// NewMissingMustAttribute constructs the missing-required-attribute error.
func NewMissingMustAttribute(attr string) SchemaError {
	return SchemaError{Kind: SchemaMissingMustAttribute, Attr: attr}
}

func (e SchemaError) Error() string {
	if e.Kind == SchemaMissingMustAttribute {
		return fmt.Sprintf("schema: missing must attribute %q", e.Attr)
	}
	return "schema: " + schemaKindNames[e.Kind]
}

// MarshalJSON emits unit variants as bare strings and the data variant with
// its tag.
func (e SchemaError) MarshalJSON() ([]byte, error) {
	name, ok := schemaKindNames[e.Kind]
	if !ok {
		return nil, fmt.Errorf("proto: unknown schema error kind %d", e.Kind)
	}
	if e.Kind == SchemaMissingMustAttribute {
		return json.Marshal(map[string]string{name: e.Attr})
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes both the bare-string and the tagged forms.
func (e *SchemaError) UnmarshalJSON(data []byte) error {
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		for kind, name := range schemaKindNames {
			if name == unit && kind != SchemaMissingMustAttribute {
				*e = SchemaError{Kind: kind}
				return nil
			}
		}
		return fmt.Errorf("proto: unknown schema error variant %q", unit)
	}
	var tagged map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("proto: malformed schema error: %w", err)
	}
	attr, ok := tagged["MissingMustAttribute"]
	if !ok || len(tagged) != 1 {
		return fmt.Errorf("proto: malformed schema error")
	}
	*e = NewMissingMustAttribute(attr)
	return nil
}

// ConsistencyErrorKind enumerates structural-integrity faults.
type ConsistencyErrorKind int

const (
	ConsistencyUnknown ConsistencyErrorKind = iota
	ConsistencySchemaClassMissingAttribute
	ConsistencyQueryServerSearchFailure
	ConsistencyEntryUUIDCorrupt
	ConsistencyUUIDIndexCorrupt
	ConsistencyUUIDNotUnique
	ConsistencyRefintNotUpheld
	ConsistencyMemberOfInvalid
	ConsistencyInvalidAttributeType
	ConsistencyDuplicateUniqueAttribute
)

var consistencyKindNames = map[ConsistencyErrorKind]string{
	ConsistencyUnknown:                     "Unknown",
	ConsistencySchemaClassMissingAttribute: "SchemaClassMissingAttribute",
	ConsistencyQueryServerSearchFailure:    "QueryServerSearchFailure",
	ConsistencyEntryUUIDCorrupt:            "EntryUuidCorrupt",
	ConsistencyUUIDIndexCorrupt:            "UuidIndexCorrupt",
	ConsistencyUUIDNotUnique:               "UuidNotUnique",
	ConsistencyRefintNotUpheld:             "RefintNotUpheld",
	ConsistencyMemberOfInvalid:             "MemberOfInvalid",
	ConsistencyInvalidAttributeType:        "InvalidAttributeType",
	ConsistencyDuplicateUniqueAttribute:    "DuplicateUniqueAttribute",
}

// ConsistencyError is a single structural-integrity fault. Which payload
// fields are meaningful depends on the kind: Class and Attr for
// SchemaClassMissingAttribute, EntryID for the per-entry faults, Value for
// the uuid/attribute faults.
type ConsistencyError struct {
	Kind    ConsistencyErrorKind
	Class   string
	Attr    string
	EntryID uint64
	Value   string
}

func (e ConsistencyError) Error() string {
	name := consistencyKindNames[e.Kind]
	switch e.Kind {
	case ConsistencySchemaClassMissingAttribute:
		return fmt.Sprintf("consistency: %s %s/%s", name, e.Class, e.Attr)
	case ConsistencyEntryUUIDCorrupt, ConsistencyRefintNotUpheld, ConsistencyMemberOfInvalid:
		return fmt.Sprintf("consistency: %s entry %d", name, e.EntryID)
	case ConsistencyUUIDIndexCorrupt, ConsistencyUUIDNotUnique, ConsistencyInvalidAttributeType, ConsistencyDuplicateUniqueAttribute:
		return fmt.Sprintf("consistency: %s %q", name, e.Value)
	default:
		return "consistency: " + name
	}
}

// MarshalJSON tags each variant by name with its payload shape.
func (e ConsistencyError) MarshalJSON() ([]byte, error) {
	name, ok := consistencyKindNames[e.Kind]
	if !ok {
		return nil, fmt.Errorf("proto: unknown consistency error kind %d", e.Kind)
	}
	switch e.Kind {
	case ConsistencySchemaClassMissingAttribute:
		return json.Marshal(map[string][2]string{name: {e.Class, e.Attr}})
	case ConsistencyEntryUUIDCorrupt, ConsistencyRefintNotUpheld, ConsistencyMemberOfInvalid:
		return json.Marshal(map[string]uint64{name: e.EntryID})
	case ConsistencyUUIDIndexCorrupt, ConsistencyUUIDNotUnique, ConsistencyInvalidAttributeType, ConsistencyDuplicateUniqueAttribute:
		return json.Marshal(map[string]string{name: e.Value})
	default:
		return json.Marshal(name)
	}
}

// UnmarshalJSON decodes the tagged and bare-string forms.
func (e *ConsistencyError) UnmarshalJSON(data []byte) error {
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		for kind, name := range consistencyKindNames {
			if name == unit {
				*e = ConsistencyError{Kind: kind}
				return nil
			}
		}
		return fmt.Errorf("proto: unknown consistency error variant %q", unit)
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("proto: malformed consistency error: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("proto: consistency error must carry exactly one variant tag")
	}
	for tag, raw := range tagged {
		var kind ConsistencyErrorKind
		found := false
		for k, name := range consistencyKindNames {
			if name == tag {
				kind, found = k, true
				break
			}
		}
		if !found {
			return fmt.Errorf("proto: unknown consistency error variant %q", tag)
		}
		out := ConsistencyError{Kind: kind}
		switch kind {
		case ConsistencySchemaClassMissingAttribute:
			var pair [2]string
			if err := json.Unmarshal(raw, &pair); err != nil {
				return fmt.Errorf("proto: malformed %s: %w", tag, err)
			}
			out.Class, out.Attr = pair[0], pair[1]
		case ConsistencyEntryUUIDCorrupt, ConsistencyRefintNotUpheld, ConsistencyMemberOfInvalid:
			if err := json.Unmarshal(raw, &out.EntryID); err != nil {
				return fmt.Errorf("proto: malformed %s: %w", tag, err)
			}
		default:
			if err := json.Unmarshal(raw, &out.Value); err != nil {
				return fmt.Errorf("proto: malformed %s: %w", tag, err)
			}
		}
		*e = out
	}
	return nil
}

// ConsistencyResult is one check outcome in a consistency pass. It encodes
// as {"Ok":null} on success and {"Err":<fault>} on failure so a single pass
// can report several simultaneous faults.
type ConsistencyResult struct {
	Err *ConsistencyError
}

// ConsistencyOK is a passing check result.
func ConsistencyOK() ConsistencyResult {
	return ConsistencyResult{}
}

// ConsistencyFailed wraps a fault as a failing check result.
func ConsistencyFailed(err ConsistencyError) ConsistencyResult {
	return ConsistencyResult{Err: &err}
}

// Passed reports whether the check succeeded.
func (r ConsistencyResult) Passed() bool {
	return r.Err == nil
}

func (r ConsistencyResult) MarshalJSON() ([]byte, error) {
	if r.Err == nil {
		return json.Marshal(map[string]any{"Ok": nil})
	}
	return json.Marshal(map[string]*ConsistencyError{"Err": r.Err})
}

func (r *ConsistencyResult) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("proto: malformed consistency result: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("proto: consistency result must carry exactly one variant tag, got %d", len(tagged))
	}
	if _, ok := tagged["Ok"]; ok {
		*r = ConsistencyResult{}
		return nil
	}
	raw, ok := tagged["Err"]
	if !ok {
		return fmt.Errorf("proto: consistency result must be Ok or Err")
	}
	var ce ConsistencyError
	if err := json.Unmarshal(raw, &ce); err != nil {
		return err
	}
	*r = ConsistencyResult{Err: &ce}
	return nil
}

// OperationErrorKind enumerates the top-level request-processing failures.
type OperationErrorKind int

const (
	OpEmptyRequest OperationErrorKind = iota
	OpBackend
	OpNoMatchingEntries
	OpCorruptedEntry
	OpConsistencyError
	OpSchemaViolation
	OpPlugin
	OpFilterGeneration
	OpFilterUUIDResolution
	OpInvalidAttributeName
	OpInvalidAttribute
	OpInvalidDBState
	OpInvalidEntryID
	OpInvalidRequestState
	OpInvalidState
	OpInvalidEntryState
	OpInvalidUUID
	OpInvalidACPState
	OpInvalidSchemaState
	OpInvalidAccountState
	OpBackendEngine
	OpAccessDenied
	OpNotAuthenticated
	OpInvalidAuthState
	OpInvalidSessionState
	OpSystemProtectedObject
)

var operationKindNames = map[OperationErrorKind]string{
	OpEmptyRequest:          "EmptyRequest",
	OpBackend:               "Backend",
	OpNoMatchingEntries:     "NoMatchingEntries",
	OpCorruptedEntry:        "CorruptedEntry",
	OpConsistencyError:      "ConsistencyError",
	OpSchemaViolation:       "SchemaViolation",
	OpPlugin:                "Plugin",
	OpFilterGeneration:      "FilterGeneration",
	OpFilterUUIDResolution:  "FilterUUIDResolution",
	OpInvalidAttributeName:  "InvalidAttributeName",
	OpInvalidAttribute:      "InvalidAttribute",
	OpInvalidDBState:        "InvalidDBState",
	OpInvalidEntryID:        "InvalidEntryID",
	OpInvalidRequestState:   "InvalidRequestState",
	OpInvalidState:          "InvalidState",
	OpInvalidEntryState:     "InvalidEntryState",
	OpInvalidUUID:           "InvalidUuid",
	OpInvalidACPState:       "InvalidACPState",
	OpInvalidSchemaState:    "InvalidSchemaState",
	OpInvalidAccountState:   "InvalidAccountState",
	OpBackendEngine:         "BackendEngine",
	OpAccessDenied:          "AccessDenied",
	OpNotAuthenticated:      "NotAuthenticated",
	OpInvalidAuthState:      "InvalidAuthState",
	OpInvalidSessionState:   "InvalidSessionState",
	OpSystemProtectedObject: "SystemProtectedObject",
}

// operationTextKinds carry a string payload on the wire.
var operationTextKinds = map[OperationErrorKind]bool{
	OpInvalidAttributeName: true,
	OpInvalidAttribute:     true,
	OpInvalidACPState:      true,
	OpInvalidSchemaState:   true,
	OpInvalidAccountState:  true,
	OpInvalidAuthState:     true,
}

// OperationError is the top-level failure value of every operation. Which
// payload fields are meaningful depends on the kind: Text for the
// string-carrying kinds, EntryID for CorruptedEntry, Schema for
// SchemaViolation, Results for ConsistencyError.
type OperationError struct {
	Kind    OperationErrorKind
	Text    string
	EntryID uint64
	Schema  *SchemaError
	Results []ConsistencyResult
}

// NewOperationError constructs a payload-free operation error.
func NewOperationError(kind OperationErrorKind) *OperationError {
	return &OperationError{Kind: kind}
}

// NewOperationErrorText constructs a string-carrying operation error.
func NewOperationErrorText(kind OperationErrorKind, text string) *OperationError {
	return &OperationError{Kind: kind, Text: text}
}

// NewCorruptedEntry wraps a backend entry id into CorruptedEntry.
func NewCorruptedEntry(id uint64) *OperationError {
	return &OperationError{Kind: OpCorruptedEntry, EntryID: id}
}

// NewSchemaViolation wraps a SchemaError into the operation layer.
func NewSchemaViolation(se SchemaError) *OperationError {
	return &OperationError{Kind: OpSchemaViolation, Schema: &se}
}

// NewConsistencyFailure wraps a sequence of check results into the operation
// layer so a single pass can surface every fault at once.
func NewConsistencyFailure(results []ConsistencyResult) *OperationError {
	return &OperationError{Kind: OpConsistencyError, Results: results}
}

func (e *OperationError) Error() string {
	name := operationKindNames[e.Kind]
	switch {
	case operationTextKinds[e.Kind]:
		return fmt.Sprintf("operation: %s: %s", name, e.Text)
	case e.Kind == OpSchemaViolation:
		return fmt.Sprintf("operation: %s: %v", name, e.Schema)
	case e.Kind == OpCorruptedEntry:
		return fmt.Sprintf("operation: %s: entry %d", name, e.EntryID)
	default:
		return "operation: " + name
	}
}

// Is matches operation errors by kind so errors.Is works across wrapping.
func (e *OperationError) Is(target error) bool {
	t, ok := target.(*OperationError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// MarshalJSON emits unit variants as bare strings and payload variants under
// their tag.
func (e *OperationError) MarshalJSON() ([]byte, error) {
	name, ok := operationKindNames[e.Kind]
	if !ok {
		return nil, fmt.Errorf("proto: unknown operation error kind %d", e.Kind)
	}
	switch {
	case operationTextKinds[e.Kind]:
		return json.Marshal(map[string]string{name: e.Text})
	case e.Kind == OpCorruptedEntry:
		return json.Marshal(map[string]uint64{name: e.EntryID})
	case e.Kind == OpSchemaViolation:
		return json.Marshal(map[string]*SchemaError{name: e.Schema})
	case e.Kind == OpConsistencyError:
		results := e.Results
		if results == nil {
			results = []ConsistencyResult{}
		}
		return json.Marshal(map[string][]ConsistencyResult{name: results})
	default:
		return json.Marshal(name)
	}
}

// UnmarshalJSON decodes both forms.
func (e *OperationError) UnmarshalJSON(data []byte) error {
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		for kind, name := range operationKindNames {
			if name == unit {
				*e = OperationError{Kind: kind}
				return nil
			}
		}
		return fmt.Errorf("proto: unknown operation error variant %q", unit)
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("proto: malformed operation error: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("proto: operation error must carry exactly one variant tag")
	}
	for tag, raw := range tagged {
		var kind OperationErrorKind
		found := false
		for k, name := range operationKindNames {
			if name == tag {
				kind, found = k, true
				break
			}
		}
		if !found {
			return fmt.Errorf("proto: unknown operation error variant %q", tag)
		}
		out := OperationError{Kind: kind}
		switch {
		case operationTextKinds[kind]:
			if err := json.Unmarshal(raw, &out.Text); err != nil {
				return fmt.Errorf("proto: malformed %s: %w", tag, err)
			}
		case kind == OpCorruptedEntry:
			if err := json.Unmarshal(raw, &out.EntryID); err != nil {
				return fmt.Errorf("proto: malformed %s: %w", tag, err)
			}
		case kind == OpSchemaViolation:
			var se SchemaError
			if err := json.Unmarshal(raw, &se); err != nil {
				return fmt.Errorf("proto: malformed %s: %w", tag, err)
			}
			out.Schema = &se
		case kind == OpConsistencyError:
			if err := json.Unmarshal(raw, &out.Results); err != nil {
				return fmt.Errorf("proto: malformed %s: %w", tag, err)
			}
		default:
			return fmt.Errorf("proto: variant %q carries no payload", tag)
		}
		*e = out
	}
	return nil
}

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castellan/internal/proto"
)

func valid() proto.Entry {
	return proto.NewEntry(map[string][]string{
		proto.AttrName:  {"alice"},
		proto.AttrUUID:  {"00000000-0000-0000-0000-000000000001"},
		proto.AttrClass: {proto.ClassAccount},
	})
}

func TestValidateAccepts(t *testing.T) {
	v := NewBasic()
	assert.Nil(t, v.Validate(valid()))

	// Classless entries are legal.
	e := valid()
	delete(e.Attrs, proto.AttrClass)
	assert.Nil(t, v.Validate(e))
}

func TestValidateAttributeNames(t *testing.T) {
	v := NewBasic()

	e := valid()
	e.Attrs["Invalid-Name"] = []string{"x"}
	se := v.Validate(e)
	require.NotNil(t, se)
	assert.Equal(t, proto.SchemaInvalidAttribute, se.Kind)

	e = valid()
	e.Attrs["9starts_with_digit"] = []string{"x"}
	require.NotNil(t, v.Validate(e))
}

func TestValidateEmptyValues(t *testing.T) {
	v := NewBasic()

	e := valid()
	e.Attrs["mail"] = nil
	se := v.Validate(e)
	require.NotNil(t, se)
	assert.Equal(t, proto.SchemaInvalidAttributeSyntax, se.Kind)

	e = valid()
	e.Attrs["mail"] = []string{""}
	require.NotNil(t, v.Validate(e))
}

func TestValidateMustAttributes(t *testing.T) {
	v := NewBasic()

	e := valid()
	delete(e.Attrs, proto.AttrName)
	se := v.Validate(e)
	require.NotNil(t, se)
	assert.Equal(t, proto.SchemaMissingMustAttribute, se.Kind)
	assert.Equal(t, proto.AttrName, se.Attr)

	e = valid()
	delete(e.Attrs, proto.AttrUUID)
	se = v.Validate(e)
	require.NotNil(t, se)
	assert.Equal(t, proto.AttrUUID, se.Attr)
}

func TestValidateUnknownClass(t *testing.T) {
	v := NewBasic()
	e := valid()
	e.Attrs[proto.AttrClass] = []string{"wizard"}
	se := v.Validate(e)
	require.NotNil(t, se)
	assert.Equal(t, proto.SchemaInvalidClass, se.Kind)
}

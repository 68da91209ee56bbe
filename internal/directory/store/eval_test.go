package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"castellan/internal/proto"
)

func testEntry() proto.Entry {
	return proto.NewEntry(map[string][]string{
		proto.AttrName:  {"william"},
		proto.AttrUUID:  {"db237e8a-0079-4b8c-8a56-593b22aa44d1"},
		proto.AttrClass: {proto.ClassAccount},
		"mail":          {"will@example.com", "w@example.com"},
	})
}

func TestMatchesEq(t *testing.T) {
	e := testEntry()
	assert.True(t, Matches(proto.Eq(proto.AttrName, "william"), e))
	assert.True(t, Matches(proto.Eq("mail", "w@example.com"), e))
	assert.False(t, Matches(proto.Eq(proto.AttrName, "claire"), e))
	assert.False(t, Matches(proto.Eq("missing", "x"), e))
}

func TestMatchesSub(t *testing.T) {
	e := testEntry()
	assert.True(t, Matches(proto.Sub("mail", "example"), e))
	assert.True(t, Matches(proto.Sub(proto.AttrName, "illia"), e))
	assert.False(t, Matches(proto.Sub("mail", "gmail"), e))
}

func TestMatchesPres(t *testing.T) {
	e := testEntry()
	assert.True(t, Matches(proto.Pres("mail"), e))
	assert.False(t, Matches(proto.Pres("phone"), e))
}

func TestMatchesCombinators(t *testing.T) {
	e := testEntry()

	assert.True(t, Matches(proto.Or(
		proto.Eq(proto.AttrName, "claire"),
		proto.Eq(proto.AttrName, "william"),
	), e))
	assert.False(t, Matches(proto.Or(
		proto.Eq(proto.AttrName, "claire"),
	), e))

	assert.True(t, Matches(proto.And(
		proto.Eq(proto.AttrClass, proto.ClassAccount),
		proto.Pres("mail"),
	), e))
	assert.False(t, Matches(proto.And(
		proto.Eq(proto.AttrClass, proto.ClassAccount),
		proto.Pres("phone"),
	), e))

	assert.True(t, Matches(proto.AndNot(proto.Eq(proto.AttrName, "claire")), e))
	assert.False(t, Matches(proto.AndNot(proto.Pres("mail")), e))
}

func TestMatchesEmptyCombinators(t *testing.T) {
	e := testEntry()
	assert.False(t, Matches(proto.Or(), e))
	assert.True(t, Matches(proto.And(), e))
}

func TestMatchesUnresolvedSelf(t *testing.T) {
	assert.False(t, Matches(proto.SelfUUID(), testEntry()))
}

package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifyListApply_LaterOperationWins(t *testing.T) {
	e := NewEntry(map[string][]string{"name": {"alice"}})

	ml := NewModifyList(Present("mail", "a@x"), Purged("mail"))
	out := ml.Apply(e)

	assert.False(t, out.Has("mail"), "purge after present must leave no mail attribute")
	assert.Equal(t, []string{"alice"}, out.Values("name"))
}

func TestModifyListApply_PresentAppendsInOrder(t *testing.T) {
	e := NewEntry(nil)
	ml := NewModifyList(Present("mail", "a@x"), Present("mail", "b@x"))
	out := ml.Apply(e)
	assert.Equal(t, []string{"a@x", "b@x"}, out.Values("mail"))
}

func TestModifyListApply_RemovedDropsValueAndEmptyAttr(t *testing.T) {
	e := NewEntry(map[string][]string{"mail": {"a@x", "b@x"}})

	out := NewModifyList(Removed("mail", "a@x")).Apply(e)
	assert.Equal(t, []string{"b@x"}, out.Values("mail"))

	out = NewModifyList(Removed("mail", "a@x"), Removed("mail", "b@x")).Apply(e)
	assert.False(t, out.Has("mail"))
}

func TestModifyListApply_DoesNotMutateInput(t *testing.T) {
	e := NewEntry(map[string][]string{"mail": {"a@x"}})
	_ = NewModifyList(Purged("mail"), Present("name", "bob")).Apply(e)
	assert.Equal(t, []string{"a@x"}, e.Values("mail"))
	assert.False(t, e.Has("name"))
}

func TestModifyJSON_RoundTrip(t *testing.T) {
	ml := NewModifyList(
		Present("mail", "a@x"),
		Removed("mail", "b@x"),
		Purged("phone"),
	)
	data, err := json.Marshal(ml)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"mods":[{"Present":["mail","a@x"]},{"Removed":["mail","b@x"]},{"Purged":"phone"}]}`,
		string(data))

	var back ModifyList
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Mods, 3)
	// Wire order is semantically significant and must survive verbatim.
	assert.Equal(t, ml.Mods, back.Mods)
}

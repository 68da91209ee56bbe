package proto

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_VariantRank(t *testing.T) {
	ordered := []Filter{
		Eq("a", "1"),
		Sub("a", "1"),
		Pres("a"),
		Or(Eq("a", "1")),
		And(Eq("a", "1")),
		AndNot(Eq("a", "1")),
		SelfUUID(),
	}
	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			c := Compare(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Negative(t, c, "%s should sort before %s", ordered[i], ordered[j])
			case i > j:
				assert.Positive(t, c, "%s should sort after %s", ordered[i], ordered[j])
			default:
				assert.Zero(t, c)
			}
		}
	}
}

func TestCompare_WithinVariant(t *testing.T) {
	assert.Negative(t, Compare(Eq("a", "1"), Eq("a", "2")))
	assert.Negative(t, Compare(Eq("a", "9"), Eq("b", "0")))
	assert.Negative(t, Compare(Pres("cn"), Pres("mail")))
	assert.Zero(t, Compare(SelfUUID(), SelfUUID()))

	// Shorter child sequence sorts first when it is a prefix.
	assert.Negative(t, Compare(And(Eq("a", "1")), And(Eq("a", "1"), Eq("b", "2"))))
}

func TestCanonicalize_Idempotent(t *testing.T) {
	f := Or(
		And(Eq("class", "group"), Pres("member")),
		Eq("name", "alice"),
		AndNot(Sub("mail", "@example")),
		SelfUUID(),
	)
	once, err := f.Canonicalize()
	require.NoError(t, err)
	twice, err := once.Canonicalize()
	require.NoError(t, err)
	assert.True(t, once.Equal(twice), "canon(canon(f)) differs: %s vs %s", once, twice)
}

func TestCanonicalize_ChildOrderInsensitive(t *testing.T) {
	a := And(Eq("name", "alice"), Pres("class"), Eq("mail", "a@x"))
	b := And(Eq("mail", "a@x"), Eq("name", "alice"), Pres("class"))
	c := And(Pres("class"), Eq("mail", "a@x"), Eq("name", "alice"))

	ca, err := a.Canonicalize()
	require.NoError(t, err)
	cb, err := b.Canonicalize()
	require.NoError(t, err)
	cc, err := c.Canonicalize()
	require.NoError(t, err)

	assert.True(t, ca.Equal(cb))
	assert.True(t, cb.Equal(cc))
}

func TestCanonicalize_FlattensNestedCombinators(t *testing.T) {
	f := And(Eq("a", "1"), And(Eq("b", "2"), And(Eq("c", "3"))))
	canon, err := f.Canonicalize()
	require.NoError(t, err)

	require.Equal(t, FilterAnd, canon.Kind)
	require.Len(t, canon.Children, 3)
	for _, child := range canon.Children {
		assert.Equal(t, FilterEq, child.Kind)
	}

	// Mixed kinds do not flatten into each other.
	g := And(Eq("a", "1"), Or(Eq("b", "2"), Eq("c", "3")))
	canonG, err := g.Canonicalize()
	require.NoError(t, err)
	require.Len(t, canonG.Children, 2)
}

func TestCanonicalize_DedupsExactChildren(t *testing.T) {
	f := And(Eq("a", "1"), Eq("a", "1"))
	canon, err := f.Canonicalize()
	require.NoError(t, err)
	require.Equal(t, FilterAnd, canon.Kind)
	assert.Len(t, canon.Children, 1)
	assert.True(t, canon.Children[0].Equal(Eq("a", "1")))

	// Dedup only removes structurally identical children, not semantically
	// equal but differently shaped ones.
	g := And(Eq("a", "1"), And(Eq("a", "1"), Eq("a", "1")))
	canonG, err := g.Canonicalize()
	require.NoError(t, err)
	assert.Len(t, canonG.Children, 1)
}

func TestCanonicalize_EmptyCombinatorSentinels(t *testing.T) {
	or, err := Or().Canonicalize()
	require.NoError(t, err)
	assert.True(t, or.IsAlwaysFalse())
	assert.False(t, or.IsAlwaysTrue())

	and, err := And().Canonicalize()
	require.NoError(t, err)
	assert.True(t, and.IsAlwaysTrue())
	assert.False(t, and.IsAlwaysFalse())
}

func TestCanonicalize_DepthBound(t *testing.T) {
	f := Eq("a", "1")
	for i := 0; i < MaxFilterDepth; i++ {
		f = AndNot(f)
	}
	_, err := f.Canonicalize()
	require.Error(t, err)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, OpFilterGeneration, opErr.Kind)

	// One level inside the bound is fine.
	g := Eq("a", "1")
	for i := 0; i < MaxFilterDepth-2; i++ {
		g = AndNot(g)
	}
	_, err = g.Canonicalize()
	assert.NoError(t, err)
}

func TestContainsSelf(t *testing.T) {
	assert.True(t, SelfUUID().ContainsSelf())
	assert.True(t, And(Eq("a", "1"), Or(AndNot(SelfUUID()))).ContainsSelf())
	assert.False(t, And(Eq("a", "1"), Or(Pres("b"))).ContainsSelf())
}

func TestResolveSelf(t *testing.T) {
	f := Or(SelfUUID(), And(Eq("class", "group"), AndNot(SelfUUID())))
	resolved := f.ResolveSelf("b861a2a9-6a4c-42fe-9a23-6c27663e5a90")
	assert.False(t, resolved.ContainsSelf())
	assert.True(t, resolved.Children[0].Equal(Eq("uuid", "b861a2a9-6a4c-42fe-9a23-6c27663e5a90")))

	// Original tree is untouched.
	assert.True(t, f.ContainsSelf())
}

func TestFilterJSON_RoundTripAllVariants(t *testing.T) {
	filters := []Filter{
		Eq("name", "alice"),
		Sub("mail", "@example.com"),
		Pres("class"),
		Or(Eq("a", "1"), Eq("b", "2")),
		And(Or(Eq("a", "1"), Pres("b")), AndNot(Sub("c", "x"))),
		AndNot(SelfUUID()),
		SelfUUID(),
		Or(),
		And(),
	}
	for _, f := range filters {
		data, err := json.Marshal(f)
		require.NoError(t, err, "marshal %s", f)

		var back Filter
		require.NoError(t, json.Unmarshal(data, &back), "unmarshal %s", string(data))
		assert.True(t, f.Equal(back), "round trip changed %s into %s", f, back)
	}
}

func TestFilterJSON_WireShape(t *testing.T) {
	data, err := json.Marshal(Eq("name", "alice"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Eq":["name","alice"]}`, string(data))

	data, err = json.Marshal(Pres("class"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Pres":"class"}`, string(data))

	// SelfUUID keeps the legacy "Self" tag.
	data, err = json.Marshal(SelfUUID())
	require.NoError(t, err)
	assert.Equal(t, `"Self"`, string(data))

	data, err = json.Marshal(AndNot(Eq("a", "1")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"AndNot":{"Eq":["a","1"]}}`, string(data))
}

func TestFilterJSON_DecodeDepthBound(t *testing.T) {
	// A deeply nested wire filter must be rejected during decode, not after
	// a full recursive parse. Depth 5000 stays well under a second only if
	// the decoder bails at the bound instead of re-scanning the subtree at
	// every level.
	const depth = 5000
	var b strings.Builder
	for i := 0; i < depth; i++ {
		b.WriteString(`{"And":[`)
	}
	b.WriteString(`{"Pres":"name"}`)
	for i := 0; i < depth; i++ {
		b.WriteString(`]}`)
	}

	var f Filter
	err := json.Unmarshal([]byte(b.String()), &f)
	require.Error(t, err)
	assert.ErrorIs(t, err, NewOperationError(OpFilterGeneration))

	// A tree at exactly the bound still decodes.
	inner := `{"Pres":"name"}`
	for i := 0; i < MaxFilterDepth-1; i++ {
		inner = `{"AndNot":` + inner + `}`
	}
	var g Filter
	assert.NoError(t, json.Unmarshal([]byte(inner), &g))

	// One past it does not.
	var h Filter
	err = json.Unmarshal([]byte(`{"AndNot":`+inner+`}`), &h)
	assert.ErrorIs(t, err, NewOperationError(OpFilterGeneration))
}

func TestFilterJSON_RejectsMalformed(t *testing.T) {
	cases := []string{
		`"Selff"`,
		`{"Eq":["only-one"]}`,
		`{"Eq":["a","1"],"Pres":"b"}`,
		`{"Nope":"x"}`,
		`42`,
	}
	for _, raw := range cases {
		var f Filter
		assert.Error(t, json.Unmarshal([]byte(raw), &f), "input %s", raw)
	}
}

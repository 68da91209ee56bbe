package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castellan/internal/proto"
)

func entry(name, id string, extra map[string][]string) proto.Entry {
	attrs := map[string][]string{
		proto.AttrName: {name},
		proto.AttrUUID: {id},
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return proto.NewEntry(attrs)
}

const (
	uuidA = "00000000-0000-0000-0000-00000000000a"
	uuidB = "00000000-0000-0000-0000-00000000000b"
	uuidC = "00000000-0000-0000-0000-00000000000c"
)

func seeded(t *testing.T) *InMemory {
	t.Helper()
	s := NewInMemory()
	err := s.Create(context.Background(), []proto.Entry{
		entry("alice", uuidA, map[string][]string{proto.AttrClass: {proto.ClassAccount}}),
		entry("bob", uuidB, map[string][]string{proto.AttrClass: {proto.ClassAccount}}),
		entry("system_root", uuidC, map[string][]string{proto.AttrClass: {proto.ClassSystem}}),
	})
	require.NoError(t, err)
	return s
}

func TestCreateRejectsMissingUUID(t *testing.T) {
	s := NewInMemory()
	err := s.Create(context.Background(), []proto.Entry{
		proto.NewEntry(map[string][]string{proto.AttrName: {"alice"}}),
	})
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpInvalidUUID))
}

func TestCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	// Duplicate against a live entry.
	err := s.Create(ctx, []proto.Entry{entry("alice2", uuidA, nil)})
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpInvalidEntryState))

	// Duplicate inside the batch; nothing is inserted.
	err = s.Create(ctx, []proto.Entry{
		entry("x", "00000000-0000-0000-0000-000000000010", nil),
		entry("y", "00000000-0000-0000-0000-000000000010", nil),
	})
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpInvalidEntryState))
	found, err := s.FindByAttrValue(ctx, proto.AttrName, "x")
	require.NoError(t, err)
	assert.Empty(t, found)

	// Duplicate against a recycled entry.
	_, err = s.Delete(ctx, proto.Eq(proto.AttrName, "alice"))
	require.NoError(t, err)
	err = s.Create(ctx, []proto.Entry{entry("alice2", uuidA, nil)})
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpInvalidEntryState))
}

func TestSearchReturnsClones(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	got, err := s.Search(ctx, proto.Eq(proto.AttrName, "alice"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	got[0].Attrs[proto.AttrName][0] = "mallory"
	again, err := s.Search(ctx, proto.Eq(proto.AttrName, "alice"))
	require.NoError(t, err)
	assert.Len(t, again, 1, "mutating a result must not touch the store")
}

func TestSearchOrderIsStable(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	got, err := s.Search(ctx, proto.Pres(proto.AttrName))
	require.NoError(t, err)
	require.Len(t, got, 3)
	names := []string{}
	for _, e := range got {
		n, _ := e.First(proto.AttrName)
		names = append(names, n)
	}
	assert.Equal(t, []string{"alice", "bob", "system_root"}, names)
}

func TestDeleteMovesToRecycled(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	n, err := s.Delete(ctx, proto.Eq(proto.AttrName, "alice"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	live, err := s.Search(ctx, proto.Eq(proto.AttrName, "alice"))
	require.NoError(t, err)
	assert.Empty(t, live)

	recycled, err := s.SearchRecycled(ctx, proto.Eq(proto.AttrName, "alice"))
	require.NoError(t, err)
	assert.Len(t, recycled, 1)
}

func TestDeleteNoMatches(t *testing.T) {
	s := seeded(t)
	_, err := s.Delete(context.Background(), proto.Eq(proto.AttrName, "ghost"))
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpNoMatchingEntries))
}

func TestDeleteSystemProtected(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	_, err := s.Delete(ctx, proto.Eq(proto.AttrName, "system_root"))
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpSystemProtectedObject))

	// A sweep touching a system entry aborts wholesale.
	_, err = s.Delete(ctx, proto.Pres(proto.AttrName))
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpSystemProtectedObject))
	live, err := s.Search(ctx, proto.Pres(proto.AttrName))
	require.NoError(t, err)
	assert.Len(t, live, 3)
}

func TestModify(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	ml := proto.NewModifyList(
		proto.Present("mail", "alice@example.com"),
		proto.Purged(proto.AttrClass),
	)
	n, err := s.Modify(ctx, proto.Eq(proto.AttrName, "alice"), ml)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Search(ctx, proto.Eq(proto.AttrName, "alice"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Contains("mail", "alice@example.com"))
	assert.False(t, got[0].Has(proto.AttrClass))
}

func TestModifySystemProtected(t *testing.T) {
	s := seeded(t)
	ml := proto.NewModifyList(proto.Present("mail", "x@example.com"))
	_, err := s.Modify(context.Background(), proto.Eq(proto.AttrName, "system_root"), ml)
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpSystemProtectedObject))
}

func TestModifyRejectsUUIDMutation(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	// Rewriting the uuid would strand the record under its old key. Every
	// mutation kind touching uuid is refused and nothing is applied.
	lists := []proto.ModifyList{
		proto.NewModifyList(proto.Purged(proto.AttrUUID), proto.Present(proto.AttrUUID, uuidC)),
		proto.NewModifyList(proto.Removed(proto.AttrUUID, uuidA)),
		proto.NewModifyList(proto.Present("mail", "a@example.com"), proto.Present(proto.AttrUUID, "other")),
	}
	for _, ml := range lists {
		_, err := s.Modify(ctx, proto.Eq(proto.AttrName, "alice"), ml)
		assert.ErrorIs(t, err, proto.NewOperationError(proto.OpInvalidAttribute))
	}

	got, err := s.Search(ctx, proto.Eq(proto.AttrUUID, uuidA))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Has("mail"))

	// The store stays clean, not merely detectably corrupt.
	for _, res := range s.CheckConsistency(ctx) {
		assert.True(t, res.Passed())
	}
}

func TestReviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	_, err := s.Delete(ctx, proto.Eq(proto.AttrName, "bob"))
	require.NoError(t, err)

	n, err := s.Revive(ctx, proto.Eq(proto.AttrName, "bob"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	live, err := s.Search(ctx, proto.Eq(proto.AttrName, "bob"))
	require.NoError(t, err)
	assert.Len(t, live, 1)

	recycled, err := s.SearchRecycled(ctx, proto.Eq(proto.AttrName, "bob"))
	require.NoError(t, err)
	assert.Empty(t, recycled)
}

func TestReviveNoMatches(t *testing.T) {
	s := seeded(t)
	_, err := s.Revive(context.Background(), proto.Eq(proto.AttrName, "bob"))
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpNoMatchingEntries))
}

func TestUnresolvedSelfRejected(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	want := proto.NewOperationError(proto.OpFilterUUIDResolution)

	_, err := s.Search(ctx, proto.SelfUUID())
	assert.ErrorIs(t, err, want)
	_, err = s.Delete(ctx, proto.And(proto.SelfUUID()))
	assert.ErrorIs(t, err, want)
	_, err = s.Modify(ctx, proto.SelfUUID(), proto.NewModifyList(proto.Purged("mail")))
	assert.ErrorIs(t, err, want)
	_, err = s.Revive(ctx, proto.SelfUUID())
	assert.ErrorIs(t, err, want)
}

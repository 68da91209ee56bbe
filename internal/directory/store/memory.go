package store

import (
	"context"
	"sort"
	"sync"

	"castellan/internal/proto"
)

// record pairs an entry with a stable internal id used when reporting
// per-entry consistency faults.
type record struct {
	id    uint64
	entry proto.Entry
}

// InMemory stores directory entries keyed by their uuid attribute, with a
// recycle set holding soft-deleted entries until they are revived or purged.
// Filters arriving here are canonical and resolved; evaluation itself is
// lock-free, the store only locks around its maps.
type InMemory struct {
	mu       sync.RWMutex
	seq      uint64
	live     map[string]record
	recycled map[string]record
}

// NewInMemory creates an empty entry store.
func NewInMemory() *InMemory {
	return &InMemory{
		live:     make(map[string]record),
		recycled: make(map[string]record),
	}
}

// Create inserts complete entries. All-or-nothing: the first conflict or
// malformed entry aborts the batch. Every entry must already carry a uuid
// attribute.
func (s *InMemory) Create(_ context.Context, entries []proto.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the batch before touching the maps.
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		id, ok := e.First(proto.AttrUUID)
		if !ok {
			return proto.NewOperationError(proto.OpInvalidUUID)
		}
		if seen[id] {
			return proto.NewOperationError(proto.OpInvalidEntryState)
		}
		if _, exists := s.live[id]; exists {
			return proto.NewOperationError(proto.OpInvalidEntryState)
		}
		if _, exists := s.recycled[id]; exists {
			return proto.NewOperationError(proto.OpInvalidEntryState)
		}
		seen[id] = true
	}
	for _, e := range entries {
		id, _ := e.First(proto.AttrUUID)
		s.seq++
		s.live[id] = record{id: s.seq, entry: e.Clone()}
	}
	return nil
}

// Search returns clones of live entries matching the filter, ordered by
// uuid for determinism.
func (s *InMemory) Search(ctx context.Context, f proto.Filter) ([]proto.Entry, error) {
	if f.ContainsSelf() {
		return nil, proto.NewOperationError(proto.OpFilterUUIDResolution)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matchSet(s.live, f), nil
}

// SearchRecycled returns clones of soft-deleted entries matching the filter.
func (s *InMemory) SearchRecycled(ctx context.Context, f proto.Filter) ([]proto.Entry, error) {
	if f.ContainsSelf() {
		return nil, proto.NewOperationError(proto.OpFilterUUIDResolution)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matchSet(s.recycled, f), nil
}

// Delete moves matching live entries into the recycle set and returns how
// many moved. No matches is an error, not a no-op. System entries cannot be
// deleted.
func (s *InMemory) Delete(_ context.Context, f proto.Filter) (int, error) {
	if f.ContainsSelf() {
		return 0, proto.NewOperationError(proto.OpFilterUUIDResolution)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, rec := range s.live {
		if Matches(f, rec.entry) {
			if rec.entry.Contains(proto.AttrClass, proto.ClassSystem) {
				return 0, proto.NewOperationError(proto.OpSystemProtectedObject)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, proto.NewOperationError(proto.OpNoMatchingEntries)
	}
	for _, id := range ids {
		s.recycled[id] = s.live[id]
		delete(s.live, id)
	}
	return len(ids), nil
}

// Modify applies the modify list to every matching live entry and returns
// how many changed. No matches is an error. System entries cannot be
// modified, and the uuid attribute is immutable: records are keyed by it,
// so any mutation of it would desynchronize the index.
func (s *InMemory) Modify(_ context.Context, f proto.Filter, ml proto.ModifyList) (int, error) {
	if f.ContainsSelf() {
		return 0, proto.NewOperationError(proto.OpFilterUUIDResolution)
	}
	for _, m := range ml.Mods {
		if m.Attr == proto.AttrUUID {
			return 0, proto.NewOperationErrorText(proto.OpInvalidAttribute, "uuid is immutable")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, rec := range s.live {
		if Matches(f, rec.entry) {
			if rec.entry.Contains(proto.AttrClass, proto.ClassSystem) {
				return 0, proto.NewOperationError(proto.OpSystemProtectedObject)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, proto.NewOperationError(proto.OpNoMatchingEntries)
	}
	for _, id := range ids {
		rec := s.live[id]
		rec.entry = ml.Apply(rec.entry)
		s.live[id] = rec
	}
	return len(ids), nil
}

// Revive restores matching recycled entries to the live set and returns how
// many were restored. No matches is an error.
func (s *InMemory) Revive(_ context.Context, f proto.Filter) (int, error) {
	if f.ContainsSelf() {
		return 0, proto.NewOperationError(proto.OpFilterUUIDResolution)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, rec := range s.recycled {
		if Matches(f, rec.entry) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, proto.NewOperationError(proto.OpNoMatchingEntries)
	}
	for _, id := range ids {
		s.live[id] = s.recycled[id]
		delete(s.recycled, id)
	}
	return len(ids), nil
}

// FindByAttrValue returns clones of live entries holding the exact value on
// the named attribute.
func (s *InMemory) FindByAttrValue(_ context.Context, attr, value string) ([]proto.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []proto.Entry
	for _, rec := range sortedRecords(s.live) {
		if rec.entry.Contains(attr, value) {
			out = append(out, rec.entry.Clone())
		}
	}
	return out, nil
}

func matchSet(set map[string]record, f proto.Filter) []proto.Entry {
	var out []proto.Entry
	for _, rec := range sortedRecords(set) {
		if Matches(f, rec.entry) {
			out = append(out, rec.entry.Clone())
		}
	}
	return out
}

func sortedRecords(set map[string]record) []record {
	recs := make([]record, 0, len(set))
	for _, rec := range set {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].id < recs[j].id })
	return recs
}

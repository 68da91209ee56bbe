package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"castellan/internal/proto"
)

// CheckConsistency runs the structural-integrity checks over a snapshot of
// the store and returns one result per check outcome. A failing check
// contributes one result per fault so a single pass surfaces everything at
// once. Checks run concurrently; they only read the snapshot.
func (s *InMemory) CheckConsistency(ctx context.Context) []proto.ConsistencyResult {
	s.mu.RLock()
	live := make([]record, 0, len(s.live))
	liveKeys := make(map[string]string, len(s.live))
	for key, rec := range s.live {
		live = append(live, record{id: rec.id, entry: rec.entry.Clone()})
		uuid, _ := rec.entry.First(proto.AttrUUID)
		liveKeys[key] = uuid
	}
	recycledKeys := make(map[string]bool, len(s.recycled))
	for key := range s.recycled {
		recycledKeys[key] = true
	}
	s.mu.RUnlock()

	checks := []func() []proto.ConsistencyResult{
		func() []proto.ConsistencyResult { return checkUUIDIntegrity(live, liveKeys, recycledKeys) },
		func() []proto.ConsistencyResult { return checkReferentialIntegrity(live) },
		func() []proto.ConsistencyResult { return checkMemberOf(live) },
		func() []proto.ConsistencyResult { return checkUniqueNames(live) },
	}

	results := make([][]proto.ConsistencyResult, len(checks))
	g, _ := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check()
			return nil
		})
	}
	_ = g.Wait() // checks report faults as results, never as errors

	var out []proto.ConsistencyResult
	for _, rs := range results {
		out = append(out, rs...)
	}
	return out
}

// checkUUIDIntegrity verifies every entry carries a uuid matching its index
// key, and that no uuid is simultaneously live and recycled.
func checkUUIDIntegrity(live []record, liveKeys map[string]string, recycledKeys map[string]bool) []proto.ConsistencyResult {
	var faults []proto.ConsistencyResult
	for _, rec := range live {
		if _, ok := rec.entry.First(proto.AttrUUID); !ok {
			faults = append(faults, proto.ConsistencyFailed(proto.ConsistencyError{
				Kind:    proto.ConsistencyEntryUUIDCorrupt,
				EntryID: rec.id,
			}))
		}
	}
	for key, uuid := range liveKeys {
		if uuid != key {
			faults = append(faults, proto.ConsistencyFailed(proto.ConsistencyError{
				Kind:  proto.ConsistencyUUIDIndexCorrupt,
				Value: key,
			}))
		}
		if recycledKeys[key] {
			faults = append(faults, proto.ConsistencyFailed(proto.ConsistencyError{
				Kind:  proto.ConsistencyUUIDNotUnique,
				Value: key,
			}))
		}
	}
	if len(faults) == 0 {
		return []proto.ConsistencyResult{proto.ConsistencyOK()}
	}
	return faults
}

// checkReferentialIntegrity verifies every member value names a live entry.
func checkReferentialIntegrity(live []record) []proto.ConsistencyResult {
	names := make(map[string]bool, len(live))
	for _, rec := range live {
		if name, ok := rec.entry.First(proto.AttrName); ok {
			names[name] = true
		}
	}
	var faults []proto.ConsistencyResult
	for _, rec := range live {
		for _, member := range rec.entry.Attrs[proto.AttrMember] {
			if !names[member] {
				faults = append(faults, proto.ConsistencyFailed(proto.ConsistencyError{
					Kind:    proto.ConsistencyRefintNotUpheld,
					EntryID: rec.id,
				}))
				break
			}
		}
	}
	if len(faults) == 0 {
		return []proto.ConsistencyResult{proto.ConsistencyOK()}
	}
	return faults
}

// checkMemberOf verifies every memberof value names a live group entry.
func checkMemberOf(live []record) []proto.ConsistencyResult {
	groups := make(map[string]bool)
	for _, rec := range live {
		if rec.entry.Contains(proto.AttrClass, proto.ClassGroup) {
			if name, ok := rec.entry.First(proto.AttrName); ok {
				groups[name] = true
			}
		}
	}
	var faults []proto.ConsistencyResult
	for _, rec := range live {
		for _, of := range rec.entry.Attrs[proto.AttrMemberOf] {
			if !groups[of] {
				faults = append(faults, proto.ConsistencyFailed(proto.ConsistencyError{
					Kind:    proto.ConsistencyMemberOfInvalid,
					EntryID: rec.id,
				}))
				break
			}
		}
	}
	if len(faults) == 0 {
		return []proto.ConsistencyResult{proto.ConsistencyOK()}
	}
	return faults
}

// checkUniqueNames verifies the name attribute is unique across live entries.
func checkUniqueNames(live []record) []proto.ConsistencyResult {
	seen := make(map[string]bool, len(live))
	var faults []proto.ConsistencyResult
	for _, rec := range live {
		name, ok := rec.entry.First(proto.AttrName)
		if !ok {
			continue
		}
		if seen[name] {
			faults = append(faults, proto.ConsistencyFailed(proto.ConsistencyError{
				Kind:  proto.ConsistencyDuplicateUniqueAttribute,
				Value: name,
			}))
		}
		seen[name] = true
	}
	if len(faults) == 0 {
		return []proto.ConsistencyResult{proto.ConsistencyOK()}
	}
	return faults
}

package routing

import (
	"fmt"
	"sort"

	"github.com/zhangyunhao116/skipmap"

	"rangedb/pkg/dberrors"
	"rangedb/pkg/types"
)

// Pair couples a key range with the opaque partition that owns it. P only needs
// to be comparable; the routing map never inspects its contents.
type Pair[P comparable] struct {
	Range KeyRange
	Info  P
}

// Map is an immutable routing table over a complete set of key ranges: sorted
// by MinInclusive, tiling [MinimumInclusiveKey, MaximumExclusiveKey) with no
// gaps and no overlaps. A Map is safe for concurrent readers without locking;
// a newer view of the partitioning is a brand-new Map, never a mutation.
type Map[P comparable] struct {
	byID    map[string]Pair[P]
	byInfo  map[P]KeyRange
	ordered []KeyRange
	infos   []P

	collectionUniqueID string
}

// TryCreateCompleteMap builds a routing map from the given (range, partition)
// pairs, tagged with the metadata snapshot id collectionUniqueID.
//
// It returns (nil, false, nil) when the sorted ranges do not tile the whole key
// domain (a gap between neighbors or a missing domain boundary): the metadata
// view is merely incomplete and the caller should retry after fetching more.
// It returns ErrRangesOverlap when two ranges claim the same key: the metadata
// source itself is inconsistent and retrying cannot help.
//
// Duplicate range ids or duplicate partition infos follow plain map insertion
// semantics: the last pair wins.
func TryCreateCompleteMap[P comparable](pairs []Pair[P], collectionUniqueID string) (*Map[P], bool, error) {
	// a duplicated id replaces the earlier pair in place, so the working list
	// holds one pair per id
	sorted := make([]Pair[P], 0, len(pairs))
	at := make(map[string]int, len(pairs))
	for _, p := range pairs {
		if i, ok := at[p.Range.ID]; ok {
			sorted[i] = p
			continue
		}
		at[p.Range.ID] = len(sorted)
		sorted = append(sorted, p)
	}

	byID := make(map[string]Pair[P], len(sorted))
	byInfo := make(map[P]KeyRange, len(sorted))
	for _, p := range sorted {
		byID[p.Range.ID] = p
		byInfo[p.Info] = p.Range
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Range.MinInclusive < sorted[j].Range.MinInclusive
	})

	ordered := make([]KeyRange, len(sorted))
	infos := make([]P, len(sorted))
	for i, p := range sorted {
		ordered[i] = p.Range
		infos[i] = p.Info
	}

	complete, err := isCompleteSetOfRanges(ordered)
	if err != nil {
		return nil, false, err
	}
	if !complete {
		return nil, false, nil
	}

	return &Map[P]{
		byID:               byID,
		byInfo:             byInfo,
		ordered:            ordered,
		infos:              infos,
		collectionUniqueID: collectionUniqueID,
	}, true, nil
}

// isCompleteSetOfRanges checks that the sorted ranges tile the key domain.
// Overlapping neighbors are fatal and reported before any incompleteness: a
// corrupted metadata snapshot must not look like a retryable partial one.
func isCompleteSetOfRanges(ordered []KeyRange) (bool, error) {
	if len(ordered) == 0 {
		return false, nil
	}

	gap := false
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.MaxExclusive > cur.MinInclusive {
			return false, fmt.Errorf("ranges %s and %s: %w", prev.ID, cur.ID, dberrors.ErrRangesOverlap)
		}
		if prev.MaxExclusive < cur.MinInclusive {
			gap = true
		}
	}
	if gap {
		return false, nil
	}

	return ordered[0].MinInclusive == MinimumInclusiveKey &&
		ordered[len(ordered)-1].MaxExclusive == MaximumExclusiveKey, nil
}

// CollectionUniqueID identifies the metadata snapshot this map was built from.
// Callers compare it against the latest known generation to detect staleness.
func (m *Map[P]) CollectionUniqueID() string {
	return m.collectionUniqueID
}

// Len returns the number of ranges in the map.
func (m *Map[P]) Len() int {
	return len(m.ordered)
}

// OrderedRanges returns the ranges sorted by MinInclusive. The slice is a copy.
func (m *Map[P]) OrderedRanges() []KeyRange {
	out := make([]KeyRange, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// OrderedPartitionInfo returns the partition infos index-aligned with
// OrderedRanges. The slice is a copy.
func (m *Map[P]) OrderedPartitionInfo() []P {
	out := make([]P, len(m.infos))
	copy(out, m.infos)
	return out
}

// HeadPartition owns the range starting at MinimumInclusiveKey.
func (m *Map[P]) HeadPartition() P {
	return m.infos[0]
}

// TailPartition owns the range ending at MaximumExclusiveKey.
func (m *Map[P]) TailPartition() P {
	return m.infos[len(m.infos)-1]
}

// RangeByKey returns the unique range owning the given effective key.
// MaximumExclusiveKey belongs to no range, so it reports absence.
func (m *Map[P]) RangeByKey(key types.Key) (KeyRange, bool) {
	if key == MinimumInclusiveKey {
		return m.ordered[0], true
	}
	if key == MaximumExclusiveKey {
		return KeyRange{}, false
	}

	i := floorIndex(len(m.ordered), key, func(i int) types.Key { return m.ordered[i].MinInclusive })
	if i < 0 {
		i = 0
	}
	// completeness guarantees key < ordered[i].MaxExclusive
	return m.ordered[i], true
}

// RangeByID returns the range with the given partition key range id.
func (m *Map[P]) RangeByID(id string) (KeyRange, bool) {
	p, ok := m.byID[id]
	if !ok {
		return KeyRange{}, false
	}
	return p.Range, true
}

// InfoByID returns the partition info owning the range with the given id.
func (m *Map[P]) InfoByID(id string) (P, bool) {
	p, ok := m.byID[id]
	if !ok {
		var zero P
		return zero, false
	}
	return p.Info, true
}

// RangeByInfo is the reverse lookup from a partition info to its range.
func (m *Map[P]) RangeByInfo(info P) (KeyRange, bool) {
	r, ok := m.byInfo[info]
	return r, ok
}

// OverlappingRanges returns the owned ranges touched by any of the given
// spans, sorted by MinInclusive and de-duplicated across spans. Calling it
// with no spans, or with a span whose endpoints are out of order, is a caller
// error.
func (m *Map[P]) OverlappingRanges(spans ...Span) ([]KeyRange, error) {
	if len(spans) == 0 {
		return nil, fmt.Errorf("overlapping ranges: no spans: %w", dberrors.ErrInvalidArgument)
	}

	acc := skipmap.NewFunc[types.Key, KeyRange](func(a, b types.Key) bool { return a < b })

	n := len(m.ordered)
	for _, s := range spans {
		if !s.IsValid() {
			return nil, fmt.Errorf("overlapping ranges: span %s: %w", s, dberrors.ErrInvalidArgument)
		}

		// Tight scan window: the first range whose MaxExclusive reaches the
		// span, through the last range whose MinInclusive does not pass it.
		lo := ceilIndex(n, s.Min, func(i int) types.Key { return m.ordered[i].MaxExclusive })
		hi := floorIndex(n, s.Max, func(i int) types.Key { return m.ordered[i].MinInclusive })
		if lo == n || hi < 0 {
			continue
		}

		for i := lo; i <= hi; i++ {
			if r := m.ordered[i]; s.Touches(r) {
				acc.Store(r.MinInclusive, r)
			}
		}
	}

	result := make([]KeyRange, 0, acc.Len())
	acc.Range(func(_ types.Key, r KeyRange) bool {
		result = append(result, r)
		return true
	})
	return result, nil
}

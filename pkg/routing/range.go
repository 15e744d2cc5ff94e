package routing

import (
	"fmt"

	"rangedb/pkg/types"
)

// Sentinels bounding the effective partition key domain. MinimumInclusiveKey is
// owned by the first range; MaximumExclusiveKey is owned by no range. Effective
// keys carry a two-hex-digit marker prefix below "FF", so "FF" is a strict
// supremum of every real key.
const (
	MinimumInclusiveKey types.Key = ""
	MaximumExclusiveKey types.Key = "FF"
)

// KeyRange is a half-open interval [MinInclusive, MaxExclusive) over the
// effective partition key domain, tagged with a stable partition key range id.
type KeyRange struct {
	ID           string    `json:"id"`
	MinInclusive types.Key `json:"minInclusive"`
	MaxExclusive types.Key `json:"maxExclusive"`
}

// FullRange covers the whole key domain under a single id.
func FullRange(id string) KeyRange {
	return KeyRange{ID: id, MinInclusive: MinimumInclusiveKey, MaxExclusive: MaximumExclusiveKey}
}

func (r KeyRange) Contains(key types.Key) bool {
	return r.MinInclusive <= key && key < r.MaxExclusive
}

func (r KeyRange) IsFullRange() bool {
	return r.MinInclusive == MinimumInclusiveKey && r.MaxExclusive == MaximumExclusiveKey
}

func (r KeyRange) Span() Span {
	return Span{Min: r.MinInclusive, Max: r.MaxExclusive}
}

func (r KeyRange) String() string {
	return fmt.Sprintf("%s[%q,%q)", r.ID, r.MinInclusive, r.MaxExclusive)
}

// Span is a query interval over the effective key domain. Both endpoints count
// for overlap resolution: a span that merely touches a range boundary selects
// the neighbor on the other side of the boundary too. Routing may contact one
// partition too many, never one too few.
type Span struct {
	Min types.Key `json:"min"`
	Max types.Key `json:"max"`
}

// PointSpan is the degenerate span holding a single key.
func PointSpan(key types.Key) Span {
	return Span{Min: key, Max: key}
}

// FullSpan covers the whole key domain.
func FullSpan() Span {
	return Span{Min: MinimumInclusiveKey, Max: MaximumExclusiveKey}
}

// IsValid reports whether the span endpoints are ordered.
func (s Span) IsValid() bool {
	return s.Min <= s.Max
}

// Touches reports whether the span and the range share at least one boundary
// point.
func (s Span) Touches(r KeyRange) bool {
	return r.MinInclusive <= s.Max && s.Min <= r.MaxExclusive
}

func (s Span) String() string {
	return fmt.Sprintf("[%q,%q]", s.Min, s.Max)
}

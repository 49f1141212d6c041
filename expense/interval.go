/*
interval.go - Disjoint interval-set algebra

PURPOSE:
  The reconciliation engine works by set arithmetic on time intervals:
  merge the candidate occurrence intervals, widen them to cadence-aligned
  windows, subtract the periods that already have an expense item, then
  slice what remains at week/month boundaries.

  IntervalSet keeps a sorted list of disjoint intervals and exposes the
  operations above as pure functions: every method returns a new set and
  never mutates the receiver. This keeps each reconciliation step
  independently unit-testable.

SEE ALSO:
  - reconcile.go: The engine that drives these operations
*/
package expense

import (
	"sort"
	"time"
)

// =============================================================================
// INTERVAL - A half-open [Start, End) span of time
// =============================================================================

type Interval struct {
	Start time.Time
	End   time.Time
}

// Normalize swaps the edges if they were given in reverse order.
func (iv Interval) Normalize() Interval {
	if iv.End.Before(iv.Start) {
		return Interval{Start: iv.End, End: iv.Start}
	}
	return iv
}

// IsZero reports whether the interval covers no time at all.
func (iv Interval) IsZero() bool { return !iv.End.After(iv.Start) }

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Days returns the interval length in (possibly fractional) days,
// counting 24 hours per day. Use UTC or another fixed-offset location;
// DST-shifted calendar days are not accounted for.
func (iv Interval) Days() float64 { return iv.End.Sub(iv.Start).Hours() / 24 }

// Overlaps reports whether the half-open intervals share any time.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t falls within [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv Interval) String() string {
	return "[" + iv.Start.Format(time.RFC3339) + ", " + iv.End.Format(time.RFC3339) + ")"
}

// =============================================================================
// INTERVAL SET - Sorted, disjoint, immutable
// =============================================================================

// IntervalSet is a collection of non-overlapping intervals kept in
// chronological order. Adjacent (touching) intervals are coalesced.
type IntervalSet struct {
	ivs []Interval
}

// NewIntervalSet builds a set from arbitrary intervals. Reversed inputs
// are normalized and zero-length inputs contribute nothing.
func NewIntervalSet(intervals ...Interval) IntervalSet {
	var s IntervalSet
	for _, iv := range intervals {
		s = s.Add(iv)
	}
	return s
}

// Intervals returns the member intervals in chronological order.
func (s IntervalSet) Intervals() []Interval {
	out := make([]Interval, len(s.ivs))
	copy(out, s.ivs)
	return out
}

// Len returns the number of disjoint intervals in the set.
func (s IntervalSet) Len() int { return len(s.ivs) }

// IsEmpty reports whether the set covers no time.
func (s IntervalSet) IsEmpty() bool { return len(s.ivs) == 0 }

// Span returns the smallest interval covering the whole set.
func (s IntervalSet) Span() (Interval, bool) {
	if len(s.ivs) == 0 {
		return Interval{}, false
	}
	return Interval{Start: s.ivs[0].Start, End: s.ivs[len(s.ivs)-1].End}, true
}

// Add returns a new set with iv merged in. Overlapping and touching
// intervals collapse into one.
func (s IntervalSet) Add(iv Interval) IntervalSet {
	iv = iv.Normalize()
	if iv.IsZero() {
		return s
	}

	merged := make([]Interval, 0, len(s.ivs)+1)
	for _, existing := range s.ivs {
		if existing.End.Before(iv.Start) {
			merged = append(merged, existing)
			continue
		}
		if existing.Start.After(iv.End) {
			merged = append(merged, existing)
			continue
		}
		// Overlapping or touching: absorb into iv.
		if existing.Start.Before(iv.Start) {
			iv.Start = existing.Start
		}
		if existing.End.After(iv.End) {
			iv.End = existing.End
		}
	}
	merged = append(merged, iv)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start.Before(merged[j].Start) })
	return IntervalSet{ivs: merged}
}

// Union returns a new set covering both sets.
func (s IntervalSet) Union(other IntervalSet) IntervalSet {
	out := s
	for _, iv := range other.ivs {
		out = out.Add(iv)
	}
	return out
}

// Subtract returns a new set with iv chopped out of every member.
func (s IntervalSet) Subtract(iv Interval) IntervalSet {
	iv = iv.Normalize()
	if iv.IsZero() {
		return s
	}

	var out []Interval
	for _, existing := range s.ivs {
		if !existing.Overlaps(iv) {
			out = append(out, existing)
			continue
		}
		if existing.Start.Before(iv.Start) {
			out = append(out, Interval{Start: existing.Start, End: iv.Start})
		}
		if iv.End.Before(existing.End) {
			out = append(out, Interval{Start: iv.End, End: existing.End})
		}
	}
	return IntervalSet{ivs: out}
}

// SubtractAll chops every interval in the slice out of the set.
func (s IntervalSet) SubtractAll(intervals []Interval) IntervalSet {
	out := s
	for _, iv := range intervals {
		out = out.Subtract(iv)
	}
	return out
}

// Slice returns a new set in which any interval strictly containing t
// is split in two at t. Slicing at an interval edge is a no-op.
func (s IntervalSet) Slice(t time.Time) IntervalSet {
	var out []Interval
	for _, existing := range s.ivs {
		if existing.Contains(t) && t.After(existing.Start) {
			out = append(out, Interval{Start: existing.Start, End: t})
			out = append(out, Interval{Start: t, End: existing.End})
			continue
		}
		out = append(out, existing)
	}
	return IntervalSet{ivs: out}
}

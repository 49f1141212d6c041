/*
window.go - Cadence boundary alignment

PURPOSE:
  Every rule defines its own notion of where a "day", "week" or "month"
  begins: DayStartHour shifts the day boundary (so a social that runs
  past midnight stays in one day), WeekStartDay anchors weeks, and
  MonthStartDay (1-28) anchors months. This file computes those
  boundaries.

  The key operations are flooring a time to the previous boundary,
  ceiling it to the next one, and enumerating boundaries inside a span.
  Ceiling is boundary-exclusive: a time that falls exactly on a boundary
  is its own ceiling, so an interval ending precisely at the boundary
  never spills into the next period.

SEE ALSO:
  - reconcile.go: Uses alignment to widen candidate intervals
  - recurring/: Uses tick enumeration for generic expenses
*/
package expense

import "time"

// atDayBoundary reports whether t sits exactly on the rule's day
// boundary (DayStartHour with no minutes or smaller units).
func (r Rule) atDayBoundary(t time.Time) bool {
	return t.Hour() == r.DayStartHour && t.Minute() == 0 &&
		t.Second() == 0 && t.Nanosecond() == 0
}

// AtBoundary reports whether t sits exactly on a cadence boundary for
// this rule. Only meaningful for the period cadences; hourly and
// disabled rules have no boundaries.
func (r Rule) AtBoundary(t time.Time) bool {
	if !r.atDayBoundary(t) {
		return false
	}
	switch r.Cadence {
	case CadenceDaily:
		return true
	case CadenceWeekly:
		return t.Weekday() == r.WeekStartDay
	case CadenceMonthly:
		return t.Day() == r.MonthStartDay
	}
	return false
}

// dayBoundaryOn returns the boundary time on t's calendar date.
func (r Rule) dayBoundaryOn(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), r.DayStartHour, 0, 0, 0, t.Location())
}

// floorDay returns the latest day boundary at or before t.
func (r Rule) floorDay(t time.Time) time.Time {
	b := r.dayBoundaryOn(t)
	if b.After(t) {
		b = b.AddDate(0, 0, -1)
	}
	return b
}

// FloorBoundary returns the latest cadence boundary at or before t.
func (r Rule) FloorBoundary(t time.Time) time.Time {
	switch r.Cadence {
	case CadenceWeekly:
		b := r.floorDay(t)
		back := (int(b.Weekday()) - int(r.WeekStartDay) + 7) % 7
		return b.AddDate(0, 0, -back)
	case CadenceMonthly:
		b := time.Date(t.Year(), t.Month(), r.MonthStartDay, r.DayStartHour, 0, 0, 0, t.Location())
		if b.After(t) {
			// MonthStartDay <= 28, so stepping back a month keeps the day.
			b = b.AddDate(0, -1, 0)
		}
		return b
	default:
		return r.floorDay(t)
	}
}

// CeilBoundary returns the earliest cadence boundary at or after t.
// A t exactly on a boundary is returned unchanged.
func (r Rule) CeilBoundary(t time.Time) time.Time {
	if r.AtBoundary(t) {
		return t
	}
	return r.NextBoundary(r.FloorBoundary(t))
}

// NextBoundary advances one full cadence period from a boundary time.
func (r Rule) NextBoundary(b time.Time) time.Time {
	switch r.Cadence {
	case CadenceWeekly:
		return b.AddDate(0, 0, 7)
	case CadenceMonthly:
		return b.AddDate(0, 1, 0)
	default:
		return b.AddDate(0, 0, 1)
	}
}

// AlignWindow widens iv outward to cadence boundaries.
func (r Rule) AlignWindow(iv Interval) Interval {
	return Interval{Start: r.FloorBoundary(iv.Start), End: r.CeilBoundary(iv.End)}
}

// BoundariesWithin returns every cadence boundary in [iv.Start, iv.End].
// These are the points at which reconciled intervals get sliced so that
// each charge covers at most one week or month.
func (r Rule) BoundariesWithin(iv Interval) []time.Time {
	var out []time.Time
	for t := r.FloorBoundary(iv.Start); !t.After(iv.End); t = r.NextBoundary(t) {
		out = append(out, t)
	}
	return out
}

// DaysInPeriodFrom returns the number of days in the full cadence period
// starting at boundary b. For months this is computed from the calendar,
// never assumed to be 28/30/31.
func (r Rule) DaysInPeriodFrom(b time.Time) int {
	return int(r.NextBoundary(b).Sub(b).Hours() / 24)
}

// =============================================================================
// TICK ENUMERATION - For generic recurring expenses
// =============================================================================

// FirstTickAtOrAfter returns the first charge instant of this rule's
// cadence that is not before limit. Unlike window alignment, hourly
// cadence participates here: generic expenses charge at every tick
// regardless of scheduled events.
func (r Rule) FirstTickAtOrAfter(limit time.Time) time.Time {
	var tick time.Time
	switch r.Cadence {
	case CadenceHourly:
		tick = limit.Truncate(time.Hour)
	default:
		tick = r.FloorBoundary(limit)
	}
	if tick.Before(limit) {
		tick = r.NextTick(tick)
	}
	return tick
}

// NextTick advances one cadence period.
func (r Rule) NextTick(t time.Time) time.Time {
	if r.Cadence == CadenceHourly {
		return t.Add(time.Hour)
	}
	return r.NextBoundary(t)
}

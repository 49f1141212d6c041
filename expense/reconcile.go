/*
reconcile.go - The interval reconciliation engine

PURPOSE:
  Given a period-cadence rule, the raw occurrence intervals of the
  activity it applies to, and the periods that already carry an expense
  item, compute the minimal set of new non-overlapping charges.

ALGORITHM:
  1. Merge the candidate intervals (dropping reversed/empty ones).
  2. Widen each merged interval outward to cadence-aligned windows,
     collecting the week/month boundaries inside them.
  3. Subtract every already-charged period.
  4. Slice what remains at the collected boundaries so no charge spans
     more than one cadence period.
  5. Price each remaining interval: a full period charges the rule's
     rate, a partial one is pro-rated by days (with the real number of
     days in the aligned month, never an assumed 30).

  Re-running with the same inputs finds every window already covered and
  yields nothing, which is what makes generation idempotent.

INVARIANT PRESERVED:
  For a given rule the [PeriodStart, PeriodEnd) intervals of all items
  never overlap, because every output interval was carved out of the
  complement of the existing ones.

SEE ALSO:
  - interval.go: The set algebra used by each step
  - window.go: Boundary alignment
  - venue/, staffing/: Drivers that feed this engine
*/
package expense

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Reconcile computes the new charges owed under rule for the candidate
// occurrence intervals, excluding any span in existing. Candidates with
// end before start contribute nothing (data inconsistency, not fatal).
// An empty candidate set is a no-op.
//
// Interval times must be UTC or another fixed-offset location: period
// lengths and pro-rating count 24-hour days.
//
// Hourly rules never reach this engine: the drivers charge qualifying
// events directly. Calling with an hourly or disabled rule is a
// configuration error.
func Reconcile(rule Rule, candidates []Interval, existing []Interval) ([]Charge, error) {
	switch rule.Cadence {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
	default:
		return nil, &ConfigError{
			RuleID: rule.ID,
			Reason: fmt.Sprintf("cadence %q is not period-based", rule.Cadence),
		}
	}

	var occupied IntervalSet
	for _, c := range candidates {
		if c.End.Before(c.Start) {
			continue
		}
		occupied = occupied.Add(c)
	}
	if occupied.IsEmpty() {
		return nil, nil
	}

	// Widen each occupied interval to its aligned window and remember
	// where the cadence boundaries fall inside it.
	var aligned IntervalSet
	var sliceTimes []time.Time
	for _, iv := range occupied.Intervals() {
		window := rule.AlignWindow(iv)
		if rule.Cadence == CadenceWeekly || rule.Cadence == CadenceMonthly {
			sliceTimes = append(sliceTimes, rule.BoundariesWithin(window)...)
		}
		aligned = aligned.Add(window)
	}

	// Chop out everything already charged, then split at period
	// boundaries so each remaining interval sits inside one period.
	remaining := aligned.SubtractAll(existing)
	for _, t := range sliceTimes {
		remaining = remaining.Slice(t)
	}

	charges := make([]Charge, 0, remaining.Len())
	for _, iv := range remaining.Intervals() {
		charges = append(charges, rule.price(iv))
	}
	return charges, nil
}

// ReconcileWithStore loads the already-charged periods overlapping the
// aligned span of the candidates and runs Reconcile against them. This
// is the sequence both event-driven drivers use.
func ReconcileWithStore(ctx context.Context, items ItemStore, rule Rule, candidates []Interval) ([]Charge, error) {
	occupied := NewIntervalSet(candidates...)
	span, ok := occupied.Span()
	if !ok {
		return nil, nil
	}
	existing, err := items.PeriodsOverlapping(ctx, rule.ID, rule.AlignWindow(span))
	if err != nil {
		return nil, err
	}
	return Reconcile(rule, candidates, existing)
}

// price computes the total and description for one reconciled interval.
func (r Rule) price(iv Interval) Charge {
	days := decimal.NewFromFloat(iv.Days())
	description := fmt.Sprintf("%s to %s", iv.Start.Format(dateLayout), r.displayEnd(iv.End))

	var total decimal.Decimal
	switch r.Cadence {
	case CadenceDaily:
		total = r.Rate.Mul(days)
		if iv.Duration() == 24*time.Hour {
			description = iv.Start.Format(dateLayout)
		}

	case CadenceWeekly:
		total = r.Rate.Mul(days).Div(decimal.NewFromInt(7))
		if r.isFullPeriod(iv) {
			description = fmt.Sprintf("week of %s to %s", iv.Start.Format(dateLayout), r.displayEnd(iv.End))
		}

	case CadenceMonthly:
		monthStart := r.FloorBoundary(iv.Start)
		daysInMonth := decimal.NewFromInt(int64(r.DaysInPeriodFrom(monthStart)))
		total = r.Rate.Mul(days).Div(daysInMonth)
		if r.isFullPeriod(iv) {
			description = fmt.Sprintf("month of %s to %s", iv.Start.Format(dateLayout), r.displayEnd(iv.End))
		}
	}

	return Charge{Start: iv.Start, End: iv.End, Total: total, Description: description}
}

// isFullPeriod reports whether iv spans exactly one cadence period
// starting on a boundary.
func (r Rule) isFullPeriod(iv Interval) bool {
	return r.AtBoundary(iv.Start) && iv.End.Equal(r.NextBoundary(iv.Start))
}

// displayEnd renders the inclusive human-readable end date of a period.
// The stored end is the exclusive boundary instant, so back off past the
// day-start shift before formatting.
func (r Rule) displayEnd(end time.Time) string {
	return end.Add(-time.Duration(r.DayStartHour)*time.Hour - time.Minute).Format(dateLayout)
}

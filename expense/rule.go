/*
rule.go - Rule targets, eligibility windows and precedence

PURPOSE:
  A Rule says what to charge; this file decides when and against what.
  Eligibility is the intersection of an optional explicit window, the
  rolling advance/prior limits measured from "now", and the rule's own
  start/end dates. Staff rules additionally carry an explicit
  specificity ranking so a member's category rate always beats their
  catch-all rate, which beats a studio-wide category default.
*/
package expense

import "time"

// =============================================================================
// TARGETS
// =============================================================================

type TargetKind string

const (
	TargetVenue   TargetKind = "venue"   // location or room rental
	TargetStaff   TargetKind = "staff"   // member and/or category wages
	TargetGeneric TargetKind = "generic" // not tied to activity at all
)

// Target classifies the rule. Conflicting target fields are a
// configuration error: the driver logs and skips such rules.
func (r Rule) Target() (TargetKind, error) {
	hasVenue := r.LocationID != nil || r.RoomID != nil
	hasStaff := r.StaffID != nil || r.CategoryID != nil

	switch {
	case hasVenue && hasStaff:
		return "", &ConfigError{RuleID: r.ID, Reason: "rule targets both a venue and staff"}
	case r.LocationID != nil && r.RoomID != nil:
		return "", &ConfigError{RuleID: r.ID, Reason: "rule targets both a location and a room"}
	case hasVenue:
		return TargetVenue, nil
	case hasStaff:
		return TargetStaff, nil
	default:
		return TargetGeneric, nil
	}
}

// Chargeable reports whether the rule can ever produce items.
// Disabled rules and non-positive rates are excluded upstream so the
// reconciliation engine never sees them.
func (r Rule) Chargeable() bool {
	return r.Cadence != CadenceDisabled && r.Rate.IsPositive()
}

// Specificity ranks staff rules for precedence. Higher wins:
//
//	2  member + category (this member's rate for this role)
//	1  member catch-all (this member's default rate)
//	0  category default (studio-wide rate for the role)
//
// Processing rules in descending specificity, with catch-alls excluding
// the categories already covered, prevents double-charging the same
// staffing assignment under two rules.
func (r Rule) Specificity() int {
	switch {
	case r.StaffID != nil && r.CategoryID != nil:
		return 2
	case r.StaffID != nil:
		return 1
	default:
		return 0
	}
}

// =============================================================================
// ELIGIBILITY FILTERING
// =============================================================================

// TimeFilter bounds candidate events by their start and end instants.
// Nil edges are unbounded. Advance/prior limits reference either edge
// depending on the rule's milestone configuration, so the two edges are
// filtered independently.
type TimeFilter struct {
	StartAfter  *time.Time
	StartBefore *time.Time
	EndAfter    *time.Time
	EndBefore   *time.Time
}

// Matches applies the filter to a concrete [start, end] activity.
func (f TimeFilter) Matches(start, end time.Time) bool {
	if f.StartAfter != nil && start.Before(*f.StartAfter) {
		return false
	}
	if f.StartBefore != nil && start.After(*f.StartBefore) {
		return false
	}
	if f.EndAfter != nil && end.Before(*f.EndAfter) {
		return false
	}
	if f.EndBefore != nil && end.After(*f.EndBefore) {
		return false
	}
	return true
}

// EligibilityFilter computes the candidate filter for this rule: the
// intersection of the optional explicit window, "no further ahead than
// now + AdvanceDays" / "no further back than now - PriorDays" (each
// measured against the configured milestone), and the rule's own
// StartDate/EndDate bounds. A rule with none of these yields an
// unbounded filter.
func (r Rule) EligibilityFilter(now time.Time, explicit Window) TimeFilter {
	var f TimeFilter

	if explicit.Start != nil {
		f.StartAfter = latest(f.StartAfter, explicit.Start)
	}
	if explicit.End != nil {
		f.StartBefore = earliest(f.StartBefore, explicit.End)
	}

	if r.AdvanceDays > 0 {
		horizon := now.AddDate(0, 0, r.AdvanceDays)
		if r.AdvanceRef == MilestoneEnd {
			f.EndBefore = earliest(f.EndBefore, &horizon)
		} else {
			f.StartBefore = earliest(f.StartBefore, &horizon)
		}
	}
	if r.PriorDays != nil {
		floor := now.AddDate(0, 0, -*r.PriorDays)
		if r.PriorRef == MilestoneStart {
			f.StartAfter = latest(f.StartAfter, &floor)
		} else {
			f.EndAfter = latest(f.EndAfter, &floor)
		}
	}

	if r.StartDate != nil {
		f.StartAfter = latest(f.StartAfter, r.StartDate)
	}
	if r.EndDate != nil {
		f.StartBefore = earliest(f.StartBefore, r.EndDate)
	}
	return f
}

// TickWindow clamps an explicit window down to the rule's generation
// limits for tick-based (generic) expenses. The returned window may be
// unbounded below only if the rule has a StartDate or PriorDays, which
// the factory guarantees for generic rules.
func (r Rule) TickWindow(now time.Time, explicit Window) Window {
	w := explicit
	if r.AdvanceDays > 0 {
		horizon := now.AddDate(0, 0, r.AdvanceDays)
		w = w.Intersect(Window{End: &horizon})
	}
	if r.PriorDays != nil {
		floor := now.AddDate(0, 0, -*r.PriorDays)
		w = w.Intersect(Window{Start: &floor})
	}
	if r.StartDate != nil {
		w = w.Intersect(Window{Start: r.StartDate})
	}
	if r.EndDate != nil {
		w = w.Intersect(Window{End: r.EndDate})
	}
	return w
}

func latest(a, b *time.Time) *time.Time {
	if a == nil || b.After(*a) {
		return b
	}
	return a
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil || b.Before(*a) {
		return b
	}
	return a
}

/*
Package expense provides the core expense-generation engine.

PURPOSE:
  This package contains the types and algorithms for turning recurring
  rate rules (venue rental, staff wages, generic overhead) into concrete
  expense items. Whether a studio pays rent per month, an instructor per
  class hour, or an insurance premium per week, the same engine computes
  which periods still need to be charged and for how much.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rule: A recurring charge policy (rate + cadence + window bounds)
  - Item: A persisted expense record generated under a rule
  - Charge: An ephemeral priced sub-interval produced by reconciliation
  - Event/Assignment: The candidate activity a rule is applied against
  - Window: An optional [start, end] bound used for eligibility filtering

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all money, never float64
  2. Purity: Reconciliation is a pure function of rule + intervals
  3. Type Safety: Strong typing for IDs prevents mixing rule/event IDs
  4. Idempotence: Re-running generation never duplicates an Item

USAGE:
  rule := expense.Rule{
      Name:    "Main studio rent",
      Rate:    decimal.NewFromInt(300),
      Cadence: expense.CadenceMonthly,
  }
  charges := expense.Reconcile(rule, candidates, alreadyCharged)

SEE ALSO:
  - interval.go: Disjoint interval-set algebra
  - window.go: Cadence boundary alignment
  - reconcile.go: The reconciliation engine itself
  - store.go: Persistence interfaces
*/
package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RuleID string
type ItemID string
type EventID string
type LocationID string
type RoomID string
type StaffID string
type CategoryID string

// =============================================================================
// CADENCE - How often a rule charges
// =============================================================================

type Cadence string

const (
	// CadenceHourly charges each qualifying event directly (duration x rate).
	// Hourly rules never route through the reconciliation engine.
	CadenceHourly Cadence = "hourly"

	// CadenceDaily charges per day of scheduled activity.
	CadenceDaily Cadence = "daily"

	// CadenceWeekly charges per week, pro-rated for partial weeks.
	CadenceWeekly Cadence = "weekly"

	// CadenceMonthly charges per calendar month, pro-rated for partial
	// months using the actual number of days in the aligned month.
	CadenceMonthly Cadence = "monthly"

	// CadenceDisabled suppresses all generation for the rule.
	CadenceDisabled Cadence = "disabled"
)

// Milestone selects which edge of an event the advance/prior day limits
// are measured against.
type Milestone string

const (
	MilestoneStart Milestone = "start" // first occurrence starts
	MilestoneEnd   Milestone = "end"   // last occurrence ends
)

// =============================================================================
// RULE - A recurring charge policy
// =============================================================================

// Rule defines a repeated expense: how much to charge, on what cadence,
// where period boundaries fall, and how far into the past and future
// generation may reach.
//
// Exactly one target should be set (LocationID, RoomID, or StaffID);
// a rule with no target is a generic recurring expense. A room rule
// overrides the rule of the location that contains the room.
type Rule struct {
	ID   RuleID
	Name string

	Rate    decimal.Decimal
	Cadence Cadence

	// Boundary configuration. DayStartHour shifts the day boundary so
	// that events running past midnight do not produce duplicate items.
	DayStartHour  int          // 0-23
	WeekStartDay  time.Weekday // Sunday = 0
	MonthStartDay int          // 1-28, clamped to avoid short months

	// Applicability bounds. Nil means unbounded on that side.
	StartDate *time.Time
	EndDate   *time.Time

	// Rolling generation window relative to "now".
	AdvanceDays int  // generate up to N days ahead
	AdvanceRef  Milestone
	PriorDays   *int // generate up to N days back; nil = unlimited
	PriorRef    Milestone
	LastRun     *time.Time

	// Targets (at most one of Location/Room/Staff).
	LocationID *LocationID
	RoomID     *RoomID
	StaffID    *StaffID

	// For staff rules: nil means the rule is a catch-all for every
	// category the member works that has no category-specific rule.
	CategoryID *CategoryID

	// TargetName is the display name of the target (location, room, or
	// staff member), denormalized by the store for descriptions.
	TargetName string

	// Bookkeeping defaults stamped onto generated items.
	ExpenseCategory string
	PayTo           string
	MarkApproved    bool
	MarkPaid        bool
	PaymentMethod   string
}

// =============================================================================
// ITEM - A persisted expense record
// =============================================================================

// Item is a single generated expense. Period-based items carry
// PeriodStart/PeriodEnd; hourly (per-event) items reference the event
// directly and leave the period fields nil.
//
// INVARIANT: for a given rule, the [PeriodStart, PeriodEnd) intervals
// across all existing items never overlap. The reconciliation engine
// preserves this on every run, and the SQLite store backs it with a
// unique index on (rule_id, period_start, period_end).
type Item struct {
	ID     ItemID
	RuleID RuleID

	EventID     *EventID
	PeriodStart *time.Time
	PeriodEnd   *time.Time

	Total       decimal.Decimal
	Hours       *decimal.Decimal // set for hourly staff items
	Description string

	Category    string
	PayTo       string
	AccrualDate time.Time

	Approved      bool
	Paid          bool
	PaymentMethod string

	CreatedAt time.Time
}

// Period returns the item's charged interval, or false for per-event items.
func (it Item) Period() (Interval, bool) {
	if it.PeriodStart == nil || it.PeriodEnd == nil {
		return Interval{}, false
	}
	return Interval{Start: *it.PeriodStart, End: *it.PeriodEnd}, true
}

// =============================================================================
// CHARGE - Ephemeral engine output
// =============================================================================

// Charge is one priced sub-interval produced by Reconcile. The driver
// turns each Charge into a persisted Item.
type Charge struct {
	Start       time.Time
	End         time.Time
	Total       decimal.Decimal
	Description string
}

// =============================================================================
// CANDIDATES - What rules are applied against
// =============================================================================

// Event is a scheduled class, workshop or party at a location.
type Event struct {
	ID         EventID
	Name       string
	LocationID LocationID
	RoomID     *RoomID
	Start      time.Time
	End        time.Time
}

// GenerateOptions restricts a generation pass. The zero value means
// "every chargeable rule, rolling window derived from each rule".
type GenerateOptions struct {
	// Window restricts which candidate events are considered.
	Window Window

	// RuleID restricts processing to one rule (on-demand generation
	// from an admin action).
	RuleID *RuleID

	// EventID restricts processing to candidates of a single event.
	EventID *EventID
}

// DurationHours returns the event length in hours as a decimal.
func (e Event) DurationHours() decimal.Decimal {
	return decimal.NewFromFloat(e.End.Sub(e.Start).Hours())
}

// Assignment is one staff member working one event in one role.
type Assignment struct {
	ID           string
	EventID      EventID
	EventName    string
	StaffID      StaffID
	StaffName    string
	CategoryID   CategoryID
	CategoryName string
	Start        time.Time
	End          time.Time

	// NetHours is the payable time, which may differ from End-Start
	// (e.g. substitutes paid only for the classes actually taught).
	NetHours decimal.Decimal
}

// =============================================================================
// WINDOW - Optional time bounds for eligibility filtering
// =============================================================================

// Window is a half-open-ended time filter. A nil edge is unbounded.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Intersect narrows w by other, returning the overlap of the two filters.
func (w Window) Intersect(other Window) Window {
	out := w
	if other.Start != nil && (out.Start == nil || other.Start.After(*out.Start)) {
		out.Start = other.Start
	}
	if other.End != nil && (out.End == nil || other.End.Before(*out.End)) {
		out.End = other.End
	}
	return out
}

// Contains reports whether t satisfies both bounds.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// IsEmpty reports whether the window excludes every time.
func (w Window) IsEmpty() bool {
	return w.Start != nil && w.End != nil && w.End.Before(*w.Start)
}

// Between builds a bounded window, swapping the edges if given in reverse.
func Between(a, b time.Time) Window {
	if b.Before(a) {
		a, b = b, a
	}
	return Window{Start: &a, End: &b}
}

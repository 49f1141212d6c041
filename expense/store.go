/*
store.go - Persistence interfaces for rules, candidates and items

PURPOSE:
  Defines the boundary between the generation drivers and the database.
  Three collaborator contracts:

  RuleStore:   the queryable rule collection, filtered by target kind,
               with the staff listing pre-ordered by specificity and a
               bulk "mark last run" update.
  EventSource: candidate events, their occurrence intervals, and staff
               assignments, each excluding candidates already charged
               under the rule in question.
  ItemStore:   the charge sink - create, overlap lookup for
               reconciliation, and per-tick get-or-create for generic
               recurring expenses.

IMPLEMENTATIONS:
  - store/sqlite: production store (also enforces the period-uniqueness
    index that closes the check-then-create race)
  - expense/store: in-memory implementation for tests and dev

SEE ALSO:
  - venue/, staffing/, recurring/: The drivers consuming these
*/
package expense

import (
	"context"
	"time"
)

// =============================================================================
// RULE SOURCE
// =============================================================================

// RuleStore is the queryable collection of rate rules.
type RuleStore interface {
	// VenueRules returns chargeable rules with a location or room target.
	VenueRules(ctx context.Context) ([]Rule, error)

	// StaffRules returns chargeable staff-wage rules ordered by
	// descending Specificity, so category-specific rules are processed
	// before catch-alls and studio-wide defaults.
	StaffRules(ctx context.Context) ([]Rule, error)

	// RecurringRules returns chargeable rules with no target.
	RecurringRules(ctx context.Context) ([]Rule, error)

	// Rule returns one rule by ID, or ErrRuleNotFound.
	Rule(ctx context.Context, id RuleID) (Rule, error)

	// MarkRun records that the rules were examined by a generation
	// pass at the given instant. Applied even when nothing was created.
	MarkRun(ctx context.Context, ids []RuleID, at time.Time) error
}

// =============================================================================
// CANDIDATE SOURCE
// =============================================================================

// AssignmentFilter narrows staff assignments for one rule's pass.
type AssignmentFilter struct {
	StaffID    *StaffID
	CategoryID *CategoryID

	// ExcludeCategories drops assignments in the given categories.
	// Used by member catch-all rules so categories covered by the
	// member's specific rules are not charged twice.
	ExcludeCategories []CategoryID

	// ExcludeStaff drops assignments for the given members. Used by
	// category-default rules so members with their own rule for the
	// category are not charged twice.
	ExcludeStaff []StaffID

	// EventID restricts to a single event (on-demand generation).
	EventID *EventID
}

// EventSource supplies the candidate activity a rule is applied to.
type EventSource interface {
	// VenueEvents returns events at the location (or specific room)
	// matching the filter, excluding events that already carry an item
	// under excludeRule.
	VenueEvents(ctx context.Context, locationID *LocationID, roomID *RoomID, f TimeFilter, excludeRule RuleID) ([]Event, error)

	// Occurrences returns the raw occurrence intervals of the events.
	// A cancelled occurrence is simply absent.
	Occurrences(ctx context.Context, eventIDs []EventID) ([]Interval, error)

	// Assignments returns staffing assignments matching the filters,
	// excluding those whose event already carries an item under
	// excludeRule.
	Assignments(ctx context.Context, af AssignmentFilter, tf TimeFilter, excludeRule RuleID) ([]Assignment, error)
}

// =============================================================================
// CHARGE SINK
// =============================================================================

// ItemQuery filters item listings for reports and the API.
type ItemQuery struct {
	RuleID *RuleID
	From   *time.Time
	To     *time.Time
}

// ItemStore is the sink for generated expense items.
type ItemStore interface {
	// CreateItem persists a new item and returns it with its ID set.
	CreateItem(ctx context.Context, item Item) (Item, error)

	// PeriodsOverlapping returns the [PeriodStart, PeriodEnd) intervals
	// of the rule's existing items that overlap span. This is what the
	// reconciliation engine subtracts.
	PeriodsOverlapping(ctx context.Context, ruleID RuleID, span Interval) ([]Interval, error)

	// GetOrCreatePeriodItem creates the item unless one with the exact
	// (rule, periodStart, periodEnd) already exists. Reports whether a
	// new item was created.
	GetOrCreatePeriodItem(ctx context.Context, item Item) (bool, error)

	// ListItems returns items matching the query, ordered by accrual date.
	ListItems(ctx context.Context, q ItemQuery) ([]Item, error)
}

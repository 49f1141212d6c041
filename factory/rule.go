/*
Package factory provides JSON to Go rule conversion.

PURPOSE:
  Converts JSON rule definitions into expense.Rule values. This enables
  rate configuration without code changes - the studio admin can define
  rental and wage rules in JSON, and the factory builds validated Go
  structs with sensible defaults.

JSON SCHEMA:
  {
    "id": "studio-a-rent",
    "name": "Studio A rental",
    "rate": 350,
    "cadence": "monthly",
    "day_start_hour": 4,
    "week_start_day": 1,
    "month_start_day": 1,
    "advance_days": 30,
    "prior_days": 180,
    "location_id": "loc-1"
  }

KEY FEATURES:
  - Validates cadence, boundary fields and target combinations
  - Clamps month_start_day to 1-28 (ambiguous beyond the 28th)
  - Applies the standard 30-days-ahead / 180-days-back defaults
  - Rejects generic rules with no lower generation bound

USAGE:
  rule, err := factory.ParseRule(jsonStr)

SEE ALSO:
  - expense/types.go: Rule definition
  - api/handlers.go: Rule creation endpoint using this factory
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/studioledger/expense-engine/expense"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a rate rule.
type RuleJSON struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name"`
	Rate    float64 `json:"rate"`
	Cadence string  `json:"cadence"`

	DayStartHour  int `json:"day_start_hour,omitempty"`
	WeekStartDay  int `json:"week_start_day,omitempty"` // Sunday = 0
	MonthStartDay int `json:"month_start_day,omitempty"`

	StartDate string `json:"start_date,omitempty"` // 2006-01-02
	EndDate   string `json:"end_date,omitempty"`

	AdvanceDays  *int   `json:"advance_days,omitempty"` // default 30
	AdvanceRef   string `json:"advance_ref,omitempty"`  // start | end
	PriorDays    *int   `json:"prior_days,omitempty"`   // default 180
	NoPriorLimit bool   `json:"no_prior_limit,omitempty"`
	PriorRef     string `json:"prior_ref,omitempty"` // start | end

	LocationID *string `json:"location_id,omitempty"`
	RoomID     *string `json:"room_id,omitempty"`
	StaffID    *string `json:"staff_id,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`

	ExpenseCategory string `json:"expense_category,omitempty"`
	PayTo           string `json:"pay_to,omitempty"`
	MarkApproved    bool   `json:"mark_approved,omitempty"`
	MarkPaid        bool   `json:"mark_paid,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
}

// Defaults matching the admin form's initial values.
const (
	DefaultAdvanceDays = 30
	DefaultPriorDays   = 180
)

// =============================================================================
// RULE FACTORY
// =============================================================================

// ParseRule parses a JSON string into a validated Rule.
func ParseRule(jsonStr string) (expense.Rule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return expense.Rule{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON converts RuleJSON to an expense.Rule, applying defaults and
// validating the configuration.
func FromJSON(rj RuleJSON) (expense.Rule, error) {
	rule := expense.Rule{
		ID:   expense.RuleID(rj.ID),
		Name: rj.Name,
		Rate: decimal.NewFromFloat(rj.Rate),

		ExpenseCategory: rj.ExpenseCategory,
		PayTo:           rj.PayTo,
		MarkApproved:    rj.MarkApproved,
		MarkPaid:        rj.MarkPaid,
		PaymentMethod:   rj.PaymentMethod,
	}

	cadence, err := parseCadence(rj.Cadence)
	if err != nil {
		return expense.Rule{}, err
	}
	rule.Cadence = cadence

	if rj.DayStartHour < 0 || rj.DayStartHour > 23 {
		return expense.Rule{}, fmt.Errorf("day_start_hour must be 0-23, got %d", rj.DayStartHour)
	}
	rule.DayStartHour = rj.DayStartHour

	if rj.WeekStartDay < 0 || rj.WeekStartDay > 6 {
		return expense.Rule{}, fmt.Errorf("week_start_day must be 0-6, got %d", rj.WeekStartDay)
	}
	rule.WeekStartDay = time.Weekday(rj.WeekStartDay)

	rule.MonthStartDay = clampMonthStartDay(rj.MonthStartDay)

	if rule.StartDate, err = parseDate(rj.StartDate); err != nil {
		return expense.Rule{}, fmt.Errorf("start_date: %w", err)
	}
	if rule.EndDate, err = parseDate(rj.EndDate); err != nil {
		return expense.Rule{}, fmt.Errorf("end_date: %w", err)
	}

	rule.AdvanceDays = DefaultAdvanceDays
	if rj.AdvanceDays != nil {
		rule.AdvanceDays = *rj.AdvanceDays
	}
	if rule.AdvanceRef, err = parseMilestone(rj.AdvanceRef, expense.MilestoneStart); err != nil {
		return expense.Rule{}, fmt.Errorf("advance_ref: %w", err)
	}

	switch {
	case rj.NoPriorLimit:
		rule.PriorDays = nil
	case rj.PriorDays != nil:
		rule.PriorDays = rj.PriorDays
	default:
		d := DefaultPriorDays
		rule.PriorDays = &d
	}
	if rule.PriorRef, err = parseMilestone(rj.PriorRef, expense.MilestoneEnd); err != nil {
		return expense.Rule{}, fmt.Errorf("prior_ref: %w", err)
	}

	if rj.LocationID != nil {
		id := expense.LocationID(*rj.LocationID)
		rule.LocationID = &id
	}
	if rj.RoomID != nil {
		id := expense.RoomID(*rj.RoomID)
		rule.RoomID = &id
	}
	if rj.StaffID != nil {
		id := expense.StaffID(*rj.StaffID)
		rule.StaffID = &id
	}
	if rj.CategoryID != nil {
		id := expense.CategoryID(*rj.CategoryID)
		rule.CategoryID = &id
	}

	kind, err := rule.Target()
	if err != nil {
		return expense.Rule{}, err
	}

	// A generic rule with no lower bound would enumerate ticks forever.
	if kind == expense.TargetGeneric && rule.PriorDays == nil && rule.StartDate == nil {
		return expense.Rule{}, fmt.Errorf("%w: generic rules need a start date or prior-days limit", expense.ErrUnboundedRule)
	}

	return rule, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCadence(s string) (expense.Cadence, error) {
	switch expense.Cadence(s) {
	case expense.CadenceHourly, expense.CadenceDaily, expense.CadenceWeekly,
		expense.CadenceMonthly, expense.CadenceDisabled:
		return expense.Cadence(s), nil
	case "":
		return expense.CadenceHourly, nil
	}
	return "", fmt.Errorf("unknown cadence %q", s)
}

func parseMilestone(s string, fallback expense.Milestone) (expense.Milestone, error) {
	switch expense.Milestone(s) {
	case expense.MilestoneStart, expense.MilestoneEnd:
		return expense.Milestone(s), nil
	case "":
		return fallback, nil
	}
	return "", fmt.Errorf("unknown milestone %q", s)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// clampMonthStartDay forces the anchor into 1-28; days 29-31 don't
// exist in every month and would make boundaries ambiguous.
func clampMonthStartDay(d int) int {
	if d < 1 {
		return 1
	}
	if d > 28 {
		return 28
	}
	return d
}

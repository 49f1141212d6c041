package factory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studioledger/expense-engine/expense"
	"github.com/studioledger/expense-engine/factory"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// =============================================================================
// DEFAULTS
// =============================================================================

func TestFromJSON_AppliesDefaults(t *testing.T) {
	rule, err := factory.FromJSON(factory.RuleJSON{
		ID:         "rent-1",
		Name:       "Studio rental",
		Rate:       350,
		Cadence:    "monthly",
		LocationID: strPtr("loc-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, expense.RuleID("rent-1"), rule.ID)
	assert.True(t, rule.Rate.Equal(decimal.NewFromInt(350)))
	assert.Equal(t, expense.CadenceMonthly, rule.Cadence)
	assert.Equal(t, 30, rule.AdvanceDays)
	require.NotNil(t, rule.PriorDays)
	assert.Equal(t, 180, *rule.PriorDays)
	assert.Equal(t, expense.MilestoneStart, rule.AdvanceRef)
	assert.Equal(t, expense.MilestoneEnd, rule.PriorRef)
	assert.Equal(t, 1, rule.MonthStartDay)
}

func TestFromJSON_EmptyCadenceMeansHourly(t *testing.T) {
	rule, err := factory.FromJSON(factory.RuleJSON{
		Name:       "Per-class rental",
		Rate:       50,
		LocationID: strPtr("loc-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, expense.CadenceHourly, rule.Cadence)
}

func TestFromJSON_NoPriorLimit(t *testing.T) {
	rule, err := factory.FromJSON(factory.RuleJSON{
		Name:         "Back-pay sweep",
		Rate:         30,
		Cadence:      "hourly",
		StaffID:      strPtr("staff-1"),
		NoPriorLimit: true,
	})
	require.NoError(t, err)
	assert.Nil(t, rule.PriorDays)
}

func TestFromJSON_ExplicitOverridesBeatDefaults(t *testing.T) {
	rule, err := factory.FromJSON(factory.RuleJSON{
		Name:        "Short-horizon rental",
		Rate:        50,
		Cadence:     "weekly",
		LocationID:  strPtr("loc-1"),
		AdvanceDays: intPtr(7),
		PriorDays:   intPtr(14),
		AdvanceRef:  "end",
		PriorRef:    "start",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, rule.AdvanceDays)
	require.NotNil(t, rule.PriorDays)
	assert.Equal(t, 14, *rule.PriorDays)
	assert.Equal(t, expense.MilestoneEnd, rule.AdvanceRef)
	assert.Equal(t, expense.MilestoneStart, rule.PriorRef)
}

// =============================================================================
// BOUNDARY FIELDS
// =============================================================================

func TestFromJSON_BoundaryFieldValidation(t *testing.T) {
	base := factory.RuleJSON{Name: "r", Rate: 100, Cadence: "weekly", LocationID: strPtr("loc-1")}

	bad := base
	bad.DayStartHour = 24
	_, err := factory.FromJSON(bad)
	assert.ErrorContains(t, err, "day_start_hour")

	bad = base
	bad.WeekStartDay = 7
	_, err = factory.FromJSON(bad)
	assert.ErrorContains(t, err, "week_start_day")

	ok := base
	ok.DayStartHour = 4
	ok.WeekStartDay = 1
	rule, err := factory.FromJSON(ok)
	require.NoError(t, err)
	assert.Equal(t, 4, rule.DayStartHour)
	assert.Equal(t, time.Monday, rule.WeekStartDay)
}

func TestFromJSON_MonthStartDayClamped(t *testing.T) {
	base := factory.RuleJSON{Name: "r", Rate: 100, Cadence: "monthly", LocationID: strPtr("loc-1")}

	low := base
	rule, err := factory.FromJSON(low)
	require.NoError(t, err)
	assert.Equal(t, 1, rule.MonthStartDay, "unset anchors to the 1st")

	high := base
	high.MonthStartDay = 31
	rule, err = factory.FromJSON(high)
	require.NoError(t, err)
	assert.Equal(t, 28, rule.MonthStartDay, "the 29th-31st don't exist in every month")
}

func TestFromJSON_ParsesDates(t *testing.T) {
	rule, err := factory.FromJSON(factory.RuleJSON{
		Name:       "Lease",
		Rate:       1200,
		Cadence:    "monthly",
		LocationID: strPtr("loc-1"),
		StartDate:  "2025-03-01",
		EndDate:    "2026-03-01",
	})
	require.NoError(t, err)
	require.NotNil(t, rule.StartDate)
	require.NotNil(t, rule.EndDate)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), *rule.StartDate)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), *rule.EndDate)

	_, err = factory.FromJSON(factory.RuleJSON{
		Name: "r", Rate: 1, Cadence: "monthly", LocationID: strPtr("loc-1"),
		StartDate: "01/03/2025",
	})
	assert.ErrorContains(t, err, "start_date")
}

// =============================================================================
// TARGET VALIDATION
// =============================================================================

func TestFromJSON_ConflictingTargetsRejected(t *testing.T) {
	_, err := factory.FromJSON(factory.RuleJSON{
		Name: "r", Rate: 100, Cadence: "hourly",
		LocationID: strPtr("loc-1"),
		StaffID:    strPtr("staff-1"),
	})
	require.Error(t, err)
	assert.True(t, expense.IsConfig(err))

	_, err = factory.FromJSON(factory.RuleJSON{
		Name: "r", Rate: 100, Cadence: "hourly",
		LocationID: strPtr("loc-1"),
		RoomID:     strPtr("room-1"),
	})
	require.Error(t, err)
	assert.True(t, expense.IsConfig(err))
}

func TestFromJSON_UnboundedGenericRejected(t *testing.T) {
	// No target, no start date, no prior-days floor: tick enumeration
	// would have no lower bound.
	_, err := factory.FromJSON(factory.RuleJSON{
		Name:         "Subscription",
		Rate:         20,
		Cadence:      "monthly",
		NoPriorLimit: true,
	})
	require.ErrorIs(t, err, expense.ErrUnboundedRule)

	rule, err := factory.FromJSON(factory.RuleJSON{
		Name:         "Subscription",
		Rate:         20,
		Cadence:      "monthly",
		NoPriorLimit: true,
		StartDate:    "2025-01-01",
	})
	require.NoError(t, err)
	assert.NotNil(t, rule.StartDate)
}

func TestFromJSON_UnknownCadenceRejected(t *testing.T) {
	_, err := factory.FromJSON(factory.RuleJSON{
		Name: "r", Rate: 100, Cadence: "fortnightly", LocationID: strPtr("loc-1"),
	})
	assert.ErrorContains(t, err, "cadence")
}

// =============================================================================
// JSON PARSING
// =============================================================================

func TestParseRule_RoundTrip(t *testing.T) {
	rule, err := factory.ParseRule(`{
		"id": "rent-main-weekly",
		"name": "Main hall weekly rental",
		"rate": 400,
		"cadence": "weekly",
		"week_start_day": 1,
		"day_start_hour": 4,
		"location_id": "loc-main"
	}`)
	require.NoError(t, err)
	assert.Equal(t, expense.RuleID("rent-main-weekly"), rule.ID)
	assert.Equal(t, expense.CadenceWeekly, rule.Cadence)
	assert.Equal(t, time.Monday, rule.WeekStartDay)
	assert.Equal(t, 4, rule.DayStartHour)
	require.NotNil(t, rule.LocationID)
	assert.Equal(t, expense.LocationID("loc-main"), *rule.LocationID)
}

func TestParseRule_MalformedJSON(t *testing.T) {
	_, err := factory.ParseRule(`{"rate": `)
	assert.ErrorContains(t, err, "parse rule JSON")
}

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studioledger/expense-engine/expense"
	"github.com/studioledger/expense-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func timePtr(t time.Time) *time.Time { return &t }

// =============================================================================
// RULES
// =============================================================================

func TestSaveRule_RoundTripWithTargetName(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveLocation(ctx, sqlite.Location{ID: "loc-1", Name: "Main Street Studio"}))

	loc := expense.LocationID("loc-1")
	prior := 180
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rule := expense.Rule{
		ID:           "rent-1",
		Name:         "Weekly rent",
		Rate:         decimal.RequireFromString("412.50"),
		Cadence:      expense.CadenceWeekly,
		DayStartHour: 4,
		WeekStartDay: time.Monday,
		StartDate:    &start,
		AdvanceDays:  30,
		AdvanceRef:   expense.MilestoneStart,
		PriorDays:    &prior,
		PriorRef:     expense.MilestoneEnd,
		LocationID:   &loc,
		PayTo:        "Landlord LLC",
	}
	require.NoError(t, s.SaveRule(ctx, rule))

	got, err := s.Rule(ctx, "rent-1")
	require.NoError(t, err)
	assert.True(t, got.Rate.Equal(rule.Rate), "got %s", got.Rate)
	assert.Equal(t, expense.CadenceWeekly, got.Cadence)
	assert.Equal(t, time.Monday, got.WeekStartDay)
	assert.Equal(t, 4, got.DayStartHour)
	require.NotNil(t, got.StartDate)
	assert.True(t, got.StartDate.Equal(start))
	require.NotNil(t, got.PriorDays)
	assert.Equal(t, 180, *got.PriorDays)
	require.NotNil(t, got.LocationID)
	assert.Equal(t, loc, *got.LocationID)
	assert.Equal(t, "Main Street Studio", got.TargetName, "resolved from the directory")
}

func TestRule_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Rule(context.Background(), "nope")
	assert.ErrorIs(t, err, expense.ErrRuleNotFound)
}

func TestStaffRules_OrderedBySpecificity(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	staff := expense.StaffID("staff-1")
	cat := expense.CategoryID("cat-1")
	require.NoError(t, s.SaveRule(ctx, expense.Rule{
		ID: "z-default", Rate: decimal.NewFromInt(20), Cadence: expense.CadenceHourly, CategoryID: &cat,
	}))
	require.NoError(t, s.SaveRule(ctx, expense.Rule{
		ID: "a-specific", Rate: decimal.NewFromInt(40), Cadence: expense.CadenceHourly, StaffID: &staff, CategoryID: &cat,
	}))
	require.NoError(t, s.SaveRule(ctx, expense.Rule{
		ID: "m-catchall", Rate: decimal.NewFromInt(30), Cadence: expense.CadenceHourly, StaffID: &staff,
	}))

	rules, err := s.StaffRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, expense.RuleID("a-specific"), rules[0].ID)
	assert.Equal(t, expense.RuleID("m-catchall"), rules[1].ID)
	assert.Equal(t, expense.RuleID("z-default"), rules[2].ID)
}

func TestRuleListings_ExcludeDisabledAndFree(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	loc := expense.LocationID("loc-1")
	require.NoError(t, s.SaveRule(ctx, expense.Rule{
		ID: "active", Rate: decimal.NewFromInt(50), Cadence: expense.CadenceHourly, LocationID: &loc,
	}))
	require.NoError(t, s.SaveRule(ctx, expense.Rule{
		ID: "disabled", Rate: decimal.NewFromInt(50), Cadence: expense.CadenceDisabled, LocationID: &loc,
	}))
	require.NoError(t, s.SaveRule(ctx, expense.Rule{
		ID: "free", Rate: decimal.Zero, Cadence: expense.CadenceHourly, LocationID: &loc,
	}))

	venue, err := s.VenueRules(ctx)
	require.NoError(t, err)
	require.Len(t, venue, 1)
	assert.Equal(t, expense.RuleID("active"), venue[0].ID)

	// The admin listing still shows everything.
	all, err := s.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// EVENTS AND ASSIGNMENTS
// =============================================================================

func TestVenueEvents_ExcludesAlreadyCharged(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	loc := expense.LocationID("loc-1")
	ev := expense.Event{
		ID:         "ev-1",
		Name:       "Class",
		LocationID: loc,
		Start:      time.Date(2025, time.June, 4, 19, 0, 0, 0, time.UTC),
		End:        time.Date(2025, time.June, 4, 21, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveEvent(ctx, ev))

	events, err := s.VenueEvents(ctx, &loc, nil, expense.TimeFilter{}, "rent-1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	evID := ev.ID
	_, err = s.CreateItem(ctx, expense.Item{
		RuleID:      "rent-1",
		EventID:     &evID,
		Total:       decimal.NewFromInt(100),
		Description: "rental",
		AccrualDate: ev.Start,
	})
	require.NoError(t, err)

	events, err = s.VenueEvents(ctx, &loc, nil, expense.TimeFilter{}, "rent-1")
	require.NoError(t, err)
	assert.Empty(t, events, "charged under this rule")

	events, err = s.VenueEvents(ctx, &loc, nil, expense.TimeFilter{}, "other-rule")
	require.NoError(t, err)
	assert.Len(t, events, 1, "a different rule still sees it")
}

func TestVenueEvents_TimeFilterBounds(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	loc := expense.LocationID("loc-1")
	for i, day := range []int{1, 10, 20} {
		ev := expense.Event{
			ID:         expense.EventID(string(rune('a' + i))),
			LocationID: loc,
			Start:      time.Date(2025, time.June, day, 19, 0, 0, 0, time.UTC),
			End:        time.Date(2025, time.June, day, 21, 0, 0, 0, time.UTC),
		}
		require.NoError(t, s.SaveEvent(ctx, ev))
	}

	f := expense.TimeFilter{
		StartAfter:  timePtr(time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC)),
		StartBefore: timePtr(time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)),
	}
	events, err := s.VenueEvents(ctx, &loc, nil, f, "r")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].Start.Day())
}

func TestOccurrences_DefaultToEventSpan(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	ev := expense.Event{
		ID:         "ev-1",
		LocationID: "loc-1",
		Start:      time.Date(2025, time.June, 4, 19, 0, 0, 0, time.UTC),
		End:        time.Date(2025, time.June, 4, 21, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveEvent(ctx, ev))

	got, err := s.Occurrences(ctx, []expense.EventID{"ev-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Equal(ev.Start))
	assert.True(t, got[0].End.Equal(ev.End))
}

func TestAssignments_FilterAndExclusions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveStaffMember(ctx, sqlite.StaffMember{ID: "staff-ana", Name: "Ana Reyes"}))
	require.NoError(t, s.SaveStaffCategory(ctx, sqlite.StaffCategory{ID: "cat-instructor", Name: "Instructor"}))
	require.NoError(t, s.SaveStaffCategory(ctx, sqlite.StaffCategory{ID: "cat-door", Name: "Door"}))

	ev := expense.Event{
		ID:         "ev-1",
		Name:       "Class",
		LocationID: "loc-1",
		Start:      time.Date(2025, time.June, 4, 19, 0, 0, 0, time.UTC),
		End:        time.Date(2025, time.June, 4, 22, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveEvent(ctx, ev))

	for i, cat := range []expense.CategoryID{"cat-instructor", "cat-door"} {
		require.NoError(t, s.SaveAssignment(ctx, expense.Assignment{
			ID:         string(rune('a' + i)),
			EventID:    "ev-1",
			StaffID:    "staff-ana",
			CategoryID: cat,
			Start:      ev.Start,
			End:        ev.End,
			NetHours:   decimal.NewFromInt(3),
		}))
	}

	staff := expense.StaffID("staff-ana")
	all, err := s.Assignments(ctx, expense.AssignmentFilter{StaffID: &staff}, expense.TimeFilter{}, "r")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ana Reyes", all[0].StaffName, "names joined from the directory")

	filtered, err := s.Assignments(ctx, expense.AssignmentFilter{
		StaffID:           &staff,
		ExcludeCategories: []expense.CategoryID{"cat-instructor"},
	}, expense.TimeFilter{}, "r")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, expense.CategoryID("cat-door"), filtered[0].CategoryID)

	none, err := s.Assignments(ctx, expense.AssignmentFilter{
		ExcludeStaff: []expense.StaffID{"staff-ana"},
	}, expense.TimeFilter{}, "r")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// ITEMS
// =============================================================================

func TestCreateItem_DuplicatePeriodRejected(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	start := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC)
	item := expense.Item{
		RuleID:      "rent-1",
		PeriodStart: &start,
		PeriodEnd:   &end,
		Total:       decimal.NewFromInt(400),
		Description: "week",
		AccrualDate: start,
	}

	_, err := s.CreateItem(ctx, item)
	require.NoError(t, err)

	_, err = s.CreateItem(ctx, item)
	assert.ErrorIs(t, err, expense.ErrDuplicatePeriod)
}

func TestGetOrCreatePeriodItem_SecondCallIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	tick := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	item := expense.Item{
		RuleID:      "insurance",
		PeriodStart: &tick,
		PeriodEnd:   &tick,
		Total:       decimal.NewFromInt(180),
		Description: "Liability insurance",
		AccrualDate: tick,
	}

	created, err := s.GetOrCreatePeriodItem(ctx, item)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.GetOrCreatePeriodItem(ctx, item)
	require.NoError(t, err)
	assert.False(t, created)

	items, err := s.ListItems(ctx, expense.ItemQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPeriodsOverlapping_HalfOpen(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	start := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC)
	_, err := s.CreateItem(ctx, expense.Item{
		RuleID:      "rent-1",
		PeriodStart: &start,
		PeriodEnd:   &end,
		Total:       decimal.NewFromInt(400),
		Description: "week",
		AccrualDate: start,
	})
	require.NoError(t, err)

	overlapping, err := s.PeriodsOverlapping(ctx, "rent-1", expense.Interval{
		Start: time.Date(2025, time.June, 8, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, overlapping, 1)

	// Touching at the boundary is not an overlap.
	touching, err := s.PeriodsOverlapping(ctx, "rent-1", expense.Interval{
		Start: end,
		End:   time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, touching)

	other, err := s.PeriodsOverlapping(ctx, "other-rule", expense.Interval{Start: start, End: end})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPeriodsOverlapping_SubSecondPrecision(t *testing.T) {
	// Stored timestamps are compared as strings, so a half-second period
	// start must still sort after a whole-second span end.
	ctx := context.Background()
	s := newStore(t)

	start := time.Date(2025, time.June, 4, 19, 0, 0, 500_000_000, time.UTC)
	end := time.Date(2025, time.June, 4, 21, 0, 0, 0, time.UTC)
	_, err := s.CreateItem(ctx, expense.Item{
		RuleID:      "rent-1",
		PeriodStart: &start,
		PeriodEnd:   &end,
		Total:       decimal.NewFromInt(100),
		Description: "evening",
		AccrualDate: start,
	})
	require.NoError(t, err)

	before, err := s.PeriodsOverlapping(ctx, "rent-1", expense.Interval{
		Start: time.Date(2025, time.June, 4, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.June, 4, 19, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, before, "span ends before the period starts")

	overlapping, err := s.PeriodsOverlapping(ctx, "rent-1", expense.Interval{
		Start: time.Date(2025, time.June, 4, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.June, 4, 19, 0, 0, 750_000_000, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.True(t, overlapping[0].Start.Equal(start), "sub-second precision survives the round trip")
}

func TestListItems_FiltersByRuleAndAccrualRange(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i, day := range []int{1, 10, 20} {
		ruleID := expense.RuleID("rent-1")
		if i == 2 {
			ruleID = "wage-1"
		}
		_, err := s.CreateItem(ctx, expense.Item{
			RuleID:      ruleID,
			Total:       decimal.NewFromInt(int64(day)),
			Description: "item",
			AccrualDate: time.Date(2025, time.June, day, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	rent := expense.RuleID("rent-1")
	items, err := s.ListItems(ctx, expense.ItemQuery{RuleID: &rent})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = s.ListItems(ctx, expense.ItemQuery{
		From: timePtr(time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC)),
		To:   timePtr(time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 10, items[0].AccrualDate.Day())
}

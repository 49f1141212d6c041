package staffing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studioledger/expense-engine/expense"
	"github.com/studioledger/expense-engine/expense/store"
	"github.com/studioledger/expense-engine/staffing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	testNow = time.Date(2025, time.June, 16, 12, 0, 0, 0, time.UTC)

	instructor = expense.CategoryID("cat-instructor")
	door       = expense.CategoryID("cat-door")
	ana        = expense.StaffID("staff-ana")
	ben        = expense.StaffID("staff-ben")
)

func newGenerator(m *store.Memory, defaults bool) *staffing.Generator {
	return &staffing.Generator{
		Rules:                 m,
		Events:                m,
		Items:                 m,
		ApplyCategoryDefaults: defaults,
		Clock:                 func() time.Time { return testNow },
	}
}

func wageRule(id string, rate int64, staff *expense.StaffID, cat *expense.CategoryID) expense.Rule {
	return expense.Rule{
		ID:          expense.RuleID(id),
		Name:        id,
		Rate:        decimal.NewFromInt(rate),
		Cadence:     expense.CadenceHourly,
		AdvanceDays: 30,
		StaffID:     staff,
		CategoryID:  cat,
	}
}

func classEvent(m *store.Memory) expense.Event {
	return m.AddEvent(expense.Event{
		Name:       "Balboa Intensive",
		LocationID: "loc-1",
		Start:      time.Date(2025, time.June, 3, 19, 0, 0, 0, time.UTC),
		End:        time.Date(2025, time.June, 3, 22, 0, 0, 0, time.UTC),
	})
}

func assign(m *store.Memory, ev expense.Event, staff expense.StaffID, name string, cat expense.CategoryID, catName string, hours int64) {
	m.AddAssignment(expense.Assignment{
		EventID:      ev.ID,
		EventName:    ev.Name,
		StaffID:      staff,
		StaffName:    name,
		CategoryID:   cat,
		CategoryName: catName,
		Start:        ev.Start,
		End:          ev.End,
		NetHours:     decimal.NewFromInt(hours),
	})
}

func totalsByPayee(items []expense.Item) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, it := range items {
		sum, ok := out[it.PayTo]
		if !ok {
			sum = decimal.Zero
		}
		out[it.PayTo] = sum.Add(it.Total)
	}
	return out
}

// =============================================================================
// HOURLY WAGES
// =============================================================================

func TestGenerate_HourlyWage_PaysNetHours(t *testing.T) {
	// GIVEN: Ana teaches 3 hours at a negotiated 45/hour
	// WHEN: Running a generation pass
	// THEN: One item paying 135 to Ana, tied to the event
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(wageRule("wage-ana-instructor", 45, &ana, &instructor))
	ev := classEvent(m)
	assign(m, ev, ana, "Ana Reyes", instructor, "Instructor", 3)

	created, err := newGenerator(m, false).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	items := m.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].Total.Equal(decimal.NewFromInt(135)), "got %s", items[0].Total)
	assert.Equal(t, "Ana Reyes", items[0].PayTo)
	require.NotNil(t, items[0].Hours)
	assert.True(t, items[0].Hours.Equal(decimal.NewFromInt(3)))
	assert.Contains(t, items[0].Description, "Instructor payment to Ana Reyes")
}

func TestGenerate_MemberRuleBeatsCategoryDefault(t *testing.T) {
	// GIVEN: Ana has a negotiated instructor rate of 45, the studio-wide
	//        instructor default is 30, Ben has no rule of his own
	// WHEN: Running a pass with category defaults enabled
	// THEN: Ana is paid 45/hour under her rule, Ben 30/hour under the
	//       default, and nobody is paid twice
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(wageRule("wage-ana-instructor", 45, &ana, &instructor))
	m.AddRule(wageRule("wage-instructor-default", 30, nil, &instructor))
	ev := classEvent(m)
	assign(m, ev, ana, "Ana Reyes", instructor, "Instructor", 3)
	assign(m, ev, ben, "Ben Okafor", instructor, "Instructor", 3)

	created, err := newGenerator(m, true).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, created)

	totals := totalsByPayee(m.Items())
	assert.True(t, totals["Ana Reyes"].Equal(decimal.NewFromInt(135)), "got %s", totals["Ana Reyes"])
	assert.True(t, totals["Ben Okafor"].Equal(decimal.NewFromInt(90)), "got %s", totals["Ben Okafor"])
}

func TestGenerate_CategoryRuleBeatsCatchAll(t *testing.T) {
	// GIVEN: Ana has an instructor-specific rate of 40 and a catch-all
	//        rate of 20, and works the same night as instructor and on
	//        the door
	// WHEN: Running a generation pass
	// THEN: The instructor shift pays 40/hour, the door shift falls
	//       through to the catch-all at 20/hour
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(wageRule("wage-ana-instructor", 40, &ana, &instructor))
	m.AddRule(wageRule("wage-ana-any", 20, &ana, nil))
	ev := classEvent(m)
	assign(m, ev, ana, "Ana Reyes", instructor, "Instructor", 2)
	assign(m, ev, ana, "Ana Reyes", door, "Door", 1)

	created, err := newGenerator(m, false).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, created)

	totals := totalsByPayee(m.Items())
	// 2h x 40 + 1h x 20
	assert.True(t, totals["Ana Reyes"].Equal(decimal.NewFromInt(100)), "got %s", totals["Ana Reyes"])
}

func TestGenerate_CategoryDefaults_OptIn(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(wageRule("wage-instructor-default", 30, nil, &instructor))
	ev := classEvent(m)
	assign(m, ev, ben, "Ben Okafor", instructor, "Instructor", 3)

	created, err := newGenerator(m, false).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, created, "defaults disabled: no charge")

	created, err = newGenerator(m, true).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestGenerate_SecondRunChargesNothing(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(wageRule("wage-ana-instructor", 45, &ana, &instructor))
	ev := classEvent(m)
	assign(m, ev, ana, "Ana Reyes", instructor, "Instructor", 3)
	g := newGenerator(m, false)

	first, err := g.Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, first)

	second, err := g.Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second)
}

// =============================================================================
// PERIOD WAGES
// =============================================================================

func TestGenerate_WeeklyRetainer_ReconcilesPerMember(t *testing.T) {
	// GIVEN: Ana is on a weekly retainer of 350
	// WHEN: She teaches twice in the same week
	// THEN: One period item for the week, not two
	ctx := context.Background()
	m := store.NewMemory()

	rule := wageRule("retainer-ana", 350, &ana, nil)
	rule.Cadence = expense.CadenceWeekly
	rule.WeekStartDay = time.Monday
	m.AddRule(rule)

	ev1 := classEvent(m)
	ev2 := m.AddEvent(expense.Event{
		Name:       "Lindy Social",
		LocationID: "loc-1",
		Start:      time.Date(2025, time.June, 6, 20, 0, 0, 0, time.UTC),
		End:        time.Date(2025, time.June, 6, 23, 0, 0, 0, time.UTC),
	})
	assign(m, ev1, ana, "Ana Reyes", instructor, "Instructor", 3)
	assign(m, ev2, ana, "Ana Reyes", instructor, "Instructor", 3)

	created, err := newGenerator(m, false).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	items := m.Items()
	require.Len(t, items, 1)
	period, ok := items[0].Period()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), period.Start)
	assert.Equal(t, time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC), period.End)
	assert.True(t, items[0].Total.Equal(decimal.NewFromInt(350)))
	assert.Equal(t, "Ana Reyes", items[0].PayTo)
}

// =============================================================================
// RULE VALIDATION
// =============================================================================

func TestGenerate_SingleRule_RejectsNonStaffRule(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	loc := expense.LocationID("loc-1")
	rule := m.AddRule(expense.Rule{
		ID:         "rent-1",
		Rate:       decimal.NewFromInt(50),
		Cadence:    expense.CadenceHourly,
		LocationID: &loc,
	})

	_, err := newGenerator(m, false).Generate(ctx, expense.GenerateOptions{RuleID: &rule.ID})
	require.Error(t, err)
	assert.True(t, expense.IsConfig(err))
}

package recurring_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studioledger/expense-engine/expense"
	"github.com/studioledger/expense-engine/expense/store"
	"github.com/studioledger/expense-engine/recurring"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func newGenerator(m *store.Memory) *recurring.Generator {
	return &recurring.Generator{
		Rules: m,
		Items: m,
		Clock: func() time.Time { return testNow },
	}
}

func insuranceRule() expense.Rule {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	return expense.Rule{
		ID:            "insurance-monthly",
		Name:          "Liability insurance",
		Rate:          decimal.NewFromInt(180),
		Cadence:       expense.CadenceMonthly,
		MonthStartDay: 1,
		AdvanceDays:   30,
		StartDate:     &start,
		PayTo:         "Harbor Mutual",
	}
}

// =============================================================================
// TICK ENUMERATION
// =============================================================================

func TestGenerate_Monthly_OneItemPerTick(t *testing.T) {
	// GIVEN: A 180/month premium starting March 1st, 30 days of lookahead
	// WHEN: Running a pass on June 15th
	// THEN: Five items, March 1st through July 1st, one per month
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(insuranceRule())

	created, err := newGenerator(m).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 5, created)

	items := m.Items()
	require.Len(t, items, 5)
	for i, it := range items {
		want := time.Date(2025, time.March+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		require.NotNil(t, it.PeriodStart)
		require.NotNil(t, it.PeriodEnd)
		assert.Equal(t, want, *it.PeriodStart)
		assert.Equal(t, want, *it.PeriodEnd, "tick items carry a point period")
		assert.Equal(t, want, it.AccrualDate)
		assert.True(t, it.Total.Equal(decimal.NewFromInt(180)), "got %s", it.Total)
		assert.Equal(t, "Liability insurance", it.Description)
		assert.Equal(t, "Harbor Mutual", it.PayTo)
		assert.Equal(t, recurring.DefaultCategory, it.Category)
	}
}

func TestGenerate_SecondRunCreatesNothing(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(insuranceRule())
	g := newGenerator(m)

	first, err := g.Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 5, first)

	second, err := g.Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second)
	assert.Len(t, m.Items(), 5)
}

func TestGenerate_CatchesUpAfterGap(t *testing.T) {
	// GIVEN: A pass already covered through July 1st
	// WHEN: Running again two months later
	// THEN: Only the missing ticks are filled in
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(insuranceRule())

	_, err := newGenerator(m).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)

	later := &recurring.Generator{
		Rules: m,
		Items: m,
		Clock: func() time.Time { return testNow.AddDate(0, 2, 0) },
	}
	created, err := later.Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, created, "August and September ticks")
	assert.Len(t, m.Items(), 7)
}

func TestGenerate_ExplicitWindow_ClampsTicks(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(insuranceRule())

	from := time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	created, err := newGenerator(m).Generate(ctx, expense.GenerateOptions{
		Window: expense.Window{Start: &from, End: &to},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created, "May and June ticks only")
}

func TestGenerate_EndDate_StopsEnumeration(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	rule := insuranceRule()
	end := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	rule.EndDate = &end
	m.AddRule(rule)

	created, err := newGenerator(m).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, created, "March, April, May")
}

// =============================================================================
// RULE VALIDATION
// =============================================================================

func TestGenerate_UnboundedRule_SkippedNotFatal(t *testing.T) {
	// A generic rule with no start date and no prior-days limit has no
	// lower bound for enumeration. The pass logs and moves on.
	ctx := context.Background()
	m := store.NewMemory()
	m.AddRule(expense.Rule{
		ID:          "unbounded",
		Name:        "Mystery subscription",
		Rate:        decimal.NewFromInt(20),
		Cadence:     expense.CadenceMonthly,
		AdvanceDays: 30,
	})
	m.AddRule(insuranceRule())

	created, err := newGenerator(m).Generate(ctx, expense.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, created, "the bounded rule still runs")
}

func TestGenerate_SingleRule_RejectsTargetedRule(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	loc := expense.LocationID("loc-1")
	rule := m.AddRule(expense.Rule{
		ID:         "rent-1",
		Rate:       decimal.NewFromInt(50),
		Cadence:    expense.CadenceMonthly,
		LocationID: &loc,
	})

	_, err := newGenerator(m).Generate(ctx, expense.GenerateOptions{RuleID: &rule.ID})
	require.Error(t, err)
	assert.True(t, expense.IsConfig(err))
}

package expense_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studioledger/expense-engine/expense"
)

func TestMonthlyTotals_GroupsByAccrualMonth(t *testing.T) {
	items := []expense.Item{
		{Total: money(100), AccrualDate: time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)},
		{Total: money(50), AccrualDate: time.Date(2025, time.June, 20, 19, 0, 0, 0, time.UTC)},
		{Total: money(300), AccrualDate: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)},
	}

	totals := expense.MonthlyTotals(items)
	require.Len(t, totals, 2)

	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), totals[0].Month)
	assert.True(t, totals[0].Total.Equal(money(150)))
	assert.Equal(t, 2, totals[0].Count)

	assert.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), totals[1].Month)
	assert.True(t, totals[1].Total.Equal(money(300)))
	assert.Equal(t, 1, totals[1].Count)
}

func TestMonthlyTotals_Empty(t *testing.T) {
	assert.Empty(t, expense.MonthlyTotals(nil))
}

package expense

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MonthTotal aggregates generated expense for one calendar month.
type MonthTotal struct {
	Month time.Time // first instant of the month, UTC
	Total decimal.Decimal
	Count int
}

// MonthlyTotals rolls items up by the calendar month of their accrual
// date, for the financial summary screen. Months with no items are
// absent from the result.
func MonthlyTotals(items []Item) []MonthTotal {
	byMonth := make(map[time.Time]*MonthTotal)
	for _, it := range items {
		d := it.AccrualDate.UTC()
		m := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		agg, ok := byMonth[m]
		if !ok {
			agg = &MonthTotal{Month: m, Total: decimal.Zero}
			byMonth[m] = agg
		}
		agg.Total = agg.Total.Add(it.Total)
		agg.Count++
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for _, agg := range byMonth {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

/*
Package venue generates rental expenses for the studio's locations
and rooms.

PURPOSE:
  For each location- or room-targeted rate rule, find events at that
  venue inside the rule's eligibility window that do not already carry
  an expense under the rule, then charge them:

  - Hourly rules charge each qualifying event directly (duration x
    rate), tied to the event. The periods hourly expenses cover are
    disjoint by construction, so no reconciliation is needed.
  - Daily/weekly/monthly rules feed the events' occurrence intervals
    through the reconciliation engine, which subtracts the periods
    already charged and prices what remains.

  A room rule overrides the rule of its containing location: the event
  source matches events by room when the rule targets a room.

SEE ALSO:
  - expense/reconcile.go: The reconciliation engine
  - staffing/, recurring/: The other two generation drivers
*/
package venue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/studioledger/expense-engine/expense"
)

// DefaultCategory is the bookkeeping category stamped on rental items
// when the rule does not name one.
const DefaultCategory = "Venue rental"

// Generator runs venue-rental expense generation passes.
type Generator struct {
	Rules  expense.RuleStore
	Events expense.EventSource
	Items  expense.ItemStore

	// Clock supplies "now" for eligibility windows and MarkRun.
	// Defaults to time.Now.
	Clock func() time.Time

	Logger *log.Logger
}

// Generate runs one pass and returns the number of items created.
// Configuration problems on individual rules are logged and skipped;
// persistence failures abort the pass.
func (g *Generator) Generate(ctx context.Context, opts expense.GenerateOptions) (int, error) {
	now := g.now()

	rules, err := g.selectRules(ctx, opts)
	if err != nil {
		return 0, err
	}

	created := 0
	examined := make([]expense.RuleID, 0, len(rules))
	for _, rule := range rules {
		examined = append(examined, rule.ID)

		n, err := g.applyRule(ctx, rule, opts, now)
		if err != nil {
			if expense.IsConfig(err) {
				g.logf("venue: skipping rule %s: %v", rule.ID, err)
				continue
			}
			return created, err
		}
		created += n
	}

	if len(examined) > 0 {
		if err := g.Rules.MarkRun(ctx, examined, now); err != nil {
			return created, err
		}
	}
	return created, nil
}

func (g *Generator) selectRules(ctx context.Context, opts expense.GenerateOptions) ([]expense.Rule, error) {
	if opts.RuleID != nil {
		rule, err := g.Rules.Rule(ctx, *opts.RuleID)
		if err != nil {
			return nil, err
		}
		kind, err := rule.Target()
		if err != nil {
			return nil, err
		}
		if kind != expense.TargetVenue {
			return nil, &expense.ConfigError{RuleID: rule.ID, Reason: "not a venue rule"}
		}
		if !rule.Chargeable() {
			return nil, nil
		}
		return []expense.Rule{rule}, nil
	}
	return g.Rules.VenueRules(ctx)
}

func (g *Generator) applyRule(ctx context.Context, rule expense.Rule, opts expense.GenerateOptions, now time.Time) (int, error) {
	if _, err := rule.Target(); err != nil {
		return 0, err
	}

	filter := rule.EligibilityFilter(now, opts.Window)
	events, err := g.Events.VenueEvents(ctx, rule.LocationID, rule.RoomID, filter, rule.ID)
	if err != nil {
		return 0, err
	}
	if opts.EventID != nil {
		events = filterEvent(events, *opts.EventID)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if rule.Cadence == expense.CadenceHourly {
		return g.chargeHourly(ctx, rule, events)
	}
	return g.chargePeriods(ctx, rule, events)
}

// chargeHourly creates one event-tied item per qualifying event.
func (g *Generator) chargeHourly(ctx context.Context, rule expense.Rule, events []expense.Event) (int, error) {
	created := 0
	for _, ev := range events {
		evID := ev.ID
		item := expense.Item{
			RuleID:      rule.ID,
			EventID:     &evID,
			Total:       ev.DurationHours().Mul(rule.Rate),
			Description: fmt.Sprintf("Venue rental of %s for: %s, %s", rule.TargetName, ev.Name, eventDates(ev)),
			Category:    category(rule),
			PayTo:       payTo(rule),
			AccrualDate: ev.Start,
		}
		if _, err := g.Items.CreateItem(ctx, item); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// chargePeriods reconciles the events' occurrence intervals against the
// periods already charged under the rule.
func (g *Generator) chargePeriods(ctx context.Context, rule expense.Rule, events []expense.Event) (int, error) {
	ids := make([]expense.EventID, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	occurrences, err := g.Events.Occurrences(ctx, ids)
	if err != nil {
		return 0, err
	}

	charges, err := expense.ReconcileWithStore(ctx, g.Items, rule, occurrences)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, c := range charges {
		start, end := c.Start, c.End
		item := expense.Item{
			RuleID:      rule.ID,
			PeriodStart: &start,
			PeriodEnd:   &end,
			Total:       c.Total,
			Description: fmt.Sprintf("Venue rental of %s for %s", rule.TargetName, c.Description),
			Category:    category(rule),
			PayTo:       payTo(rule),
			AccrualDate: start,
		}
		if _, err := g.Items.CreateItem(ctx, item); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (g *Generator) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

func (g *Generator) logf(format string, args ...any) {
	if g.Logger != nil {
		g.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func category(rule expense.Rule) string {
	if rule.ExpenseCategory != "" {
		return rule.ExpenseCategory
	}
	return DefaultCategory
}

func payTo(rule expense.Rule) string {
	if rule.PayTo != "" {
		return rule.PayTo
	}
	return rule.TargetName
}

func filterEvent(events []expense.Event, id expense.EventID) []expense.Event {
	var out []expense.Event
	for _, ev := range events {
		if ev.ID == id {
			out = append(out, ev)
		}
	}
	return out
}

// eventDates renders the event's date, or date range when it spans days.
func eventDates(ev expense.Event) string {
	start := ev.Start.Format("2006-01-02")
	end := ev.End.Format("2006-01-02")
	if start != end {
		return start + " to " + end
	}
	return start
}

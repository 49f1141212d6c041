/*
Package recurring generates overhead expenses that are not tied to any
event: insurance premiums, software subscriptions, cleaning contracts.

PURPOSE:
  For each untargeted rate rule, enumerate the cadence ticks inside the
  rule's generation window and get-or-create one item per tick, whether
  or not anything is scheduled then. Existence is checked by the exact
  (rule, periodStart, periodEnd) key rather than by interval
  subtraction, so this driver never routes through the reconciliation
  engine.

  Generic rules must carry a start date or a prior-days limit (the
  factory enforces this); without one the tick enumeration would have
  no lower bound.

SEE ALSO:
  - expense/window.go: Tick enumeration
  - venue/, staffing/: The event-driven drivers
*/
package recurring

import (
	"context"
	"log"
	"time"

	"github.com/studioledger/expense-engine/expense"
)

// DefaultCategory is the bookkeeping category stamped on overhead items
// when the rule does not name one.
const DefaultCategory = "Overhead"

// Generator runs generic recurring-expense generation passes.
type Generator struct {
	Rules expense.RuleStore
	Items expense.ItemStore

	// Clock supplies "now" for the rolling window and MarkRun.
	// Defaults to time.Now.
	Clock func() time.Time

	Logger *log.Logger
}

// Generate runs one pass and returns the number of items created.
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
				g.logf("recurring: skipping rule %s: %v", rule.ID, err)
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
		if kind != expense.TargetGeneric {
			return nil, &expense.ConfigError{RuleID: rule.ID, Reason: "not a generic recurring rule"}
		}
		if !rule.Chargeable() {
			return nil, nil
		}
		return []expense.Rule{rule}, nil
	}
	return g.Rules.RecurringRules(ctx)
}

func (g *Generator) applyRule(ctx context.Context, rule expense.Rule, opts expense.GenerateOptions, now time.Time) (int, error) {
	window := rule.TickWindow(now, opts.Window)
	if window.Start == nil {
		return 0, &expense.ConfigError{RuleID: rule.ID, Reason: expense.ErrUnboundedRule.Error()}
	}
	if window.End == nil {
		return 0, &expense.ConfigError{RuleID: rule.ID, Reason: "rule has no upper generation bound"}
	}
	if window.IsEmpty() {
		return 0, nil
	}

	created := 0
	for tick := rule.FirstTickAtOrAfter(*window.Start); !tick.After(*window.End); tick = rule.NextTick(tick) {
		at := tick
		item := expense.Item{
			RuleID:      rule.ID,
			PeriodStart: &at,
			PeriodEnd:   &at,
			Total:       rule.Rate,
			Description: rule.Name,
			Category:    category(rule),
			PayTo:       rule.PayTo,
			AccrualDate: at,

			Approved:      rule.MarkApproved,
			Paid:          rule.MarkPaid,
			PaymentMethod: rule.PaymentMethod,
		}
		madeNew, err := g.Items.GetOrCreatePeriodItem(ctx, item)
		if err != nil {
			return created, err
		}
		if madeNew {
			created++
		}
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

/*
Package staffing generates wage expenses for instructors, assistants,
door staff and other event workers.

PURPOSE:
  For each staff-wage rate rule, find staffing assignments inside the
  rule's eligibility window that are not already covered, then charge
  them. Hourly rules pay netHours x rate per assignment; period rules
  feed the assignments' occurrence intervals through the reconciliation
  engine, per member.

PRECEDENCE:
  A member can be covered by up to three kinds of rule, ranked by
  Specificity so the same assignment is never charged twice:

    member + category rule    their negotiated rate for that role
    member catch-all rule     their default rate, excluding categories
                              covered by their specific rules
    category default rule     the studio-wide rate for the role, applied
                              only to members with no rule of their own

  Rules are processed in descending specificity. Category defaults are
  opt-in via ApplyCategoryDefaults.

SEE ALSO:
  - expense/rule.go: Specificity
  - venue/, recurring/: The other two generation drivers
*/
package staffing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/studioledger/expense-engine/expense"
)

// DefaultCategory is the bookkeeping category stamped on wage items
// when the rule does not name one.
const DefaultCategory = "Event staff"

// Generator runs staff-wage expense generation passes.
type Generator struct {
	Rules  expense.RuleStore
	Events expense.EventSource
	Items  expense.ItemStore

	// ApplyCategoryDefaults enables studio-wide category default rules
	// for members who have no wage rule of their own.
	ApplyCategoryDefaults bool

	// Clock supplies "now" for eligibility windows and MarkRun.
	// Defaults to time.Now.
	Clock func() time.Time

	Logger *log.Logger
}

// Generate runs one pass and returns the number of items created.
func (g *Generator) Generate(ctx context.Context, opts expense.GenerateOptions) (int, error) {
	now := g.now()

	rules, allRules, err := g.selectRules(ctx, opts)
	if err != nil {
		return 0, err
	}

	created := 0
	examined := make([]expense.RuleID, 0, len(rules))
	for _, rule := range rules {
		examined = append(examined, rule.ID)

		filter, ok, err := g.assignmentFilter(rule, allRules, opts)
		if err != nil {
			if expense.IsConfig(err) {
				g.logf("staffing: skipping rule %s: %v", rule.ID, err)
				continue
			}
			return created, err
		}
		if !ok {
			continue
		}

		n, err := g.applyRule(ctx, rule, filter, opts, now)
		if err != nil {
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

// selectRules returns the rules to process this pass along with the
// full staff rule set, which the precedence exclusions are computed
// from even when only one rule is being run.
func (g *Generator) selectRules(ctx context.Context, opts expense.GenerateOptions) ([]expense.Rule, []expense.Rule, error) {
	all, err := g.Rules.StaffRules(ctx)
	if err != nil {
		return nil, nil, err
	}
	if opts.RuleID == nil {
		return all, all, nil
	}

	rule, err := g.Rules.Rule(ctx, *opts.RuleID)
	if err != nil {
		return nil, nil, err
	}
	kind, err := rule.Target()
	if err != nil {
		return nil, nil, err
	}
	if kind != expense.TargetStaff {
		return nil, nil, &expense.ConfigError{RuleID: rule.ID, Reason: "not a staff wage rule"}
	}
	if !rule.Chargeable() {
		return nil, all, nil
	}
	return []expense.Rule{rule}, all, nil
}

// assignmentFilter derives the candidate filter implementing the
// precedence ordering. The bool result is false when the rule simply
// does not apply this pass (e.g. defaults disabled).
func (g *Generator) assignmentFilter(rule expense.Rule, all []expense.Rule, opts expense.GenerateOptions) (expense.AssignmentFilter, bool, error) {
	f := expense.AssignmentFilter{EventID: opts.EventID}

	switch {
	case rule.StaffID != nil && rule.CategoryID != nil:
		f.StaffID = rule.StaffID
		f.CategoryID = rule.CategoryID

	case rule.StaffID != nil:
		// Catch-all: skip the categories this member has specific
		// rules for; those outrank this one.
		f.StaffID = rule.StaffID
		for _, other := range all {
			if other.ID == rule.ID || other.StaffID == nil || other.CategoryID == nil {
				continue
			}
			if *other.StaffID == *rule.StaffID {
				f.ExcludeCategories = append(f.ExcludeCategories, *other.CategoryID)
			}
		}

	case rule.CategoryID != nil:
		if !g.ApplyCategoryDefaults {
			return f, false, nil
		}
		// Studio-wide default: only for members with no rule of their
		// own. A member catch-all already covers this category, so any
		// member-targeted rule excludes its member here.
		f.CategoryID = rule.CategoryID
		for _, other := range all {
			if other.StaffID == nil {
				continue
			}
			if other.CategoryID == nil || *other.CategoryID == *rule.CategoryID {
				f.ExcludeStaff = append(f.ExcludeStaff, *other.StaffID)
			}
		}

	default:
		return f, false, &expense.ConfigError{RuleID: rule.ID, Reason: "staff rule has neither member nor category"}
	}

	return f, true, nil
}

func (g *Generator) applyRule(ctx context.Context, rule expense.Rule, filter expense.AssignmentFilter, opts expense.GenerateOptions, now time.Time) (int, error) {
	timeFilter := rule.EligibilityFilter(now, opts.Window)
	assignments, err := g.Events.Assignments(ctx, filter, timeFilter, rule.ID)
	if err != nil {
		return 0, err
	}
	if len(assignments) == 0 {
		return 0, nil
	}

	if rule.Cadence == expense.CadenceHourly {
		return g.chargeHourly(ctx, rule, assignments)
	}
	return g.chargePeriods(ctx, rule, assignments)
}

// chargeHourly creates one event-tied item per assignment, paying the
// member's net hours at the rule's rate.
func (g *Generator) chargeHourly(ctx context.Context, rule expense.Rule, assignments []expense.Assignment) (int, error) {
	created := 0
	for _, a := range assignments {
		evID := a.EventID
		hours := a.NetHours
		item := expense.Item{
			RuleID:      rule.ID,
			EventID:     &evID,
			Total:       hours.Mul(rule.Rate),
			Hours:       &hours,
			Description: fmt.Sprintf("%s payment to %s for: %s, %s", roleName(rule, a), a.StaffName, a.EventName, assignmentDates(a)),
			Category:    category(rule),
			PayTo:       a.StaffName,
			AccrualDate: a.Start,
		}
		if _, err := g.Items.CreateItem(ctx, item); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// chargePeriods reconciles per member: the rule may cover several
// members (category default), and each member's occurrence intervals
// are reconciled separately against the rule's existing periods.
func (g *Generator) chargePeriods(ctx context.Context, rule expense.Rule, assignments []expense.Assignment) (int, error) {
	byMember := make(map[expense.StaffID][]expense.Assignment)
	var order []expense.StaffID
	for _, a := range assignments {
		if _, seen := byMember[a.StaffID]; !seen {
			order = append(order, a.StaffID)
		}
		byMember[a.StaffID] = append(byMember[a.StaffID], a)
	}

	created := 0
	for _, staffID := range order {
		group := byMember[staffID]

		ids := make([]expense.EventID, len(group))
		for i, a := range group {
			ids[i] = a.EventID
		}
		occurrences, err := g.Events.Occurrences(ctx, ids)
		if err != nil {
			return created, err
		}

		charges, err := expense.ReconcileWithStore(ctx, g.Items, rule, occurrences)
		if err != nil {
			return created, err
		}

		for _, c := range charges {
			start, end := c.Start, c.End
			item := expense.Item{
				RuleID:      rule.ID,
				PeriodStart: &start,
				PeriodEnd:   &end,
				Total:       c.Total,
				Description: fmt.Sprintf("%s payment to %s for %s", roleName(rule, group[0]), group[0].StaffName, c.Description),
				Category:    category(rule),
				PayTo:       group[0].StaffName,
				AccrualDate: start,
			}
			if _, err := g.Items.CreateItem(ctx, item); err != nil {
				return created, err
			}
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

// roleName labels the charge with the staffing role when known.
func roleName(rule expense.Rule, a expense.Assignment) string {
	if a.CategoryName != "" {
		return a.CategoryName
	}
	if rule.CategoryID != nil && rule.TargetName != "" {
		return rule.TargetName
	}
	return "Staff"
}

func assignmentDates(a expense.Assignment) string {
	start := a.Start.Format("2006-01-02")
	end := a.End.Format("2006-01-02")
	if start != end {
		return start + " to " + end
	}
	return start
}

// Package store provides an in-memory implementation of the expense
// persistence interfaces, used by tests and local development.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/studioledger/expense-engine/expense"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements expense.RuleStore, expense.EventSource and
// expense.ItemStore with plain maps. Fixture helpers (AddRule,
// AddEvent, AddAssignment) make test setup terse.
type Memory struct {
	mu          sync.RWMutex
	rules       map[expense.RuleID]expense.Rule
	events      map[expense.EventID]expense.Event
	occurrences map[expense.EventID][]expense.Interval
	assignments []expense.Assignment
	items       []expense.Item
	nextID      int
}

func NewMemory() *Memory {
	return &Memory{
		rules:       make(map[expense.RuleID]expense.Rule),
		events:      make(map[expense.EventID]expense.Event),
		occurrences: make(map[expense.EventID][]expense.Interval),
	}
}

// =============================================================================
// FIXTURE HELPERS
// =============================================================================

// AddRule stores the rule, assigning an ID if it has none.
func (m *Memory) AddRule(rule expense.Rule) expense.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.ID == "" {
		m.nextID++
		rule.ID = expense.RuleID(fmt.Sprintf("rule-%d", m.nextID))
	}
	m.rules[rule.ID] = rule
	return rule
}

// AddEvent stores the event with its occurrence intervals. With no
// explicit occurrences, the event's own span is used.
func (m *Memory) AddEvent(ev expense.Event, occurrences ...expense.Interval) expense.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == "" {
		m.nextID++
		ev.ID = expense.EventID(fmt.Sprintf("event-%d", m.nextID))
	}
	if len(occurrences) == 0 {
		occurrences = []expense.Interval{{Start: ev.Start, End: ev.End}}
	}
	m.events[ev.ID] = ev
	m.occurrences[ev.ID] = occurrences
	return ev
}

// AddAssignment stores a staffing assignment.
func (m *Memory) AddAssignment(a expense.Assignment) expense.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		m.nextID++
		a.ID = fmt.Sprintf("assignment-%d", m.nextID)
	}
	m.assignments = append(m.assignments, a)
	return a
}

// Items returns a copy of every stored item, for assertions.
func (m *Memory) Items() []expense.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]expense.Item, len(m.items))
	copy(out, m.items)
	return out
}

// =============================================================================
// RULE STORE
// =============================================================================

func (m *Memory) VenueRules(context.Context) ([]expense.Rule, error) {
	return m.listRules(expense.TargetVenue), nil
}

func (m *Memory) StaffRules(context.Context) ([]expense.Rule, error) {
	rules := m.listRules(expense.TargetStaff)
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Specificity() != rules[j].Specificity() {
			return rules[i].Specificity() > rules[j].Specificity()
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (m *Memory) RecurringRules(context.Context) ([]expense.Rule, error) {
	return m.listRules(expense.TargetGeneric), nil
}

// listRules returns chargeable rules of the given kind. Rules with
// conflicting targets land in the venue listing so the driver can log
// and skip them.
func (m *Memory) listRules(kind expense.TargetKind) []expense.Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []expense.Rule
	for _, r := range m.rules {
		if !r.Chargeable() {
			continue
		}
		k, err := r.Target()
		if err != nil {
			k = expense.TargetVenue
		}
		if k == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Rule(_ context.Context, id expense.RuleID) (expense.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return expense.Rule{}, expense.ErrRuleNotFound
	}
	return r, nil
}

func (m *Memory) MarkRun(_ context.Context, ids []expense.RuleID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if r, ok := m.rules[id]; ok {
			t := at
			r.LastRun = &t
			m.rules[id] = r
		}
	}
	return nil
}

// =============================================================================
// EVENT SOURCE
// =============================================================================

func (m *Memory) VenueEvents(_ context.Context, locationID *expense.LocationID, roomID *expense.RoomID, f expense.TimeFilter, excludeRule expense.RuleID) ([]expense.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []expense.Event
	for _, ev := range m.events {
		if roomID != nil {
			if ev.RoomID == nil || *ev.RoomID != *roomID {
				continue
			}
		} else if locationID != nil && ev.LocationID != *locationID {
			continue
		}
		if !f.Matches(ev.Start, ev.End) {
			continue
		}
		if m.eventChargedLocked(excludeRule, ev.ID) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) Occurrences(_ context.Context, eventIDs []expense.EventID) ([]expense.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []expense.Interval
	for _, id := range eventIDs {
		out = append(out, m.occurrences[id]...)
	}
	return out, nil
}

func (m *Memory) Assignments(_ context.Context, af expense.AssignmentFilter, tf expense.TimeFilter, excludeRule expense.RuleID) ([]expense.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []expense.Assignment
	for _, a := range m.assignments {
		if af.StaffID != nil && a.StaffID != *af.StaffID {
			continue
		}
		if af.CategoryID != nil && a.CategoryID != *af.CategoryID {
			continue
		}
		if af.EventID != nil && a.EventID != *af.EventID {
			continue
		}
		if containsCategory(af.ExcludeCategories, a.CategoryID) {
			continue
		}
		if containsStaff(af.ExcludeStaff, a.StaffID) {
			continue
		}
		if !tf.Matches(a.Start, a.End) {
			continue
		}
		if m.eventChargedLocked(excludeRule, a.EventID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// eventChargedLocked reports whether the event already carries an item
// under the rule.
func (m *Memory) eventChargedLocked(ruleID expense.RuleID, eventID expense.EventID) bool {
	for _, it := range m.items {
		if it.RuleID == ruleID && it.EventID != nil && *it.EventID == eventID {
			return true
		}
	}
	return false
}

// =============================================================================
// ITEM STORE
// =============================================================================

func (m *Memory) CreateItem(_ context.Context, item expense.Item) (expense.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createItemLocked(item), nil
}

func (m *Memory) createItemLocked(item expense.Item) expense.Item {
	m.nextID++
	item.ID = expense.ItemID(fmt.Sprintf("item-%d", m.nextID))
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	m.items = append(m.items, item)
	return item
}

func (m *Memory) PeriodsOverlapping(_ context.Context, ruleID expense.RuleID, span expense.Interval) ([]expense.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []expense.Interval
	for _, it := range m.items {
		if it.RuleID != ruleID {
			continue
		}
		period, ok := it.Period()
		if !ok {
			continue
		}
		if period.Overlaps(span) {
			out = append(out, period)
		}
	}
	return out, nil
}

func (m *Memory) GetOrCreatePeriodItem(_ context.Context, item expense.Item) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.RuleID != item.RuleID || existing.PeriodStart == nil || existing.PeriodEnd == nil {
			continue
		}
		if existing.PeriodStart.Equal(*item.PeriodStart) && existing.PeriodEnd.Equal(*item.PeriodEnd) {
			return false, nil
		}
	}
	m.createItemLocked(item)
	return true, nil
}

func (m *Memory) ListItems(_ context.Context, q expense.ItemQuery) ([]expense.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []expense.Item
	for _, it := range m.items {
		if q.RuleID != nil && it.RuleID != *q.RuleID {
			continue
		}
		if q.From != nil && it.AccrualDate.Before(*q.From) {
			continue
		}
		if q.To != nil && it.AccrualDate.After(*q.To) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccrualDate.Before(out[j].AccrualDate) })
	return out, nil
}

func containsCategory(list []expense.CategoryID, c expense.CategoryID) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func containsStaff(list []expense.StaffID, s expense.StaffID) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

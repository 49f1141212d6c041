/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (expense.RuleStore,
  expense.EventSource, expense.ItemStore) using SQLite, plus the CRUD
  helpers the HTTP API needs for locations, staff, events and
  assignments. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  rules:              Rate rules (venue, staff, generic)
  locations/rooms:    Venue directory
  staff_members:      Staff directory
  staff_categories:   Staffing roles (instructor, assistant, door...)
  events:             Scheduled classes/workshops/parties
  event_occurrences:  The raw intervals an event actually occupies
  staff_assignments:  Member x event x role staffing records
  expense_items:      Generated (and manually entered) expenses

RACE PROTECTION:
  Generation is check-then-create, which two concurrent passes could
  race. The unique index on (rule_id, period_start, period_end) makes
  the second writer fail instead of double-charging; callers treat that
  failure as "period already covered".

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/studio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - expense/store.go: Interface definitions
  - expense/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/studioledger/expense-engine/expense"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rate TEXT NOT NULL,
		cadence TEXT NOT NULL,
		day_start_hour INTEGER NOT NULL DEFAULT 0,
		week_start_day INTEGER NOT NULL DEFAULT 0,
		month_start_day INTEGER NOT NULL DEFAULT 1,
		start_date TEXT,
		end_date TEXT,
		advance_days INTEGER NOT NULL DEFAULT 30,
		advance_ref TEXT NOT NULL DEFAULT 'start',
		prior_days INTEGER,
		prior_ref TEXT NOT NULL DEFAULT 'end',
		last_run TEXT,
		location_id TEXT,
		room_id TEXT,
		staff_id TEXT,
		category_id TEXT,
		expense_category TEXT NOT NULL DEFAULT '',
		pay_to TEXT NOT NULL DEFAULT '',
		mark_approved INTEGER NOT NULL DEFAULT 0,
		mark_paid INTEGER NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_rules_location ON rules(location_id) WHERE location_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_rules_staff ON rules(staff_id) WHERE staff_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS staff_members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS staff_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location_id TEXT NOT NULL,
		room_id TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_location ON events(location_id, start_time);

	CREATE TABLE IF NOT EXISTS event_occurrences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_occurrences_event ON event_occurrences(event_id);

	CREATE TABLE IF NOT EXISTS staff_assignments (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		category_id TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		net_hours TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_staff ON staff_assignments(staff_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_assignments_event ON staff_assignments(event_id);

	CREATE TABLE IF NOT EXISTS expense_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id TEXT NOT NULL,
		event_id TEXT,
		period_start TEXT,
		period_end TEXT,
		total TEXT NOT NULL,
		hours TEXT,
		description TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		pay_to TEXT NOT NULL DEFAULT '',
		accrual_date TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0,
		paid INTEGER NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- CRITICAL: two concurrent generation passes must not both insert an
	-- item for the same rule and period. The second insert fails here
	-- instead of double-charging.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_rule_period
		ON expense_items(rule_id, period_start, period_end)
		WHERE period_start IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_items_rule_period
		ON expense_items(rule_id, period_start, period_end);
	CREATE INDEX IF NOT EXISTS idx_items_rule_event
		ON expense_items(rule_id, event_id) WHERE event_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_items_accrual
		ON expense_items(accrual_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all data. Used by demo scenario loading.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, table := range []string{
		"expense_items", "staff_assignments", "event_occurrences",
		"events", "rules", "rooms", "locations", "staff_members", "staff_categories",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// RULE STORE
// =============================================================================

// ruleColumns is shared by every rule query; target_name resolves the
// display name from whichever directory table the rule points at.
const ruleColumns = `
	r.id, r.name, r.rate, r.cadence,
	r.day_start_hour, r.week_start_day, r.month_start_day,
	r.start_date, r.end_date,
	r.advance_days, r.advance_ref, r.prior_days, r.prior_ref, r.last_run,
	r.location_id, r.room_id, r.staff_id, r.category_id,
	r.expense_category, r.pay_to, r.mark_approved, r.mark_paid, r.payment_method,
	COALESCE(rm.name, l.name, sm.name, sc.name, '') AS target_name`

const ruleJoins = `
	FROM rules r
	LEFT JOIN locations l ON l.id = r.location_id
	LEFT JOIN rooms rm ON rm.id = r.room_id
	LEFT JOIN staff_members sm ON sm.id = r.staff_id
	LEFT JOIN staff_categories sc ON sc.id = r.category_id`

const chargeableFilter = `r.cadence != 'disabled' AND CAST(r.rate AS REAL) > 0`

func (s *Store) VenueRules(ctx context.Context) ([]expense.Rule, error) {
	query := `SELECT ` + ruleColumns + ruleJoins + `
		WHERE ` + chargeableFilter + `
		AND (r.location_id IS NOT NULL OR r.room_id IS NOT NULL)
		ORDER BY r.id`
	return s.queryRules(ctx, query)
}

func (s *Store) StaffRules(ctx context.Context) ([]expense.Rule, error) {
	// Member+category rules first, then member catch-alls, then
	// studio-wide category defaults. This ordering is what keeps one
	// assignment from being charged under two rules.
	query := `SELECT ` + ruleColumns + ruleJoins + `
		WHERE ` + chargeableFilter + `
		AND r.location_id IS NULL AND r.room_id IS NULL
		AND (r.staff_id IS NOT NULL OR r.category_id IS NOT NULL)
		ORDER BY (CASE
			WHEN r.staff_id IS NOT NULL AND r.category_id IS NOT NULL THEN 2
			WHEN r.staff_id IS NOT NULL THEN 1
			ELSE 0
		END) DESC, r.id`
	return s.queryRules(ctx, query)
}

func (s *Store) RecurringRules(ctx context.Context) ([]expense.Rule, error) {
	query := `SELECT ` + ruleColumns + ruleJoins + `
		WHERE ` + chargeableFilter + `
		AND r.location_id IS NULL AND r.room_id IS NULL
		AND r.staff_id IS NULL AND r.category_id IS NULL
		ORDER BY r.name`
	return s.queryRules(ctx, query)
}

// ListRules returns every rule regardless of state, for the admin API.
func (s *Store) ListRules(ctx context.Context) ([]expense.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+ruleJoins+` ORDER BY r.name`)
}

func (s *Store) Rule(ctx context.Context, id expense.RuleID) (expense.Rule, error) {
	rules, err := s.queryRules(ctx, `SELECT `+ruleColumns+ruleJoins+` WHERE r.id = ?`, string(id))
	if err != nil {
		return expense.Rule{}, err
	}
	if len(rules) == 0 {
		return expense.Rule{}, expense.ErrRuleNotFound
	}
	return rules[0], nil
}

// SaveRule inserts or replaces a rule.
func (s *Store) SaveRule(ctx context.Context, rule expense.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO rules (
			id, name, rate, cadence,
			day_start_hour, week_start_day, month_start_day,
			start_date, end_date,
			advance_days, advance_ref, prior_days, prior_ref, last_run,
			location_id, room_id, staff_id, category_id,
			expense_category, pay_to, mark_approved, mark_paid, payment_method
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rule.ID), rule.Name, rule.Rate.String(), string(rule.Cadence),
		rule.DayStartHour, int(rule.WeekStartDay), rule.MonthStartDay,
		nullTime(rule.StartDate), nullTime(rule.EndDate),
		rule.AdvanceDays, string(rule.AdvanceRef), nullInt(rule.PriorDays), string(rule.PriorRef), nullTime(rule.LastRun),
		nullStr((*string)(rule.LocationID)), nullStr((*string)(rule.RoomID)),
		nullStr((*string)(rule.StaffID)), nullStr((*string)(rule.CategoryID)),
		rule.ExpenseCategory, rule.PayTo, boolInt(rule.MarkApproved), boolInt(rule.MarkPaid), rule.PaymentMethod,
	)
	return err
}

// DeleteRule removes a rule. Items generated under it are kept.
func (s *Store) DeleteRule(ctx context.Context, id expense.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return expense.ErrRuleNotFound
	}
	return nil
}

func (s *Store) MarkRun(ctx context.Context, ids []expense.RuleID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	args := make([]any, 0, len(ids)+1)
	args = append(args, formatTime(at))
	for _, id := range ids {
		args = append(args, string(id))
	}
	query := `UPDATE rules SET last_run = ? WHERE id IN (` + placeholders(len(ids)) + `)`
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]expense.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []expense.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(rows *sql.Rows) (expense.Rule, error) {
	var (
		r                             expense.Rule
		id, name, rate, cadence       string
		weekStartDay                  int
		startDate, endDate, lastRun   sql.NullString
		priorDays                     sql.NullInt64
		advanceRef, priorRef          string
		locID, roomID, staffID, catID sql.NullString
		markApproved, markPaid        int
	)
	err := rows.Scan(
		&id, &name, &rate, &cadence,
		&r.DayStartHour, &weekStartDay, &r.MonthStartDay,
		&startDate, &endDate,
		&r.AdvanceDays, &advanceRef, &priorDays, &priorRef, &lastRun,
		&locID, &roomID, &staffID, &catID,
		&r.ExpenseCategory, &r.PayTo, &markApproved, &markPaid, &r.PaymentMethod,
		&r.TargetName,
	)
	if err != nil {
		return expense.Rule{}, err
	}

	r.ID = expense.RuleID(id)
	r.Name = name
	if r.Rate, err = decimal.NewFromString(rate); err != nil {
		return expense.Rule{}, fmt.Errorf("rule %s: bad rate: %w", id, err)
	}
	r.Cadence = expense.Cadence(cadence)
	r.WeekStartDay = time.Weekday(weekStartDay)
	r.AdvanceRef = expense.Milestone(advanceRef)
	r.PriorRef = expense.Milestone(priorRef)
	r.MarkApproved = markApproved != 0
	r.MarkPaid = markPaid != 0

	if r.StartDate, err = parseNullTime(startDate); err != nil {
		return expense.Rule{}, err
	}
	if r.EndDate, err = parseNullTime(endDate); err != nil {
		return expense.Rule{}, err
	}
	if r.LastRun, err = parseNullTime(lastRun); err != nil {
		return expense.Rule{}, err
	}
	if priorDays.Valid {
		d := int(priorDays.Int64)
		r.PriorDays = &d
	}
	if locID.Valid {
		v := expense.LocationID(locID.String)
		r.LocationID = &v
	}
	if roomID.Valid {
		v := expense.RoomID(roomID.String)
		r.RoomID = &v
	}
	if staffID.Valid {
		v := expense.StaffID(staffID.String)
		r.StaffID = &v
	}
	if catID.Valid {
		v := expense.CategoryID(catID.String)
		r.CategoryID = &v
	}
	return r, nil
}

// =============================================================================
// EVENT SOURCE
// =============================================================================

func (s *Store) VenueEvents(ctx context.Context, locationID *expense.LocationID, roomID *expense.RoomID, f expense.TimeFilter, excludeRule expense.RuleID) ([]expense.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT e.id, e.name, e.location_id, e.room_id, e.start_time, e.end_time
		FROM events e
		WHERE NOT EXISTS (
			SELECT 1 FROM expense_items i
			WHERE i.rule_id = ? AND i.event_id = e.id
		)`
	args := []any{string(excludeRule)}

	switch {
	case roomID != nil:
		query += ` AND e.room_id = ?`
		args = append(args, string(*roomID))
	case locationID != nil:
		query += ` AND e.location_id = ?`
		args = append(args, string(*locationID))
	}
	query, args = appendTimeFilter(query, args, f, "e.start_time", "e.end_time")
	query += ` ORDER BY e.start_time`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []expense.Event
	for rows.Next() {
		var (
			ev                    expense.Event
			id, locID, start, end string
			room                  sql.NullString
		)
		if err := rows.Scan(&id, &ev.Name, &locID, &room, &start, &end); err != nil {
			return nil, err
		}
		ev.ID = expense.EventID(id)
		ev.LocationID = expense.LocationID(locID)
		if room.Valid {
			v := expense.RoomID(room.String)
			ev.RoomID = &v
		}
		if ev.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if ev.End, err = parseTime(end); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) Occurrences(ctx context.Context, eventIDs []expense.EventID) ([]expense.Interval, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = string(id)
	}
	query := `SELECT start_time, end_time FROM event_occurrences
		WHERE event_id IN (` + placeholders(len(eventIDs)) + `) ORDER BY start_time`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expense.Interval
	for rows.Next() {
		var start, end string
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		iv := expense.Interval{}
		if iv.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if iv.End, err = parseTime(end); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *Store) Assignments(ctx context.Context, af expense.AssignmentFilter, tf expense.TimeFilter, excludeRule expense.RuleID) ([]expense.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT a.id, a.event_id, e.name, a.staff_id, sm.name,
			COALESCE(a.category_id, ''), COALESCE(sc.name, ''),
			a.start_time, a.end_time, a.net_hours
		FROM staff_assignments a
		JOIN events e ON e.id = a.event_id
		JOIN staff_members sm ON sm.id = a.staff_id
		LEFT JOIN staff_categories sc ON sc.id = a.category_id
		WHERE NOT EXISTS (
			SELECT 1 FROM expense_items i
			WHERE i.rule_id = ? AND i.event_id = a.event_id
		)`
	args := []any{string(excludeRule)}

	if af.StaffID != nil {
		query += ` AND a.staff_id = ?`
		args = append(args, string(*af.StaffID))
	}
	if af.CategoryID != nil {
		query += ` AND a.category_id = ?`
		args = append(args, string(*af.CategoryID))
	}
	if af.EventID != nil {
		query += ` AND a.event_id = ?`
		args = append(args, string(*af.EventID))
	}
	if len(af.ExcludeCategories) > 0 {
		query += ` AND (a.category_id IS NULL OR a.category_id NOT IN (` + placeholders(len(af.ExcludeCategories)) + `))`
		for _, c := range af.ExcludeCategories {
			args = append(args, string(c))
		}
	}
	if len(af.ExcludeStaff) > 0 {
		query += ` AND a.staff_id NOT IN (` + placeholders(len(af.ExcludeStaff)) + `)`
		for _, st := range af.ExcludeStaff {
			args = append(args, string(st))
		}
	}
	query, args = appendTimeFilter(query, args, tf, "a.start_time", "a.end_time")
	query += ` ORDER BY a.start_time`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expense.Assignment
	for rows.Next() {
		var (
			a                       expense.Assignment
			eventID, staffID, catID string
			start, end, netHours    string
		)
		if err := rows.Scan(&a.ID, &eventID, &a.EventName, &staffID, &a.StaffName,
			&catID, &a.CategoryName, &start, &end, &netHours); err != nil {
			return nil, err
		}
		a.EventID = expense.EventID(eventID)
		a.StaffID = expense.StaffID(staffID)
		a.CategoryID = expense.CategoryID(catID)
		if a.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if a.End, err = parseTime(end); err != nil {
			return nil, err
		}
		if a.NetHours, err = decimal.NewFromString(netHours); err != nil {
			return nil, fmt.Errorf("assignment %s: bad net_hours: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// ITEM STORE
// =============================================================================

func (s *Store) CreateItem(ctx context.Context, item expense.Item) (expense.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_items (
			rule_id, event_id, period_start, period_end,
			total, hours, description, category, pay_to, accrual_date,
			approved, paid, payment_method, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(item.RuleID), nullStr((*string)(item.EventID)),
		nullTime(item.PeriodStart), nullTime(item.PeriodEnd),
		item.Total.String(), nullDecimal(item.Hours), item.Description,
		item.Category, item.PayTo, formatTime(item.AccrualDate),
		boolInt(item.Approved), boolInt(item.Paid), item.PaymentMethod,
		formatTime(item.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return expense.Item{}, expense.ErrDuplicatePeriod
		}
		return expense.Item{}, err
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return expense.Item{}, err
	}
	item.ID = expense.ItemID(fmt.Sprintf("%d", rowID))
	return item, nil
}

func (s *Store) PeriodsOverlapping(ctx context.Context, ruleID expense.RuleID, span expense.Interval) ([]expense.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Half-open overlap: period_start < span.End AND period_end > span.Start.
	// Fixed-width UTC timestamps compare lexicographically.
	rows, err := s.db.QueryContext(ctx, `
		SELECT period_start, period_end FROM expense_items
		WHERE rule_id = ? AND period_start IS NOT NULL
		AND period_start < ? AND period_end > ?
		ORDER BY period_start`,
		string(ruleID), formatTime(span.End), formatTime(span.Start))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expense.Interval
	for rows.Next() {
		var start, end string
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		iv := expense.Interval{}
		if iv.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if iv.End, err = parseTime(end); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *Store) GetOrCreatePeriodItem(ctx context.Context, item expense.Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM expense_items
		WHERE rule_id = ? AND period_start = ? AND period_end = ?`,
		string(item.RuleID), formatTime(*item.PeriodStart), formatTime(*item.PeriodEnd),
	).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO expense_items (
			rule_id, event_id, period_start, period_end,
			total, hours, description, category, pay_to, accrual_date,
			approved, paid, payment_method, created_at
		) VALUES (?, NULL, ?, ?, ?, NULL, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(item.RuleID), formatTime(*item.PeriodStart), formatTime(*item.PeriodEnd),
		item.Total.String(), item.Description, item.Category, item.PayTo,
		formatTime(item.AccrualDate), boolInt(item.Approved), boolInt(item.Paid),
		item.PaymentMethod, formatTime(item.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race to another pass; the period is covered.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListItems(ctx context.Context, q expense.ItemQuery) ([]expense.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, rule_id, event_id, period_start, period_end,
			total, hours, description, category, pay_to, accrual_date,
			approved, paid, payment_method, created_at
		FROM expense_items WHERE 1=1`
	var args []any
	if q.RuleID != nil {
		query += ` AND rule_id = ?`
		args = append(args, string(*q.RuleID))
	}
	if q.From != nil {
		query += ` AND accrual_date >= ?`
		args = append(args, formatTime(*q.From))
	}
	if q.To != nil {
		query += ` AND accrual_date <= ?`
		args = append(args, formatTime(*q.To))
	}
	query += ` ORDER BY accrual_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expense.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanItem(rows *sql.Rows) (expense.Item, error) {
	var (
		item                         expense.Item
		rowID                        int64
		ruleID, accrual, createdAt   string
		eventID, pStart, pEnd, hours sql.NullString
		total                        string
		approved, paid               int
	)
	err := rows.Scan(&rowID, &ruleID, &eventID, &pStart, &pEnd,
		&total, &hours, &item.Description, &item.Category, &item.PayTo, &accrual,
		&approved, &paid, &item.PaymentMethod, &createdAt)
	if err != nil {
		return expense.Item{}, err
	}

	item.ID = expense.ItemID(fmt.Sprintf("%d", rowID))
	item.RuleID = expense.RuleID(ruleID)
	item.Approved = approved != 0
	item.Paid = paid != 0
	if eventID.Valid {
		v := expense.EventID(eventID.String)
		item.EventID = &v
	}
	if item.PeriodStart, err = parseNullTime(pStart); err != nil {
		return expense.Item{}, err
	}
	if item.PeriodEnd, err = parseNullTime(pEnd); err != nil {
		return expense.Item{}, err
	}
	if item.Total, err = decimal.NewFromString(total); err != nil {
		return expense.Item{}, fmt.Errorf("item %d: bad total: %w", rowID, err)
	}
	if hours.Valid {
		h, err := decimal.NewFromString(hours.String)
		if err != nil {
			return expense.Item{}, fmt.Errorf("item %d: bad hours: %w", rowID, err)
		}
		item.Hours = &h
	}
	if item.AccrualDate, err = parseTime(accrual); err != nil {
		return expense.Item{}, err
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return expense.Item{}, err
	}
	return item, nil
}

// =============================================================================
// DIRECTORY CRUD - locations, staff, events (for the API and scenarios)
// =============================================================================

// Location is a directory record for a rentable venue.
type Location struct {
	ID   expense.LocationID
	Name string
}

// Room is a directory record for a room inside a location.
type Room struct {
	ID         expense.RoomID
	LocationID expense.LocationID
	Name       string
}

// StaffMember is a directory record for an instructor or other worker.
type StaffMember struct {
	ID   expense.StaffID
	Name string
}

// StaffCategory is a staffing role (instructor, assistant, door...).
type StaffCategory struct {
	ID   expense.CategoryID
	Name string
}

func (s *Store) SaveLocation(ctx context.Context, loc Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO locations (id, name) VALUES (?, ?)`,
		string(loc.ID), loc.Name)
	return err
}

func (s *Store) ListLocations(ctx context.Context) ([]Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM locations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var id string
		var loc Location
		if err := rows.Scan(&id, &loc.Name); err != nil {
			return nil, err
		}
		loc.ID = expense.LocationID(id)
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (s *Store) SaveRoom(ctx context.Context, room Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rooms (id, location_id, name) VALUES (?, ?, ?)`,
		string(room.ID), string(room.LocationID), room.Name)
	return err
}

func (s *Store) SaveStaffMember(ctx context.Context, m StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO staff_members (id, name) VALUES (?, ?)`,
		string(m.ID), m.Name)
	return err
}

func (s *Store) ListStaffMembers(ctx context.Context) ([]StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM staff_members ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StaffMember
	for rows.Next() {
		var id string
		var m StaffMember
		if err := rows.Scan(&id, &m.Name); err != nil {
			return nil, err
		}
		m.ID = expense.StaffID(id)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SaveStaffCategory(ctx context.Context, c StaffCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO staff_categories (id, name) VALUES (?, ?)`,
		string(c.ID), c.Name)
	return err
}

// SaveEvent stores an event and its occurrence intervals. With no
// explicit occurrences, the event's own span is stored.
func (s *Store) SaveEvent(ctx context.Context, ev expense.Event, occurrences ...expense.Interval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO events (id, name, location_id, room_id, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.ID), ev.Name, string(ev.LocationID), nullStr((*string)(ev.RoomID)),
		formatTime(ev.Start), formatTime(ev.End))
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM event_occurrences WHERE event_id = ?`, string(ev.ID)); err != nil {
		return err
	}
	if len(occurrences) == 0 {
		occurrences = []expense.Interval{{Start: ev.Start, End: ev.End}}
	}
	for _, occ := range occurrences {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO event_occurrences (event_id, start_time, end_time)
			VALUES (?, ?, ?)`,
			string(ev.ID), formatTime(occ.Start), formatTime(occ.End)); err != nil {
			return err
		}
	}
	return nil
}

// ListEvents returns every event ordered by start time.
func (s *Store) ListEvents(ctx context.Context) ([]expense.Event, error) {
	return s.VenueEvents(ctx, nil, nil, expense.TimeFilter{}, expense.RuleID(""))
}

// SaveAssignment stores a staffing assignment.
func (s *Store) SaveAssignment(ctx context.Context, a expense.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO staff_assignments (
			id, event_id, staff_id, category_id, start_time, end_time, net_hours
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.EventID), string(a.StaffID), nullIfEmpty(string(a.CategoryID)),
		formatTime(a.Start), formatTime(a.End), a.NetHours.String())
	return err
}

// =============================================================================
// SQL HELPERS
// =============================================================================

// timeLayout pads fractional seconds to a fixed width. RFC3339Nano
// trims trailing zeros, which breaks lexicographic comparison between
// timestamps of different precision ("...05.5Z" sorts before "...05Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func appendTimeFilter(query string, args []any, f expense.TimeFilter, startCol, endCol string) (string, []any) {
	if f.StartAfter != nil {
		query += ` AND ` + startCol + ` >= ?`
		args = append(args, formatTime(*f.StartAfter))
	}
	if f.StartBefore != nil {
		query += ` AND ` + startCol + ` <= ?`
		args = append(args, formatTime(*f.StartBefore))
	}
	if f.EndAfter != nil {
		query += ` AND ` + endCol + ` >= ?`
		args = append(args, formatTime(*f.EndAfter))
	}
	if f.EndBefore != nil {
		query += ` AND ` + endCol + ` <= ?`
		args = append(args, formatTime(*f.EndBefore))
	}
	return query, args
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

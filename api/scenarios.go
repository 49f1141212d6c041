/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates locations, staff,
	rate rules, events and assignments that demonstrate specific features.

AVAILABLE SCENARIOS:

	weekly-rental:  One studio, weekly rental rule, classes across two weeks
	staff-payroll:  Instructors with member and category wage rules
	full-studio:    Monthly rent, hourly party space, wages and insurance

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create directory records (locations, staff, categories)
 3. Create rate rules via the factory
 4. Create events with occurrences and staffing assignments

 Generation is left to the caller: hit POST /api/generate (or wait for
 the scheduler) to see the items each scenario produces.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "weekly-rental"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/rule.go: Rule JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/studioledger/expense-engine/expense"
	"github.com/studioledger/expense-engine/factory"
	"github.com/studioledger/expense-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "weekly-rental",
		Name:        "Weekly Rental",
		Description: "One studio with a weekly rental rule and classes across two weeks",
	},
	{
		ID:          "staff-payroll",
		Name:        "Staff Payroll",
		Description: "Instructor wages with member rates and a studio-wide assistant default",
	},
	{
		ID:          "full-studio",
		Name:        "Full Studio",
		Description: "Monthly rent, hourly party space rental, wages and monthly insurance",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "weekly-rental":
		err = h.loadWeeklyRentalScenario(ctx)
	case "staff-payroll":
		err = h.loadStaffPayrollScenario(ctx)
	case "full-studio":
		err = h.loadFullStudioScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadWeeklyRentalScenario: one studio rented weekly, with evening
// classes scattered across two weeks. Generating shows full-week and
// pro-rated charges plus the non-overlap guarantee on a second run.
func (h *Handler) loadWeeklyRentalScenario(ctx context.Context) error {
	if err := h.Store.SaveLocation(ctx, sqlite.Location{ID: "loc-main", Name: "Main Street Studio"}); err != nil {
		return err
	}

	rule, err := factory.FromJSON(factory.RuleJSON{
		ID:           "rent-main-weekly",
		Name:         "Main Street weekly rent",
		Rate:         400,
		Cadence:      "weekly",
		WeekStartDay: 1, // Monday
		DayStartHour: 4,
		LocationID:   strPtr("loc-main"),
	})
	if err != nil {
		return err
	}
	if err := h.Store.SaveRule(ctx, rule); err != nil {
		return err
	}

	// Classes on Tuesday and Thursday evenings for two weeks.
	base := mondayOfCurrentWeek().AddDate(0, 0, -7)
	for week := 0; week < 2; week++ {
		for i, day := range []int{1, 3} {
			start := base.AddDate(0, 0, week*7+day).Add(19 * time.Hour)
			ev := expense.Event{
				ID:         expense.EventID(fmt.Sprintf("class-w%d-%d", week, i)),
				Name:       "Lindy Hop Level 1",
				LocationID: "loc-main",
				Start:      start,
				End:        start.Add(2 * time.Hour),
			}
			if err := h.Store.SaveEvent(ctx, ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadStaffPayrollScenario: two instructors and an assistant role.
// One instructor has a negotiated rate, the other falls under the
// studio-wide category default.
func (h *Handler) loadStaffPayrollScenario(ctx context.Context) error {
	if err := h.Store.SaveLocation(ctx, sqlite.Location{ID: "loc-main", Name: "Main Street Studio"}); err != nil {
		return err
	}
	for _, m := range []sqlite.StaffMember{
		{ID: "staff-ana", Name: "Ana Reyes"},
		{ID: "staff-ben", Name: "Ben Okafor"},
	} {
		if err := h.Store.SaveStaffMember(ctx, m); err != nil {
			return err
		}
	}
	for _, c := range []sqlite.StaffCategory{
		{ID: "cat-instructor", Name: "Instructor"},
		{ID: "cat-assistant", Name: "Assistant"},
	} {
		if err := h.Store.SaveStaffCategory(ctx, c); err != nil {
			return err
		}
	}

	ruleDefs := []factory.RuleJSON{
		{
			ID:         "wage-ana-instructor",
			Name:       "Ana instructor rate",
			Rate:       45,
			Cadence:    "hourly",
			StaffID:    strPtr("staff-ana"),
			CategoryID: strPtr("cat-instructor"),
		},
		{
			ID:         "wage-instructor-default",
			Name:       "Instructor default rate",
			Rate:       30,
			Cadence:    "hourly",
			CategoryID: strPtr("cat-instructor"),
		},
		{
			ID:         "wage-assistant-default",
			Name:       "Assistant default rate",
			Rate:       18,
			Cadence:    "hourly",
			CategoryID: strPtr("cat-assistant"),
		},
	}
	for _, rd := range ruleDefs {
		rule, err := factory.FromJSON(rd)
		if err != nil {
			return err
		}
		if err := h.Store.SaveRule(ctx, rule); err != nil {
			return err
		}
	}

	start := mondayOfCurrentWeek().Add(-7 * 24 * time.Hour).Add(19 * time.Hour)
	ev := expense.Event{
		ID:         "class-balboa",
		Name:       "Balboa Intensive",
		LocationID: "loc-main",
		Start:      start,
		End:        start.Add(3 * time.Hour),
	}
	if err := h.Store.SaveEvent(ctx, ev); err != nil {
		return err
	}

	assignments := []expense.Assignment{
		{
			ID: "assign-ana", EventID: "class-balboa", StaffID: "staff-ana",
			CategoryID: "cat-instructor",
			Start:      start, End: start.Add(3 * time.Hour),
			NetHours: decimal.NewFromInt(3),
		},
		{
			ID: "assign-ben", EventID: "class-balboa", StaffID: "staff-ben",
			CategoryID: "cat-instructor",
			Start:      start, End: start.Add(3 * time.Hour),
			NetHours: decimal.NewFromInt(3),
		},
	}
	for _, a := range assignments {
		if err := h.Store.SaveAssignment(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// loadFullStudioScenario: the whole engine at once. Monthly rent on the
// main studio, hourly rental of a party hall, instructor wages, and a
// monthly insurance premium with no activity behind it.
func (h *Handler) loadFullStudioScenario(ctx context.Context) error {
	if err := h.loadStaffPayrollScenario(ctx); err != nil {
		return err
	}
	if err := h.Store.SaveLocation(ctx, sqlite.Location{ID: "loc-hall", Name: "Grand Ballroom"}); err != nil {
		return err
	}

	firstOfMonth := time.Now().UTC().AddDate(0, -2, 0).Format("2006-01-02")
	ruleDefs := []factory.RuleJSON{
		{
			ID:            "rent-main-monthly",
			Name:          "Main Street monthly rent",
			Rate:          1200,
			Cadence:       "monthly",
			MonthStartDay: 1,
			DayStartHour:  4,
			LocationID:    strPtr("loc-main"),
		},
		{
			ID:         "rent-hall-hourly",
			Name:       "Grand Ballroom hourly rental",
			Rate:       75,
			Cadence:    "hourly",
			LocationID: strPtr("loc-hall"),
		},
		{
			ID:            "insurance-monthly",
			Name:          "Liability insurance",
			Rate:          180,
			Cadence:       "monthly",
			MonthStartDay: 1,
			StartDate:     firstOfMonth,
			PayTo:         "Hartfield Insurance",
		},
	}
	for _, rd := range ruleDefs {
		rule, err := factory.FromJSON(rd)
		if err != nil {
			return err
		}
		if err := h.Store.SaveRule(ctx, rule); err != nil {
			return err
		}
	}

	// A Saturday night social at the ballroom.
	saturday := mondayOfCurrentWeek().AddDate(0, 0, -2).Add(20 * time.Hour)
	ev := expense.Event{
		ID:         "social-saturday",
		Name:       "Saturday Swing Social",
		LocationID: "loc-hall",
		Start:      saturday,
		End:        saturday.Add(4 * time.Hour),
	}
	return h.Store.SaveEvent(ctx, ev)
}

// =============================================================================
// HELPERS
// =============================================================================

// mondayOfCurrentWeek returns midnight UTC of this week's Monday.
func mondayOfCurrentWeek() time.Time {
	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) - int(time.Monday) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

func strPtr(s string) *string {
	return &s
}

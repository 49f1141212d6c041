/*
handlers.go - HTTP API handlers for the expense engine

PURPOSE:
  Exposes the expense generation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Rules:
    GET    /api/rules                  List all rate rules
    POST   /api/rules                  Create a rule from JSON
    GET    /api/rules/{id}             Get rule details
    DELETE /api/rules/{id}             Delete a rule
    POST   /api/rules/{id}/generate    Generate expenses for one rule

  Generation:
    POST   /api/generate               Run all three drivers

  Items:
    GET    /api/items                  List expense items (filterable)

  Reports:
    GET    /api/reports/monthly        Expense totals by month

  Directory:
    GET/POST /api/locations            Venue directory
    POST     /api/rooms                Rooms inside locations
    GET/POST /api/staff                Staff directory
    POST     /api/staff/categories     Staffing roles

  Schedule:
    GET/POST /api/events               Events with occurrence intervals
    POST     /api/assignments          Staffing assignments

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    POST   /api/scenarios/reset        Wipe the database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, rule misconfiguration
  - 404: Resource not found
  - 409: Duplicate period conflict
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/studioledger/expense-engine/expense"
	"github.com/studioledger/expense-engine/factory"
	"github.com/studioledger/expense-engine/recurring"
	"github.com/studioledger/expense-engine/staffing"
	"github.com/studioledger/expense-engine/store/sqlite"
	"github.com/studioledger/expense-engine/venue"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store

	Venue     *venue.Generator
	Staffing  *staffing.Generator
	Recurring *recurring.Generator

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store: store,
		Venue: &venue.Generator{
			Rules:  store,
			Events: store,
			Items:  store,
		},
		Staffing: &staffing.Generator{
			Rules:                 store,
			Events:                store,
			Items:                 store,
			ApplyCategoryDefaults: true,
		},
		Recurring: &recurring.Generator{
			Rules: store,
			Items: store,
		},
	}
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns all rate rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTOs(rules))
}

// GetRule returns a single rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := expense.RuleID(chi.URLParam(r, "id"))

	rule, err := h.Store.Rule(r.Context(), id)
	if err != nil {
		if errors.Is(err, expense.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "Rule not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

// CreateRule creates a rule from its JSON definition.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req factory.RuleJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := factory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule configuration", err)
		return
	}
	if rule.ID == "" {
		writeError(w, http.StatusBadRequest, "Rule id is required", nil)
		return
	}

	if err := h.Store.SaveRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}

	// Re-read so the response carries the resolved target name.
	saved, err := h.Store.Rule(r.Context(), rule.ID)
	if err != nil {
		saved = rule
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(saved))
}

// DeleteRule removes a rule. Items already generated under it remain.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := expense.RuleID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteRule(r.Context(), id); err != nil {
		if errors.Is(err, expense.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "Rule not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// GENERATION HANDLERS
// =============================================================================

// GenerateForRule runs the matching driver for a single rule.
// POST /api/rules/{id}/generate
func (h *Handler) GenerateForRule(w http.ResponseWriter, r *http.Request) {
	id := expense.RuleID(chi.URLParam(r, "id"))

	opts, err := h.parseGenerateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid generation request", err)
		return
	}
	opts.RuleID = &id

	rule, err := h.Store.Rule(r.Context(), id)
	if err != nil {
		if errors.Is(err, expense.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "Rule not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}

	kind, err := rule.Target()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Rule configuration error", err)
		return
	}

	var result GenerateResultDTO
	switch kind {
	case expense.TargetVenue:
		result.Venue, err = h.Venue.Generate(r.Context(), opts)
	case expense.TargetStaff:
		result.Staffing, err = h.Staffing.Generate(r.Context(), opts)
	case expense.TargetGeneric:
		result.Recurring, err = h.Recurring.Generate(r.Context(), opts)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if expense.IsConfig(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Generation failed", err)
		return
	}

	result.Total = result.Venue + result.Staffing + result.Recurring
	writeJSON(w, http.StatusOK, result)
}

// GenerateAll runs all three drivers over every active rule.
// POST /api/generate
func (h *Handler) GenerateAll(w http.ResponseWriter, r *http.Request) {
	opts, err := h.parseGenerateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid generation request", err)
		return
	}

	ctx := r.Context()
	var result GenerateResultDTO

	if result.Venue, err = h.Venue.Generate(ctx, opts); err != nil {
		writeError(w, http.StatusInternalServerError, "Venue generation failed", err)
		return
	}
	if result.Staffing, err = h.Staffing.Generate(ctx, opts); err != nil {
		writeError(w, http.StatusInternalServerError, "Staffing generation failed", err)
		return
	}
	if result.Recurring, err = h.Recurring.Generate(ctx, opts); err != nil {
		writeError(w, http.StatusInternalServerError, "Recurring generation failed", err)
		return
	}

	result.Total = result.Venue + result.Staffing + result.Recurring
	writeJSON(w, http.StatusOK, result)
}

// parseGenerateRequest reads the optional generation scope from the
// request body. An empty body means an unscoped pass.
func (h *Handler) parseGenerateRequest(r *http.Request) (expense.GenerateOptions, error) {
	var opts expense.GenerateOptions

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return opts, nil
		}
		return opts, err
	}

	if req.EventID != nil {
		id := expense.EventID(*req.EventID)
		opts.EventID = &id
	}
	if req.From != nil {
		t, err := time.Parse(time.RFC3339, *req.From)
		if err != nil {
			return opts, err
		}
		opts.Window.Start = &t
	}
	if req.To != nil {
		t, err := time.Parse(time.RFC3339, *req.To)
		if err != nil {
			return opts, err
		}
		opts.Window.End = &t
	}
	return opts, nil
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// ListItems returns expense items, optionally filtered by rule and
// accrual date range.
// GET /api/items?rule_id=&from=&to=
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	var q expense.ItemQuery

	if v := r.URL.Query().Get("rule_id"); v != "" {
		id := expense.RuleID(v)
		q.RuleID = &id
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from (use RFC 3339)", err)
			return
		}
		q.From = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to (use RFC 3339)", err)
			return
		}
		q.To = &t
	}

	items, err := h.Store.ListItems(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTOs(items))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// MonthlyReport returns expense totals grouped by accrual month.
// GET /api/reports/monthly
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListItems(r.Context(), expense.ItemQuery{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}

	totals := expense.MonthlyTotals(items)
	dtos := make([]MonthTotalDTO, len(totals))
	for i, t := range totals {
		total, _ := t.Total.Float64()
		dtos[i] = MonthTotalDTO{
			Month: t.Month.Format("2006-01"),
			Total: total,
			Count: t.Count,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListLocations returns the venue directory.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Store.ListLocations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list locations", err)
		return
	}
	dtos := make([]LocationDTO, len(locations))
	for i, loc := range locations {
		dtos[i] = LocationDTO{ID: string(loc.ID), Name: loc.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLocation adds a venue.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Location id and name are required", nil)
		return
	}
	loc := sqlite.Location{ID: expense.LocationID(req.ID), Name: req.Name}
	if err := h.Store.SaveLocation(r.Context(), loc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save location", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CreateRoom adds a room inside a location.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.LocationID == "" {
		writeError(w, http.StatusBadRequest, "Room id and location_id are required", nil)
		return
	}
	room := sqlite.Room{
		ID:         expense.RoomID(req.ID),
		LocationID: expense.LocationID(req.LocationID),
		Name:       req.Name,
	}
	if err := h.Store.SaveRoom(r.Context(), room); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save room", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListStaff returns the staff directory.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListStaffMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list staff", err)
		return
	}
	dtos := make([]StaffMemberDTO, len(members))
	for i, m := range members {
		dtos[i] = StaffMemberDTO{ID: string(m.ID), Name: m.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStaffMember adds a staff member.
func (h *Handler) CreateStaffMember(w http.ResponseWriter, r *http.Request) {
	var req StaffMemberDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Staff id and name are required", nil)
		return
	}
	m := sqlite.StaffMember{ID: expense.StaffID(req.ID), Name: req.Name}
	if err := h.Store.SaveStaffMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save staff member", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CreateStaffCategory adds a staffing role.
func (h *Handler) CreateStaffCategory(w http.ResponseWriter, r *http.Request) {
	var req StaffCategoryDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Category id and name are required", nil)
		return
	}
	c := sqlite.StaffCategory{ID: expense.CategoryID(req.ID), Name: req.Name}
	if err := h.Store.SaveStaffCategory(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save category", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListEvents returns every event.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, ev := range events {
		dtos[i] = EventDTO{
			ID:         string(ev.ID),
			Name:       ev.Name,
			LocationID: string(ev.LocationID),
			RoomID:     (*string)(ev.RoomID),
			Start:      ev.Start.Format(time.RFC3339),
			End:        ev.End.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEvent stores an event with its occurrence intervals.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.LocationID == "" {
		writeError(w, http.StatusBadRequest, "Event id and location_id are required", nil)
		return
	}

	ev := expense.Event{
		ID:         expense.EventID(req.ID),
		Name:       req.Name,
		LocationID: expense.LocationID(req.LocationID),
		RoomID:     (*expense.RoomID)(req.RoomID),
	}
	var err error
	if ev.Start, err = time.Parse(time.RFC3339, req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use RFC 3339)", err)
		return
	}
	if ev.End, err = time.Parse(time.RFC3339, req.End); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use RFC 3339)", err)
		return
	}

	occurrences := make([]expense.Interval, 0, len(req.Occurrences))
	for _, o := range req.Occurrences {
		iv := expense.Interval{}
		if iv.Start, err = time.Parse(time.RFC3339, o.Start); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid occurrence start", err)
			return
		}
		if iv.End, err = time.Parse(time.RFC3339, o.End); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid occurrence end", err)
			return
		}
		occurrences = append(occurrences, iv)
	}

	if err := h.Store.SaveEvent(r.Context(), ev, occurrences...); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save event", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CreateAssignment stores a staffing assignment.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignmentDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.EventID == "" || req.StaffID == "" {
		writeError(w, http.StatusBadRequest, "Assignment id, event_id and staff_id are required", nil)
		return
	}

	a := expense.Assignment{
		ID:       req.ID,
		EventID:  expense.EventID(req.EventID),
		StaffID:  expense.StaffID(req.StaffID),
		NetHours: decimal.NewFromFloat(req.NetHours),
	}
	if req.CategoryID != nil {
		a.CategoryID = expense.CategoryID(*req.CategoryID)
	}
	var err error
	if a.Start, err = time.Parse(time.RFC3339, req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use RFC 3339)", err)
		return
	}
	if a.End, err = time.Parse(time.RFC3339, req.End); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use RFC 3339)", err)
		return
	}

	if err := h.Store.SaveAssignment(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

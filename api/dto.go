/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Rules:
    RuleDTO (wraps factory.RuleJSON for creation)

  Items:
    ItemDTO

  Directory:
    LocationDTO, RoomDTO, StaffMemberDTO, StaffCategoryDTO

  Schedule:
    EventDTO, AssignmentDTO

  Generation:
    GenerateRequest, GenerateResultDTO

  Reports:
    MonthTotalDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and the rule factory, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: RuleJSON type
*/
package api

import (
	"time"

	"github.com/studioledger/expense-engine/expense"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RuleDTO represents a rate rule in API responses.
type RuleDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Rate       float64 `json:"rate"`
	Cadence    string  `json:"cadence"`
	TargetKind string  `json:"target_kind"`
	TargetName string  `json:"target_name,omitempty"`

	DayStartHour  int `json:"day_start_hour"`
	WeekStartDay  int `json:"week_start_day"`
	MonthStartDay int `json:"month_start_day"`

	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`

	AdvanceDays int    `json:"advance_days"`
	AdvanceRef  string `json:"advance_ref"`
	PriorDays   *int   `json:"prior_days,omitempty"`
	PriorRef    string `json:"prior_ref"`

	LocationID *string `json:"location_id,omitempty"`
	RoomID     *string `json:"room_id,omitempty"`
	StaffID    *string `json:"staff_id,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`

	ExpenseCategory string  `json:"expense_category,omitempty"`
	PayTo           string  `json:"pay_to,omitempty"`
	LastRun         *string `json:"last_run,omitempty"`
}

// ItemDTO represents a generated or manual expense item.
type ItemDTO struct {
	ID          string  `json:"id"`
	RuleID      string  `json:"rule_id"`
	EventID     *string `json:"event_id,omitempty"`
	PeriodStart *string `json:"period_start,omitempty"`
	PeriodEnd   *string `json:"period_end,omitempty"`

	Total         float64  `json:"total"`
	Hours         *float64 `json:"hours,omitempty"`
	Description   string   `json:"description"`
	Category      string   `json:"category,omitempty"`
	PayTo         string   `json:"pay_to,omitempty"`
	AccrualDate   string   `json:"accrual_date"`
	Approved      bool     `json:"approved"`
	Paid          bool     `json:"paid"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

// LocationDTO represents a rentable venue.
type LocationDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomDTO represents a room inside a location.
type RoomDTO struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
}

// StaffMemberDTO represents an instructor or other worker.
type StaffMemberDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StaffCategoryDTO represents a staffing role.
type StaffCategoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventDTO represents a scheduled class, workshop or party.
type EventDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	LocationID string  `json:"location_id"`
	RoomID     *string `json:"room_id,omitempty"`
	Start      string  `json:"start"` // RFC 3339
	End        string  `json:"end"`

	// Optional explicit occurrence intervals; defaults to [start, end].
	Occurrences []IntervalDTO `json:"occurrences,omitempty"`
}

// IntervalDTO is a [start, end) time span.
type IntervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AssignmentDTO represents a staffing assignment on an event.
type AssignmentDTO struct {
	ID         string  `json:"id"`
	EventID    string  `json:"event_id"`
	StaffID    string  `json:"staff_id"`
	CategoryID *string `json:"category_id,omitempty"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	NetHours   float64 `json:"net_hours"`
}

// GenerateRequest scopes a manual generation pass.
type GenerateRequest struct {
	RuleID  *string `json:"rule_id,omitempty"`
	EventID *string `json:"event_id,omitempty"`
	From    *string `json:"from,omitempty"` // RFC 3339
	To      *string `json:"to,omitempty"`
}

// GenerateResultDTO reports how many items a pass created per driver.
type GenerateResultDTO struct {
	Venue     int `json:"venue"`
	Staffing  int `json:"staffing"`
	Recurring int `json:"recurring"`
	Total     int `json:"total"`
}

// MonthTotalDTO is one row of the monthly expense report.
type MonthTotalDTO struct {
	Month string  `json:"month"` // 2006-01
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRuleDTO(r expense.Rule) RuleDTO {
	kind, err := r.Target()
	if err != nil {
		kind = "invalid"
	}
	rate, _ := r.Rate.Float64()
	dto := RuleDTO{
		ID:         string(r.ID),
		Name:       r.Name,
		Rate:       rate,
		Cadence:    string(r.Cadence),
		TargetKind: string(kind),
		TargetName: r.TargetName,

		DayStartHour:  r.DayStartHour,
		WeekStartDay:  int(r.WeekStartDay),
		MonthStartDay: r.MonthStartDay,

		AdvanceDays: r.AdvanceDays,
		AdvanceRef:  string(r.AdvanceRef),
		PriorDays:   r.PriorDays,
		PriorRef:    string(r.PriorRef),

		LocationID: (*string)(r.LocationID),
		RoomID:     (*string)(r.RoomID),
		StaffID:    (*string)(r.StaffID),
		CategoryID: (*string)(r.CategoryID),

		ExpenseCategory: r.ExpenseCategory,
		PayTo:           r.PayTo,
	}
	dto.StartDate = formatDatePtr(r.StartDate)
	dto.EndDate = formatDatePtr(r.EndDate)
	dto.LastRun = formatTimePtr(r.LastRun)
	return dto
}

func toRuleDTOs(rules []expense.Rule) []RuleDTO {
	dtos := make([]RuleDTO, len(rules))
	for i, r := range rules {
		dtos[i] = toRuleDTO(r)
	}
	return dtos
}

func toItemDTO(it expense.Item) ItemDTO {
	total, _ := it.Total.Float64()
	dto := ItemDTO{
		ID:            string(it.ID),
		RuleID:        string(it.RuleID),
		EventID:       (*string)(it.EventID),
		Total:         total,
		Description:   it.Description,
		Category:      it.Category,
		PayTo:         it.PayTo,
		AccrualDate:   it.AccrualDate.Format(time.RFC3339),
		Approved:      it.Approved,
		Paid:          it.Paid,
		PaymentMethod: it.PaymentMethod,
	}
	if !it.CreatedAt.IsZero() {
		dto.CreatedAt = it.CreatedAt.Format(time.RFC3339)
	}
	if it.Hours != nil {
		h, _ := it.Hours.Float64()
		dto.Hours = &h
	}
	dto.PeriodStart = formatTimePtr(it.PeriodStart)
	dto.PeriodEnd = formatTimePtr(it.PeriodEnd)
	return dto
}

func toItemDTOs(items []expense.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	return dtos
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

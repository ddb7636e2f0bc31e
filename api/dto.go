/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the vip domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY AND DATES:
  Money is always a string with two decimals ("150.00"); dates are ISO
  "YYYY-MM-DD". Floats never cross the API boundary.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: ConfigDocument (used as the config DTO)
*/
package api

import (
	"time"

	"github.com/warp/vip-engine/generic"
	"github.com/warp/vip-engine/vip"
)

// =============================================================================
// CLIENTS
// =============================================================================

// ClientDTO represents a client in API responses.
type ClientDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Phone              string  `json:"phone,omitempty"`
	WeeklyValueGoal    *string `json:"weekly_value_goal,omitempty"`
	WeeklyOrderGoal    *int    `json:"weekly_order_goal,omitempty"`
	WeekStartOverride  string  `json:"week_start_override,omitempty"`
	MonthStartOverride string  `json:"month_start_override,omitempty"`
	IsVip              bool    `json:"is_vip"`
	ComboAvailable     bool    `json:"combo_available"`
	LastWeekResetDate  string  `json:"last_week_reset_date,omitempty"`
	LastMonthResetDate string  `json:"last_month_reset_date,omitempty"`
	CreatedAt          string  `json:"created_at,omitempty"`
}

// SaveClientRequest is the body for creating or updating a client.
// Omitted goals and overrides fall back to the store configuration.
type SaveClientRequest struct {
	ID                 string  `json:"id,omitempty"`
	Name               string  `json:"name"`
	Phone              string  `json:"phone,omitempty"`
	WeeklyValueGoal    *string `json:"weekly_value_goal,omitempty"`
	WeeklyOrderGoal    *int    `json:"weekly_order_goal,omitempty"`
	WeekStartOverride  string  `json:"week_start_override,omitempty"`
	MonthStartOverride string  `json:"month_start_override,omitempty"`
}

func toClientDTO(c vip.Client) ClientDTO {
	dto := ClientDTO{
		ID:                 c.ID,
		Name:               c.Name,
		Phone:              c.Phone,
		WeeklyOrderGoal:    c.WeeklyOrderGoal,
		WeekStartOverride:  c.WeekStartOverride,
		MonthStartOverride: c.MonthStartOverride,
		IsVip:              c.IsVip,
		ComboAvailable:     c.ComboAvailable,
		LastWeekResetDate:  c.LastWeekResetDate,
		LastMonthResetDate: c.LastMonthResetDate,
	}
	if c.WeeklyValueGoal != nil {
		dto.WeeklyValueGoal = strPtr(c.WeeklyValueGoal.StringFixed(2))
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// STATUS
// =============================================================================

// StatusDTO is the eligibility status of one client for one window.
type StatusDTO struct {
	ClientID         string `json:"client_id"`
	Window           string `json:"window"`
	WindowStart      string `json:"window_start"`
	WindowEnd        string `json:"window_end"`
	ValueSpent       string `json:"value_spent"`
	OrderCount       int    `json:"order_count"`
	ValueGoal        string `json:"value_goal"`
	OrderGoal        int    `json:"order_goal"`
	ValueProgressPct string `json:"value_progress_pct"`
	OrderProgressPct string `json:"order_progress_pct"`
	IsVip            bool   `json:"is_vip"`
	Retained         bool   `json:"retained"`
	ComboAvailable   bool   `json:"combo_available"`
	Tier             string `json:"tier"`
}

func toStatusDTO(clientID string, kind generic.WindowKind, s vip.EligibilityStatus) StatusDTO {
	return StatusDTO{
		ClientID:         clientID,
		Window:           string(kind),
		WindowStart:      s.Window.Start.String(),
		WindowEnd:        s.Window.End.String(),
		ValueSpent:       s.ValueSpent.StringFixed(2),
		OrderCount:       s.OrderCount,
		ValueGoal:        s.ValueGoal.StringFixed(2),
		OrderGoal:        s.OrderGoal,
		ValueProgressPct: s.ValueProgressPct.StringFixed(2),
		OrderProgressPct: s.OrderProgressPct.StringFixed(2),
		IsVip:            s.IsVip,
		Retained:         s.Retained,
		ComboAvailable:   s.ComboAvailable,
		Tier:             string(s.Tier),
	}
}

// RefreshDTO is the outcome of a client refresh.
type RefreshDTO struct {
	Status     StatusDTO `json:"status"`
	IsVip      bool      `json:"is_vip"`
	RolledOver bool      `json:"rolled_over"`
	Grant      string    `json:"grant"`
}

// RefreshSummaryDTO is the outcome of a full refresh.
type RefreshSummaryDTO struct {
	Rolled    int              `json:"rolled"`
	Refreshed int              `json:"refreshed"`
	Granted   int              `json:"granted"`
	Failed    []ClientErrorDTO `json:"failed"`
}

// RefreshRequest optionally rolls windows to a given day first.
type RefreshRequest struct {
	Today string `json:"today,omitempty"`
	Roll  bool   `json:"roll"`
}

// RefreshRunDTO is an audit row.
type RefreshRunDTO struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	WeekStart   string `json:"week_start,omitempty"`
	IsVip       bool   `json:"is_vip"`
	RolledOver  bool   `json:"rolled_over"`
	GrantResult string `json:"grant_result,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// =============================================================================
// RANKING AND HISTORY
// =============================================================================

// RankingEntryDTO is one leaderboard row.
type RankingEntryDTO struct {
	Rank       int    `json:"rank"`
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	ValueSpent string `json:"value_spent"`
	OrderCount int    `json:"order_count"`
	Tier       string `json:"tier"`
	IsVip      bool   `json:"is_vip"`
}

// ClientErrorDTO reports a client that was skipped.
type ClientErrorDTO struct {
	ClientID string `json:"client_id"`
	Error    string `json:"error"`
}

// RankingResponse is the leaderboard for one period.
type RankingResponse struct {
	Window      string            `json:"window"`
	PeriodStart string            `json:"period_start"`
	PeriodEnd   string            `json:"period_end"`
	TopN        int               `json:"top_n"`
	Entries     []RankingEntryDTO `json:"entries"`
	Skipped     []ClientErrorDTO  `json:"skipped"`
}

func toRankingResponse(kind generic.WindowKind, topN int, result vip.RankingResult) RankingResponse {
	resp := RankingResponse{
		Window:      string(kind),
		PeriodStart: result.Period.Start.String(),
		PeriodEnd:   result.Period.End.String(),
		TopN:        topN,
		Entries:     make([]RankingEntryDTO, len(result.Entries)),
		Skipped:     toClientErrorDTOs(result.Skipped),
	}
	for i, e := range result.Entries {
		resp.Entries[i] = RankingEntryDTO{
			Rank:       e.Rank,
			ClientID:   e.ClientID,
			ClientName: e.ClientName,
			ValueSpent: e.ValueSpent.StringFixed(2),
			OrderCount: e.OrderCount,
			Tier:       string(e.Tier),
			IsVip:      e.IsVip,
		}
	}
	return resp
}

func toClientErrorDTOs(errs []*generic.ClientError) []ClientErrorDTO {
	out := make([]ClientErrorDTO, len(errs))
	for i, e := range errs {
		out[i] = ClientErrorDTO{ClientID: e.ClientID, Error: e.Err.Error()}
	}
	return out
}

// HistoryEntryDTO is one past weekly window.
type HistoryEntryDTO struct {
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	WasVip      bool   `json:"was_vip"`
	ValueSpent  string `json:"value_spent"`
	OrderCount  int    `json:"order_count"`
	TierAtTime  string `json:"tier_at_time"`
}

// HistoryResponse wraps the entries with their ordering.
type HistoryResponse struct {
	ClientID string            `json:"client_id"`
	Order    string            `json:"order"`
	Entries  []HistoryEntryDTO `json:"entries"`
}

// =============================================================================
// ORDERS AND COMBO
// =============================================================================

// OrderDTO represents a ledger order.
type OrderDTO struct {
	ID         string `json:"id"`
	ClientID   string `json:"client_id"`
	Amount     string `json:"amount"`
	OccurredAt string `json:"occurred_at"`
	Status     string `json:"status"`
}

// RecordOrderRequest is the body for appending an order. OccurredAt
// defaults to today and Status to "processed".
type RecordOrderRequest struct {
	ID         string `json:"id,omitempty"`
	Amount     string `json:"amount"`
	OccurredAt string `json:"occurred_at,omitempty"`
	Status     string `json:"status,omitempty"`
}

func toOrderDTO(o vip.Order) OrderDTO {
	return OrderDTO{
		ID:         o.ID,
		ClientID:   o.ClientID,
		Amount:     o.Amount.StringFixed(2),
		OccurredAt: o.OccurredAt.String(),
		Status:     string(o.Status),
	}
}

// ConsumeComboRequest carries the value of the order the combo is applied to.
type ConsumeComboRequest struct {
	OrderAmount string `json:"order_amount"`
}

// ConsumeComboResponse reports an applied combo.
type ConsumeComboResponse struct {
	ClientID string `json:"client_id"`
	Result   string `json:"result"`
	Discount string `json:"discount"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

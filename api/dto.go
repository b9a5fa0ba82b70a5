/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the wire contract. Money travels as decimal strings, never
  floats.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Handlers parse and validate; DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/settlement"
	"github.com/warp/shift-engine/shift"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type OpenShiftRequest struct {
	WorkerID string `json:"worker_id"`
	Day      string `json:"day"` // "2006-01-02"
}

type LineItemRequest struct {
	ClientName    string `json:"client_name"`
	ServiceName   string `json:"service_name"`
	Revenue       string `json:"revenue"`
	Consumables   string `json:"consumables"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Note          string `json:"note,omitempty"`
}

type CloseShiftRequest struct {
	WorkerID string            `json:"worker_id"`
	Day      string            `json:"day"`
	Items    []LineItemRequest `json:"items"`

	// Raw totals, honored only when Items is empty.
	TotalRevenue     string `json:"total_revenue,omitempty"`
	TotalConsumables string `json:"total_consumables,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ShiftDTO struct {
	ID       string `json:"id"`
	WorkerID string `json:"worker_id"`
	Day      string `json:"day"`
	Status   string `json:"status"`
	OpenedAt string `json:"opened_at"`
	ClosedAt string `json:"closed_at,omitempty"`
}

type SettlementDTO struct {
	TotalRevenue     string `json:"total_revenue"`
	TotalConsumables string `json:"total_consumables"`
	PercentWorker    string `json:"percent_worker"`
	PercentBusiness  string `json:"percent_business"`
	WorkerShare      string `json:"worker_share"`
	BusinessShare    string `json:"business_share"`
	GuaranteedAmount string `json:"guaranteed_amount"`
	TopUp            string `json:"top_up"`
}

// CloseShiftResponse distinguishes a clean close from "closed with
// follow-up issues": Warnings is non-empty in the latter case, but the
// financial result is final either way.
type CloseShiftResponse struct {
	Shift      ShiftDTO      `json:"shift"`
	Settlement SettlementDTO `json:"settlement"`
	Warnings   []string      `json:"warnings,omitempty"`
}

type LiveStatsDTO struct {
	ShiftID     string        `json:"shift_id"`
	Status      string        `json:"status"`
	OpenedAt    string        `json:"opened_at"`
	HoursWorked string        `json:"hours_worked,omitempty"`
	Projection  SettlementDTO `json:"projection"`
}

type RangeStatsDTO struct {
	From             string `json:"from"`
	To               string `json:"to"`
	ClosedShifts     int    `json:"closed_shifts"`
	TotalRevenue     string `json:"total_revenue"`
	TotalConsumables string `json:"total_consumables"`
	WorkerShare      string `json:"worker_share"`
	BusinessShare    string `json:"business_share"`
	TopUp            string `json:"top_up"`
	HoursWorked      string `json:"hours_worked"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toShiftDTO(s *shift.Shift) ShiftDTO {
	dto := ShiftDTO{
		ID:       string(s.ID),
		WorkerID: string(s.WorkerID),
		Day:      s.Day.String(),
		Status:   string(s.Status),
		OpenedAt: s.OpenedAt.Format(time.RFC3339),
	}
	if s.ClosedAt != nil {
		dto.ClosedAt = s.ClosedAt.Format(time.RFC3339)
	}
	return dto
}

func toSettlementDTO(st settlement.Settlement) SettlementDTO {
	return SettlementDTO{
		TotalRevenue:     st.TotalRevenue.String(),
		TotalConsumables: st.TotalConsumables.String(),
		PercentWorker:    st.PercentWorker.String(),
		PercentBusiness:  st.PercentBusiness.String(),
		WorkerShare:      st.WorkerShare.String(),
		BusinessShare:    st.BusinessShare.String(),
		GuaranteedAmount: st.GuaranteedAmount.String(),
		TopUp:            st.TopUp.String(),
	}
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, &shift.ValidationError{Field: field, Message: "not a valid amount"}
	}
	return d, nil
}

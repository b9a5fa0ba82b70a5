/*
handlers.go - HTTP handlers for the shift engine

PURPOSE:
  Maps the HTTP surface onto the core operations: open, close, live
  stats, range stats. Handlers parse/validate input, call the engine,
  and translate domain errors to statuses.

ERROR MAPPING:
  ValidationError    -> 400
  ErrShiftNotFound   -> 404
  ErrAlreadyClosed   -> 409 with code "already_closed", so UIs can
                        render "already closed, refresh" instead of a
                        retry prompt
  anything else      -> 500

SEE ALSO:
  - server.go: Router wiring
  - dto.go: Request/response shapes
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/warp/shift-engine/shift"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the engine entry points used by HTTP handlers.
type Handler struct {
	Lifecycle *shift.Lifecycle
	Stats     *shift.Stats
}

func NewHandler(lc *shift.Lifecycle, stats *shift.Stats) *Handler {
	return &Handler{Lifecycle: lc, Stats: stats}
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// OpenShift opens (or returns) the worker's shift for a day.
// POST /api/shifts/open
func (h *Handler) OpenShift(w http.ResponseWriter, r *http.Request) {
	var req OpenShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	day, err := shift.ParseDay(req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day", "", err)
		return
	}

	s, err := h.Lifecycle.Open(r.Context(), shift.WorkerID(req.WorkerID), day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(s))
}

// CloseShift settles and closes the worker's shift for a day.
// POST /api/shifts/close
func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	var req CloseShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	day, err := shift.ParseDay(req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day", "", err)
		return
	}

	items := make([]shift.LineItem, 0, len(req.Items))
	for _, ir := range req.Items {
		revenue, err := parseAmount("items.revenue", ir.Revenue)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		consumables, err := parseAmount("items.consumables", ir.Consumables)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		items = append(items, shift.LineItem{
			ClientName:    ir.ClientName,
			ServiceName:   ir.ServiceName,
			Revenue:       revenue,
			Consumables:   consumables,
			AppointmentID: shift.AppointmentID(ir.AppointmentID),
			Note:          ir.Note,
		})
	}

	rawRevenue, err := parseAmount("total_revenue", req.TotalRevenue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rawConsumables, err := parseAmount("total_consumables", req.TotalConsumables)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.Lifecycle.Close(r.Context(), shift.WorkerID(req.WorkerID), day, items,
		shift.RawTotals{Revenue: rawRevenue, Consumables: rawConsumables})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := CloseShiftResponse{
		Shift:      toShiftDTO(result.Shift),
		Settlement: toSettlementDTO(result.Settlement),
	}
	for _, warn := range result.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

// LiveStats projects the current financials of a shift.
// GET /api/shifts/live?worker_id=...&day=2006-01-02
func (h *Handler) LiveStats(w http.ResponseWriter, r *http.Request) {
	worker := shift.WorkerID(r.URL.Query().Get("worker_id"))
	day, err := shift.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day", "", err)
		return
	}

	stats, err := h.Stats.Live(r.Context(), worker, day)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := LiveStatsDTO{
		ShiftID:    string(stats.ShiftID),
		Status:     string(stats.Status),
		OpenedAt:   stats.OpenedAt.Format(time.RFC3339),
		Projection: toSettlementDTO(stats.Projection),
	}
	if stats.HoursWorked != nil {
		dto.HoursWorked = stats.HoursWorked.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// RangeStats aggregates closed shifts in a day range.
// GET /api/shifts/stats?worker_id=...&from=...&to=...
func (h *Handler) RangeStats(w http.ResponseWriter, r *http.Request) {
	worker := shift.WorkerID(r.URL.Query().Get("worker_id"))
	from, err := shift.ParseDay(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from day", "", err)
		return
	}
	to, err := shift.ParseDay(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to day", "", err)
		return
	}

	agg, err := h.Stats.Range(r.Context(), worker, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RangeStatsDTO{
		From:             agg.From.String(),
		To:               agg.To.String(),
		ClosedShifts:     agg.ClosedShifts,
		TotalRevenue:     agg.TotalRevenue.String(),
		TotalConsumables: agg.TotalConsumables.String(),
		WorkerShare:      agg.WorkerShare.String(),
		BusinessShare:    agg.BusinessShare.String(),
		TopUp:            agg.TopUp.String(),
		HoursWorked:      agg.HoursWorked.String(),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shift.ErrValidation):
		writeError(w, http.StatusBadRequest, "Invalid input", "validation", err)
	case errors.Is(err, shift.ErrShiftNotFound):
		writeError(w, http.StatusNotFound, "No shift for this worker and day", "not_found", err)
	case errors.Is(err, shift.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, "Shift is already closed", "already_closed", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", "", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

/*
Package shift implements the staff-shift settlement core: the shift
open/close lifecycle, attendance reconciliation, and live/historical
financial stats.

PURPOSE:
  A shift is one worker's single-day work session. During the day,
  per-client service line items accumulate; at close, the engine
  computes the authoritative worker/business split (see the settlement
  package), freezes it on the shift row via one atomic conditional
  transition, and reconciles every appointment scheduled for that
  worker-day into a final attendance status.

KEY CONCEPTS IN THIS FILE (types.go):
  - Shift: the single-day session with open/closed status and frozen
    financial fields
  - LineItem: one client/service entry, optionally linked to an
    appointment
  - Appointment: external record this core only finalizes, never creates
  - PayConfig: the worker's percentage split and optional hourly wage

DESIGN PRINCIPLES:
  1. Exactly-one close: the storage-level conditional transition is the
     only serialization point; no in-process locks are required.
  2. Precision: decimal.Decimal for all money fields.
  3. Frozen once closed: while open, financial fields are at most live
     projections; after close they are immutable.

SEE ALSO:
  - lifecycle.go: open/close state machine
  - reconcile.go: appointment attendance reconciliation
  - stats.go: live projections and range aggregation
  - ports.go: storage and notification interfaces
*/
package shift

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ShiftID string
type WorkerID string
type AppointmentID string

// =============================================================================
// SHIFT - One worker's single-day session
// =============================================================================

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Shift holds the session state. Financial fields are zero/nil while
// the shift is open and are written exactly once, all together, by the
// atomic close transition.
type Shift struct {
	ID       ShiftID
	WorkerID WorkerID
	Day      Day
	Status   Status

	OpenedAt time.Time
	ClosedAt *time.Time

	TotalRevenue     decimal.Decimal
	TotalConsumables decimal.Decimal

	// Percentages snapshotted at close time, normalized to sum 100.
	PercentWorker   decimal.Decimal
	PercentBusiness decimal.Decimal

	WorkerShare   decimal.Decimal
	BusinessShare decimal.Decimal

	// Guarantee fields are nil unless an hourly wage applied at close.
	HoursWorked      *decimal.Decimal
	HourlyWage       *decimal.Decimal
	GuaranteedAmount *decimal.Decimal
	TopUp            *decimal.Decimal
}

func (s *Shift) Closed() bool { return s.Status == StatusClosed }

// =============================================================================
// LINE ITEM - One client/service entry within a shift
// =============================================================================

// LineItem belongs to exactly one shift. The item set is supplied
// wholesale at close: the engine replaces the shift's prior items with
// the submitted list, it never merges.
type LineItem struct {
	ClientName  string
	ServiceName string
	Revenue     decimal.Decimal
	Consumables decimal.Decimal

	// AppointmentID links the item to a scheduled appointment for the
	// same worker-day. Empty for walk-ins.
	AppointmentID AppointmentID

	Note string
}

// SumLineItems derives revenue/consumable totals from an item list.
// Items are the source of truth for totals whenever any exist.
func SumLineItems(items []LineItem) (revenue, consumables decimal.Decimal) {
	revenue, consumables = decimal.Zero, decimal.Zero
	for _, it := range items {
		revenue = revenue.Add(it.Revenue)
		consumables = consumables.Add(it.Consumables)
	}
	return revenue, consumables
}

// =============================================================================
// APPOINTMENT - External record, finalized by reconciliation
// =============================================================================

type AppointmentStatus string

const (
	AppointmentScheduled   AppointmentStatus = "scheduled"
	AppointmentConfirmed   AppointmentStatus = "confirmed"
	AppointmentSettled     AppointmentStatus = "settled"
	AppointmentNotAttended AppointmentStatus = "not_attended"
	AppointmentCancelled   AppointmentStatus = "cancelled"
)

// Terminal reports whether the status is a final attendance outcome
// that reconciliation must never overwrite.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentSettled || s == AppointmentNotAttended
}

type Appointment struct {
	ID       AppointmentID
	WorkerID WorkerID
	Day      Day
	Status   AppointmentStatus
}

// =============================================================================
// PAY CONFIGURATION - Read-only input per worker
// =============================================================================

// PayConfig is the worker's compensation configuration. Percentages
// need not sum to 100; the settlement package normalizes them. A nil
// HourlyWage means no guaranteed wage for this worker.
type PayConfig struct {
	PercentWorker   decimal.Decimal
	PercentBusiness decimal.Decimal
	HourlyWage      *decimal.Decimal
}

// RawTotals are caller-supplied totals, honored only when the close
// request carries no line items.
type RawTotals struct {
	Revenue     decimal.Decimal
	Consumables decimal.Decimal
}

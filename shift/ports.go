/*
ports.go - Storage and notification interfaces consumed by the core

PURPOSE:
  Defines the contract between the shift engine and its collaborators.
  The engine depends only on these interfaces; sqlite, postgres, and
  in-memory implementations live elsewhere.

ATOMICITY CONTRACT:
  CloseIfOpen is the correctness boundary of the whole engine. It must
  be a single indivisible compare-and-swap at the storage layer:
  "set status=closed and write all close fields, if and only if status
  is still open", reporting whether this call won. Implementations must
  NOT read-then-write in two steps. Everything else in the engine is
  ordinary blocking I/O with no in-process synchronization.

SEE ALSO:
  - store/memory.go: In-memory implementation for tests
  - store/sqlite:    Conditional UPDATE ... WHERE status='open'
  - store/postgres:  Same, via pgx CommandTag
*/
package shift

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SHIFT STORE
// =============================================================================

// CloseRecord is the full set of fields frozen onto a shift by the
// atomic close transition. They are written together or not at all.
type CloseRecord struct {
	ClosedAt time.Time

	TotalRevenue     decimal.Decimal
	TotalConsumables decimal.Decimal
	PercentWorker    decimal.Decimal
	PercentBusiness  decimal.Decimal
	WorkerShare      decimal.Decimal
	BusinessShare    decimal.Decimal

	HoursWorked      *decimal.Decimal
	HourlyWage       *decimal.Decimal
	GuaranteedAmount *decimal.Decimal
	TopUp            *decimal.Decimal
}

// ShiftStore is the durable home of shift rows and their line items.
type ShiftStore interface {
	// GetCurrentShift returns the shift for (worker, day), or nil when
	// none exists.
	GetCurrentShift(ctx context.Context, worker WorkerID, day Day) (*Shift, error)

	// CreateShift persists a new open shift. The (worker, day) pair is
	// unique; creating a duplicate is an error.
	CreateShift(ctx context.Context, s *Shift) error

	// CloseIfOpen atomically transitions the shift from open to closed,
	// writing rec, if and only if its status is still open. Returns
	// true when this call performed the transition.
	CloseIfOpen(ctx context.Context, id ShiftID, rec CloseRecord) (bool, error)

	// ReplaceLineItems replaces the shift's entire item set with items.
	ReplaceLineItems(ctx context.Context, id ShiftID, items []LineItem) error

	// ListLineItems returns the shift's current items.
	ListLineItems(ctx context.Context, id ShiftID) ([]LineItem, error)

	// ListShiftsInRange returns the worker's shifts with from <= day <= to,
	// ordered by day.
	ListShiftsInRange(ctx context.Context, worker WorkerID, from, to Day) ([]*Shift, error)
}

// =============================================================================
// APPOINTMENT STORE
// =============================================================================

// AppointmentStore reads and finalizes appointments. Appointments are
// owned elsewhere; this core only flips their attendance status.
type AppointmentStore interface {
	// ListForWorkerDay returns the worker's appointments on day,
	// excluding cancelled ones.
	ListForWorkerDay(ctx context.Context, worker WorkerID, day Day) ([]*Appointment, error)

	// MarkStatus updates one appointment's status. Failures are
	// per-appointment and independent.
	MarkStatus(ctx context.Context, id AppointmentID, status AppointmentStatus) error
}

// =============================================================================
// WORKER CONFIGURATION
// =============================================================================

// ConfigProvider resolves a worker's pay configuration.
type ConfigProvider interface {
	PayConfig(ctx context.Context, worker WorkerID) (PayConfig, error)
}

// =============================================================================
// NOTIFICATION
// =============================================================================

// ClosedSummary is the payload handed to the notification port after a
// successful close.
type ClosedSummary struct {
	ShiftID       ShiftID         `json:"shift_id"`
	WorkerID      WorkerID        `json:"worker_id"`
	Day           string          `json:"day"`
	ClosedAt      time.Time       `json:"closed_at"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	WorkerShare   decimal.Decimal `json:"worker_share"`
	BusinessShare decimal.Decimal `json:"business_share"`
	TopUp         decimal.Decimal `json:"top_up"`
}

// Notifier delivers shift-close notifications. Delivery is best-effort:
// a failure must never fail or roll back the close.
type Notifier interface {
	ShiftClosed(ctx context.Context, summary ClosedSummary) error
}

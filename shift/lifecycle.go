/*
lifecycle.go - Shift open/close state machine

PURPOSE:
  Owns the NoShift -> Open -> Closed state machine. "NoShift" is not a
  persisted state, it is the absence of a row for (worker, day). Open
  creates the row idempotently; Close performs the one atomic
  conditional transition that freezes the financials.

CLOSE SEQUENCE:
  1. Validate the submitted items and totals (no mutation yet)
  2. Load the shift and the worker's pay configuration
  3. Derive effective totals: items win over raw totals whenever any
     items are submitted
  4. Compute hours worked from openedAt when an hourly wage applies
  5. Compute the settlement
  6. CloseIfOpen compare-and-swap - the correctness boundary
  7. Replace line items, reconcile attendance, notify (post-commit;
     failures become warnings, never a rollback)

FAILURE SEMANTICS:
  Any error before step 6 leaves the shift open with no side effects;
  the caller can retry from scratch. Losing the CAS in step 6 returns
  ErrAlreadyClosed with no side effects. Errors after step 6 are
  collected as warnings on the result: the shift is durably closed
  exactly once, follow-up repairs happen out of band.

SEE ALSO:
  - settlement: the pure split computation
  - reconcile.go: attendance finalization invoked in step 7
*/
package shift

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/settlement"
)

// Lifecycle orchestrates shift opening and closing. All coordination
// happens through the store's conditional transition; Lifecycle holds
// no mutable state and is safe for concurrent use.
type Lifecycle struct {
	Shifts       ShiftStore
	Appointments AppointmentStore
	Config       ConfigProvider
	Notifier     Notifier
	Reconciler   *Reconciler

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// NewLifecycle wires a Lifecycle with a default reconciler and clock.
// Notifier may be nil, in which case close notifications are skipped.
func NewLifecycle(shifts ShiftStore, appts AppointmentStore, cfg ConfigProvider, n Notifier) *Lifecycle {
	return &Lifecycle{
		Shifts:       shifts,
		Appointments: appts,
		Config:       cfg,
		Notifier:     n,
		Reconciler:   &Reconciler{Appointments: appts},
		Now:          time.Now,
	}
}

// CloseResult reports a successful close. Warnings carry post-commit
// follow-up failures (item replacement, reconciliation, notification);
// the financial close itself is final whenever a CloseResult is returned.
type CloseResult struct {
	Shift      *Shift
	Settlement settlement.Settlement
	Warnings   []error
}

// =============================================================================
// OPEN
// =============================================================================

// Open returns the worker's open shift for day, creating it when none
// exists. Opening an already-open shift is idempotent; opening a day
// whose shift is closed fails with ErrAlreadyClosed.
func (l *Lifecycle) Open(ctx context.Context, worker WorkerID, day Day) (*Shift, error) {
	if err := validateKey(worker, day); err != nil {
		return nil, err
	}

	current, err := l.Shifts.GetCurrentShift(ctx, worker, day)
	if err != nil {
		return nil, &StorageError{Op: "get current shift", Err: err}
	}
	if current != nil {
		if current.Closed() {
			return nil, fmt.Errorf("open %s on %s: %w", worker, day, ErrAlreadyClosed)
		}
		return current, nil
	}

	s := &Shift{
		ID:       ShiftID(uuid.NewString()),
		WorkerID: worker,
		Day:      day,
		Status:   StatusOpen,
		OpenedAt: l.Now(),
	}
	if err := l.Shifts.CreateShift(ctx, s); err != nil {
		return nil, &StorageError{Op: "create shift", Err: err}
	}
	return s, nil
}

// =============================================================================
// CLOSE
// =============================================================================

// Close settles and closes the worker's shift for day. items is the
// authoritative, wholesale line-item set; raw totals apply only when
// items is empty. Exactly one Close per shift ever commits; every
// other attempt returns ErrAlreadyClosed.
func (l *Lifecycle) Close(ctx context.Context, worker WorkerID, day Day, items []LineItem, raw RawTotals) (*CloseResult, error) {
	if err := validateKey(worker, day); err != nil {
		return nil, err
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if raw.Revenue.IsNegative() || raw.Consumables.IsNegative() {
		return nil, &ValidationError{Field: "totals", Message: "must be non-negative"}
	}

	current, err := l.Shifts.GetCurrentShift(ctx, worker, day)
	if err != nil {
		return nil, &StorageError{Op: "get current shift", Err: err}
	}
	if current == nil {
		return nil, fmt.Errorf("close %s on %s: %w", worker, day, ErrShiftNotFound)
	}
	if current.Closed() {
		return nil, fmt.Errorf("close %s on %s: %w", worker, day, ErrAlreadyClosed)
	}

	cfg, err := l.Config.PayConfig(ctx, worker)
	if err != nil {
		return nil, &StorageError{Op: "load pay config", Err: err}
	}

	dayAppointments, err := l.Appointments.ListForWorkerDay(ctx, worker, day)
	if err != nil {
		return nil, &StorageError{Op: "list appointments", Err: err}
	}
	if err := validateItemLinks(items, dayAppointments); err != nil {
		return nil, err
	}

	// Appointments linked by a prior autosave stay settled even when a
	// later submission omits them.
	priorItems, err := l.Shifts.ListLineItems(ctx, current.ID)
	if err != nil {
		return nil, &StorageError{Op: "list line items", Err: err}
	}

	revenue, consumables := raw.Revenue, raw.Consumables
	if len(items) > 0 {
		revenue, consumables = SumLineItems(items)
	}

	now := l.Now()
	var hours *decimal.Decimal
	if cfg.HourlyWage != nil {
		h := decimal.NewFromFloat(now.Sub(current.OpenedAt).Hours()).Round(2)
		hours = &h
	}

	st := settlement.Compute(settlement.Input{
		TotalRevenue:     revenue,
		TotalConsumables: consumables,
		PercentWorker:    cfg.PercentWorker,
		PercentBusiness:  cfg.PercentBusiness,
		HoursWorked:      hours,
		HourlyWage:       cfg.HourlyWage,
	})

	rec := CloseRecord{
		ClosedAt:         now,
		TotalRevenue:     st.TotalRevenue,
		TotalConsumables: st.TotalConsumables,
		PercentWorker:    st.PercentWorker,
		PercentBusiness:  st.PercentBusiness,
		WorkerShare:      st.WorkerShare,
		BusinessShare:    st.BusinessShare,
		HoursWorked:      hours,
		HourlyWage:       cfg.HourlyWage,
	}
	if cfg.HourlyWage != nil {
		g, t := st.GuaranteedAmount, st.TopUp
		rec.GuaranteedAmount = &g
		rec.TopUp = &t
	}

	// The correctness boundary: one winner, everyone else observes a
	// closed shift.
	won, err := l.Shifts.CloseIfOpen(ctx, current.ID, rec)
	if err != nil {
		return nil, &StorageError{Op: "close shift", Err: err}
	}
	if !won {
		return nil, fmt.Errorf("close %s on %s: %w", worker, day, ErrAlreadyClosed)
	}

	closed := applyCloseRecord(current, rec)
	result := &CloseResult{Shift: closed, Settlement: st}

	// Post-commit steps. The shift is durably closed; failures here are
	// reported, never unwound.
	if err := l.Shifts.ReplaceLineItems(ctx, closed.ID, items); err != nil {
		result.Warnings = append(result.Warnings, &StorageError{Op: "replace line items", Err: err})
	}

	settled := linkedAppointments(priorItems, items)
	if err := l.Reconciler.Reconcile(ctx, worker, day, settled); err != nil {
		result.Warnings = append(result.Warnings, err)
	}

	if l.Notifier != nil {
		if err := l.Notifier.ShiftClosed(ctx, summarize(closed)); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("notify shift closed: %w", err))
		}
	}

	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func validateKey(worker WorkerID, day Day) error {
	if worker == "" {
		return &ValidationError{Field: "worker", Message: "must not be empty"}
	}
	if day.IsZero() {
		return &ValidationError{Field: "day", Message: "must be set"}
	}
	return nil
}

func validateItems(items []LineItem) error {
	for i, it := range items {
		if it.Revenue.IsNegative() {
			return &ValidationError{Field: fmt.Sprintf("items[%d].revenue", i), Message: "must be non-negative"}
		}
		if it.Consumables.IsNegative() {
			return &ValidationError{Field: fmt.Sprintf("items[%d].consumables", i), Message: "must be non-negative"}
		}
		if it.ServiceName == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].service_name", i), Message: "must not be empty"}
		}
	}
	return nil
}

// validateItemLinks enforces that every linked appointment belongs to
// the shift's worker-day.
func validateItemLinks(items []LineItem, dayAppointments []*Appointment) error {
	known := make(map[AppointmentID]bool, len(dayAppointments))
	for _, a := range dayAppointments {
		known[a.ID] = true
	}
	for i, it := range items {
		if it.AppointmentID != "" && !known[it.AppointmentID] {
			return &ValidationError{
				Field:   fmt.Sprintf("items[%d].appointment_id", i),
				Message: fmt.Sprintf("appointment %s is not scheduled for this worker and day", it.AppointmentID),
			}
		}
	}
	return nil
}

// linkedAppointments unions the appointment ids of the prior and
// submitted item sets.
func linkedAppointments(prior, submitted []LineItem) map[AppointmentID]bool {
	set := make(map[AppointmentID]bool)
	for _, it := range prior {
		if it.AppointmentID != "" {
			set[it.AppointmentID] = true
		}
	}
	for _, it := range submitted {
		if it.AppointmentID != "" {
			set[it.AppointmentID] = true
		}
	}
	return set
}

func applyCloseRecord(s *Shift, rec CloseRecord) *Shift {
	closed := *s
	closed.Status = StatusClosed
	closedAt := rec.ClosedAt
	closed.ClosedAt = &closedAt
	closed.TotalRevenue = rec.TotalRevenue
	closed.TotalConsumables = rec.TotalConsumables
	closed.PercentWorker = rec.PercentWorker
	closed.PercentBusiness = rec.PercentBusiness
	closed.WorkerShare = rec.WorkerShare
	closed.BusinessShare = rec.BusinessShare
	closed.HoursWorked = rec.HoursWorked
	closed.HourlyWage = rec.HourlyWage
	closed.GuaranteedAmount = rec.GuaranteedAmount
	closed.TopUp = rec.TopUp
	return &closed
}

func summarize(s *Shift) ClosedSummary {
	sum := ClosedSummary{
		ShiftID:       s.ID,
		WorkerID:      s.WorkerID,
		Day:           s.Day.String(),
		TotalRevenue:  s.TotalRevenue,
		WorkerShare:   s.WorkerShare,
		BusinessShare: s.BusinessShare,
	}
	if s.ClosedAt != nil {
		sum.ClosedAt = *s.ClosedAt
	}
	if s.TopUp != nil {
		sum.TopUp = *s.TopUp
	}
	return sum
}

/*
reconcile.go - Post-close attendance reconciliation

PURPOSE:
  After a shift closes, every non-cancelled appointment scheduled for
  that worker-day must end in a definitive outcome: settled when it was
  linked to a shift line item, not-attended otherwise. Appointments a
  human or another process already finalized are left untouched, which
  also makes the whole operation idempotent.

FAILURE MODEL:
  Each status update is independent. One failing appointment never
  aborts the rest; failures are collected into a
  PartialReconciliationError and reported, because the financial close
  upstream has already committed and must stand.
*/
package shift

import "context"

// Reconciler finalizes appointment attendance for a closed shift's day.
type Reconciler struct {
	Appointments AppointmentStore

	// Protected lists extra statuses reconciliation must never
	// overwrite, beyond the always-terminal settled/not-attended.
	Protected map[AppointmentStatus]bool
}

// Reconcile drives every non-cancelled appointment for (worker, day)
// to a terminal status. settled is the union of appointment ids ever
// linked to the shift's line items. Returns nil when every update
// succeeded (or nothing needed updating), otherwise a
// *PartialReconciliationError listing the failures.
func (r *Reconciler) Reconcile(ctx context.Context, worker WorkerID, day Day, settled map[AppointmentID]bool) error {
	appts, err := r.Appointments.ListForWorkerDay(ctx, worker, day)
	if err != nil {
		return &StorageError{Op: "list appointments", Err: err}
	}

	var failures []MarkFailure
	mark := func(id AppointmentID, status AppointmentStatus) {
		if err := r.Appointments.MarkStatus(ctx, id, status); err != nil {
			failures = append(failures, MarkFailure{AppointmentID: id, Status: status, Err: err})
		}
	}

	// Pass 1: everything in the settled set becomes settled.
	for _, a := range appts {
		if !settled[a.ID] || r.untouchable(a.Status) {
			continue
		}
		mark(a.ID, AppointmentSettled)
	}

	// Pass 2: everything else becomes not-attended.
	for _, a := range appts {
		if settled[a.ID] || r.untouchable(a.Status) {
			continue
		}
		mark(a.ID, AppointmentNotAttended)
	}

	if len(failures) > 0 {
		return &PartialReconciliationError{WorkerID: worker, Day: day, Failures: failures}
	}
	return nil
}

func (r *Reconciler) untouchable(s AppointmentStatus) bool {
	return s.Terminal() || r.Protected[s]
}

// Package notify provides shift.Notifier implementations. All of them
// are best-effort by contract: the close path logs and continues when
// delivery fails.
package notify

import (
	"context"
	"log"

	"github.com/warp/shift-engine/shift"
)

// LogNotifier writes close summaries to the process log. Used as the
// default when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) ShiftClosed(_ context.Context, s shift.ClosedSummary) error {
	log.Printf("shift closed: worker=%s day=%s revenue=%s worker_share=%s business_share=%s top_up=%s",
		s.WorkerID, s.Day, s.TotalRevenue, s.WorkerShare, s.BusinessShare, s.TopUp)
	return nil
}

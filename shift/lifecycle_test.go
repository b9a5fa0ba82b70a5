package shift_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/shift"
	"github.com/warp/shift-engine/shift/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const worker = shift.WorkerID("emp-1")

var day = shift.NewDay(2025, time.March, 10)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func newFixture(t *testing.T) (*store.Memory, *shift.Lifecycle) {
	t.Helper()
	mem := store.NewMemory()
	mem.SetPayConfig(worker, shift.PayConfig{
		PercentWorker:   dec(60),
		PercentBusiness: dec(40),
	})
	lc := shift.NewLifecycle(mem, mem, mem, nil)
	return mem, lc
}

func item(service string, revenue, consumables int64, appt shift.AppointmentID) shift.LineItem {
	return shift.LineItem{
		ClientName:    "client",
		ServiceName:   service,
		Revenue:       dec(revenue),
		Consumables:   dec(consumables),
		AppointmentID: appt,
	}
}

// =============================================================================
// OPEN TESTS
// =============================================================================

func TestOpen_CreatesShift(t *testing.T) {
	_, lc := newFixture(t)

	s, err := lc.Open(context.Background(), worker, day)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusOpen, s.Status)
	assert.Equal(t, worker, s.WorkerID)
	assert.NotEmpty(t, s.ID)
}

func TestOpen_IsIdempotent(t *testing.T) {
	// GIVEN: an open shift
	// WHEN: opening again for the same worker-day
	// THEN: the existing shift is returned, no duplicate created

	_, lc := newFixture(t)
	ctx := context.Background()

	first, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	second, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestOpen_FailsOnClosedDay(t *testing.T) {
	_, lc := newFixture(t)
	ctx := context.Background()

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)
	_, err = lc.Close(ctx, worker, day, nil, shift.RawTotals{Revenue: dec(100)})
	require.NoError(t, err)

	_, err = lc.Open(ctx, worker, day)
	assert.ErrorIs(t, err, shift.ErrAlreadyClosed)
}

// =============================================================================
// CLOSE TESTS
// =============================================================================

func TestClose_ComputesTotalsFromItems(t *testing.T) {
	// GIVEN: items summing to 5000 revenue / 200 consumables, plus raw
	//        totals that disagree with the itemization
	// WHEN: closing
	// THEN: the items win; the raw totals are ignored

	_, lc := newFixture(t)
	ctx := context.Background()

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	items := []shift.LineItem{
		item("haircut", 3000, 150, ""),
		item("coloring", 2000, 50, ""),
	}
	result, err := lc.Close(ctx, worker, day, items, shift.RawTotals{Revenue: dec(99999)})
	require.NoError(t, err)

	assert.True(t, result.Settlement.TotalRevenue.Equal(dec(5000)))
	assert.True(t, result.Settlement.TotalConsumables.Equal(dec(200)))
	assert.True(t, result.Settlement.WorkerShare.Equal(dec(3000)))
	assert.True(t, result.Settlement.BusinessShare.Equal(dec(2200)))
	assert.Empty(t, result.Warnings)
	assert.Equal(t, shift.StatusClosed, result.Shift.Status)
	require.NotNil(t, result.Shift.ClosedAt)
}

func TestClose_UsesRawTotalsWhenNoItems(t *testing.T) {
	_, lc := newFixture(t)
	ctx := context.Background()

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	result, err := lc.Close(ctx, worker, day, nil, shift.RawTotals{Revenue: dec(1000), Consumables: dec(100)})
	require.NoError(t, err)

	assert.True(t, result.Settlement.TotalRevenue.Equal(dec(1000)))
	assert.True(t, result.Settlement.WorkerShare.Equal(dec(600)))
	assert.True(t, result.Settlement.BusinessShare.Equal(dec(500)))
}

func TestClose_SecondCallReturnsAlreadyClosed(t *testing.T) {
	// GIVEN: a closed shift
	// WHEN: closing again with different numbers
	// THEN: AlreadyClosed, and the frozen financials are unchanged

	mem, lc := newFixture(t)
	ctx := context.Background()

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	first, err := lc.Close(ctx, worker, day, nil, shift.RawTotals{Revenue: dec(1000)})
	require.NoError(t, err)

	_, err = lc.Close(ctx, worker, day, nil, shift.RawTotals{Revenue: dec(777)})
	assert.ErrorIs(t, err, shift.ErrAlreadyClosed)

	stored, err := mem.GetCurrentShift(ctx, worker, day)
	require.NoError(t, err)
	assert.True(t, stored.TotalRevenue.Equal(first.Settlement.TotalRevenue))
	assert.True(t, stored.WorkerShare.Equal(first.Settlement.WorkerShare))
}

func TestClose_NoShiftReturnsNotFound(t *testing.T) {
	_, lc := newFixture(t)

	_, err := lc.Close(context.Background(), worker, day, nil, shift.RawTotals{})
	assert.ErrorIs(t, err, shift.ErrShiftNotFound)
}

func TestClose_RejectsNegativeAmounts(t *testing.T) {
	_, lc := newFixture(t)
	ctx := context.Background()

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	bad := []shift.LineItem{{ServiceName: "haircut", Revenue: dec(-5), Consumables: dec(0)}}
	_, err = lc.Close(ctx, worker, day, bad, shift.RawTotals{})
	assert.ErrorIs(t, err, shift.ErrValidation)

	// The failed validation must not have touched the shift.
	s, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusOpen, s.Status)
}

func TestClose_RejectsForeignAppointmentLink(t *testing.T) {
	// GIVEN: an item linked to an appointment of another worker
	// WHEN: closing
	// THEN: validation fails before any mutation

	mem, lc := newFixture(t)
	ctx := context.Background()

	mem.SeedAppointment(shift.Appointment{
		ID: "apt-other", WorkerID: "emp-2", Day: day, Status: shift.AppointmentScheduled,
	})

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	items := []shift.LineItem{item("haircut", 100, 0, "apt-other")}
	_, err = lc.Close(ctx, worker, day, items, shift.RawTotals{})
	assert.ErrorIs(t, err, shift.ErrValidation)
}

func TestClose_AppliesGuaranteedWage(t *testing.T) {
	// GIVEN: a worker with wage 100/h who opened 4 hours ago and made
	//        zero revenue
	// THEN: worker share is the guaranteed 400, business share zero

	mem := store.NewMemory()
	mem.SetPayConfig(worker, shift.PayConfig{
		PercentWorker:   dec(60),
		PercentBusiness: dec(40),
		HourlyWage:      decPtr(100),
	})

	opened := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	lc := shift.NewLifecycle(mem, mem, mem, nil)
	lc.Now = func() time.Time { return opened }

	ctx := context.Background()
	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	lc.Now = func() time.Time { return opened.Add(4 * time.Hour) }
	result, err := lc.Close(ctx, worker, day, nil, shift.RawTotals{})
	require.NoError(t, err)

	assert.True(t, result.Settlement.GuaranteedAmount.Equal(dec(400)))
	assert.True(t, result.Settlement.WorkerShare.Equal(dec(400)))
	assert.True(t, result.Settlement.TopUp.Equal(dec(400)))
	assert.True(t, result.Settlement.BusinessShare.Equal(dec(0)))
	require.NotNil(t, result.Shift.HoursWorked)
	assert.True(t, result.Shift.HoursWorked.Equal(dec(4)))
}

func TestClose_ConcurrentCallsOneWinner(t *testing.T) {
	// GIVEN: one open shift and many racing close attempts
	// WHEN: they all run concurrently
	// THEN: exactly one wins; every loser gets AlreadyClosed

	_, lc := newFixture(t)
	ctx := context.Background()

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = lc.Close(ctx, worker, day, nil, shift.RawTotals{Revenue: dec(1000)})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, shift.ErrAlreadyClosed)
	}
	assert.Equal(t, 1, wins, "exactly one close must commit")
}

func TestClose_ReplacesLineItemsWholesale(t *testing.T) {
	mem, lc := newFixture(t)
	ctx := context.Background()

	opened, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	// Simulate an autosave that stored an earlier item set.
	require.NoError(t, mem.ReplaceLineItems(ctx, opened.ID, []shift.LineItem{
		item("old entry", 50, 0, ""),
	}))

	_, err = lc.Close(ctx, worker, day, []shift.LineItem{item("haircut", 100, 0, "")}, shift.RawTotals{})
	require.NoError(t, err)

	items, err := mem.ListLineItems(ctx, opened.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "haircut", items[0].ServiceName)
}

func TestClose_TriggersReconciliation(t *testing.T) {
	// GIVEN: two scheduled appointments, one linked to a line item
	// WHEN: closing
	// THEN: the linked one is settled, the other not-attended

	mem, lc := newFixture(t)
	ctx := context.Background()

	mem.SeedAppointment(shift.Appointment{ID: "apt-1", WorkerID: worker, Day: day, Status: shift.AppointmentConfirmed})
	mem.SeedAppointment(shift.Appointment{ID: "apt-2", WorkerID: worker, Day: day, Status: shift.AppointmentScheduled})

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	_, err = lc.Close(ctx, worker, day, []shift.LineItem{item("haircut", 100, 0, "apt-1")}, shift.RawTotals{})
	require.NoError(t, err)

	s1, _ := mem.AppointmentStatus("apt-1")
	s2, _ := mem.AppointmentStatus("apt-2")
	assert.Equal(t, shift.AppointmentSettled, s1)
	assert.Equal(t, shift.AppointmentNotAttended, s2)
}

func TestClose_PriorAutosaveLinksStaySettled(t *testing.T) {
	// GIVEN: an autosaved item linking apt-1, then a final submission
	//        that omits it
	// THEN: apt-1 is still settled; once linked, always settled

	mem, lc := newFixture(t)
	ctx := context.Background()

	mem.SeedAppointment(shift.Appointment{ID: "apt-1", WorkerID: worker, Day: day, Status: shift.AppointmentConfirmed})

	opened, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)
	require.NoError(t, mem.ReplaceLineItems(ctx, opened.ID, []shift.LineItem{
		item("autosaved", 100, 0, "apt-1"),
	}))

	_, err = lc.Close(ctx, worker, day, []shift.LineItem{item("walk-in", 50, 0, "")}, shift.RawTotals{})
	require.NoError(t, err)

	status, _ := mem.AppointmentStatus("apt-1")
	assert.Equal(t, shift.AppointmentSettled, status)
}

func TestClose_NotifierFailureBecomesWarning(t *testing.T) {
	mem := store.NewMemory()
	mem.SetPayConfig(worker, shift.PayConfig{PercentWorker: dec(60), PercentBusiness: dec(40)})
	lc := shift.NewLifecycle(mem, mem, mem, failingNotifier{})
	ctx := context.Background()

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	result, err := lc.Close(ctx, worker, day, nil, shift.RawTotals{Revenue: dec(100)})
	require.NoError(t, err, "a notification failure must not fail the close")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, shift.StatusClosed, result.Shift.Status)
}

func TestClose_ReconciliationFailureBecomesWarning(t *testing.T) {
	// GIVEN: an appointment store whose status updates fail
	// WHEN: closing
	// THEN: the close succeeds with a partial-reconciliation warning

	mem := store.NewMemory()
	mem.SetPayConfig(worker, shift.PayConfig{PercentWorker: dec(60), PercentBusiness: dec(40)})
	mem.SeedAppointment(shift.Appointment{ID: "apt-1", WorkerID: worker, Day: day, Status: shift.AppointmentScheduled})

	appts := &brokenMarkStore{Memory: mem}
	lc := shift.NewLifecycle(mem, appts, mem, nil)
	ctx := context.Background()

	_, err := lc.Open(ctx, worker, day)
	require.NoError(t, err)

	result, err := lc.Close(ctx, worker, day, nil, shift.RawTotals{Revenue: dec(100)})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)

	var partial *shift.PartialReconciliationError
	require.ErrorAs(t, result.Warnings[0], &partial)
	assert.Len(t, partial.Failures, 1)
}

// =============================================================================
// TEST DOUBLES
// =============================================================================

type failingNotifier struct{}

func (failingNotifier) ShiftClosed(context.Context, shift.ClosedSummary) error {
	return errors.New("smtp down")
}

// brokenMarkStore lists appointments fine but fails every status write.
type brokenMarkStore struct {
	*store.Memory
}

func (b *brokenMarkStore) MarkStatus(context.Context, shift.AppointmentID, shift.AppointmentStatus) error {
	return errors.New("appointment service unavailable")
}

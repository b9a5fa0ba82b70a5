/*
stats.go - Read-time financial projections and range aggregation

PURPOSE:
  Live dashboards poll an open shift's numbers before it closes. Stats
  repeats the close-time computation using "now" as the close instant
  without persisting anything: a read may race an in-flight close and
  observe either the pre-close projection or the frozen result, both
  individually consistent.

SELF-HEALING READS:
  Range aggregation sums the frozen shares of closed shifts, but always
  re-derives each shift's revenue/consumable totals from its line items
  when any exist, rather than trusting a possibly stale total column.
*/
package shift

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/settlement"
)

// Stats serves point-in-time projections and historical aggregates.
// It never mutates state.
type Stats struct {
	Shifts ShiftStore
	Config ConfigProvider

	Now func() time.Time
}

func NewStats(shifts ShiftStore, cfg ConfigProvider) *Stats {
	return &Stats{Shifts: shifts, Config: cfg, Now: time.Now}
}

// LiveStats is the projection of a shift as of the read instant.
type LiveStats struct {
	ShiftID     ShiftID
	Status      Status
	OpenedAt    time.Time
	HoursWorked *decimal.Decimal
	Projection  settlement.Settlement
}

// RangeStats aggregates the frozen results of closed shifts in a day range.
type RangeStats struct {
	From, To Day

	ClosedShifts     int
	TotalRevenue     decimal.Decimal
	TotalConsumables decimal.Decimal
	WorkerShare      decimal.Decimal
	BusinessShare    decimal.Decimal
	TopUp            decimal.Decimal
	HoursWorked      decimal.Decimal
}

// Live projects the current financials of the worker's shift for day.
// For an open shift this recomputes the settlement with "now" as the
// close instant; for a closed shift it reflects the frozen fields.
func (st *Stats) Live(ctx context.Context, worker WorkerID, day Day) (*LiveStats, error) {
	current, err := st.Shifts.GetCurrentShift(ctx, worker, day)
	if err != nil {
		return nil, &StorageError{Op: "get current shift", Err: err}
	}
	if current == nil {
		return nil, fmt.Errorf("live stats %s on %s: %w", worker, day, ErrShiftNotFound)
	}

	if current.Closed() {
		return &LiveStats{
			ShiftID:     current.ID,
			Status:      current.Status,
			OpenedAt:    current.OpenedAt,
			HoursWorked: current.HoursWorked,
			Projection:  frozenSettlement(current),
		}, nil
	}

	cfg, err := st.Config.PayConfig(ctx, worker)
	if err != nil {
		return nil, &StorageError{Op: "load pay config", Err: err}
	}

	items, err := st.Shifts.ListLineItems(ctx, current.ID)
	if err != nil {
		return nil, &StorageError{Op: "list line items", Err: err}
	}
	revenue, consumables := current.TotalRevenue, current.TotalConsumables
	if len(items) > 0 {
		revenue, consumables = SumLineItems(items)
	}

	var hours *decimal.Decimal
	if cfg.HourlyWage != nil {
		h := decimal.NewFromFloat(st.Now().Sub(current.OpenedAt).Hours()).Round(2)
		hours = &h
	}

	return &LiveStats{
		ShiftID:     current.ID,
		Status:      current.Status,
		OpenedAt:    current.OpenedAt,
		HoursWorked: hours,
		Projection: settlement.Compute(settlement.Input{
			TotalRevenue:     revenue,
			TotalConsumables: consumables,
			PercentWorker:    cfg.PercentWorker,
			PercentBusiness:  cfg.PercentBusiness,
			HoursWorked:      hours,
			HourlyWage:       cfg.HourlyWage,
		}),
	}, nil
}

// Range sums the frozen fields of the worker's closed shifts with
// from <= day <= to. Open shifts in the range are skipped; their
// numbers are not final.
func (st *Stats) Range(ctx context.Context, worker WorkerID, from, to Day) (*RangeStats, error) {
	if to.Before(from) {
		return nil, &ValidationError{Field: "range", Message: "end before start"}
	}

	shifts, err := st.Shifts.ListShiftsInRange(ctx, worker, from, to)
	if err != nil {
		return nil, &StorageError{Op: "list shifts in range", Err: err}
	}

	agg := &RangeStats{
		From:             from,
		To:               to,
		TotalRevenue:     decimal.Zero,
		TotalConsumables: decimal.Zero,
		WorkerShare:      decimal.Zero,
		BusinessShare:    decimal.Zero,
		TopUp:            decimal.Zero,
		HoursWorked:      decimal.Zero,
	}
	for _, s := range shifts {
		if !s.Closed() {
			continue
		}

		// Totals re-derived from items when present; rows written
		// before a model change may carry stale total columns.
		revenue, consumables := s.TotalRevenue, s.TotalConsumables
		items, err := st.Shifts.ListLineItems(ctx, s.ID)
		if err != nil {
			return nil, &StorageError{Op: "list line items", Err: err}
		}
		if len(items) > 0 {
			revenue, consumables = SumLineItems(items)
		}

		agg.ClosedShifts++
		agg.TotalRevenue = agg.TotalRevenue.Add(revenue)
		agg.TotalConsumables = agg.TotalConsumables.Add(consumables)
		agg.WorkerShare = agg.WorkerShare.Add(s.WorkerShare)
		agg.BusinessShare = agg.BusinessShare.Add(s.BusinessShare)
		if s.TopUp != nil {
			agg.TopUp = agg.TopUp.Add(*s.TopUp)
		}
		if s.HoursWorked != nil {
			agg.HoursWorked = agg.HoursWorked.Add(*s.HoursWorked)
		}
	}
	return agg, nil
}

func frozenSettlement(s *Shift) settlement.Settlement {
	out := settlement.Settlement{
		TotalRevenue:     s.TotalRevenue,
		TotalConsumables: s.TotalConsumables,
		PercentWorker:    s.PercentWorker,
		PercentBusiness:  s.PercentBusiness,
		WorkerShare:      s.WorkerShare,
		BusinessShare:    s.BusinessShare,
		GuaranteedAmount: decimal.Zero,
		TopUp:            decimal.Zero,
	}
	if s.GuaranteedAmount != nil {
		out.GuaranteedAmount = *s.GuaranteedAmount
	}
	if s.TopUp != nil {
		out.TopUp = *s.TopUp
	}
	return out
}

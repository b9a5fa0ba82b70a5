/*
Package settlement computes the split of a shift's revenue between the
worker and the business.

PURPOSE:
  This package is the single place where money is divided. Given raw
  totals, a percentage configuration, and optional guaranteed-wage
  parameters, it produces the authoritative worker/business split.

KEY CONCEPTS:
  - Percentages are NORMALIZED: a 60/40 split and a 6/4 split produce
    the same result. A 0/0 configuration is treated as summing to 100
    (callers own their own default policy, not this package).
  - The guaranteed wage is wage-for-time: hours worked times an hourly
    rate. When it exceeds the percentage-based worker share, the worker
    receives the guarantee and the difference (the top-up) is funded
    out of the business share, floored at zero.

DESIGN PRINCIPLES:
  1. Purity: no I/O, no clock, no ambient configuration.
  2. Precision: decimal.Decimal throughout, no floats in money math.
  3. Rounding policy: shares round half-up to the integer currency
     unit; the guaranteed amount rounds half-up to 2 decimal places.

USAGE:
  s := settlement.Compute(settlement.Input{
      TotalRevenue:    decimal.NewFromInt(5000),
      TotalConsumables: decimal.NewFromInt(200),
      PercentWorker:   decimal.NewFromInt(60),
      PercentBusiness: decimal.NewFromInt(40),
  })
  // s.WorkerShare == 3000, s.BusinessShare == 2200

SEE ALSO:
  - shift/lifecycle.go: Invokes Compute at shift close
  - shift/stats.go: Reuses Compute for live projections
*/
package settlement

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Input carries everything Compute needs. HoursWorked and HourlyWage
// are both required for the guarantee to apply; either being nil
// disables it.
type Input struct {
	TotalRevenue     decimal.Decimal
	TotalConsumables decimal.Decimal
	PercentWorker    decimal.Decimal
	PercentBusiness  decimal.Decimal
	HoursWorked      *decimal.Decimal
	HourlyWage       *decimal.Decimal
}

// Settlement is the computed split. Percentages are normalized so that
// PercentWorker + PercentBusiness == 100.
type Settlement struct {
	TotalRevenue     decimal.Decimal
	TotalConsumables decimal.Decimal
	PercentWorker    decimal.Decimal
	PercentBusiness  decimal.Decimal
	WorkerShare      decimal.Decimal
	BusinessShare    decimal.Decimal
	GuaranteedAmount decimal.Decimal
	TopUp            decimal.Decimal
}

// GuaranteeApplied reports whether the worker share was lifted to the
// guaranteed amount.
func (s Settlement) GuaranteeApplied() bool {
	return s.TopUp.IsPositive()
}

// Compute produces the worker/business split for the given inputs.
// It assumes non-negative revenue and consumables; input validation is
// the caller's responsibility.
func Compute(in Input) Settlement {
	sum := in.PercentWorker.Add(in.PercentBusiness)
	if sum.IsZero() {
		sum = hundred
	}
	percentWorker := in.PercentWorker.Div(sum).Mul(hundred)
	percentBusiness := hundred.Sub(percentWorker)

	// Shares round half-up to the integer currency unit. Consumable
	// cost always lands on the business side on top of its cut.
	workerShare := in.TotalRevenue.Mul(percentWorker).Div(hundred).Round(0)
	businessShare := in.TotalRevenue.Mul(percentBusiness).Div(hundred).Round(0).Add(in.TotalConsumables)

	guaranteed := decimal.Zero
	topUp := decimal.Zero
	if in.HourlyWage != nil && in.HoursWorked != nil && !in.HoursWorked.IsNegative() {
		guaranteed = in.HoursWorked.Mul(*in.HourlyWage).Round(2)
		if guaranteed.GreaterThan(workerShare) {
			// The guarantee wins: the top-up comes out of the business
			// share, which is floored at zero and never goes negative.
			topUp = guaranteed.Sub(workerShare)
			workerShare = guaranteed
			businessShare = decimal.Max(decimal.Zero, businessShare.Sub(topUp))
		}
	}

	return Settlement{
		TotalRevenue:     in.TotalRevenue,
		TotalConsumables: in.TotalConsumables,
		PercentWorker:    percentWorker,
		PercentBusiness:  percentBusiness,
		WorkerShare:      workerShare,
		BusinessShare:    businessShare,
		GuaranteedAmount: guaranteed,
		TopUp:            topUp,
	}
}

package comparative

import "github.com/shopspring/decimal"

var (
	hundred        = decimal.NewFromInt(100)
	completedLow   = decimal.RequireFromString("0.95")
	completedHigh  = decimal.RequireFromString("1.05")
	coherenceLimit = decimal.RequireFromString("0.01")
)

// Percentage returns part / whole * 100 rounded to two decimals.
// A zero whole yields 0 when part is zero too, and nil (undefined) otherwise.
func Percentage(part, whole decimal.Decimal) *decimal.Decimal {
	if whole.IsPositive() {
		p := part.Div(whole).Mul(hundred).Round(2)
		return &p
	}
	if part.IsZero() {
		z := decimal.Zero
		return &z
	}
	return nil
}

// rowStatus grades execution against the plan with a 5% band around 100%.
func rowStatus(planned, programmed, executed decimal.Decimal) Status {
	if executed.IsZero() {
		if planned.IsPositive() || programmed.IsPositive() {
			return StatusInProgress
		}
		return StatusNotStarted
	}
	low := planned.Mul(completedLow)
	high := planned.Mul(completedHigh)
	switch {
	case executed.GreaterThanOrEqual(low) && executed.LessThanOrEqual(high):
		return StatusCompleted
	case executed.LessThan(low):
		return StatusDrifting
	default:
		return StatusInProgress
	}
}

func budgetGap(programmed, executed decimal.Decimal) *decimal.Decimal {
	if programmed.IsZero() {
		return nil
	}
	gap := executed.Sub(programmed)
	return &gap
}

func programGap(planned, budget decimal.Decimal, fallback, hasComponents, hasPlanned bool) ProgramGap {
	if fallback {
		return ProgramGap{Delta: decimal.Zero, Ratio: decimal.Zero, Coherent: true}
	}
	if !hasComponents && !hasPlanned {
		return ProgramGap{Delta: decimal.Zero, Ratio: decimal.Zero, Coherent: false}
	}
	delta := planned.Sub(budget)
	ratio := delta.Abs().Div(decimal.Max(decimal.NewFromInt(1), budget))
	return ProgramGap{
		Delta:    delta,
		Ratio:    ratio,
		Coherent: ratio.LessThanOrEqual(coherenceLimit),
	}
}

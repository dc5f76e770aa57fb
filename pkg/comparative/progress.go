package comparative

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrOvershoot = errors.New("realised quantity exceeds planned quantity beyond tolerance")

// OvershootTolerance is the share of the planned quantity that may be exceeded before a new
// realisation is refused.
var OvershootTolerance = decimal.RequireFromString("0.10")

// Progress is the realisation state of one planned line, computed from the executed lines linked to it.
type Progress struct {
	PlannedLineId string
	ComponentId   string
	Year          int
	Unit          string
	Planned       decimal.Decimal
	Realised      decimal.Decimal
	Remaining     decimal.Decimal
	Rate          int
	Records       int
}

// PlannedProgress returns one Progress per planned line, in input order.
func PlannedProgress(planned []PlannedLine, executed []ExecutedLine) []Progress {
	linked := make(map[string][]ExecutedLine)
	for _, e := range executed {
		if e.PlannedLineId != "" {
			linked[e.PlannedLineId] = append(linked[e.PlannedLineId], e)
		}
	}

	progress := make([]Progress, 0, len(planned))
	for _, p := range planned {
		realised := decimal.Zero
		for _, e := range linked[p.Id] {
			realised = realised.Add(e.QuantityIn(p.Unit))
		}
		rate := 0
		if p.Quantity.IsPositive() {
			rate = int(realised.Div(p.Quantity).Mul(hundred).Round(0).IntPart())
		}
		progress = append(progress, Progress{
			PlannedLineId: p.Id,
			ComponentId:   p.ComponentId,
			Year:          p.Year,
			Unit:          p.Unit,
			Planned:       p.Quantity,
			Realised:      realised,
			Remaining:     decimal.Max(decimal.Zero, p.Quantity.Sub(realised)),
			Rate:          rate,
			Records:       len(linked[p.Id]),
		})
	}
	return progress
}

// CheckOvershoot validates adding a realisation to the progress. It returns ErrOvershoot when the new
// cumulative figure goes past the planned quantity plus tolerance, and warn=true whenever it goes
// past the planned quantity at all.
func CheckOvershoot(p Progress, addition decimal.Decimal) (warn bool, err error) {
	cumul := p.Realised.Add(addition)
	threshold := p.Planned.Mul(decimal.NewFromInt(1).Add(OvershootTolerance))
	if cumul.GreaterThan(threshold) {
		return true, fmt.Errorf("%w: %s %s for %s %s planned", ErrOvershoot, cumul.StringFixed(2), p.Unit, p.Planned.String(), p.Unit)
	}
	return cumul.GreaterThan(p.Planned), nil
}

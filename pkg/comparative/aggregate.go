package comparative

import (
	"cmp"
	"slices"
	"strings"
)

// Option configures ComputeAggregates.
type Option func(*options)

type options struct {
	componentBudgetFallback bool
	alerts                  []Alert
}

// WithComponentBudgetFallback uses the component budget and quantity as the planned figures
// when the input holds no planned line at all.
func WithComponentBudgetFallback() Option {
	return func(o *options) {
		o.componentBudgetFallback = true
	}
}

// WithAlerts attaches the ids of open alerts matching each row.
func WithAlerts(alerts []Alert) Option {
	return func(o *options) {
		o.alerts = alerts
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ComputeAggregates builds one comparative row per (component, zone, year) key of the filtered
// components and sums the planned, programmed and executed lines attached to each key.
// Lines that cannot be attached are returned as orphans, independently of the filters.
// Inputs are never modified; nil collections are treated as empty.
func ComputeAggregates(
	components []Component,
	planned []PlannedLine,
	programmed []ProgrammedLine,
	executed []ExecutedLine,
	filters Filters,
	opts ...Option,
) Result {
	o := applyOptions(opts)
	p := newPredicate(filters)
	res := newResolver(components)

	rows := make(map[Key]*Row)
	for _, c := range components {
		if !p.matchComponent(c) {
			continue
		}
		k := componentKey(c)
		row, ok := rows[k]
		if !ok {
			row = &Row{
				Key:        k,
				ProgramId:  c.ProgramId,
				ActionType: NormalizeActionType(c.ActionType),
				Label:      c.Label,
				Zone:       strings.TrimSpace(c.Zone),
				Year:       c.Year,
				Unit:       c.Unit,
			}
			rows[k] = row
		}
		row.Budget = row.Budget.Add(c.Budget)
		row.ComponentQuantity = row.ComponentQuantity.Add(c.Quantity)
	}

	fallback := o.componentBudgetFallback && len(planned) == 0 && len(components) > 0

	for _, l := range planned {
		r := res.resolvePlanned(l)
		if row := attach(rows, p, r); row != nil {
			row.PlannedQuantity = row.PlannedQuantity.Add(l.Quantity)
			row.PlannedAmount = row.PlannedAmount.Add(l.Amount)
		}
	}
	for _, l := range programmed {
		r := res.resolveProgrammed(l)
		if row := attach(rows, p, r); row != nil {
			row.ProgrammedQuantity = row.ProgrammedQuantity.Add(l.Quantity)
			row.ProgrammedAmount = row.ProgrammedAmount.Add(l.Amount)
		}
	}
	for _, l := range executed {
		r := res.resolveExecuted(l)
		if row := attach(rows, p, r); row != nil {
			row.ExecutedQuantity = row.ExecutedQuantity.Add(l.QuantityIn(row.Unit))
			row.ExecutedAmount = row.ExecutedAmount.Add(l.Cost)
		}
	}

	result := Result{
		Rows:    make([]Row, 0, len(rows)),
		Orphans: res.orphans,
	}
	if result.Orphans == nil {
		result.Orphans = []Orphan{}
	}

	for _, row := range rows {
		if fallback {
			row.PlannedAmount = row.Budget
			row.PlannedQuantity = row.ComponentQuantity
		}
		finishRow(row, o.alerts)
		result.Rows = append(result.Rows, *row)
	}
	slices.SortFunc(result.Rows, func(a, b Row) int {
		return cmp.Or(
			cmp.Compare(a.Year, b.Year),
			strings.Compare(a.Key.Zone, b.Key.Zone),
			strings.Compare(a.Key.ComponentId, b.Key.ComponentId),
		)
	})

	result.Totals = computeTotals(result.Rows, fallback, len(components) > 0, len(planned) > 0)
	result.Alerts = GenerateAlerts(result.Rows)
	return result
}

func attach(rows map[Key]*Row, p predicate, r resolution) *Row {
	if !r.ok() || !p.matchKey(r.key.Zone, r.key.Year) {
		return nil
	}
	return rows[r.key]
}

func finishRow(row *Row, alerts []Alert) {
	row.ExecutionRate = Percentage(row.ExecutedAmount, row.PlannedAmount)
	row.ProgrammedRate = Percentage(row.ExecutedAmount, row.ProgrammedAmount)
	row.Unplanned = row.ExecutionRate == nil
	row.BudgetGap = budgetGap(row.ProgrammedAmount, row.ExecutedAmount)
	row.Status = rowStatus(row.PlannedAmount, row.ProgrammedAmount, row.ExecutedAmount)
	row.AlertIds = matchAlerts(*row, alerts)
}

func computeTotals(rows []Row, fallback, hasComponents, hasPlanned bool) Totals {
	t := Totals{Rows: len(rows), UsesFallback: fallback}
	for _, row := range rows {
		t.ComponentBudget = t.ComponentBudget.Add(row.Budget)
		t.PlannedQuantity = t.PlannedQuantity.Add(row.PlannedQuantity)
		t.PlannedAmount = t.PlannedAmount.Add(row.PlannedAmount)
		t.ProgrammedQuantity = t.ProgrammedQuantity.Add(row.ProgrammedQuantity)
		t.ProgrammedAmount = t.ProgrammedAmount.Add(row.ProgrammedAmount)
		t.ExecutedQuantity = t.ExecutedQuantity.Add(row.ExecutedQuantity)
		t.ExecutedAmount = t.ExecutedAmount.Add(row.ExecutedAmount)
	}
	t.ExecutionRate = Percentage(t.ExecutedAmount, t.PlannedAmount)
	t.ProgrammedRate = Percentage(t.ExecutedAmount, t.ProgrammedAmount)
	t.ProgramGap = programGap(t.PlannedAmount, t.ComponentBudget, fallback, hasComponents, hasPlanned)
	return t
}

func matchAlerts(row Row, alerts []Alert) []string {
	ids := []string{}
	for _, a := range alerts {
		if isResolved(a.Status) {
			continue
		}
		if z := normalizeZone(a.Zone); z != "" && z != row.Key.Zone {
			continue
		}
		if a.Year != 0 && a.Year != row.Year {
			continue
		}
		if a.ActionType != "" && !strings.EqualFold(NormalizeActionType(a.ActionType), row.ActionType) {
			continue
		}
		ids = append(ids, a.Id)
	}
	return ids
}

func isResolved(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "resolved", "resolu", "resolue", "résolu", "résolue":
		return true
	}
	return false
}

package comparative

import "github.com/shopspring/decimal"

type AlertType string

const (
	// AlertExecutionDelay: executed quantity below the CP quantity.
	AlertExecutionDelay AlertType = "retard_execution"
	// AlertProgrammingGap: CP quantity differs from the planned (CONCERTE) quantity.
	AlertProgrammingGap AlertType = "ecart_cp_concerte"
	// AlertBudgetOverrun: executed cost above the CP amount.
	AlertBudgetOverrun AlertType = "depassement_budget"
	// AlertLowRate: financial execution below 80% of the CP amount.
	AlertLowRate AlertType = "faible_taux"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critique"
)

// GeneratedAlert is raised from the figures of one comparative row.
// Reference is the expected figure, Observed the actual one and Rate the percentage the
// thresholds were applied to.
type GeneratedAlert struct {
	Type       AlertType
	Severity   Severity
	Key        Key
	ActionType string
	Zone       string
	Year       int
	Reference  decimal.Decimal
	Observed   decimal.Decimal
	Rate       int
}

var half = decimal.RequireFromString("0.5")

// GenerateAlerts derives execution alerts from comparative rows, in row order.
func GenerateAlerts(rows []Row) []GeneratedAlert {
	alerts := []GeneratedAlert{}
	for _, row := range rows {
		raise := func(t AlertType, s Severity, reference, observed decimal.Decimal, rate int) {
			alerts = append(alerts, GeneratedAlert{
				Type:       t,
				Severity:   s,
				Key:        row.Key,
				ActionType: row.ActionType,
				Zone:       row.Zone,
				Year:       row.Year,
				Reference:  reference,
				Observed:   observed,
				Rate:       rate,
			})
		}

		cpQty, execQty := row.ProgrammedQuantity, row.ExecutedQuantity
		if cpQty.IsPositive() && execQty.LessThan(cpQty) {
			rate := roundPercent(execQty, cpQty)
			raise(AlertExecutionDelay, graded(rate < 50, rate < 80), cpQty, execQty, rate)
		}

		plannedQty := row.PlannedQuantity
		if plannedQty.IsPositive() && !cpQty.Equal(plannedQty) {
			rate := roundPercent(cpQty.Sub(plannedQty), plannedQty)
			if rate < 0 {
				rate = -rate
			}
			raise(AlertProgrammingGap, graded(rate > 30, rate > 15), plannedQty, cpQty, rate)
		}

		cpAmount, execAmount := row.ProgrammedAmount, row.ExecutedAmount
		if cpAmount.IsPositive() && execAmount.GreaterThan(cpAmount) {
			rate := roundPercent(execAmount.Sub(cpAmount), cpAmount)
			raise(AlertBudgetOverrun, graded(rate > 20, rate > 10), cpAmount, execAmount, rate)
		}

		if cpAmount.IsPositive() {
			if rate := roundPercent(execAmount, cpAmount); rate < 80 {
				raise(AlertLowRate, graded(rate < 60, true), cpAmount, execAmount, rate)
			}
		}
	}
	return alerts
}

func graded(critical, warning bool) Severity {
	switch {
	case critical:
		return SeverityCritical
	case warning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// roundPercent is part / whole * 100 rounded to the nearest integer, halves rounded up.
func roundPercent(part, whole decimal.Decimal) int {
	return int(part.Div(whole).Mul(hundred).Add(half).Floor().IntPart())
}

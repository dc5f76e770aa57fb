package report

import (
	"time"

	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/shopspring/decimal"
)

// Document is the serialisable form of a comparative result. It backs the JSON answer of the
// dashboard endpoint and every exported file.
type Document struct {
	ProgramId     string      `json:"programId" yaml:"programId"`
	ProgramCode   string      `json:"programCode" yaml:"programCode"`
	ProgramTitle  string      `json:"programTitle" yaml:"programTitle"`
	GeneratedAt   time.Time   `json:"generatedAt" yaml:"generatedAt"`
	LoadedAt      *time.Time  `json:"loadedAt,omitempty" yaml:"loadedAt,omitempty"`
	FailedSources []string    `json:"failedSources" yaml:"failedSources"`
	Retryable     bool        `json:"retryable" yaml:"retryable"`
	Rows          []RowRecord `json:"rows" yaml:"rows"`
	Totals        Totals      `json:"totals" yaml:"totals"`
	Orphans       []Orphan    `json:"orphans" yaml:"orphans"`
	Alerts        []Alert     `json:"alerts" yaml:"alerts"`
}

type RowRecord struct {
	ComponentId        string   `json:"componentId" yaml:"componentId"`
	ActionType         string   `json:"actionType" yaml:"actionType"`
	Label              string   `json:"label" yaml:"label"`
	Zone               string   `json:"zone" yaml:"zone"`
	Year               int      `json:"year" yaml:"year"`
	Unit               string   `json:"unit" yaml:"unit"`
	Budget             string   `json:"budget" yaml:"budget"`
	PlannedQuantity    string   `json:"plannedQuantity" yaml:"plannedQuantity"`
	PlannedAmount      string   `json:"plannedAmount" yaml:"plannedAmount"`
	ProgrammedQuantity string   `json:"programmedQuantity" yaml:"programmedQuantity"`
	ProgrammedAmount   string   `json:"programmedAmount" yaml:"programmedAmount"`
	ExecutedQuantity   string   `json:"executedQuantity" yaml:"executedQuantity"`
	ExecutedAmount     string   `json:"executedAmount" yaml:"executedAmount"`
	ExecutionRate      *float64 `json:"executionRate" yaml:"executionRate"`
	ProgrammedRate     *float64 `json:"programmedRate" yaml:"programmedRate"`
	BudgetGap          *string  `json:"budgetGap" yaml:"budgetGap"`
	Unplanned          bool     `json:"unplanned" yaml:"unplanned"`
	Status             string   `json:"status" yaml:"status"`
	AlertIds           []string `json:"alertIds" yaml:"alertIds"`
}

type Totals struct {
	Rows               int      `json:"rows" yaml:"rows"`
	ComponentBudget    string   `json:"componentBudget" yaml:"componentBudget"`
	PlannedQuantity    string   `json:"plannedQuantity" yaml:"plannedQuantity"`
	PlannedAmount      string   `json:"plannedAmount" yaml:"plannedAmount"`
	ProgrammedQuantity string   `json:"programmedQuantity" yaml:"programmedQuantity"`
	ProgrammedAmount   string   `json:"programmedAmount" yaml:"programmedAmount"`
	ExecutedQuantity   string   `json:"executedQuantity" yaml:"executedQuantity"`
	ExecutedAmount     string   `json:"executedAmount" yaml:"executedAmount"`
	ExecutionRate      *float64 `json:"executionRate" yaml:"executionRate"`
	ProgrammedRate     *float64 `json:"programmedRate" yaml:"programmedRate"`
	ProgramGap         string   `json:"programGap" yaml:"programGap"`
	ProgramGapRatio    float64  `json:"programGapRatio" yaml:"programGapRatio"`
	Coherent           bool     `json:"coherent" yaml:"coherent"`
	UsesFallback       bool     `json:"usesFallback" yaml:"usesFallback"`
}

type Orphan struct {
	Kind      string `json:"kind" yaml:"kind"`
	LineId    string `json:"lineId" yaml:"lineId"`
	Reason    string `json:"reason" yaml:"reason"`
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// Alert is an execution alert generated from one row.
type Alert struct {
	Type        string `json:"type" yaml:"type"`
	Severity    string `json:"severity" yaml:"severity"`
	ComponentId string `json:"componentId" yaml:"componentId"`
	ActionType  string `json:"actionType" yaml:"actionType"`
	Zone        string `json:"zone" yaml:"zone"`
	Year        int    `json:"year" yaml:"year"`
	Reference   string `json:"reference" yaml:"reference"`
	Observed    string `json:"observed" yaml:"observed"`
	Rate        int    `json:"rate" yaml:"rate"`
}

// Header identifies the programme a document is built for.
type Header struct {
	ProgramId    string
	ProgramCode  string
	ProgramTitle string
	LoadedAt     time.Time
	Failed       []string
}

func NewDocument(h Header, result comparative.Result, generatedAt time.Time) Document {
	doc := Document{
		ProgramId:     h.ProgramId,
		ProgramCode:   h.ProgramCode,
		ProgramTitle:  h.ProgramTitle,
		GeneratedAt:   generatedAt,
		FailedSources: append(make([]string, 0, len(h.Failed)), h.Failed...),
		Retryable:     len(h.Failed) > 0,
		Rows:          make([]RowRecord, 0, len(result.Rows)),
		Orphans:       make([]Orphan, 0, len(result.Orphans)),
		Alerts:        make([]Alert, 0, len(result.Alerts)),
	}
	if !h.LoadedAt.IsZero() {
		loadedAt := h.LoadedAt
		doc.LoadedAt = &loadedAt
	}

	for _, r := range result.Rows {
		rec := RowRecord{
			ComponentId:        r.Key.ComponentId,
			ActionType:         r.ActionType,
			Label:              r.Label,
			Zone:               r.Zone,
			Year:               r.Year,
			Unit:               r.Unit,
			Budget:             amount(r.Budget),
			PlannedQuantity:    quantity(r.PlannedQuantity),
			PlannedAmount:      amount(r.PlannedAmount),
			ProgrammedQuantity: quantity(r.ProgrammedQuantity),
			ProgrammedAmount:   amount(r.ProgrammedAmount),
			ExecutedQuantity:   quantity(r.ExecutedQuantity),
			ExecutedAmount:     amount(r.ExecutedAmount),
			ExecutionRate:      rate(r.ExecutionRate),
			ProgrammedRate:     rate(r.ProgrammedRate),
			Unplanned:          r.Unplanned,
			Status:             string(r.Status),
			AlertIds:           append(make([]string, 0, len(r.AlertIds)), r.AlertIds...),
		}
		if r.BudgetGap != nil {
			gap := amount(*r.BudgetGap)
			rec.BudgetGap = &gap
		}
		doc.Rows = append(doc.Rows, rec)
	}

	t := result.Totals
	doc.Totals = Totals{
		Rows:               t.Rows,
		ComponentBudget:    amount(t.ComponentBudget),
		PlannedQuantity:    quantity(t.PlannedQuantity),
		PlannedAmount:      amount(t.PlannedAmount),
		ProgrammedQuantity: quantity(t.ProgrammedQuantity),
		ProgrammedAmount:   amount(t.ProgrammedAmount),
		ExecutedQuantity:   quantity(t.ExecutedQuantity),
		ExecutedAmount:     amount(t.ExecutedAmount),
		ExecutionRate:      rate(t.ExecutionRate),
		ProgrammedRate:     rate(t.ProgrammedRate),
		ProgramGap:         amount(t.ProgramGap.Delta),
		ProgramGapRatio:    t.ProgramGap.Ratio.Round(4).InexactFloat64(),
		Coherent:           t.ProgramGap.Coherent,
		UsesFallback:       t.UsesFallback,
	}

	for _, o := range result.Orphans {
		doc.Orphans = append(doc.Orphans, Orphan{
			Kind:      string(o.Kind),
			LineId:    o.LineId,
			Reason:    string(o.Reason),
			Reference: o.Reference,
		})
	}
	for _, a := range result.Alerts {
		doc.Alerts = append(doc.Alerts, Alert{
			Type:        string(a.Type),
			Severity:    string(a.Severity),
			ComponentId: a.Key.ComponentId,
			ActionType:  a.ActionType,
			Zone:        a.Zone,
			Year:        a.Year,
			Reference:   a.Reference.String(),
			Observed:    a.Observed.String(),
			Rate:        a.Rate,
		})
	}
	return doc
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func quantity(d decimal.Decimal) string {
	return d.String()
}

func rate(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// FormatRate renders a percentage for text outputs; an undefined rate reads "n/a".
func FormatRate(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return decimal.NewFromFloat(*r).StringFixed(2) + "%"
}

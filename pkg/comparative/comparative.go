package comparative

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Component is an administratively defined programme component (budget line).
type Component struct {
	Id         string
	ProgramId  string
	ActionType string
	Label      string
	Zone       string
	Year       int
	Budget     decimal.Decimal
	Quantity   decimal.Decimal
	Unit       string
}

// PlannedLine is a planned allocation entry (state CONCERTE in the relational store).
type PlannedLine struct {
	Id          string
	ComponentId string
	Zone        string
	Year        int
	Quantity    decimal.Decimal
	Amount      decimal.Decimal
	Unit        string
}

// ProgrammedLine is an annually committed entry (CP).
type ProgrammedLine struct {
	Id            string
	ComponentId   string
	PlannedLineId string
	Zone          string
	Year          int
	Quantity      decimal.Decimal
	Amount        decimal.Decimal
	CpReference   string
}

// ExecutedLine is a realised action record coming from the hosted store.
type ExecutedLine struct {
	Id               string
	ComponentId      string
	PlannedLineId    string
	ProgrammedLineId string
	Zone             string
	Year             int

	// Quantity is the realised surface (ha); Length is the realised length (km) for linear works.
	Quantity   decimal.Decimal
	Length     decimal.Decimal
	Unit       string
	Cost       decimal.Decimal
	Status     string
	RealisedAt *time.Time
}

// QuantityIn returns the realised figure matching unit: the length for "km", the quantity otherwise.
func (l ExecutedLine) QuantityIn(unit string) decimal.Decimal {
	if strings.EqualFold(strings.TrimSpace(unit), "km") {
		return l.Length
	}
	return l.Quantity
}

// Alert is a field alert raised against a zone. Empty Zone/ActionType and a zero Year match any row.
type Alert struct {
	Id         string
	Zone       string
	ActionType string
	Year       int
	Status     string
}

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDrifting   Status = "drifting"
)

// Key identifies one comparative row. Zone is kept normalised (trimmed, lower case).
type Key struct {
	ComponentId string
	Zone        string
	Year        int
}

type Row struct {
	Key        Key
	ProgramId  string
	ActionType string
	Label      string
	Zone       string
	Year       int
	Unit       string
	Budget     decimal.Decimal

	// ComponentQuantity is the surface or quantity declared on the component itself.
	ComponentQuantity  decimal.Decimal
	PlannedQuantity    decimal.Decimal
	PlannedAmount      decimal.Decimal
	ProgrammedQuantity decimal.Decimal
	ProgrammedAmount   decimal.Decimal
	ExecutedQuantity   decimal.Decimal
	ExecutedAmount     decimal.Decimal

	// ExecutionRate is executed / planned in percent. Nil when nothing was planned but something was executed.
	ExecutionRate *decimal.Decimal
	// ProgrammedRate is executed / programmed (CP) in percent, same nil convention.
	ProgrammedRate *decimal.Decimal
	// BudgetGap is executed - programmed, nil when the row has no CP amount.
	BudgetGap *decimal.Decimal
	Unplanned bool
	Status    Status
	AlertIds  []string
}

// ProgramGap compares the operational planned total with the administrative component budget.
type ProgramGap struct {
	Delta    decimal.Decimal
	Ratio    decimal.Decimal
	Coherent bool
}

type Totals struct {
	Rows               int
	ComponentBudget    decimal.Decimal
	PlannedQuantity    decimal.Decimal
	PlannedAmount      decimal.Decimal
	ProgrammedQuantity decimal.Decimal
	ProgrammedAmount   decimal.Decimal
	ExecutedQuantity   decimal.Decimal
	ExecutedAmount     decimal.Decimal
	ExecutionRate      *decimal.Decimal
	ProgrammedRate     *decimal.Decimal
	ProgramGap         ProgramGap
	UsesFallback       bool
}

type LineKind string

const (
	KindPlanned    LineKind = "planned"
	KindProgrammed LineKind = "programmed"
	KindExecuted   LineKind = "executed"
)

type OrphanReason string

const (
	OrphanMissingLink      OrphanReason = "missing_link"
	OrphanUnknownParent    OrphanReason = "unknown_parent"
	OrphanUnknownComponent OrphanReason = "unknown_component"
	OrphanKeyMismatch      OrphanReason = "key_mismatch"
	OrphanAmbiguousKey     OrphanReason = "ambiguous_key"
)

// Orphan is a line that could not be attached to any component row.
type Orphan struct {
	Kind      LineKind
	LineId    string
	Reason    OrphanReason
	Reference string
}

type Result struct {
	Rows    []Row
	Totals  Totals
	Orphans []Orphan
	// Alerts are generated from the filtered rows.
	Alerts []GeneratedAlert
}

package program

import (
	"time"

	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type State string

const (
	StatePlanned    State = "CONCERTE"
	StateProgrammed State = "CP"
	StateExecuted   State = "EXECUTE"
)

// Program is a PDFCP: a multi-year forestry programme agreed with a commune.
type Program struct {
	Id        uuid.UUID
	Code      string
	Title     string
	Region    string
	Province  string
	Commune   string
	YearStart int
	YearEnd   int
	CreatedAt time.Time
}

type Component struct {
	Id         uuid.UUID
	ProgramId  uuid.UUID
	ActionType string
	Label      string
	Zone       string
	Year       int
	Budget     decimal.Decimal
	Quantity   decimal.Decimal
	Unit       string
}

// Line is a planned (CONCERTE) or programmed (CP) action of a programme.
type Line struct {
	Id            uuid.UUID
	ProgramId     uuid.UUID
	ComponentId   *uuid.UUID
	PlannedLineId *uuid.UUID
	State         State
	ActionType    string
	Zone          string
	Year          int
	Quantity      decimal.Decimal
	Amount        decimal.Decimal
	Unit          string
	CpReference   string
	UpdatedBy     string
	UpdatedAt     time.Time
}

type LineFilter struct {
	States []State
	Years  []int
	Zones  []string
}

func (c Component) ToComparative() comparative.Component {
	return comparative.Component{
		Id:         c.Id.String(),
		ProgramId:  c.ProgramId.String(),
		ActionType: c.ActionType,
		Label:      c.Label,
		Zone:       c.Zone,
		Year:       c.Year,
		Budget:     c.Budget,
		Quantity:   c.Quantity,
		Unit:       c.Unit,
	}
}

func (l Line) ToPlanned() comparative.PlannedLine {
	return comparative.PlannedLine{
		Id:          l.Id.String(),
		ComponentId: idString(l.ComponentId),
		Zone:        l.Zone,
		Year:        l.Year,
		Quantity:    l.Quantity,
		Amount:      l.Amount,
		Unit:        l.Unit,
	}
}

func (l Line) ToProgrammed() comparative.ProgrammedLine {
	return comparative.ProgrammedLine{
		Id:            l.Id.String(),
		ComponentId:   idString(l.ComponentId),
		PlannedLineId: idString(l.PlannedLineId),
		Zone:          l.Zone,
		Year:          l.Year,
		Quantity:      l.Quantity,
		Amount:        l.Amount,
		CpReference:   l.CpReference,
	}
}

// SplitLines separates the lines of a programme by state and converts them for aggregation.
func SplitLines(lines []Line) ([]comparative.PlannedLine, []comparative.ProgrammedLine) {
	planned := make([]comparative.PlannedLine, 0, len(lines))
	programmed := make([]comparative.ProgrammedLine, 0, len(lines))
	for _, l := range lines {
		switch l.State {
		case StatePlanned:
			planned = append(planned, l.ToPlanned())
		case StateProgrammed:
			programmed = append(programmed, l.ToProgrammed())
		}
	}
	return planned, programmed
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

package program

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anef/pdfcp/internal/event_bus"
	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/anef/pdfcp/pkg/user"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrForbidden          = errors.New("user is not allowed to edit programme lines")
	ErrInvalidState       = errors.New("only CONCERTE and CP lines can be written")
	ErrUnknownComponent   = errors.New("component does not belong to the programme")
	ErrUnknownPlannedLine = errors.New("planned line does not belong to the programme")
	ErrInvalidLine        = errors.New("invalid line")
)

type Service interface {
	ListPrograms(ctx context.Context) ([]Program, error)
	GetProgram(ctx context.Context, programId uuid.UUID) (Program, error)
	CreateProgram(ctx context.Context, program Program, components []Component) (Program, error)
	ListComponents(ctx context.Context, programId uuid.UUID) ([]Component, error)
	ListLines(ctx context.Context, programId uuid.UUID, filter LineFilter) ([]Line, error)
	ListPlannedLines(ctx context.Context, programId uuid.UUID) ([]Line, error)
	ListProgrammedLines(ctx context.Context, programId uuid.UUID) ([]Line, error)
	CreateLine(ctx context.Context, line Line) (Line, error)
	UpdateLine(ctx context.Context, line Line) (Line, error)
	DeleteLine(ctx context.Context, programId uuid.UUID, lineId uuid.UUID) (bool, error)
}

type ServiceImpl struct {
	repo     Repository
	eventBus *event_bus.EventBus
}

func NewProgramService(repo Repository, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, eventBus: eventBus}
}

func (s *ServiceImpl) ListPrograms(ctx context.Context) ([]Program, error) {
	return s.repo.ListPrograms(ctx)
}

func (s *ServiceImpl) GetProgram(ctx context.Context, programId uuid.UUID) (Program, error) {
	return s.repo.GetProgram(ctx, programId)
}

func (s *ServiceImpl) CreateProgram(ctx context.Context, program Program, components []Component) (Program, error) {
	if _, err := editor(ctx); err != nil {
		return Program{}, err
	}
	if program.YearStart != 0 && program.YearEnd != 0 && program.YearStart > program.YearEnd {
		return Program{}, fmt.Errorf("%w: year start %d after year end %d", ErrInvalidLine, program.YearStart, program.YearEnd)
	}
	if program.Id == uuid.Nil {
		program.Id = uuid.New()
	}
	for i := range components {
		if components[i].Id == uuid.Nil {
			components[i].Id = uuid.New()
		}
		components[i].ProgramId = program.Id
		warnUnknownActionType(components[i].ActionType)
	}

	created, err := s.repo.CreateProgram(ctx, program, components)
	if err != nil {
		return Program{}, err
	}
	log.Infof("Created programme %s (%s) with %d components", created.Code, created.Id, len(components))

	err = s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.ProgramChangedEvent, event_bus.ProgramChanged{
		ProgramId: created.Id,
		Operation: event_bus.OperationCreated,
	}))
	if err != nil {
		log.Errorf("failed to publish programme created event: %v", err)
		return Program{}, err
	}
	return created, nil
}

func (s *ServiceImpl) ListComponents(ctx context.Context, programId uuid.UUID) ([]Component, error) {
	return s.repo.ListComponents(ctx, programId)
}

func (s *ServiceImpl) ListLines(ctx context.Context, programId uuid.UUID, filter LineFilter) ([]Line, error) {
	return s.repo.ListLines(ctx, programId, filter)
}

func (s *ServiceImpl) ListPlannedLines(ctx context.Context, programId uuid.UUID) ([]Line, error) {
	return s.repo.ListLines(ctx, programId, LineFilter{States: []State{StatePlanned}})
}

func (s *ServiceImpl) ListProgrammedLines(ctx context.Context, programId uuid.UUID) ([]Line, error) {
	return s.repo.ListLines(ctx, programId, LineFilter{States: []State{StateProgrammed}})
}

func (s *ServiceImpl) CreateLine(ctx context.Context, line Line) (Line, error) {
	u, err := editor(ctx)
	if err != nil {
		return Line{}, err
	}
	if err := s.validateLine(ctx, line); err != nil {
		return Line{}, err
	}
	if line.Id == uuid.Nil {
		line.Id = uuid.New()
	}
	line.UpdatedBy = u.Id

	stored, err := s.repo.StoreLine(ctx, line)
	if err != nil {
		return Line{}, err
	}
	if err := s.publishLineChanged(ctx, stored, event_bus.OperationCreated, u.Id); err != nil {
		return Line{}, err
	}
	return stored, nil
}

func (s *ServiceImpl) UpdateLine(ctx context.Context, line Line) (Line, error) {
	u, err := editor(ctx)
	if err != nil {
		return Line{}, err
	}
	if _, err := s.repo.GetLine(ctx, line.ProgramId, line.Id); err != nil {
		return Line{}, err
	}
	if err := s.validateLine(ctx, line); err != nil {
		return Line{}, err
	}
	line.UpdatedBy = u.Id

	updated, err := s.repo.UpdateLine(ctx, line)
	if err != nil {
		return Line{}, err
	}
	if err := s.publishLineChanged(ctx, updated, event_bus.OperationUpdated, u.Id); err != nil {
		return Line{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) DeleteLine(ctx context.Context, programId uuid.UUID, lineId uuid.UUID) (bool, error) {
	u, err := editor(ctx)
	if err != nil {
		return false, err
	}
	line, err := s.repo.GetLine(ctx, programId, lineId)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return false, nil
		}
		return false, err
	}

	deleted, err := s.repo.DeleteLine(ctx, programId, lineId)
	if err != nil {
		return false, err
	}
	if !deleted {
		log.Warnf("line %s of programme %s was not deleted", lineId, programId)
		return false, nil
	}
	if err := s.publishLineChanged(ctx, line, event_bus.OperationDeleted, u.Id); err != nil {
		return false, err
	}
	return true, nil
}

// validateLine checks the state, the references and the amounts of a line before it is written.
func (s *ServiceImpl) validateLine(ctx context.Context, line Line) error {
	if line.State != StatePlanned && line.State != StateProgrammed {
		return fmt.Errorf("%w: %q", ErrInvalidState, line.State)
	}
	if line.Quantity.IsNegative() || line.Amount.IsNegative() {
		return fmt.Errorf("%w: quantity and amount must not be negative", ErrInvalidLine)
	}
	if line.State == StatePlanned && line.PlannedLineId != nil {
		return fmt.Errorf("%w: a planned line cannot reference another planned line", ErrInvalidLine)
	}
	if line.State == StatePlanned && line.ComponentId == nil {
		return fmt.Errorf("%w: a planned line must reference a component", ErrInvalidLine)
	}
	if line.ComponentId == nil && line.PlannedLineId == nil {
		return fmt.Errorf("%w: a programmed line must reference a component or a planned line", ErrInvalidLine)
	}

	program, err := s.repo.GetProgram(ctx, line.ProgramId)
	if err != nil {
		return err
	}
	if program.YearStart != 0 && program.YearEnd != 0 && (line.Year < program.YearStart || line.Year > program.YearEnd) {
		return fmt.Errorf("%w: year %d outside programme %d-%d", ErrInvalidLine, line.Year, program.YearStart, program.YearEnd)
	}

	components, err := s.repo.ListComponents(ctx, line.ProgramId)
	if err != nil {
		return err
	}
	var component *Component
	if line.ComponentId != nil {
		if component = findComponent(components, *line.ComponentId); component == nil {
			return fmt.Errorf("%w: %s", ErrUnknownComponent, *line.ComponentId)
		}
	}

	if line.PlannedLineId != nil {
		parent, err := s.repo.GetLine(ctx, line.ProgramId, *line.PlannedLineId)
		if err != nil {
			if errors.Is(err, ErrLineNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownPlannedLine, *line.PlannedLineId)
			}
			return err
		}
		if parent.State != StatePlanned {
			return fmt.Errorf("%w: %s is in state %s", ErrUnknownPlannedLine, parent.Id, parent.State)
		}
		if component == nil && parent.ComponentId != nil {
			component = findComponent(components, *parent.ComponentId)
		}
	}

	// zone and year, when given, must match the component key
	if component != nil {
		if zone := strings.TrimSpace(line.Zone); zone != "" && !strings.EqualFold(zone, strings.TrimSpace(component.Zone)) {
			return fmt.Errorf("%w: zone %q does not match component zone %q", ErrInvalidLine, line.Zone, component.Zone)
		}
		if line.Year != 0 && line.Year != component.Year {
			return fmt.Errorf("%w: year %d does not match component year %d", ErrInvalidLine, line.Year, component.Year)
		}
	}
	warnUnknownActionType(line.ActionType)
	return nil
}

func warnUnknownActionType(actionType string) {
	if actionType != "" && !comparative.IsKnownActionType(actionType) {
		log.Warnf("action type %q is not in the catalogue", actionType)
	}
}

func (s *ServiceImpl) publishLineChanged(ctx context.Context, line Line, op event_bus.Operation, userId string) error {
	// The line is already written when this fails; subscribers only drop cached snapshots,
	// so a later read after the TTL still sees the change.
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.LineChangedEvent, event_bus.LineChanged{
		ProgramId: line.ProgramId,
		LineId:    line.Id,
		State:     string(line.State),
		Operation: op,
		UserId:    userId,
	}))
	if err != nil {
		log.Errorf("failed to publish line %s event: %v", op, err)
		return err
	}
	return nil
}

func editor(ctx context.Context) (user.User, error) {
	u, err := user.CurrentUser(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if !u.CanEdit() {
		return user.User{}, ErrForbidden
	}
	return u, nil
}

func findComponent(components []Component, id uuid.UUID) *Component {
	for i := range components {
		if components[i].Id == id {
			return &components[i]
		}
	}
	return nil
}

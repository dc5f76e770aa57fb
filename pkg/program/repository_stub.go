package program

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RepositoryStub is an in-memory Repository for service and handler tests.
type RepositoryStub struct {
	mu         sync.Mutex
	programs   map[uuid.UUID]Program
	components map[uuid.UUID][]Component
	lines      map[uuid.UUID]Line
	Err        error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		programs:   map[uuid.UUID]Program{},
		components: map[uuid.UUID][]Component{},
		lines:      map[uuid.UUID]Line{},
	}
}

func (s *RepositoryStub) ListPrograms(ctx context.Context) ([]Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	programs := make([]Program, 0, len(s.programs))
	for _, p := range s.programs {
		programs = append(programs, p)
	}
	slices.SortFunc(programs, func(a, b Program) int {
		if a.Code < b.Code {
			return -1
		}
		if a.Code > b.Code {
			return 1
		}
		return 0
	})
	return programs, nil
}

func (s *RepositoryStub) GetProgram(ctx context.Context, programId uuid.UUID) (Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Program{}, s.Err
	}
	p, ok := s.programs[programId]
	if !ok {
		return Program{}, ErrProgramNotFound
	}
	return p, nil
}

func (s *RepositoryStub) CreateProgram(ctx context.Context, program Program, components []Component) (Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Program{}, s.Err
	}
	program.CreatedAt = time.Now()
	s.programs[program.Id] = program
	for _, c := range components {
		c.ProgramId = program.Id
		s.components[program.Id] = append(s.components[program.Id], c)
	}
	return program, nil
}

func (s *RepositoryStub) ListComponents(ctx context.Context, programId uuid.UUID) ([]Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return slices.Clone(s.components[programId]), nil
}

func (s *RepositoryStub) ListLines(ctx context.Context, programId uuid.UUID, filter LineFilter) ([]Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	lines := make([]Line, 0)
	for _, l := range s.lines {
		if l.ProgramId != programId {
			continue
		}
		if len(filter.States) > 0 && !slices.Contains(filter.States, l.State) {
			continue
		}
		if len(filter.Years) > 0 && !slices.Contains(filter.Years, l.Year) {
			continue
		}
		if len(filter.Zones) > 0 && !slices.Contains(filter.Zones, l.Zone) {
			continue
		}
		lines = append(lines, l)
	}
	slices.SortFunc(lines, func(a, b Line) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return compareStrings(a.Id.String(), b.Id.String())
	})
	return lines, nil
}

func (s *RepositoryStub) GetLine(ctx context.Context, programId uuid.UUID, lineId uuid.UUID) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineId]
	if !ok || l.ProgramId != programId {
		return Line{}, ErrLineNotFound
	}
	return l, nil
}

func (s *RepositoryStub) StoreLine(ctx context.Context, line Line) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Line{}, s.Err
	}
	line.UpdatedAt = time.Now()
	s.lines[line.Id] = line
	return line, nil
}

func (s *RepositoryStub) UpdateLine(ctx context.Context, line Line) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Line{}, s.Err
	}
	existing, ok := s.lines[line.Id]
	if !ok || existing.ProgramId != line.ProgramId {
		return Line{}, ErrLineNotFound
	}
	line.UpdatedAt = time.Now()
	s.lines[line.Id] = line
	return line, nil
}

func (s *RepositoryStub) DeleteLine(ctx context.Context, programId uuid.UUID, lineId uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	l, ok := s.lines[lineId]
	if !ok || l.ProgramId != programId {
		return false, nil
	}
	delete(s.lines, lineId)
	return true, nil
}

func (s *RepositoryStub) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs = map[uuid.UUID]Program{}
	s.components = map[uuid.UUID][]Component{}
	s.lines = map[uuid.UUID]Line{}
	s.Err = nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

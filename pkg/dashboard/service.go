package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/anef/pdfcp/internal/config"
	"github.com/anef/pdfcp/internal/event_bus"
	"github.com/anef/pdfcp/internal/utils"
	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/anef/pdfcp/pkg/execution"
	"github.com/anef/pdfcp/pkg/program"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrSourceUnavailable is returned when the components of a programme cannot be loaded.
// Without components no row can be built, so the view is not computed at all.
var ErrSourceUnavailable = errors.New("programme components unavailable")

type Source string

const (
	SourceComponents   Source = "components"
	SourcePlanned      Source = "planned"
	SourceProgrammed   Source = "programmed"
	SourceExecuted     Source = "executed"
	SourceRealisations Source = "realisations"
	SourceAlerts       Source = "alerts"
)

// Snapshot holds the raw collections of one programme as loaded from both stores.
type Snapshot struct {
	Program      program.Program
	Components   []comparative.Component
	Planned      []comparative.PlannedLine
	Programmed   []comparative.ProgrammedLine
	Executed     []comparative.ExecutedLine
	Realisations []comparative.ExecutedLine
	Alerts       []comparative.Alert
	Failed       []Source
	LoadedAt     time.Time
}

// View is the comparative result for one request, with the load metadata of the snapshot it was computed on.
type View struct {
	Program  program.Program
	Result   comparative.Result
	Failed   []Source
	LoadedAt time.Time
}

type ProgressView struct {
	Program  program.Program
	Progress []comparative.Progress
	Failed   []Source
	LoadedAt time.Time
}

type Service interface {
	Comparative(ctx context.Context, programId uuid.UUID, filters comparative.Filters) (View, error)
	Progress(ctx context.Context, programId uuid.UUID) (ProgressView, error)
	Invalidate(programId uuid.UUID)
}

type ServiceImpl struct {
	programs program.Service
	hosted   execution.Client
	clock    utils.Clock
	ttl      time.Duration
	fallback bool

	mu          sync.Mutex
	snapshots   map[uuid.UUID]*Snapshot
	generations map[uuid.UUID]uint64
	group       singleflight.Group
}

func NewService(
	programs program.Service,
	hosted execution.Client,
	bus *event_bus.EventBus,
	clock utils.Clock,
	cfg config.Dashboard,
) *ServiceImpl {
	s := &ServiceImpl{
		programs:    programs,
		hosted:      hosted,
		clock:       clock,
		ttl:         cfg.SnapshotTTL,
		fallback:    cfg.ComponentBudgetFallback,
		snapshots:   make(map[uuid.UUID]*Snapshot),
		generations: make(map[uuid.UUID]uint64),
	}
	event_bus.SubscribeTyped(bus, event_bus.LineChangedEvent, func(e event_bus.EventT[event_bus.LineChanged]) error {
		s.Invalidate(e.Data.ProgramId)
		return nil
	})
	event_bus.SubscribeTyped(bus, event_bus.ProgramChangedEvent, func(e event_bus.EventT[event_bus.ProgramChanged]) error {
		s.Invalidate(e.Data.ProgramId)
		return nil
	})
	return s
}

func (s *ServiceImpl) Comparative(ctx context.Context, programId uuid.UUID, filters comparative.Filters) (View, error) {
	snap, err := s.snapshot(ctx, programId)
	if err != nil {
		return View{}, err
	}

	opts := []comparative.Option{comparative.WithAlerts(snap.Alerts)}
	// an unloaded plan is not an empty plan
	if s.fallback && !slices.Contains(snap.Failed, SourcePlanned) {
		opts = append(opts, comparative.WithComponentBudgetFallback())
	}
	result := comparative.ComputeAggregates(snap.Components, snap.Planned, snap.Programmed, snap.Executed, filters, opts...)
	if len(result.Orphans) > 0 {
		log.Warnf("programme %s: %d lines could not be attached to a component", programId, len(result.Orphans))
	}

	return View{
		Program:  snap.Program,
		Result:   result,
		Failed:   snap.Failed,
		LoadedAt: snap.LoadedAt,
	}, nil
}

func (s *ServiceImpl) Progress(ctx context.Context, programId uuid.UUID) (ProgressView, error) {
	snap, err := s.snapshot(ctx, programId)
	if err != nil {
		return ProgressView{}, err
	}
	return ProgressView{
		Program:  snap.Program,
		Progress: comparative.PlannedProgress(snap.Planned, snap.Realisations),
		Failed:   snap.Failed,
		LoadedAt: snap.LoadedAt,
	}, nil
}

// Invalidate drops the cached snapshot of a programme. A load already running for it
// completes for its callers but is not stored.
func (s *ServiceImpl) Invalidate(programId uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, programId)
	s.generations[programId]++
	s.group.Forget(programId.String())
	log.Debugf("Invalidated dashboard snapshot of programme %s", programId)
}

func (s *ServiceImpl) snapshot(ctx context.Context, programId uuid.UUID) (*Snapshot, error) {
	s.mu.Lock()
	cached, ok := s.snapshots[programId]
	s.mu.Unlock()
	if ok && s.clock.Now().Sub(cached.LoadedAt) < s.ttl {
		log.Tracef("Serving cached snapshot of programme %s", programId)
		return cached, nil
	}

	v, err, _ := s.group.Do(programId.String(), func() (any, error) {
		s.mu.Lock()
		generation := s.generations[programId]
		s.mu.Unlock()

		// The load is shared by every waiting request, so it must not stop when the first one goes away.
		snap, err := s.load(context.WithoutCancel(ctx), programId)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		// Snapshots with failed sources are served once and reloaded on the next request.
		if s.generations[programId] == generation && len(snap.Failed) == 0 {
			s.snapshots[programId] = snap
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// load fetches the six collections of a programme concurrently. Only a component failure aborts
// the load; any other failed source is kept empty and listed in Snapshot.Failed.
func (s *ServiceImpl) load(ctx context.Context, programId uuid.UUID) (*Snapshot, error) {
	prog, err := s.programs.GetProgram(ctx, programId)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Program: prog}
	var failedMu sync.Mutex
	fail := func(source Source, err error) {
		log.Warnf("programme %s: failed to load %s: %v", programId, source, err)
		failedMu.Lock()
		snap.Failed = append(snap.Failed, source)
		failedMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	hostedId := programId.String()

	g.Go(func() error {
		components, err := s.programs.ListComponents(gctx, programId)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		snap.Components = make([]comparative.Component, 0, len(components))
		for _, c := range components {
			snap.Components = append(snap.Components, c.ToComparative())
		}
		return nil
	})
	g.Go(func() error {
		lines, err := s.programs.ListPlannedLines(gctx, programId)
		if err != nil {
			fail(SourcePlanned, err)
			return nil
		}
		snap.Planned, _ = program.SplitLines(lines)
		return nil
	})
	g.Go(func() error {
		lines, err := s.programs.ListProgrammedLines(gctx, programId)
		if err != nil {
			fail(SourceProgrammed, err)
			return nil
		}
		_, snap.Programmed = program.SplitLines(lines)
		return nil
	})
	g.Go(func() error {
		lines, err := s.hosted.ListExecutedLines(gctx, hostedId)
		if err != nil {
			fail(SourceExecuted, err)
			return nil
		}
		snap.Executed = lines
		return nil
	})
	g.Go(func() error {
		lines, err := s.hosted.ListRealisations(gctx, hostedId)
		if err != nil {
			fail(SourceRealisations, err)
			return nil
		}
		snap.Realisations = lines
		return nil
	})
	g.Go(func() error {
		alerts, err := s.hosted.ListAlerts(gctx, hostedId)
		if err != nil {
			fail(SourceAlerts, err)
			return nil
		}
		snap.Alerts = alerts
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("programme %s: %v", programId, err)
		return nil, err
	}
	slices.Sort(snap.Failed)
	snap.LoadedAt = s.clock.Now()
	log.Debugf("Loaded snapshot of programme %s: %d components, %d planned, %d programmed, %d executed",
		programId, len(snap.Components), len(snap.Planned), len(snap.Programmed), len(snap.Executed))
	return snap, nil
}

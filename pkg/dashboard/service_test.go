package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anef/pdfcp/internal/config"
	"github.com/anef/pdfcp/internal/event_bus"
	"github.com/anef/pdfcp/internal/test_utils"
	"github.com/anef/pdfcp/internal/utils"
	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/anef/pdfcp/pkg/execution"
	"github.com/anef/pdfcp/pkg/program"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = test_utils.ContextWithAgent()

var startTime = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	bus         *event_bus.EventBus
	repo        *program.RepositoryStub
	programs    *program.ServiceImpl
	hosted      *execution.ClientStub
	clock       *utils.MockClock
	service     *ServiceImpl
	program     program.Program
	component   program.Component
	plannedLine program.Line
}

func setup(t *testing.T, cfg config.Dashboard) *fixture {
	f := &fixture{
		bus:    event_bus.NewEventBus(),
		repo:   program.NewRepositoryStub(),
		hosted: execution.NewClientStub(),
		clock:  &utils.MockClock{FixedNow: startTime},
	}
	f.programs = program.NewProgramService(f.repo, f.bus)
	if cfg.SnapshotTTL == 0 {
		cfg.SnapshotTTL = time.Minute
	}
	f.service = NewService(f.programs, f.hosted, f.bus, f.clock, cfg)

	components := []program.Component{{
		ActionType: "Reboisement",
		Label:      "Reboisement Z1",
		Zone:       "Z1",
		Year:       2024,
		Budget:     decimal.NewFromInt(1000),
		Quantity:   decimal.NewFromInt(10),
		Unit:       "ha",
	}}
	prog, err := f.programs.CreateProgram(ctx, program.Program{Code: "PDFCP-01", Title: "Commune A", YearStart: 2024, YearEnd: 2026}, components)
	require.NoError(t, err)
	f.program = prog
	f.component = components[0]

	componentId := f.component.Id
	f.plannedLine, err = f.programs.CreateLine(ctx, program.Line{
		ProgramId:   prog.Id,
		ComponentId: &componentId,
		State:       program.StatePlanned,
		ActionType:  "Reboisement",
		Zone:        "Z1",
		Year:        2024,
		Quantity:    decimal.NewFromInt(10),
		Amount:      decimal.NewFromInt(800),
		Unit:        "ha",
	})
	require.NoError(t, err)

	f.hosted.SetExecuted(prog.Id.String(), comparative.ExecutedLine{
		Id:            "e1",
		PlannedLineId: f.plannedLine.Id.String(),
		Quantity:      decimal.NewFromInt(4),
		Cost:          decimal.NewFromInt(400),
	})
	t.Cleanup(f.repo.Cleanup)
	return f
}

// failingComponents lets every programme call through except the component listing.
type failingComponents struct {
	program.Service
}

func (failingComponents) ListComponents(ctx context.Context, programId uuid.UUID) ([]program.Component, error) {
	return nil, errors.New("connection refused")
}

// failingPlanned lets every programme call through except the planned line listing.
type failingPlanned struct {
	program.Service
}

func (failingPlanned) ListPlannedLines(ctx context.Context, programId uuid.UUID) ([]program.Line, error) {
	return nil, errors.New("connection refused")
}

// blockingClient holds executed-line loads until release is closed.
type blockingClient struct {
	*execution.ClientStub
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *blockingClient) ListExecutedLines(ctx context.Context, programId string) ([]comparative.ExecutedLine, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return c.ClientStub.ListExecutedLines(ctx, programId)
}

func TestServiceImpl_Comparative(t *testing.T) {
	t.Run("should compute the comparative view from both stores", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{})

		// when
		view, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		require.NoError(t, err)
		assert.Equal(t, "PDFCP-01", view.Program.Code)
		assert.Empty(t, view.Failed)
		assert.Equal(t, startTime, view.LoadedAt)
		require.Len(t, view.Result.Rows, 1)
		row := view.Result.Rows[0]
		assert.True(t, decimal.NewFromInt(800).Equal(row.PlannedAmount))
		assert.True(t, row.ProgrammedAmount.IsZero())
		assert.True(t, decimal.NewFromInt(400).Equal(row.ExecutedAmount))
		require.NotNil(t, row.ExecutionRate)
		assert.True(t, decimal.NewFromInt(50).Equal(*row.ExecutionRate))
		assert.Empty(t, view.Result.Orphans)
	})

	t.Run("should apply request filters on the cached snapshot", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{})
		_, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})
		require.NoError(t, err)

		// when
		view, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{Years: []int{2025}})

		// then
		require.NoError(t, err)
		assert.Empty(t, view.Result.Rows)
		assert.Equal(t, 1, f.hosted.Calls())
	})

	t.Run("should attach alerts of the row zone", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{})
		f.hosted.SetAlerts(f.program.Id.String(),
			comparative.Alert{Id: "c1", Zone: "z1", Year: 2024, Status: "ouvert"},
			comparative.Alert{Id: "c2", Zone: "Z1", Year: 2024, Status: "resolu"},
		)

		// when
		view, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		require.NoError(t, err)
		require.Len(t, view.Result.Rows, 1)
		assert.Equal(t, []string{"c1"}, view.Result.Rows[0].AlertIds)
	})

	t.Run("should use the component budget when nothing is planned and fallback is enabled", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{ComponentBudgetFallback: true})
		_, err := f.programs.DeleteLine(ctx, f.program.Id, f.plannedLine.Id)
		require.NoError(t, err)

		// when
		view, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		require.NoError(t, err)
		assert.True(t, view.Result.Totals.UsesFallback)
		assert.True(t, decimal.NewFromInt(1000).Equal(view.Result.Rows[0].PlannedAmount))
	})

	t.Run("should not fall back to component budgets when planned lines failed to load", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{})
		service := NewService(failingPlanned{f.programs}, f.hosted, f.bus, f.clock,
			config.Dashboard{SnapshotTTL: time.Minute, ComponentBudgetFallback: true})

		// when
		view, err := service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		require.NoError(t, err)
		assert.Contains(t, view.Failed, SourcePlanned)
		assert.False(t, view.Result.Totals.UsesFallback)
		require.Len(t, view.Result.Rows, 1)
		assert.True(t, view.Result.Rows[0].PlannedAmount.IsZero())
		assert.False(t, view.Result.Totals.ProgramGap.Coherent)
	})

	t.Run("should return not found for an unknown programme", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{})

		// when
		_, err := f.service.Comparative(ctx, uuid.New(), comparative.Filters{})

		// then
		assert.ErrorIs(t, err, program.ErrProgramNotFound)
	})
}

func TestServiceImpl_snapshot(t *testing.T) {
	t.Run("should reuse the snapshot within the ttl", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{SnapshotTTL: time.Minute})
		_, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})
		require.NoError(t, err)
		f.clock.Advance(30 * time.Second)

		// when
		view, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, f.hosted.Calls())
		assert.Equal(t, startTime, view.LoadedAt)
	})

	t.Run("should reload once the ttl has passed", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{SnapshotTTL: time.Minute})
		_, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})
		require.NoError(t, err)
		f.clock.Advance(2 * time.Minute)

		// when
		view, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, f.hosted.Calls())
		assert.Equal(t, startTime.Add(2*time.Minute), view.LoadedAt)
	})

	t.Run("should reload after a line change", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{SnapshotTTL: time.Hour})
		_, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})
		require.NoError(t, err)

		componentId := f.component.Id
		_, err = f.programs.CreateLine(ctx, program.Line{
			ProgramId:   f.program.Id,
			ComponentId: &componentId,
			State:       program.StateProgrammed,
			ActionType:  "Reboisement",
			Zone:        "Z1",
			Year:        2024,
			Quantity:    decimal.NewFromInt(8),
			Amount:      decimal.NewFromInt(600),
		})
		require.NoError(t, err)

		// when
		view, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, f.hosted.Calls())
		assert.True(t, decimal.NewFromInt(600).Equal(view.Result.Rows[0].ProgrammedAmount))
	})

	t.Run("should report failed hosted sources and not cache them", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{SnapshotTTL: time.Hour})
		f.hosted.ExecutedErr = execution.ErrHostedUnavailable

		// when
		first, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})
		require.NoError(t, err)
		f.hosted.ExecutedErr = nil
		second, err := f.service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		require.NoError(t, err)
		assert.Equal(t, []Source{SourceExecuted, SourceRealisations}, first.Failed)
		assert.True(t, first.Result.Rows[0].ExecutedAmount.IsZero())
		assert.True(t, decimal.NewFromInt(800).Equal(first.Result.Rows[0].PlannedAmount))
		assert.Empty(t, second.Failed)
		assert.True(t, decimal.NewFromInt(400).Equal(second.Result.Rows[0].ExecutedAmount))
		assert.Equal(t, 2, f.hosted.Calls())
	})

	t.Run("should fail when components cannot be loaded", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{})
		service := NewService(failingComponents{f.programs}, f.hosted, f.bus, f.clock, config.Dashboard{SnapshotTTL: time.Minute})

		// when
		_, err := service.Comparative(ctx, f.program.Id, comparative.Filters{})

		// then
		assert.ErrorIs(t, err, ErrSourceUnavailable)
	})

	t.Run("should share one load between concurrent requests", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{})
		client := &blockingClient{ClientStub: f.hosted, started: make(chan struct{}), release: make(chan struct{})}
		service := NewService(f.programs, client, f.bus, f.clock, config.Dashboard{SnapshotTTL: time.Minute})

		// when
		var wg sync.WaitGroup
		views := make([]View, 5)
		errs := make([]error, 5)
		for i := range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				views[i], errs[i] = service.Comparative(ctx, f.program.Id, comparative.Filters{})
			}()
		}
		<-client.started
		time.Sleep(50 * time.Millisecond)
		close(client.release)
		wg.Wait()

		// then
		for i := range 5 {
			require.NoError(t, errs[i])
			assert.Len(t, views[i].Result.Rows, 1)
		}
		assert.Equal(t, 1, f.hosted.Calls())
	})
}

func TestServiceImpl_Progress(t *testing.T) {
	t.Run("should measure realisations against planned quantities", func(t *testing.T) {
		// given
		f := setup(t, config.Dashboard{})
		f.hosted.SetRealisations(f.program.Id.String(),
			comparative.ExecutedLine{Id: "g1", PlannedLineId: f.plannedLine.Id.String(), Quantity: decimal.NewFromInt(3)},
			comparative.ExecutedLine{Id: "g2", PlannedLineId: f.plannedLine.Id.String(), Quantity: decimal.NewFromInt(1)},
		)

		// when
		view, err := f.service.Progress(ctx, f.program.Id)

		// then
		require.NoError(t, err)
		require.Len(t, view.Progress, 1)
		p := view.Progress[0]
		assert.Equal(t, f.plannedLine.Id.String(), p.PlannedLineId)
		assert.Equal(t, 40, p.Rate)
		assert.Equal(t, 2, p.Records)
		assert.True(t, decimal.NewFromInt(6).Equal(p.Remaining))
	})
}

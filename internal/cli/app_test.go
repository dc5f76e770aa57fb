package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anef/pdfcp/internal/config"
	"github.com/anef/pdfcp/internal/event_bus"
	"github.com/anef/pdfcp/internal/test_utils"
	"github.com/anef/pdfcp/internal/utils"
	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/anef/pdfcp/pkg/dashboard"
	"github.com/anef/pdfcp/pkg/execution"
	"github.com/anef/pdfcp/pkg/program"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

type cliFixture struct {
	app     *CLIApp
	out     *bytes.Buffer
	program program.Program
	config  string
}

func setupCLI(t *testing.T) *cliFixture {
	color.NoColor = true
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	ctx := test_utils.ContextWithAgent()
	bus := event_bus.NewEventBus()
	programs := program.NewProgramService(program.NewRepositoryStub(), bus)
	components := []program.Component{{ActionType: "Pistes", Zone: "Z1", Year: 2024, Budget: decimal.NewFromInt(500), Unit: "km"}}
	prog, err := programs.CreateProgram(ctx, program.Program{Code: "PDFCP-07", Title: "Commune B"}, components)
	require.NoError(t, err)
	componentId := components[0].Id
	line, err := programs.CreateLine(ctx, program.Line{
		ProgramId:   prog.Id,
		ComponentId: &componentId,
		State:       program.StatePlanned,
		ActionType:  "Pistes",
		Zone:        "Z1",
		Year:        2024,
		Quantity:    decimal.NewFromInt(5),
		Amount:      decimal.NewFromInt(500),
		Unit:        "km",
	})
	require.NoError(t, err)

	hosted := execution.NewClientStub()
	hosted.SetExecuted(prog.Id.String(), comparative.ExecutedLine{Id: "e1", PlannedLineId: line.Id.String(), Length: decimal.NewFromInt(2), Cost: decimal.NewFromInt(200)})
	hosted.SetRealisations(prog.Id.String(), comparative.ExecutedLine{Id: "g1", PlannedLineId: line.Id.String(), Length: decimal.NewFromInt(2)})

	clock := &utils.MockClock{FixedNow: now}
	released := false
	factory := func(cfg config.Application) (dashboard.Service, func(), error) {
		return dashboard.NewService(programs, hosted, bus, clock, cfg.Dashboard), func() { released = true }, nil
	}
	t.Cleanup(func() { assert.True(t, released) })

	out := &bytes.Buffer{}
	app := NewCLIApp("test", factory, clock)
	app.out = out
	return &cliFixture{
		app:     app,
		out:     out,
		program: prog,
		config:  filepath.Join(t.TempDir(), "missing.yaml"),
	}
}

func TestCLIApp_Comparative(t *testing.T) {
	t.Run("should print the table and export the requested reports", func(t *testing.T) {
		// given
		f := setupCLI(t)
		dir := t.TempDir()
		f.app.rootCmd.SetArgs([]string{
			"-C", f.config, "-p", f.program.Id.String(), "-n", "pdfcp", "-y", "csv,json", "-d", dir,
		})

		// when
		err := f.app.Execute()

		// then
		require.NoError(t, err)
		text := f.out.String()
		assert.Contains(t, text, "PDFCP-07")
		assert.Contains(t, text, "40.00%")
		assert.FileExists(t, filepath.Join(dir, "pdfcp_20250506_070809.csv"))
		assert.FileExists(t, filepath.Join(dir, "pdfcp_20250506_070809.json"))
	})

	t.Run("should not export without a report name", func(t *testing.T) {
		// given
		f := setupCLI(t)
		dir := t.TempDir()
		f.app.rootCmd.SetArgs([]string{"-C", f.config, "-p", f.program.Id.String(), "-d", dir})

		// when
		err := f.app.Execute()

		// then
		require.NoError(t, err)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestCLIApp_Progress(t *testing.T) {
	t.Run("should print the progress of planned lines", func(t *testing.T) {
		// given
		f := setupCLI(t)
		f.app.rootCmd.SetArgs([]string{"progress", "-C", f.config, "-p", f.program.Id.String()})

		// when
		err := f.app.Execute()

		// then
		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "40%")
	})
}

func TestCLIApp_parseArgs(t *testing.T) {
	t.Run("should reject an invalid programme id", func(t *testing.T) {
		// given
		app := NewCLIApp("test", nil, &utils.MockClock{})
		app.rootCmd.SetArgs([]string{"-p", "nope"})

		// when
		err := app.Execute()

		// then
		assert.ErrorContains(t, err, "invalid programme id")
	})

	t.Run("should reject an unknown report type", func(t *testing.T) {
		// given
		app := NewCLIApp("test", nil, &utils.MockClock{})
		app.rootCmd.SetArgs([]string{"-p", "0b6a3c0e-6f43-4c55-9d55-3c1f4f7c8f10", "-y", "xlsx"})

		// when
		err := app.Execute()

		// then
		assert.ErrorContains(t, err, "unsupported report type")
	})
}

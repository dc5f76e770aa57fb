package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/anef/pdfcp/internal/config"
	"github.com/anef/pdfcp/internal/utils"
	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/anef/pdfcp/pkg/dashboard"
	"github.com/anef/pdfcp/pkg/report"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ServiceFactory builds the dashboard service for a configuration. The returned function releases
// whatever the service holds open.
type ServiceFactory func(cfg config.Application) (dashboard.Service, func(), error)

// CLIApp is the command-line entry point printing and exporting the comparative report.
type CLIApp struct {
	rootCmd    *cobra.Command
	newService ServiceFactory
	clock      utils.Clock
	out        io.Writer
}

type args struct {
	configFile  string
	programId   uuid.UUID
	filters     comparative.Filters
	reportName  string
	reportTypes []report.Format
	dir         string
}

func NewCLIApp(version string, newService ServiceFactory, clock utils.Clock) *CLIApp {
	app := &CLIApp{newService: newService, clock: clock, out: os.Stdout}

	rootCmd := &cobra.Command{
		Use:           "pdfcp-report",
		Short:         "Planned / programmed / executed report of a PDFCP programme",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          app.runComparative,
	}
	rootCmd.SetVersionTemplate(`{{printf "pdfcp-report version: %s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config-file", "C", "./config/application.yaml", "Path to the YAML configuration file")
	flags.StringP("program", "p", "", "Programme id (required)")
	flags.IntSliceP("year", "Y", nil, "Years to include (comma-separated)")
	flags.Int("year-start", 0, "First year of the window")
	flags.Int("year-end", 0, "Last year of the window")
	flags.StringSliceP("zone", "z", nil, "Zones to include (comma-separated)")
	flags.StringSliceP("type", "t", nil, "Action types to include (comma-separated)")
	flags.StringP("search", "q", "", "Free text search on type, label and zone")
	flags.StringP("report-name", "n", "", "Base name of the report files; nothing is exported when empty")
	flags.StringSliceP("report-type", "y", []string{"csv"}, "Report types: csv, json, yaml, pdf")
	flags.StringP("dir", "d", "", "Directory to save the report files (default: current directory)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "progress",
		Short: "Realisation progress of each planned line",
		RunE:  app.runProgress,
	})

	app.rootCmd = rootCmd
	return app
}

func (app *CLIApp) Execute() error {
	return app.rootCmd.Execute()
}

func (app *CLIApp) parseArgs(cmd *cobra.Command) (*args, error) {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config-file")
	rawProgram, _ := flags.GetString("program")
	years, _ := flags.GetIntSlice("year")
	yearStart, _ := flags.GetInt("year-start")
	yearEnd, _ := flags.GetInt("year-end")
	zones, _ := flags.GetStringSlice("zone")
	types, _ := flags.GetStringSlice("type")
	search, _ := flags.GetString("search")
	reportName, _ := flags.GetString("report-name")
	rawTypes, _ := flags.GetStringSlice("report-type")
	dir, _ := flags.GetString("dir")

	programId, err := uuid.Parse(rawProgram)
	if err != nil {
		return nil, fmt.Errorf("invalid programme id %q", rawProgram)
	}
	if yearStart != 0 && yearEnd != 0 && yearStart > yearEnd {
		return nil, fmt.Errorf("year-start %d is after year-end %d", yearStart, yearEnd)
	}
	formats := make([]report.Format, 0, len(rawTypes))
	for _, raw := range rawTypes {
		f, err := report.ParseFormat(raw)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}

	return &args{
		configFile: configFile,
		programId:  programId,
		filters: comparative.Filters{
			Years:       years,
			YearStart:   yearStart,
			YearEnd:     yearEnd,
			Zones:       zones,
			ActionTypes: types,
			Search:      search,
		},
		reportName:  reportName,
		reportTypes: formats,
		dir:         dir,
	}, nil
}

func (app *CLIApp) service(a *args) (dashboard.Service, func(), error) {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return nil, nil, err
	}
	return app.newService(cfg)
}

func (app *CLIApp) runComparative(cmd *cobra.Command, _ []string) error {
	a, err := app.parseArgs(cmd)
	if err != nil {
		return err
	}
	service, release, err := app.service(a)
	if err != nil {
		return err
	}
	defer release()

	fmt.Fprint(app.out, pterm.Info.Sprintfln("Loading programme %s", a.programId))
	view, err := service.Comparative(context.Background(), a.programId, a.filters)
	if err != nil {
		return err
	}

	doc := report.NewDocument(report.Header{
		ProgramId:    view.Program.Id.String(),
		ProgramCode:  view.Program.Code,
		ProgramTitle: view.Program.Title,
		LoadedAt:     view.LoadedAt,
		Failed:       sourceNames(view.Failed),
	}, view.Result, app.clock.Now())

	if err := report.PrintTable(app.out, doc); err != nil {
		return err
	}
	if a.reportName == "" {
		return nil
	}

	exporter := report.NewExporter(app.clock)
	for _, format := range a.reportTypes {
		path, err := exporter.Export(doc, format, a.reportName, a.dir)
		if err != nil {
			fmt.Fprint(app.out, pterm.Error.Sprintfln("%s export failed: %v", format, err))
			return err
		}
		fmt.Fprint(app.out, pterm.Success.Sprintfln("%s report saved to %s", format, path))
	}
	return nil
}

func (app *CLIApp) runProgress(cmd *cobra.Command, _ []string) error {
	a, err := app.parseArgs(cmd)
	if err != nil {
		return err
	}
	service, release, err := app.service(a)
	if err != nil {
		return err
	}
	defer release()

	view, err := service.Progress(context.Background(), a.programId)
	if err != nil {
		return err
	}

	overshoot := color.New(color.FgRed, color.Bold).SprintFunc()
	data := pterm.TableData{{"Planned line", "Year", "Unit", "Planned", "Realised", "Remaining", "Rate", "Records"}}
	for _, p := range view.Progress {
		rate := strconv.Itoa(p.Rate) + "%"
		if warn, _ := comparative.CheckOvershoot(p, decimal.Zero); warn {
			rate = overshoot(rate)
		}
		data = append(data, []string{
			p.PlannedLineId,
			strconv.Itoa(p.Year),
			p.Unit,
			p.Planned.String(),
			p.Realised.String(),
			p.Remaining.String(),
			rate,
			strconv.Itoa(p.Records),
		})
	}

	fmt.Fprint(app.out, pterm.DefaultSection.Sprintfln("%s  %s", view.Program.Code, view.Program.Title))
	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render progress table: %w", err)
	}
	fmt.Fprintln(app.out, table)
	if len(view.Failed) > 0 {
		fmt.Fprint(app.out, pterm.Warning.Sprintfln("Unavailable sources: %v", sourceNames(view.Failed)))
	}
	return nil
}

func sourceNames(sources []dashboard.Source) []string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s))
	}
	return names
}

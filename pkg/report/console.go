package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	rateLow     = color.New(color.FgRed, color.Bold).SprintFunc()
	rateOnTrack = color.New(color.FgGreen, color.Bold).SprintFunc()
	rateHigh    = color.New(color.FgYellow, color.Bold).SprintFunc()
	rateUnknown = color.New(color.FgMagenta).SprintFunc()
)

// ColorRate colours an execution percentage: under 95 red, up to 105 green, above that yellow.
func ColorRate(r *float64) string {
	text := FormatRate(r)
	switch {
	case r == nil:
		return rateUnknown(text)
	case *r < 95:
		return rateLow(text)
	case *r <= 105:
		return rateOnTrack(text)
	default:
		return rateHigh(text)
	}
}

func TableData(doc Document) pterm.TableData {
	data := pterm.TableData{{
		"Type", "Zone", "Year", "Budget", "Planned", "CP", "Executed", "Exec. %", "vs CP %", "Status", "Alerts",
	}}
	for _, r := range doc.Rows {
		actionType := r.ActionType
		if r.Unplanned {
			actionType += " *"
		}
		data = append(data, []string{
			actionType,
			r.Zone,
			strconv.Itoa(r.Year),
			r.Budget,
			r.PlannedAmount,
			r.ProgrammedAmount,
			r.ExecutedAmount,
			ColorRate(r.ExecutionRate),
			ColorRate(r.ProgrammedRate),
			r.Status,
			strconv.Itoa(len(r.AlertIds)),
		})
	}
	t := doc.Totals
	data = append(data, []string{
		pterm.Bold.Sprint("TOTAL"), "", "",
		t.ComponentBudget,
		t.PlannedAmount,
		t.ProgrammedAmount,
		t.ExecutedAmount,
		ColorRate(t.ExecutionRate),
		ColorRate(t.ProgrammedRate),
		"", "",
	})
	return data
}

// PrintTable renders the comparative table and its footnotes to out.
func PrintTable(out io.Writer, doc Document) error {
	fmt.Fprint(out, pterm.DefaultSection.Sprintfln("%s  %s", doc.ProgramCode, doc.ProgramTitle))

	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(TableData(doc)).Srender()
	if err != nil {
		return fmt.Errorf("failed to render comparative table: %w", err)
	}
	fmt.Fprintln(out, table)

	t := doc.Totals
	fmt.Fprintf(out, "Programme gap: %s (%s)\n", t.ProgramGap, coherence(t.Coherent))
	if t.UsesFallback {
		fmt.Fprintln(out, "Planned figures taken from the component budget.")
	}
	if hasUnplanned(doc) {
		fmt.Fprintln(out, "* executed without any planned amount")
	}
	if len(doc.FailedSources) > 0 {
		fmt.Fprint(out, pterm.Warning.Sprintfln("Unavailable sources: %s", strings.Join(doc.FailedSources, ", ")))
	}
	if len(doc.Orphans) > 0 {
		fmt.Fprint(out, pterm.Warning.Sprintfln("%d lines could not be attached to a component", len(doc.Orphans)))
	}
	for _, a := range doc.Alerts {
		text := fmt.Sprintf("%s %s %s %d: %d%% (%s / %s)", a.Type, a.ActionType, a.Zone, a.Year, a.Rate, a.Observed, a.Reference)
		switch comparative.Severity(a.Severity) {
		case comparative.SeverityCritical:
			fmt.Fprint(out, pterm.Error.Sprintfln("%s", text))
		case comparative.SeverityWarning:
			fmt.Fprint(out, pterm.Warning.Sprintfln("%s", text))
		default:
			fmt.Fprint(out, pterm.Info.Sprintfln("%s", text))
		}
	}
	return nil
}

func hasUnplanned(doc Document) bool {
	for _, r := range doc.Rows {
		if r.Unplanned {
			return true
		}
	}
	return false
}

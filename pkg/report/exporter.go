package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anef/pdfcp/internal/utils"
	"github.com/jung-kurt/gofpdf"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatPDF  Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatYAML, FormatPDF:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported report type %q", s)
}

// Exporter writes documents to timestamped files in an output directory.
type Exporter struct {
	clock utils.Clock
}

func NewExporter(clock utils.Clock) *Exporter {
	return &Exporter{clock: clock}
}

// Export writes doc in the given format and returns the absolute path of the file.
func (e *Exporter) Export(doc Document, format Format, name, outputDir string) (string, error) {
	switch format {
	case FormatCSV:
		return e.ExportToCSV(doc, name, outputDir)
	case FormatJSON:
		return e.ExportToJSON(doc, name, outputDir)
	case FormatYAML:
		return e.ExportToYAML(doc, name, outputDir)
	case FormatPDF:
		return e.ExportToPDF(doc, name, outputDir)
	}
	return "", fmt.Errorf("unsupported report type %q", format)
}

func (e *Exporter) ExportToCSV(doc Document, name, outputDir string) (string, error) {
	outputFilename, err := e.generateFilename(name, outputDir, "csv")
	if err != nil {
		return "", err
	}
	file, err := os.Create(outputFilename)
	if err != nil {
		return "", fmt.Errorf("error creating CSV file: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, doc); err != nil {
		return "", err
	}
	return filepath.Abs(outputFilename)
}

func (e *Exporter) ExportToJSON(doc Document, name, outputDir string) (string, error) {
	outputFilename, err := e.generateFilename(name, outputDir, "json")
	if err != nil {
		return "", err
	}
	file, err := os.Create(outputFilename)
	if err != nil {
		return "", fmt.Errorf("error creating JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("error encoding JSON data: %w", err)
	}
	return filepath.Abs(outputFilename)
}

func (e *Exporter) ExportToYAML(doc Document, name, outputDir string) (string, error) {
	outputFilename, err := e.generateFilename(name, outputDir, "yaml")
	if err != nil {
		return "", err
	}
	file, err := os.Create(outputFilename)
	if err != nil {
		return "", fmt.Errorf("error creating YAML file: %w", err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("error encoding YAML data: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("error encoding YAML data: %w", err)
	}
	return filepath.Abs(outputFilename)
}

// ExportToPDF lays the comparative table out on landscape A4 pages, one line per row, with the
// totals, the orphan list and the alerts at the end.
func (e *Exporter) ExportToPDF(doc Document, name, outputDir string) (string, error) {
	outputFilename, err := e.generateFilename(name, outputDir, "pdf")
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	headerColor := [3]int{34, 85, 51}
	bodyTextColor := [3]int{50, 50, 50}

	columns := []struct {
		title string
		width float64
		value func(RowRecord) string
	}{
		{"Type", 30, func(r RowRecord) string { return r.ActionType }},
		{"Zone", 28, func(r RowRecord) string { return r.Zone }},
		{"Year", 14, func(r RowRecord) string { return strconv.Itoa(r.Year) }},
		{"Budget", 26, func(r RowRecord) string { return r.Budget }},
		{"Planned", 26, func(r RowRecord) string { return r.PlannedAmount }},
		{"CP", 26, func(r RowRecord) string { return r.ProgrammedAmount }},
		{"Executed", 26, func(r RowRecord) string { return r.ExecutedAmount }},
		{"Exec. %", 20, func(r RowRecord) string { return FormatRate(r.ExecutionRate) }},
		{"vs CP %", 20, func(r RowRecord) string { return FormatRate(r.ProgrammedRate) }},
		{"Status", 26, func(r RowRecord) string { return r.Status }},
		{"Alerts", 35, func(r RowRecord) string { return strings.Join(r.AlertIds, " ") }},
	}

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
		pdf.SetTextColor(255, 255, 255)
		for _, c := range columns {
			pdf.CellFormat(c.width, 7, tr(c.title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 13)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 9, tr(fmt.Sprintf("%s  %s", doc.ProgramCode, doc.ProgramTitle)), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 5, tr("Generated "+doc.GeneratedAt.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
		pdf.Ln(2)
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	for i, r := range doc.Rows {
		fill := i%2 == 1
		pdf.SetFillColor(240, 240, 240)
		for _, c := range columns {
			pdf.CellFormat(c.width, 6, tr(c.value(r)), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	t := doc.Totals
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, tr("Totals"))
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 9)
	lines := []string{
		fmt.Sprintf("Component budget: %s", t.ComponentBudget),
		fmt.Sprintf("Planned: %s   CP: %s   Executed: %s", t.PlannedAmount, t.ProgrammedAmount, t.ExecutedAmount),
		fmt.Sprintf("Execution: %s   Execution vs CP: %s", FormatRate(t.ExecutionRate), FormatRate(t.ProgrammedRate)),
		fmt.Sprintf("Programme gap: %s (%s)", t.ProgramGap, coherence(t.Coherent)),
	}
	if t.UsesFallback {
		lines = append(lines, "Planned figures taken from the component budget")
	}
	if len(doc.FailedSources) > 0 {
		lines = append(lines, "Unavailable sources: "+strings.Join(doc.FailedSources, ", "))
	}
	pdf.MultiCell(0, 5, tr(strings.Join(lines, "\n")), "", "L", false)

	if len(doc.Orphans) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 7, tr(fmt.Sprintf("Unattached lines (%d)", len(doc.Orphans))))
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 8)
		for _, o := range doc.Orphans {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s %s: %s %s", o.Kind, o.LineId, o.Reason, o.Reference)), "", 1, "L", false, 0, "")
		}
	}

	if len(doc.Alerts) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 7, tr(fmt.Sprintf("Alerts (%d)", len(doc.Alerts))))
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 8)
		for _, a := range doc.Alerts {
			text := fmt.Sprintf("[%s] %s %s %s %d: %d%% (%s / %s)",
				a.Severity, a.Type, a.ActionType, a.Zone, a.Year, a.Rate, a.Observed, a.Reference)
			pdf.CellFormat(0, 5, tr(text), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.OutputFileAndClose(outputFilename); err != nil {
		return "", fmt.Errorf("error writing PDF file: %w", err)
	}
	return filepath.Abs(outputFilename)
}

func (e *Exporter) generateFilename(base, dir, ext string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current working directory: %w", err)
		}
		dir = cwd
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory '%s': %w", dir, err)
	}
	timestamp := e.clock.Now().Format("20060102_150405")
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", base, timestamp, ext)), nil
}

func coherence(coherent bool) string {
	if coherent {
		return "coherent"
	}
	return "incoherent"
}

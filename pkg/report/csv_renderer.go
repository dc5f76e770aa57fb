package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var csvHeader = []string{
	"Component", "Type", "Label", "Zone", "Year", "Unit", "Budget",
	"Planned qty", "Planned amount", "CP qty", "CP amount", "Executed qty", "Executed amount",
	"Execution %", "Execution vs CP %", "Gap vs CP", "Status", "Alerts",
}

// RenderCSV renders the rows of doc followed by a TOTAL line.
func RenderCSV(doc Document) (string, error) {
	var b bytes.Buffer
	if err := WriteCSV(&b, doc); err != nil {
		return "", err
	}
	return b.String(), nil
}

func WriteCSV(w io.Writer, doc Document) error {
	data := make([][]string, 0, len(doc.Rows)+2)
	data = append(data, csvHeader)
	for _, r := range doc.Rows {
		gap := ""
		if r.BudgetGap != nil {
			gap = *r.BudgetGap
		}
		data = append(data, []string{
			r.ComponentId,
			r.ActionType,
			r.Label,
			r.Zone,
			strconv.Itoa(r.Year),
			r.Unit,
			r.Budget,
			r.PlannedQuantity,
			r.PlannedAmount,
			r.ProgrammedQuantity,
			r.ProgrammedAmount,
			r.ExecutedQuantity,
			r.ExecutedAmount,
			csvRate(r.ExecutionRate),
			csvRate(r.ProgrammedRate),
			gap,
			r.Status,
			strings.Join(r.AlertIds, " "),
		})
	}

	t := doc.Totals
	data = append(data, []string{
		"TOTAL", "", "", "", "", "",
		t.ComponentBudget,
		t.PlannedQuantity,
		t.PlannedAmount,
		t.ProgrammedQuantity,
		t.ProgrammedAmount,
		t.ExecutedQuantity,
		t.ExecutedAmount,
		csvRate(t.ExecutionRate),
		csvRate(t.ProgrammedRate),
		t.ProgramGap,
		"", "",
	})

	writer := csv.NewWriter(w)
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return err
	}
	return nil
}

func csvRate(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', 2, 64)
}

// Package export writes the observation log and pen ledger as an XLSX workbook
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mrcode/pen-tracker/internal/models"
	"github.com/mrcode/pen-tracker/internal/pen"
)

// Sheet names
const (
	ObservationsSheet = "Observations"
	PensSheet         = "Pens"
)

// ObservationsHeader is the header row of the observations sheet
var ObservationsHeader = []string{
	"ID",
	"Date",
	"Weight (kg)",
	"Dosage (mg)",
	"Pen ID",
	"Pen Type (mg)",
	"New Pen",
	"Pen Cost",
	"Notes",
}

// PensHeader is the header row of the pens sheet
var PensHeader = []string{
	"Pen ID",
	"Pen Type (mg)",
	"Start Date",
	"Applications",
	"Used (mg)",
	"Capacity (mg)",
	"Remaining (mg)",
	"Usage (%)",
	"Status",
	"Cost",
	"Cost per Application",
	"Last Application",
}

var observationWidths = []float64{38, 22, 12, 12, 26, 14, 10, 10, 40}

var penWidths = []float64{26, 14, 22, 13, 11, 13, 15, 11, 10, 10, 20, 22}

// Workbook renders observations (in log order) and the ledger's pens into
// an XLSX document
func Workbook(observations []models.Observation, ledger pen.Ledger) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	obsRows := make([][]any, 0, len(observations))
	for _, o := range observations {
		obsRows = append(obsRows, observationRow(o))
	}
	if err := writeSheet(f, ObservationsSheet, ObservationsHeader, observationWidths, obsRows, headerStyle); err != nil {
		return nil, err
	}

	var penRows [][]any
	for _, group := range [][]pen.Pen{ledger.Active, ledger.Finished} {
		for _, p := range group {
			penRows = append(penRows, penRow(p))
		}
	}
	if err := writeSheet(f, PensSheet, PensHeader, penWidths, penRows, headerStyle); err != nil {
		return nil, err
	}

	// NewFile always starts with Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(ObservationsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to find sheet: %w", err)
	}
	f.SetActiveSheet(idx)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []string, widths []float64, rows [][]any, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

func observationRow(o models.Observation) []any {
	newPen := ""
	if o.IsPenStart {
		newPen = "Yes"
	}
	return []any{
		o.ID,
		formatTime(o.Timestamp),
		optional(o.Weight),
		optional(o.DoseAmount),
		o.PenID,
		optional(o.PenNominalStrength),
		newPen,
		optional(o.Cost),
		o.Note,
	}
}

func penRow(p pen.Pen) []any {
	status := "active"
	switch {
	case p.IsFinished():
		status = "finished"
	case p.IsLowOnContent():
		status = "low"
	}
	return []any{
		p.ID,
		p.NominalStrength,
		formatTime(p.StartDate),
		len(p.Applications),
		p.TotalUsed,
		p.TotalCapacity,
		p.Remaining(),
		roundTo(p.UsagePercent(), 1),
		status,
		p.Cost,
		p.CostPerApplication().InexactFloat64(),
		formatTime(p.LastApplicationDate),
	}
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

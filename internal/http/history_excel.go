package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"firewatch/internal/models"

	"github.com/xuri/excelize/v2"
)

// HistoryExportHeader is the header row of the trajectory workbook.
var HistoryExportHeader = []string{
	"#",
	"Timestamp (UTC)",
	"X (m)",
	"Y (m)",
	"Z (m)",
	"Floor",
}

// GenerateHistoryExport renders a firefighter's trajectory as an XLSX workbook.
func GenerateHistoryExport(firefighterID string, points []models.HistoryPoint) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Trajectory"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FDE2E2"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetCellValue(sheetName, "A1", "Firefighter"); err != nil {
		return nil, fmt.Errorf("failed to set title: %w", err)
	}
	if err := f.SetCellValue(sheetName, "B1", firefighterID); err != nil {
		return nil, fmt.Errorf("failed to set title: %w", err)
	}

	const headerRow = 3
	for col, header := range HistoryExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, headerRow)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{6, 28, 10, 10, 10, 8}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, p := range points {
		row := []any{
			i + 1,
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			p.Position.X,
			p.Position.Y,
			p.Position.Z,
			p.Position.Floor,
		}
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

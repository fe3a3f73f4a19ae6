package paymentexport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"labdesk/internal/domain"
)

const sheetName = "Payments"

// WriteXLSX writes entries as a single-sheet workbook with a bold, frozen
// header row. Amount is written as a number so totals work in Excel.
func WriteXLSX(out io.Writer, entries []domain.LedgerEntry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	for i := range entries {
		row := entryToRow(&entries[i])
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		amount, _ := entries[i].Event.Amount.Round(2).Float64()
		cells[3] = amount

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Write renders entries in format f.
func Write(out io.Writer, f Format, entries []domain.LedgerEntry) error {
	if f == FormatXLSX {
		return WriteXLSX(out, entries)
	}
	return WriteCSV(out, entries)
}

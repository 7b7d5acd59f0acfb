// =============================================================================
// COVID Scenes - XLSX Reader and Writer
// =============================================================================
//
// This module handles Excel workbooks in both directions:
//   - ReadRows reads one sheet of a workbook as raw string rows, so an .xlsx
//     file can be used as a data source just like delimited text.
//   - WriteAggregates exports a dataset and its aggregations as a workbook.
//
// EXPORT LAYOUT:
//   Records    state, date, cases, deaths (loadable again as a source)
//   By State   rank, state, cases, deaths, sorted by cases descending
//   By Date    date, total cases, total deaths, ascending
//
// =============================================================================

package xlsxio

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/covid-scenes/internal/types"
)

// Sheet names written by WriteAggregates.
const (
	SheetRecords = "Records"
	SheetByState = "By State"
	SheetByDate  = "By Date"
)

// =============================================================================
// READING
// =============================================================================

// ReadRows reads every row of a sheet.
//
// PARAMETERS:
//   - r: The workbook content.
//   - sheet: The sheet name. Empty selects the first sheet.
//
// RETURNS:
//   - The rows as string slices, header first.
//   - An error if the workbook or sheet cannot be read.
func ReadRows(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheet, err)
	}

	return rows, nil
}

// =============================================================================
// WRITING
// =============================================================================

// Export is the content of an exported workbook.
type Export struct {
	Records []types.Record
	Ranked  []types.StateTotal
	ByDate  []types.DateTotal
}

// WriteAggregates writes the export as a workbook to w.
//
// RETURNS:
//   - An error if any sheet cannot be built or the workbook cannot be written.
func WriteAggregates(w io.Writer, export Export) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	// The default sheet becomes the records sheet so the workbook reads back
	// as a data source.
	if err := f.SetSheetName(f.GetSheetName(0), SheetRecords); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	recordRows := make([][]interface{}, 0, len(export.Records))
	for _, r := range export.Records {
		recordRows = append(recordRows, []interface{}{r.State, r.Date.Format(types.DateLayout), r.Cases, r.Deaths})
	}
	if err := writeSheet(f, SheetRecords, header, []interface{}{"state", "date", "cases", "deaths"}, recordRows); err != nil {
		return err
	}

	stateRows := make([][]interface{}, 0, len(export.Ranked))
	for i, st := range export.Ranked {
		stateRows = append(stateRows, []interface{}{i + 1, st.State, st.Cases, st.Deaths})
	}
	if err := writeSheet(f, SheetByState, header, []interface{}{"rank", "state", "cases", "deaths"}, stateRows); err != nil {
		return err
	}

	dateRows := make([][]interface{}, 0, len(export.ByDate))
	for _, dt := range export.ByDate {
		dateRows = append(dateRows, []interface{}{dt.Date.Format(types.DateLayout), dt.TotalCases, dt.TotalDeaths})
	}
	if err := writeSheet(f, SheetByDate, header, []interface{}{"date", "total cases", "total deaths"}, dateRows); err != nil {
		return err
	}

	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// writeSheet creates sheet if needed and fills it with a styled, frozen
// header row followed by rows.
func writeSheet(f *excelize.File, sheet string, style int, header []interface{}, rows [][]interface{}) error {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
		}
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", sheet, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("failed to style header of %q: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", i+2, sheet, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", lastCol, 16); err != nil {
		return fmt.Errorf("failed to size columns of %q: %w", sheet, err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header of %q: %w", sheet, err)
	}

	return nil
}

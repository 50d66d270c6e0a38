package aggregate

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SheetName is the single sheet of the workbook.
const SheetName = "Events"

// Workbook builds the spreadsheet: a header row then one row per record.
// The caller closes the returned file.
func Workbook(records []EventRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(Fields))
	for i, field := range Fields {
		header[i] = field.Column
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(SheetName, col, col, field.Width); err != nil {
			f.Close()
			return nil, fmt.Errorf("setting width of %s: %w", col, err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := r.Row()
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return f, nil
}

// WriteXLSX saves the records as a workbook at path.
func WriteXLSX(path string, records []EventRecord) error {
	f, err := Workbook(records)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

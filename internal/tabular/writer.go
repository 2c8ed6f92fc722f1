package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"carecohort/pkg/contracts/domain"
)

// Sheet names of the generated workbooks.
const (
	SheetTenurePreview = "Base_Calculada"
	SheetConsolidated  = "Consolidado"
)

// ContentTypeXLSX is the media type of generated workbooks.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// XLSXOptions tunes WriteXLSX.
type XLSXOptions struct {
	// NumericColumns are written as numbers when their cells parse as
	// floats; everything else is written as text.
	NumericColumns []string
}

// WriteXLSX writes t as a single-sheet workbook.
func WriteXLSX(w io.Writer, sheet string, t domain.Table, opts ...XLSXOptions) error {
	var opt XLSXOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	numeric := make([]bool, len(t.Columns))
	for _, name := range opt.NumericColumns {
		if idx := t.ColumnIndex(name); idx >= 0 {
			numeric[idx] = true
		}
	}

	for i := range t.Rows {
		values := make([]interface{}, len(t.Columns))
		for j := range t.Columns {
			cell := t.Cell(i, j)
			values[j] = cell
			if numeric[j] {
				if v, err := strconv.ParseFloat(cell, 64); err == nil {
					values[j] = v
				}
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// CSVOptions configures CSV writing behavior
type CSVOptions struct {
	Separator rune
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes t as delimited text, header first.
func WriteCSV(w io.Writer, t domain.Table, opts CSVOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if opts.Separator != 0 {
		writer.Comma = opts.Separator
	}

	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i := range t.Rows {
		record := make([]string, len(t.Columns))
		for j := range t.Columns {
			record[j] = t.Cell(i, j)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

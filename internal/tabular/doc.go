// Package tabular reads uploaded beneficiary rosters and financial ledgers
// into text tables and writes tables back out as spreadsheets.
//
// Every cell is kept as text exactly as it appears in the upload; numeric
// and date interpretation happens later in the cohort package.
//
// # Reading
//
// CSV files are parsed with ";" first and fall back to "," when the
// semicolon parse fails or yields a single column. Bytes that are not valid
// UTF-8 are decoded as Windows-1252, the usual export charset of Brazilian
// spreadsheet tools. XLSX workbooks are read from their first sheet with raw
// cell values, so dates arrive as Excel serial numbers.
//
//	t, err := tabular.Read(file, header.Filename)
//	if err != nil {
//	    return err
//	}
//
// # Writing
//
//	err := tabular.WriteXLSX(w, tabular.SheetTenurePreview, table)
//	err = tabular.WriteCSV(w, table, tabular.CSVOptions{Separator: ';', BOMPrefix: true})
package tabular

package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	apperrors "carecohort/internal/errors"
	"carecohort/pkg/contracts/domain"
)

// Format identifies an upload file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat picks the parser from the file extension. Legacy .xls
// workbooks are rejected.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q (use .csv or .xlsx)", apperrors.ErrUnsupportedFormat, filename)
}

// Read parses an upload according to its file name.
func Read(r io.Reader, filename string) (domain.Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return domain.Table{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Table{}, apperrors.NewParsingError("failed to read upload", err)
	}
	if len(bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))) == 0 {
		return domain.Table{}, fmt.Errorf("%w: %s", apperrors.ErrEmptyUpload, filename)
	}

	switch format {
	case FormatXLSX:
		return ReadXLSX(bytes.NewReader(data))
	default:
		return ReadCSV(data)
	}
}

// ReadCSV parses delimited text, trying ";" before ",".
func ReadCSV(data []byte) (domain.Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return domain.Table{}, apperrors.NewParsingError("failed to decode CSV charset", err)
		}
		data = decoded
	}

	t, err := parseDelimited(data, ';')
	if err == nil && len(t.Columns) > 1 {
		return t, nil
	}

	fallback, fallbackErr := parseDelimited(data, ',')
	switch {
	case fallbackErr == nil && (err != nil || len(fallback.Columns) > 1):
		return fallback, nil
	case err == nil:
		// Genuinely single-column file.
		return t, nil
	}
	return domain.Table{}, apperrors.NewParsingError("failed to parse CSV", errors.Join(err, fallbackErr))
}

func parseDelimited(data []byte, sep rune) (domain.Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return domain.Table{}, err
	}
	return fromRecords(records)
}

// ReadXLSX reads the first worksheet of a workbook. The first row is the
// header.
func ReadXLSX(r io.Reader) (domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.Table{}, apperrors.NewParsingError("failed to open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.Table{}, apperrors.NewParsingError("workbook has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.Table{}, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheets[0]), err)
	}
	return fromRecords(rows)
}

// fromRecords builds a table from a header row plus data rows. Blank rows
// are skipped, unnamed columns become "Unnamed: N" and duplicate header
// names get ".1", ".2" suffixes.
func fromRecords(records [][]string) (domain.Table, error) {
	for len(records) > 0 && blank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return domain.Table{}, apperrors.ErrEmptyUpload
	}

	t := domain.NewTable(records[0]...)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		// Widen the header when a data row is longer than it.
		for len(rec) > len(t.Columns) {
			t.Columns = append(t.Columns, "")
			for i := range t.Rows {
				t.Rows[i] = append(t.Rows[i], "")
			}
		}
		t.AppendRow(rec...)
	}
	t.TrimHeader()
	t.Columns = dedupeColumns(t.Columns)
	return t, nil
}

func dedupeColumns(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

package domain

import "strings"

// Table is a raw uploaded sheet: ordered column names and rows of text cells.
// A missing cell is the empty string.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable creates a table with the given header and no rows.
func NewTable(columns ...string) Table {
	return Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Cell returns the raw value at (row, col). Short rows yield "".
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// Value returns the cell of the named column in the given row.
func (t Table) Value(row int, column string) string {
	return t.Cell(row, t.ColumnIndex(column))
}

// Column returns every value of the named column. Missing column yields nil.
func (t Table) Column(name string) []string {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, idx)
	}
	return out
}

// AppendRow adds a row, padding or truncating it to the header width.
func (t *Table) AppendRow(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Head returns a copy holding at most n rows.
func (t Table) Head(n int) Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := Table{Columns: append([]string(nil), t.Columns...), Rows: make([][]string, n)}
	for i := 0; i < n; i++ {
		out.Rows[i] = append([]string(nil), t.Rows[i]...)
	}
	return out
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	return t.Head(-1)
}

// Records returns the rows as column-keyed maps.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for j, c := range t.Columns {
			rec[c] = t.Cell(i, j)
		}
		out[i] = rec
	}
	return out
}

// TrimHeader strips surrounding whitespace from column names and drops
// fully empty trailing columns produced by spreadsheet exports.
func (t *Table) TrimHeader() {
	for i, c := range t.Columns {
		t.Columns[i] = strings.TrimSpace(c)
	}
	for len(t.Columns) > 0 && t.Columns[len(t.Columns)-1] == "" {
		last := len(t.Columns) - 1
		empty := true
		for _, r := range t.Rows {
			if last < len(r) && strings.TrimSpace(r[last]) != "" {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		t.Columns = t.Columns[:last]
		for i, r := range t.Rows {
			if len(r) > last {
				t.Rows[i] = r[:last]
			}
		}
	}
}

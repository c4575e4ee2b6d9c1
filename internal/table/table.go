package table

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Table is an immutable, column-named grid of string cells. Every derivation
// (Filter, Head) returns a new Table with its own identity.
type Table struct {
	id      string
	name    string
	columns []string
	index   map[string]int
	rows    [][]string
}

// New builds a table from a header and rows. Header names are trimmed and made
// unique; rows are copied and normalized to the header width.
func New(name string, header []string, rows [][]string) *Table {
	cols := uniqueNames(header)
	t := &Table{
		id:      uuid.NewString(),
		name:    name,
		columns: cols,
		index:   make(map[string]int, len(cols)),
		rows:    make([][]string, 0, len(rows)),
	}
	for i, c := range cols {
		t.index[c] = i
	}
	for _, r := range rows {
		t.rows = append(t.rows, normalizeRow(r, len(cols)))
	}
	return t
}

// ID returns the table identity. Derived tables never share it.
func (t *Table) ID() string { return t.id }

// Name returns the source name (file base name, query reference, ...).
func (t *Table) Name() string { return t.name }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]string, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out, true
}

// Cell returns the trimmed cell at (row, col). Out-of-range access yields "".
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.columns) {
		return ""
	}
	return strings.TrimSpace(t.rows[row][col])
}

// Row returns a copy of a row.
func (t *Table) Row(i int) []string {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	out := make([]string, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := &Table{
		id:      uuid.NewString(),
		name:    t.name,
		columns: t.columns,
		index:   t.index,
	}
	for i, r := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Head returns a new table with at most n leading rows.
func (t *Table) Head(n int) *Table {
	return t.Filter(func(row int) bool { return row < n })
}

func (t *Table) String() string {
	return fmt.Sprintf("%s (%d rows x %d cols)", t.name, len(t.rows), len(t.columns))
}

func normalizeRow(r []string, width int) []string {
	out := make([]string, width)
	copy(out, r)
	return out
}

// uniqueNames trims header names and resolves blanks and duplicates with
// positional or numeric suffixes.
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		cand := name
		for k := 2; used[cand]; k++ {
			cand = fmt.Sprintf("%s_%d", name, k)
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}

// Package source loads the flat sensor export into memory and runs the
// source-side data-quality checks.
package source

import (
	"fmt"
	"strings"
)

// Table is an in-memory, addressable copy of the source: a header plus rows of
// raw strings aligned to it. Every row has exactly len(Columns) fields.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewTable builds a Table. Short rows are padded with empty fields; a row
// wider than the header, an empty header name or a duplicate header is an error.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("source: empty column name at position %d", i+1)
		}
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("source: duplicate column %q", c)
		}
		idx[c] = i
	}
	for i, r := range rows {
		switch {
		case len(r) > len(columns):
			return nil, fmt.Errorf("source: row %d has %d fields, header has %d", i+1, len(r), len(columns))
		case len(r) < len(columns):
			padded := make([]string, len(columns))
			copy(padded, r)
			rows[i] = padded
		}
	}
	return &Table{Columns: columns, Rows: rows, index: idx}, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether the column exists (exact, case-sensitive match).
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Getter returns a row accessor for column. For an absent column the accessor
// always returns "" so sparse optional columns read as unknown.
func (t *Table) Getter(column string) func(row int) string {
	i, ok := t.index[column]
	if !ok {
		return func(int) string { return "" }
	}
	return func(row int) string { return t.Rows[row][i] }
}

var nullTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
	"#N/A": {},
	"<NA>": {},
}

// IsNull reports whether a raw field encodes a missing value.
func IsNull(s string) bool {
	_, ok := nullTokens[strings.TrimSpace(s)]
	return ok
}

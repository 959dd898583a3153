package transformer

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sensoretl/internal/source"
)

var errUnparsable = errors.New("unparsable value")

// RowError reports a value that cannot be coerced. Row is 1-based over data rows.
type RowError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("transform: row %d column %s value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// parseBool accepts the usual truthy/falsy spellings, case-insensitive.
// Integral floats such as "1.0" count as 1/0.
func parseBool(s string) (sql.Null[bool], error) {
	if source.IsNull(s) {
		return sql.Null[bool]{}, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "t", "true", "yes", "y":
		return sql.Null[bool]{V: true, Valid: true}, nil
	case "0", "0.0", "f", "false", "no", "n":
		return sql.Null[bool]{V: false, Valid: true}, nil
	}
	return sql.Null[bool]{}, errUnparsable
}

func parseFloat(s string) (sql.Null[float64], error) {
	if source.IsNull(s) {
		return sql.Null[float64]{}, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return sql.Null[float64]{}, errUnparsable
	}
	return sql.Null[float64]{V: f, Valid: true}, nil
}

// parseInt accepts plain integers and integral floats ("12.0").
func parseInt(s string) (sql.Null[int64], error) {
	if source.IsNull(s) {
		return sql.Null[int64]{}, nil
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sql.Null[int64]{V: n, Valid: true}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return sql.Null[int64]{}, errUnparsable
	}
	return sql.Null[int64]{V: int64(f), Valid: true}, nil
}

// parseOptionalFloat never fails: anything unparsable is unknown.
func parseOptionalFloat(s string) sql.Null[float64] {
	v, err := parseFloat(s)
	if err != nil {
		return sql.Null[float64]{}
	}
	return v
}

// column is a named accessor over one source column.
type column struct {
	name string
	get  func(int) string
}

func (c column) floatAt(row int) (sql.Null[float64], error) {
	v, err := parseFloat(c.get(row))
	if err != nil {
		return v, &RowError{Row: row + 1, Column: c.name, Value: c.get(row), Err: err}
	}
	return v, nil
}

func (c column) intAt(row int) (sql.Null[int64], error) {
	v, err := parseInt(c.get(row))
	if err != nil {
		return v, &RowError{Row: row + 1, Column: c.name, Value: c.get(row), Err: err}
	}
	return v, nil
}

func (c column) boolAt(row int) (sql.Null[bool], error) {
	v, err := parseBool(c.get(row))
	if err != nil {
		return v, &RowError{Row: row + 1, Column: c.name, Value: c.get(row), Err: err}
	}
	return v, nil
}

// nullText is text with null tokens kept as NULL.
func (c column) nullText(row int) sql.Null[string] {
	s := c.text(row)
	return sql.Null[string]{V: s, Valid: s != ""}
}

func (c column) text(row int) string {
	s := c.get(row)
	if source.IsNull(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

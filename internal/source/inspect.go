package source

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"sensoretl/internal/schema"
)

// MissingColumnsError is returned when required source columns are absent.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "source: missing required columns: " + strings.Join(e.Missing, ", ")
}

// QualityReport carries the advisory findings of Inspect. None of them abort a run.
type QualityReport struct {
	Rows int
	// NullCounts holds required columns with at least one null value.
	NullCounts map[string]int
	// DuplicateRows counts rows that repeat an earlier row field for field.
	DuplicateRows int
	// MissingExpected lists optional columns absent from the source.
	MissingExpected []string
}

// Clean reports whether the report has no advisory findings.
func (r QualityReport) Clean() bool {
	return len(r.NullCounts) == 0 && r.DuplicateRows == 0 && len(r.MissingExpected) == 0
}

// Inspect checks t against the column contract. A missing required column is
// the only fatal finding.
func Inspect(t *Table, c schema.Contract) (QualityReport, error) {
	var missing []string
	for _, col := range c.Required {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return QualityReport{}, &MissingColumnsError{Missing: missing}
	}

	rep := QualityReport{Rows: t.Len(), NullCounts: map[string]int{}}
	for _, col := range c.Expected {
		if !t.Has(col) {
			rep.MissingExpected = append(rep.MissingExpected, col)
		}
	}
	for _, col := range c.Required {
		get := t.Getter(col)
		n := 0
		for i := 0; i < t.Len(); i++ {
			if IsNull(get(i)) {
				n++
			}
		}
		if n > 0 {
			rep.NullCounts[col] = n
		}
	}
	rep.DuplicateRows = countDuplicates(t.Rows)
	return rep, nil
}

// Log writes the report: warnings for nulls and duplicates, info for absent
// optional columns.
func (r QualityReport) Log(log *zap.Logger) {
	cols := make([]string, 0, len(r.NullCounts))
	for col := range r.NullCounts {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		log.Warn("null values in required column",
			zap.String("column", col),
			zap.Int("nulls", r.NullCounts[col]),
		)
	}
	if r.DuplicateRows > 0 {
		log.Warn("duplicate source rows", zap.Int("duplicates", r.DuplicateRows))
	}
	if len(r.MissingExpected) > 0 {
		log.Info("optional columns absent; loading as NULL", zap.Strings("columns", r.MissingExpected))
	}
	log.Info("source inspected", zap.Int("rows", r.Rows), zap.Bool("clean", r.Clean()))
}

// countDuplicates fingerprints each row with xxh3 over length-prefixed fields
// so ("a,b","c") and ("a","b,c") never collide by construction.
func countDuplicates(rows [][]string) int {
	seen := make(map[xxh3.Uint128]struct{}, len(rows))
	var (
		dups int
		buf  []byte
	)
	for _, r := range rows {
		buf = buf[:0]
		for _, f := range r {
			buf = strconv.AppendInt(buf, int64(len(f)), 10)
			buf = append(buf, ':')
			buf = append(buf, f...)
		}
		h := xxh3.Hash128(buf)
		if _, ok := seen[h]; ok {
			dups++
			continue
		}
		seen[h] = struct{}{}
	}
	return dups
}

// String renders the report for CLI output.
func (r QualityReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows=%d duplicates=%d", r.Rows, r.DuplicateRows)
	if len(r.NullCounts) > 0 {
		cols := make([]string, 0, len(r.NullCounts))
		for col, n := range r.NullCounts {
			cols = append(cols, fmt.Sprintf("%s=%d", col, n))
		}
		sort.Strings(cols)
		fmt.Fprintf(&b, " nulls[%s]", strings.Join(cols, " "))
	}
	if len(r.MissingExpected) > 0 {
		fmt.Fprintf(&b, " absent[%s]", strings.Join(r.MissingExpected, " "))
	}
	return b.String()
}

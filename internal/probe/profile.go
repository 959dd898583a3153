// Package probe profiles a source table without touching a store: a coarse
// type per column, null and distinct counts, and the column's role in the
// sensor contract.
package probe

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"sensoretl/internal/schema"
	"sensoretl/internal/source"
)

// Inferred column types.
const (
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeText    = "text"
)

// Column roles relative to the contract.
const (
	RoleRequired = "required"
	RoleExpected = "expected"
	RoleExtra    = "extra"
)

// Column is the profile of one source column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	SQLType  string `json:"sql_type"`
	Role     string `json:"role"`
	Nulls    int    `json:"nulls"`
	Distinct int    `json:"distinct"`
}

// Profile is the result of profiling a table.
type Profile struct {
	Rows    int      `json:"rows"`
	Columns []Column `json:"columns"`
	// MissingRequired lists contract columns absent from the header; a run on
	// this source would abort.
	MissingRequired []string `json:"missing_required"`
	MissingExpected []string `json:"missing_expected"`
}

// Run profiles t against c. Columns keep header order.
func Run(t *source.Table, c schema.Contract) Profile {
	p := Profile{Rows: t.Len(), Columns: make([]Column, 0, len(t.Columns))}

	roles := make(map[string]string, len(c.Required)+len(c.Expected))
	for _, col := range c.Expected {
		roles[col] = RoleExpected
	}
	for _, col := range c.Required {
		roles[col] = RoleRequired
	}

	for _, name := range t.Columns {
		get := t.Getter(name)
		values := make([]string, t.Len())
		distinct := map[string]struct{}{}
		nulls := 0
		for i := range values {
			v := get(i)
			values[i] = v
			if source.IsNull(v) {
				nulls++
				continue
			}
			distinct[v] = struct{}{}
		}
		role, ok := roles[name]
		if !ok {
			role = RoleExtra
		}
		typ := inferType(values)
		p.Columns = append(p.Columns, Column{
			Name:     name,
			Type:     typ,
			SQLType:  sqlTypeFromInference(typ),
			Role:     role,
			Nulls:    nulls,
			Distinct: len(distinct),
		})
	}

	for _, col := range c.Required {
		if !t.Has(col) {
			p.MissingRequired = append(p.MissingRequired, col)
		}
	}
	for _, col := range c.Expected {
		if !t.Has(col) {
			p.MissingExpected = append(p.MissingExpected, col)
		}
	}
	return p
}

// inferType picks the most specific type every non-null value satisfies.
// Integer wins over boolean, so 0/1 columns report as integer. An all-null
// column is text.
func inferType(values []string) string {
	var seen bool
	allInt, allFloat, allBool := true, true, true

	for _, v := range values {
		if source.IsNull(v) {
			continue
		}
		seen = true
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBoolLoose(v); !ok {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			break
		}
	}

	switch {
	case !seen:
		return TypeText
	case allInt:
		return TypeInteger
	case allBool:
		return TypeBoolean
	case allFloat:
		return TypeFloat
	default:
		return TypeText
	}
}

// sqlTypeFromInference maps an inferred type to the portable column type used
// in db/init_schema.sql.
func sqlTypeFromInference(inferred string) string {
	switch inferred {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR(64)"
	}
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// WriteText renders p as a small CSV-style report.
func (p Profile) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "rows=%d\n", p.Rows)
	fmt.Fprintf(&b, "column,type,sql_type,role,nulls,distinct\n")
	for _, c := range p.Columns {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%d,%d\n", c.Name, c.Type, c.SQLType, c.Role, c.Nulls, c.Distinct)
	}
	if len(p.MissingRequired) > 0 {
		fmt.Fprintf(&b, "missing_required=%s\n", strings.Join(p.MissingRequired, ";"))
	}
	if len(p.MissingExpected) > 0 {
		fmt.Fprintf(&b, "missing_expected=%s\n", strings.Join(p.MissingExpected, ";"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

package sqldb

import (
	"fmt"
	"strings"

	"sensoretl/internal/storage"
)

// BuildInsertSQL builds one INSERT ... VALUES statement for all rows with an
// explicit column list.
//
// Constraints:
//   - every row must have len(columns) values.
//   - columns must be non-empty.
func BuildInsertSQL(d Dialect, table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.TableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Ident(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			v := row[j]
			if d.BindValue != nil {
				v = d.BindValue(v)
			}
			args = append(args, v)
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// BuildOrphanSQL counts child rows whose column has no matching parent row.
func BuildOrphanSQL(d Dialect, child, parent, column string) string {
	col := d.Ident(column)
	return "SELECT COUNT(*) FROM " + d.TableIdent(child) + " c LEFT JOIN " + d.TableIdent(parent) +
		" p ON c." + col + " = p." + col + " WHERE p." + col + " IS NULL"
}

// BuildGroupCountSQL counts rows per distinct value of column.
func BuildGroupCountSQL(d Dialect, table, column string) string {
	col := d.Ident(column)
	return "SELECT " + col + ", COUNT(*) FROM " + d.TableIdent(table) + " GROUP BY " + col + " ORDER BY " + col
}

// QuestionPlaceholder is the "?" style used by sqlite and duckdb.
func QuestionPlaceholder(int) string { return "?" }

// DoubleQuoteIdent quotes with "..." escaping embedded quotes.
func DoubleQuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// BuildCreateTableSQL renders CREATE TABLE IF NOT EXISTS with an inline
// primary key, NOT NULL for non-nullable columns, inline REFERENCES and
// table-level UNIQUE constraints.
func BuildCreateTableSQL(d Dialect, t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	var parts []string
	if t.PrimaryKey != nil {
		parts = append(parts, fmt.Sprintf("%s %s PRIMARY KEY", d.Ident(t.PrimaryKey.Name), t.PrimaryKey.Type))
	}
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Type) == "" {
			return "", fmt.Errorf("%s: column name/type must be set", t.Name)
		}
		col := fmt.Sprintf("%s %s", d.Ident(c.Name), c.Type)
		if !c.IsNullable() {
			col += " NOT NULL"
		}
		if c.References != "" {
			col += " REFERENCES " + c.References
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%s: no columns", t.Name)
	}

	for _, con := range t.Constraints {
		if !strings.EqualFold(con.Kind, "unique") {
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
		var cols []string
		for _, c := range con.Columns {
			cols = append(cols, d.Ident(c))
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", d.TableIdent(t.Name), strings.Join(parts, ",\n  ")), nil
}

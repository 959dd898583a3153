package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sensoretl/internal/storage"
	"sensoretl/internal/storage/sqldb"
)

// SQL Server accepts at most 2100 parameters per request; leave headroom for
// the driver's own.
const maxParams = 2000

// MultiRepo implements storage.MultiRepository for Microsoft SQL Server.
//
// DDL scripts are split into batches on GO lines (the sqlcmd convention).
// Portable column types are translated (BOOLEAN -> BIT, TIMESTAMP -> DATETIME2)
// and tables are created behind an OBJECT_ID guard.
//
// Note on driver registration:
//   - This package does NOT blank-import a SQL Server driver. The binary
//     registers "sqlserver" via internal/storage/all.
type MultiRepo struct {
	*sqldb.Repo
}

func init() {
	storage.RegisterMulti("mssql", NewMulti)
}

// Dialect is the SQL Server dialect used by MultiRepo.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name:        "mssql",
		Ident:       mssqlIdent,
		Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		MaxParams:   maxParams,
		SplitScript: storage.SplitBatches,
	}
}

// NewMulti constructs a MultiRepo using database/sql and the "sqlserver" driver.
// Connectivity is validated via PingContext.
func NewMulti(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(8)
	raw.SetMaxIdleConns(8)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return newRepo(raw, cfg.BatchSize), nil
}

func newRepo(db *sql.DB, batchSize int) *MultiRepo {
	return &MultiRepo{Repo: sqldb.New(db, Dialect(), batchSize)}
}

// EnsureTables creates each table if it does not exist. Idempotent.
func (r *MultiRepo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		q, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if err := r.ExecAll(ctx, []string{q}); err != nil {
			return fmt.Errorf("mssql: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}

	var parts []string
	if t.PrimaryKey != nil {
		pkDef, err := mssqlPrimaryKeyDef(*t.PrimaryKey)
		if err != nil {
			return "", err
		}
		parts = append(parts, pkDef)
	}
	for _, c := range t.Columns {
		def, err := mssqlColumnDef(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, def)
	}
	for _, con := range t.Constraints {
		if !strings.EqualFold(con.Kind, "unique") {
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
		if len(con.Columns) == 0 {
			return "", fmt.Errorf("%s unique constraint has no columns", t.Name)
		}
		var cols []string
		for _, c := range con.Columns {
			cols = append(cols, mssqlIdent(c))
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}
	return wrapCreateIfMissing(t.Name, strings.Join(parts, ", ")), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(tableName, "'", "''"),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

func mssqlPrimaryKeyDef(pk storage.PrimaryKeySpec) (string, error) {
	if strings.TrimSpace(pk.Name) == "" {
		return "", fmt.Errorf("mssql: primary key name is empty")
	}
	return fmt.Sprintf("%s %s PRIMARY KEY", mssqlIdent(pk.Name), mssqlType(pk.Type)), nil
}

// mssqlColumnDef builds a column definition. Nullability defaults to NULL.
func mssqlColumnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("mssql: column name is empty")
	}
	if strings.TrimSpace(c.Type) == "" {
		return "", fmt.Errorf("mssql: column %s type is empty", c.Name)
	}

	var b strings.Builder
	b.WriteString(mssqlIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(mssqlType(c.Type))
	if c.IsNullable() {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if strings.TrimSpace(c.References) != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(c.References)
	}
	return b.String(), nil
}

// mssqlType maps portable type names SQL Server lacks.
func mssqlType(t string) string {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "BOOLEAN", "BOOL":
		return "BIT"
	case "TIMESTAMP":
		return "DATETIME2"
	case "DOUBLE PRECISION", "DOUBLE":
		return "FLOAT"
	case "TEXT":
		return "NVARCHAR(MAX)"
	default:
		return t
	}
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.machines" -> [dbo].[machines]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

var _ storage.MultiRepository = (*MultiRepo)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sensoretl/internal/storage"
	"sensoretl/internal/storage/sqldb"
)

/*
MultiRepo implements storage.MultiRepository for Postgres.

It provides:
  - DDL script application, one statement at a time
  - Bulk loads through COPY (pgx CopyFrom) inside a pgx transaction
  - Count, orphan and distribution queries for post-load validation
*/
type MultiRepo struct {
	pool *pgxpool.Pool
}

// NewMulti creates a new Postgres-backed MultiRepo. The pool is pinged so a
// bad DSN or unreachable server fails here rather than at first use.
func NewMulti(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &MultiRepo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *MultiRepo) Close() {
	r.pool.Close()
}

// dialect is used only for the shared read-side SQL builders.
var dialect = sqldb.Dialect{
	Name:        "postgres",
	Ident:       func(id string) string { return pgx.Identifier{id}.Sanitize() },
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	SplitScript: storage.SplitScript,
}

// pgIdent quotes a possibly schema-qualified name.
func pgIdent(name string) string {
	parts := strings.Split(strings.TrimSpace(name), ".")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return pgx.Identifier(parts).Sanitize()
}

func (r *MultiRepo) ApplySchema(ctx context.Context, script string) error {
	stmts := storage.SplitStatements(script)
	for i, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: schema statement %d/%d: %w", i+1, len(stmts), err)
		}
	}
	return nil
}

func (r *MultiRepo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		schemaSQL, baseSQL, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if schemaSQL != "" {
			if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema for %s: %w", t.Name, err)
			}
		}
		if _, err := r.pool.Exec(ctx, baseSQL); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *MultiRepo) Begin(ctx context.Context) (storage.LoadTx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &loadTx{tx: tx}, nil
}

func (r *MultiRepo) CountRows(ctx context.Context, table string) (int64, error) {
	return countRows(ctx, r.pool, table)
}

func (r *MultiRepo) CountOrphans(ctx context.Context, child, parent, column string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, sqldb.BuildOrphanSQL(dialect, child, parent, column)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: orphan count %s.%s: %w", child, column, err)
	}
	return n, nil
}

func (r *MultiRepo) GroupCounts(ctx context.Context, table, column string) ([]storage.GroupCount, error) {
	rows, err := r.pool.Query(ctx, sqldb.BuildGroupCountSQL(dialect, table, column))
	if err != nil {
		return nil, fmt.Errorf("postgres: group counts %s.%s: %w", table, column, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.GroupCount, error) {
		var g storage.GroupCount
		err := row.Scan(&g.Value, &g.Count)
		return g, err
	})
}

// loadTx wraps a pgx transaction.
type loadTx struct {
	tx pgx.Tx
}

func (t *loadTx) DeleteAll(ctx context.Context, table string) (int64, error) {
	tag, err := t.tx.Exec(ctx, "DELETE FROM "+pgIdent(table))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// InsertRows streams rows with COPY. Column types come from the target table,
// so nil binds NULL and int64/float64/bool/time.Time map directly.
func (t *loadTx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	parts := strings.Split(table, ".")
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier(parts), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("postgres: copy into %s: %w", table, err)
	}
	return n, nil
}

func (t *loadTx) CountRows(ctx context.Context, table string) (int64, error) {
	return countRows(ctx, t.tx, table)
}

func (t *loadTx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *loadTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countRows(ctx context.Context, q queryRower, table string) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", table, err)
	}
	return n, nil
}

// buildColumnDef renders a single column definition. Nullability defaults to
// NULL; references are inline.
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	name := strings.TrimSpace(c.Name)
	typ := strings.TrimSpace(c.Type)
	if name == "" || typ == "" {
		return "", fmt.Errorf("column name/type must be set")
	}

	var b strings.Builder
	b.WriteString(pgIdent(name))
	b.WriteString(" ")
	b.WriteString(typ)
	if !c.IsNullable() {
		b.WriteString(" NOT NULL")
	}
	if ref := strings.TrimSpace(c.References); ref != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(ref)
	}
	return b.String(), nil
}

// buildConstraints generates table-level constraints. Only UNIQUE is supported.
func buildConstraints(t storage.TableSpec) ([]string, error) {
	out := make([]string, 0, len(t.Constraints))
	for _, c := range t.Constraints {
		if strings.ToLower(strings.TrimSpace(c.Kind)) != "unique" {
			return nil, fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, c.Kind)
		}
		if len(c.Columns) == 0 {
			return nil, fmt.Errorf("table %s: unique constraint requires columns", t.Name)
		}
		cols := make([]string, len(c.Columns))
		for i, col := range c.Columns {
			cols[i] = pgIdent(col)
		}
		out = append(out, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}
	return out, nil
}

// splitQualifiedName splits "schema.table"; anything else is unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// buildCreateSQL builds CREATE SCHEMA (for qualified names) and CREATE TABLE
// IF NOT EXISTS.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, baseSQL string, err error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	var defs []string
	if t.PrimaryKey != nil {
		defs = append(defs, fmt.Sprintf("%s %s PRIMARY KEY", pgIdent(t.PrimaryKey.Name), t.PrimaryKey.Type))
	}
	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return "", "", fmt.Errorf("table %s: no columns", t.Name)
	}
	constraints, err := buildConstraints(t)
	if err != nil {
		return "", "", err
	}
	defs = append(defs, constraints...)

	baseSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, pgIdent(t.Name), strings.Join(defs, ", "))
	return schemaSQL, baseSQL, nil
}

var _ storage.MultiRepository = (*MultiRepo)(nil)

// Package sqldb implements the dialect-neutral half of storage.MultiRepository
// on top of database/sql. Backends that speak database/sql (sqlite, mssql,
// duckdb) embed *Repo and add their own EnsureTables.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sensoretl/internal/storage"
)

// Dialect captures the per-backend SQL differences the shared code needs.
type Dialect struct {
	Name string

	// Ident quotes one identifier (no dots).
	Ident func(name string) string

	// Placeholder returns the n-th (1-based) bind placeholder.
	Placeholder func(n int) string

	// MaxParams is the bind-parameter limit per statement (0 = unlimited).
	MaxParams int

	// SplitScript splits a DDL script into executable units.
	SplitScript func(script string) ([]string, error)

	// BindValue converts a value before it is bound. Nil means identity.
	BindValue func(v any) any
}

// TableIdent quotes a possibly schema-qualified name ("dbo.machines").
func (d Dialect) TableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = d.Ident(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// Repo is the database/sql store handle.
type Repo struct {
	db        *sql.DB
	d         Dialect
	batchSize int
}

// New wraps an open *sql.DB. The Repo owns db and closes it on Close.
func New(db *sql.DB, d Dialect, batchSize int) *Repo {
	return &Repo{db: db, d: d, batchSize: batchSize}
}

// DB exposes the handle for backend-specific statements.
func (r *Repo) DB() *sql.DB { return r.db }

// Dialect returns the repo dialect.
func (r *Repo) Dialect() Dialect { return r.d }

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// ApplySchema runs each unit of script in order, outside any transaction.
func (r *Repo) ApplySchema(ctx context.Context, script string) error {
	units, err := r.d.SplitScript(script)
	if err != nil {
		return fmt.Errorf("%s: %w", r.d.Name, err)
	}
	for i, stmt := range units {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: schema statement %d/%d: %w", r.d.Name, i+1, len(units), err)
		}
	}
	return nil
}

// ExecAll runs statements in order (used by backend EnsureTables).
func (r *Repo) ExecAll(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", r.d.Name, err)
		}
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.LoadTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", r.d.Name, err)
	}
	return &Tx{tx: tx, d: r.d, batchSize: r.batchSize}, nil
}

func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	return countRows(ctx, r.db, r.d, table)
}

func (r *Repo) CountOrphans(ctx context.Context, child, parent, column string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, BuildOrphanSQL(r.d, child, parent, column)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: orphan count %s.%s: %w", r.d.Name, child, column, err)
	}
	return n, nil
}

func (r *Repo) GroupCounts(ctx context.Context, table, column string) ([]storage.GroupCount, error) {
	rows, err := r.db.QueryContext(ctx, BuildGroupCountSQL(r.d, table, column))
	if err != nil {
		return nil, fmt.Errorf("%s: group counts %s.%s: %w", r.d.Name, table, column, err)
	}
	defer rows.Close()

	var out []storage.GroupCount
	for rows.Next() {
		var g storage.GroupCount
		if err := rows.Scan(&g.Value, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Tx is a database/sql load transaction.
type Tx struct {
	tx        *sql.Tx
	d         Dialect
	batchSize int
}

func (t *Tx) DeleteAll(ctx context.Context, table string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM "+t.d.TableIdent(table))
	if err != nil {
		return 0, fmt.Errorf("%s: delete %s: %w", t.d.Name, table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertRows inserts rows in multi-row INSERT statements sized to stay under
// the dialect's bind-parameter limit.
func (t *Tx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	per := storage.RowsPerStatement(len(columns), t.d.MaxParams, t.batchSize)

	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		q, args := BuildInsertSQL(t.d, table, columns, rows[start:end])
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("%s: insert %s rows %d..%d: %w", t.d.Name, table, start+1, end, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(end - start)
		}
		total += n
	}
	return total, nil
}

func (t *Tx) CountRows(ctx context.Context, table string) (int64, error) {
	return countRows(ctx, t.tx, t.d, table)
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit() }

func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback() }

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countRows(ctx context.Context, q queryRower, d Dialect, table string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+d.TableIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count %s: %w", d.Name, table, err)
	}
	return n, nil
}

var _ storage.LoadTx = (*Tx)(nil)

package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"

	"sensoretl/internal/storage"
	"sensoretl/internal/storage/sqldb"
)

// MultiRepo implements storage.MultiRepository for DuckDB.
//
// Notes:
//   - An empty DSN or ":memory:" opens an in-memory database; like SQLite it
//     is per-connection, so the pool is pinned to one connection.
//   - DuckDB checks foreign keys against rows deleted earlier in the same
//     transaction, so a parent cannot be deleted in the transaction that
//     deleted its children. Use load_mode per_table with this backend; the
//     config linter rejects atomic.
type MultiRepo struct {
	*sqldb.Repo
}

func init() {
	storage.RegisterMulti("duckdb", NewMulti)
}

// Dialect is the DuckDB dialect used by MultiRepo.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name:        "duckdb",
		Ident:       sqldb.DoubleQuoteIdent,
		Placeholder: sqldb.QuestionPlaceholder,
		SplitScript: storage.SplitScript,
	}
}

func NewMulti(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error) {
	dsn := cfg.DSN
	if dsn == ":memory:" {
		dsn = ""
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}
	return &MultiRepo{Repo: sqldb.New(db, Dialect(), cfg.BatchSize)}, nil
}

// EnsureTables creates every table with CREATE TABLE IF NOT EXISTS.
func (r *MultiRepo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	d := r.Dialect()
	for _, t := range tables {
		q, err := sqldb.BuildCreateTableSQL(d, t)
		if err != nil {
			return err
		}
		if err := r.ExecAll(ctx, []string{q}); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

var _ storage.MultiRepository = (*MultiRepo)(nil)

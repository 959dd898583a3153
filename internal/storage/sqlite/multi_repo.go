package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sensoretl/internal/storage"
	"sensoretl/internal/storage/sqldb"
)

// SQLite caps bind variables at 32766 per statement (SQLITE_MAX_VARIABLE_NUMBER
// since 3.32).
const maxParams = 32766

// MultiRepo implements storage.MultiRepository for SQLite.
//
// Key design points:
//   - One connection only (SetMaxOpenConns(1)). The pipeline is single-threaded,
//     and ":memory:" databases are per-connection, so a pool would silently
//     hand out empty databases.
//   - Foreign keys are enforced through the DSN (_pragma=foreign_keys(1)), so
//     every connection the pool opens has them on.
//   - Timestamps are bound as RFC3339Nano strings for reliable round-trips.
type MultiRepo struct {
	*sqldb.Repo
}

func init() {
	storage.RegisterMulti("sqlite", NewMulti)
}

// Dialect is the SQLite dialect used by MultiRepo.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name:        "sqlite",
		Ident:       sqldb.DoubleQuoteIdent,
		Placeholder: sqldb.QuestionPlaceholder,
		MaxParams:   maxParams,
		SplitScript: storage.SplitScript,
		BindValue:   bindValue,
	}
}

func NewMulti(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error) {
	db, err := sql.Open("sqlite", withForeignKeys(cfg.DSN))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MultiRepo{Repo: sqldb.New(db, Dialect(), cfg.BatchSize)}, nil
}

// EnsureTables creates every table with CREATE TABLE IF NOT EXISTS, parents
// first (callers pass tables in dependency order). REFERENCES are enforced
// because NewMulti turns on PRAGMA foreign_keys.
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

// withForeignKeys appends the foreign_keys pragma unless the DSN already sets it.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return formatSQLiteTime(t)
	}
	return v
}

// formatSQLiteTime formats a time as RFC3339Nano in UTC.
// Timestamps are stored as TEXT for reliable scanning with modernc.org/sqlite.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var _ storage.MultiRepository = (*MultiRepo)(nil)

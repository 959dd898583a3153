package sqldb

import (
	"fmt"
	"reflect"
	"testing"

	"sensoretl/internal/storage"
)

func testDialect() Dialect {
	return Dialect{
		Name:        "test",
		Ident:       DoubleQuoteIdent,
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		SplitScript: storage.SplitScript,
	}
}

func TestBuildInsertSQL_PlaceholdersAndArgs(t *testing.T) {
	t.Parallel()

	q, args := BuildInsertSQL(testDialect(), "public.machines", []string{"machine_id", "installation_year"}, [][]any{
		{"7", int64(2019)},
		{"8", nil},
	})

	want := `INSERT INTO "public"."machines" ("machine_id", "installation_year") VALUES ($1, $2), ($3, $4)`
	if q != want {
		t.Fatalf("sql=%q\nwant %q", q, want)
	}
	if !reflect.DeepEqual(args, []any{"7", int64(2019), "8", nil}) {
		t.Fatalf("args=%#v", args)
	}
}

func TestBuildInsertSQL_BindValue(t *testing.T) {
	t.Parallel()

	d := testDialect()
	d.BindValue = func(v any) any {
		if b, ok := v.(bool); ok {
			if b {
				return 1
			}
			return 0
		}
		return v
	}
	_, args := BuildInsertSQL(d, "t", []string{"a", "b"}, [][]any{{true, "x"}})
	if !reflect.DeepEqual(args, []any{1, "x"}) {
		t.Fatalf("args=%#v", args)
	}
}

func TestBuildOrphanAndGroupSQL(t *testing.T) {
	t.Parallel()

	d := testDialect()
	if got, want := BuildOrphanSQL(d, "sensor_readings", "machines", "machine_id"),
		`SELECT COUNT(*) FROM "sensor_readings" c LEFT JOIN "machines" p ON c."machine_id" = p."machine_id" WHERE p."machine_id" IS NULL`; got != want {
		t.Fatalf("orphan sql=%q\nwant %q", got, want)
	}
	if got, want := BuildGroupCountSQL(d, "failure_predictions", "failure_within_7_days"),
		`SELECT "failure_within_7_days", COUNT(*) FROM "failure_predictions" GROUP BY "failure_within_7_days" ORDER BY "failure_within_7_days"`; got != want {
		t.Fatalf("group sql=%q\nwant %q", got, want)
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	notNull := false
	q, err := BuildCreateTableSQL(testDialect(), storage.TableSpec{
		Name:       "sensor_readings",
		PrimaryKey: &storage.PrimaryKeySpec{Name: "reading_id", Type: "BIGINT"},
		Columns: []storage.ColumnSpec{
			{Name: "machine_id", Type: "VARCHAR(64)", References: "machines(machine_id)", Nullable: &notNull},
			{Name: "temperature_c", Type: "DOUBLE PRECISION"},
		},
	})
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"sensor_readings\" (\n" +
		"  \"reading_id\" BIGINT PRIMARY KEY,\n" +
		"  \"machine_id\" VARCHAR(64) NOT NULL REFERENCES machines(machine_id),\n" +
		"  \"temperature_c\" DOUBLE PRECISION\n)"
	if q != want {
		t.Fatalf("sql=%q\nwant %q", q, want)
	}

	if _, err := BuildCreateTableSQL(testDialect(), storage.TableSpec{Name: "empty"}); err == nil {
		t.Fatalf("expected error for table without columns")
	}
}

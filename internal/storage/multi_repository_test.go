package storage

import (
	"context"
	"strings"
	"testing"
)

type fakeMultiRepo struct {
	closeCalls int
}

func (f *fakeMultiRepo) Close()                                             { f.closeCalls++ }
func (f *fakeMultiRepo) ApplySchema(ctx context.Context, script string) error { return nil }
func (f *fakeMultiRepo) EnsureTables(ctx context.Context, tables []TableSpec) error {
	return nil
}
func (f *fakeMultiRepo) Begin(ctx context.Context) (LoadTx, error) { return nil, nil }
func (f *fakeMultiRepo) CountRows(ctx context.Context, table string) (int64, error) {
	return 0, nil
}
func (f *fakeMultiRepo) CountOrphans(ctx context.Context, child, parent, column string) (int64, error) {
	return 0, nil
}
func (f *fakeMultiRepo) GroupCounts(ctx context.Context, table, column string) ([]GroupCount, error) {
	return nil, nil
}

func TestNewMulti_UsesRegisteredFactory(t *testing.T) {
	want := &fakeMultiRepo{}
	var gotCfg MultiConfig
	RegisterMulti("fake_registry_test", func(ctx context.Context, cfg MultiConfig) (MultiRepository, error) {
		gotCfg = cfg
		return want, nil
	})

	repo, err := NewMulti(context.Background(), MultiConfig{Kind: "fake_registry_test", DSN: "x", BatchSize: 10})
	if err != nil {
		t.Fatalf("NewMulti: %v", err)
	}
	if repo != want {
		t.Fatalf("NewMulti returned %T, want registered repo", repo)
	}
	if gotCfg.DSN != "x" || gotCfg.BatchSize != 10 {
		t.Fatalf("factory cfg=%+v", gotCfg)
	}
}

func TestNewMulti_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewMulti(context.Background(), MultiConfig{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	_, err := NewMulti(context.Background(), MultiConfig{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unsupported multi storage.kind=nope") {
		t.Fatalf("err=%v, want unsupported kind", err)
	}
}

func TestRegisterMulti_PanicsOnDuplicate(t *testing.T) {
	f := func(ctx context.Context, cfg MultiConfig) (MultiRepository, error) { return nil, nil }
	RegisterMulti("fake_dup_test", f)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	RegisterMulti("fake_dup_test", f)
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	script := `
-- header comment; with a semicolon
CREATE TABLE IF NOT EXISTS a (x TEXT DEFAULT 'a;b');
/* block; comment */
CREATE TABLE IF NOT EXISTS "we;ird" (y INTEGER);

CREATE VIEW IF NOT EXISTS v AS SELECT 'it''s;fine' AS z
`
	got := SplitStatements(script)
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3: %q", len(got), got)
	}
	if !strings.HasSuffix(got[0], "DEFAULT 'a;b')") {
		t.Fatalf("stmt[0]=%q", got[0])
	}
	if !strings.Contains(got[1], `"we;ird"`) {
		t.Fatalf("stmt[1]=%q", got[1])
	}
	if !strings.HasSuffix(got[2], `'it''s;fine' AS z`) {
		t.Fatalf("stmt[2]=%q", got[2])
	}
}

func TestSplitStatements_CommentOnly(t *testing.T) {
	t.Parallel()

	if got := SplitStatements("-- nothing here\n;\n  ;"); len(got) != 0 {
		t.Fatalf("got %q, want none", got)
	}
}

func TestSplitBatches(t *testing.T) {
	t.Parallel()

	script := "IF OBJECT_ID(N'a', N'U') IS NULL BEGIN CREATE TABLE a (x INT); END;\nGO\n  go  \nCREATE OR ALTER VIEW v AS SELECT 1 AS x;\nGO\n"
	got, err := SplitBatches(script)
	if err != nil {
		t.Fatalf("SplitBatches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2: %q", len(got), got)
	}
	if !strings.Contains(got[0], "END;") {
		t.Fatalf("batch[0]=%q", got[0])
	}
}

func TestSplitBatches_OversizedLineFails(t *testing.T) {
	t.Parallel()

	script := "CREATE TABLE a (x INT);\nGO\nINSERT INTO a VALUES ('" + strings.Repeat("x", 5*1024*1024) + "');\n"
	if got, err := SplitBatches(script); err == nil {
		t.Fatalf("expected error, got %d batches", len(got))
	}
}

func TestRowsPerStatement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                         string
		columns, maxParams, batch, w int
	}{
		{"unlimited params", 10, 0, 500, 500},
		{"param bound", 10, 2000, 500, 200},
		{"batch bound", 4, 32766, 100, 100},
		{"default batch", 4, 0, 0, 500},
		{"wide row", 3000, 2000, 500, 1},
	}
	for _, tc := range tests {
		if got := RowsPerStatement(tc.columns, tc.maxParams, tc.batch); got != tc.w {
			t.Fatalf("%s: RowsPerStatement=%d, want %d", tc.name, got, tc.w)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "true"},
		{int64(1), "1"},
		{[]byte(" x "), "x"},
		{1.5, "1.5"},
	}
	for _, tc := range tests {
		if got := NormalizeValue(tc.in); got != tc.want {
			t.Fatalf("NormalizeValue(%#v)=%q, want %q", tc.in, got, tc.want)
		}
	}

	if b, ok := NormalizeBool(int64(0)); !ok || b {
		t.Fatalf("NormalizeBool(0)=%v,%v", b, ok)
	}
	if _, ok := NormalizeBool(nil); ok {
		t.Fatalf("NormalizeBool(nil) ok=true")
	}
}

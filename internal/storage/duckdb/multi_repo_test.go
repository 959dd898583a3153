package duckdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensoretl/internal/schema"
	"sensoretl/internal/storage"
)

func TestMultiRepo_EnsureTablesInsertAndCount(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewMulti(ctx, storage.MultiConfig{Kind: "duckdb", DSN: ":memory:"})
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.EnsureTables(ctx, schema.Tables()))
	require.NoError(t, repo.EnsureTables(ctx, schema.Tables()), "idempotent")

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertRows(ctx, "machines", []string{"machine_id", "machine_type", "installation_year", "created_at"},
		[][]any{{"M1", "Lathe", int64(2010), at}})
	require.NoError(t, err)
	_, err = tx.InsertRows(ctx, "failure_predictions",
		[]string{"prediction_id", "machine_id", "remaining_useful_life_days", "failure_within_7_days", "predicted_at"},
		[][]any{{int64(1), "M1", 10.5, true, at}, {int64(2), "M1", nil, nil, at}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	n, err := repo.CountRows(ctx, "failure_predictions")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	orphans, err := repo.CountOrphans(ctx, "failure_predictions", "machines", "machine_id")
	require.NoError(t, err)
	assert.Zero(t, orphans)

	groups, err := repo.GroupCounts(ctx, "failure_predictions", "failure_within_7_days")
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestMultiRepo_ClearChildrenFirstThenReload(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewMulti(ctx, storage.MultiConfig{Kind: "duckdb", DSN: filepath.Join(t.TempDir(), "etl.duckdb")})
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.EnsureTables(ctx, schema.Tables()))

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	load := func() {
		tx, err := repo.Begin(ctx)
		require.NoError(t, err)
		_, err = tx.InsertRows(ctx, "machines", []string{"machine_id", "machine_type", "installation_year", "created_at"},
			[][]any{{"M1", "Lathe", int64(2010), at}})
		require.NoError(t, err)
		_, err = tx.InsertRows(ctx, "failure_predictions",
			[]string{"prediction_id", "machine_id", "remaining_useful_life_days", "failure_within_7_days", "predicted_at"},
			[][]any{{int64(1), "M1", 10.5, true, at}})
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	}
	load()

	// one committed delete per table, children first
	for _, table := range []string{"failure_predictions", "machines"} {
		tx, err := repo.Begin(ctx)
		require.NoError(t, err)
		n, err := tx.DeleteAll(ctx, table)
		require.NoError(t, err, table)
		assert.Equal(t, int64(1), n, table)
		require.NoError(t, tx.Commit(ctx))
	}
	load()

	n, err := repo.CountRows(ctx, "machines")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	orphans, err := repo.CountOrphans(ctx, "failure_predictions", "machines", "machine_id")
	require.NoError(t, err)
	assert.Zero(t, orphans)
}

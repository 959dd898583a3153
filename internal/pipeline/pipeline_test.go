package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"sensoretl/internal/config"
	"sensoretl/internal/model"
	"sensoretl/internal/source"
	"sensoretl/internal/storage"
	_ "sensoretl/internal/storage/duckdb"
	"sensoretl/internal/storage/sqlite"
	"sensoretl/internal/transformer"
)

const schemaPath = "../../db/init_schema.sql"

const header = "Machine_ID,Machine_Type,Installation_Year,Operational_Hours,Temperature_C,Vibration_mms,Sound_dB," +
	"Oil_Level_pct,Coolant_Level_pct,Power_Consumption_kW,Last_Maintenance_Days_Ago,Maintenance_History_Count," +
	"Failure_History_Count,AI_Supervision,AI_Override_Events,Error_Codes_Last_30_Days,Remaining_Useful_Life_days," +
	"Failure_Within_7_Days,Laser_Intensity,Hydraulic_Pressure_bar,Coolant_Flow_L_min,Heat_Index"

var threeRows = []string{
	"M1,Lathe,2010,1000,70.5,1.2,80,90,85,5.5,10,3,1,1,2,4,100,0,55.5,,,",
	"M1,Lathe,2010,1001,71.0,1.3,81,89,84,5.6,11,3,1,0,0,0,99,1,,120,,",
	"M2,Mill,2015,500,60.0,0.9,70,95,90,3.2,5,1,0,true,1,2,200,False,,,12.5,31",
}

var runAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func writeCSV(t *testing.T, hdr string, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensors.csv")
	body := hdr + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testPipeline(t *testing.T, csvPath, dsn string) config.Pipeline {
	t.Helper()
	seed := uint64(42)
	p := config.Defaults()
	p.Source.File.Path = csvPath
	p.Schema.Path = schemaPath
	p.Storage.DB.DSN = dsn
	p.Transform.Seed = &seed
	return p
}

func testRunner(t *testing.T) *Runner {
	r := NewDefaultRunner(zaptest.NewLogger(t))
	r.Now = func() time.Time { return runAt }
	return r
}

func newMemRepo(t *testing.T) *sqlite.MultiRepo {
	t.Helper()
	repo, err := sqlite.NewMulti(context.Background(), storage.MultiConfig{Kind: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo.(*sqlite.MultiRepo)
}

func buildBatch(t *testing.T, rows ...string) *model.Batch {
	t.Helper()
	tab, err := source.ReadCSV(context.Background(), strings.NewReader(header+"\n"+strings.Join(rows, "\n")+"\n"), nil)
	require.NoError(t, err)
	b, err := transformer.Transform(tab, transformer.Options{
		Seed:  1,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Now:   runAt,
	})
	require.NoError(t, err)
	return b
}

func counts(t *testing.T, repo storage.MultiRepository) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, tbl := range model.LoadOrder {
		n, err := repo.CountRows(context.Background(), tbl)
		require.NoError(t, err)
		out[tbl] = n
	}
	return out
}

func scalar(t *testing.T, repo *sqlite.MultiRepo, q string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, repo.DB().QueryRowContext(context.Background(), q).Scan(&n))
	return n
}

var wantThreeRowCounts = map[string]int64{
	model.TableMachines:               2,
	model.TableSensorReadings:         3,
	model.TableMaintenanceRecords:     3,
	model.TableAIMonitoring:           3,
	model.TableMachineSpecificSensors: 3,
	model.TableFailurePredictions:     3,
}

func TestRun_ThreeRowScenario(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "etl.sqlite")
	res, err := testRunner(t).Run(context.Background(), testPipeline(t, writeCSV(t, header, threeRows...), dsn))
	require.NoError(t, err)

	assert.Equal(t, Closed, res.State)
	assert.Equal(t, uint64(42), res.Seed)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, wantThreeRowCounts, res.Report.Counts)
	assert.Zero(t, res.Report.OrphanTotal())
	assert.Empty(t, res.Report.Errors)
	require.Len(t, res.Loads, len(model.LoadOrder))
	for i, tl := range res.Loads {
		assert.Equal(t, model.LoadOrder[i], tl.Table)
		assert.Equal(t, tl.Inserted, tl.Count)
	}

	require.Len(t, res.Report.Labels, 2)
	assert.Equal(t, "false", res.Report.Labels[0].Label)
	assert.Equal(t, int64(2), res.Report.Labels[0].Count)
	assert.InDelta(t, 66.67, res.Report.Labels[0].Percent, 0.01)
	assert.Equal(t, "true", res.Report.Labels[1].Label)
	assert.Equal(t, int64(1), res.Report.Labels[1].Count)

	repo, err := sqlite.NewMulti(context.Background(), storage.MultiConfig{Kind: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer repo.Close()
	db := repo.(*sqlite.MultiRepo)

	assert.Equal(t, int64(2), scalar(t, db, "SELECT COUNT(*) FROM machine_specific_sensors WHERE laser_intensity IS NULL"))
	assert.Equal(t, int64(0), scalar(t, db, "SELECT COUNT(*) FROM machine_specific_sensors WHERE laser_intensity = 0"))
	assert.Equal(t, int64(3), scalar(t, db, "SELECT COUNT(*) FROM vw_ml_dataset"))
}

func TestRun_TwiceGivesEqualCounts(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "etl.sqlite")
	p := testPipeline(t, writeCSV(t, header, threeRows...), dsn)
	r := testRunner(t)

	first, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, first.Report.Counts, second.Report.Counts)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_PerTableMode(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "etl.sqlite")
	p := testPipeline(t, writeCSV(t, header, threeRows...), dsn)
	p.Storage.DB.LoadMode = config.LoadModePerTable

	res, err := testRunner(t).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, wantThreeRowCounts, res.Report.Counts)
}

func TestRun_DuckDBPerTableRerun(t *testing.T) {
	t.Parallel()

	p := testPipeline(t, writeCSV(t, header, threeRows...), filepath.Join(t.TempDir(), "etl.duckdb"))
	p.Storage.Kind = "duckdb"
	p.Storage.DB.LoadMode = config.LoadModePerTable
	r := testRunner(t)

	first, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, wantThreeRowCounts, first.Report.Counts)
	assert.Equal(t, first.Report.Counts, second.Report.Counts)
	assert.Zero(t, second.Report.OrphanTotal())
	assert.Empty(t, second.Report.Errors)
}

func TestRun_DuckDBAtomicIsRejected(t *testing.T) {
	t.Parallel()

	r := testRunner(t)
	r.NewRepository = func(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error) {
		t.Fatalf("store opened for duckdb in atomic mode")
		return nil, nil
	}
	p := testPipeline(t, "unused.csv", filepath.Join(t.TempDir(), "etl.duckdb"))
	p.Storage.Kind = "duckdb"
	p.Storage.DB.LoadMode = config.LoadModeAtomic

	_, err := r.Run(context.Background(), p)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageConfig, se.Stage)
	assert.Contains(t, err.Error(), "per_table")
}

func TestRun_MissingRequiredColumnAbortsBeforeLoad(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "etl.sqlite")
	r := testRunner(t)
	_, err := r.Run(context.Background(), testPipeline(t, writeCSV(t, header, threeRows...), dsn))
	require.NoError(t, err)

	// drop Sound_dB from header and rows
	drop := func(line string) string {
		f := strings.Split(line, ",")
		return strings.Join(append(f[:6:6], f[7:]...), ",")
	}
	rows := make([]string, len(threeRows))
	for i, row := range threeRows {
		rows[i] = drop(row)
	}
	res, err := r.Run(context.Background(), testPipeline(t, writeCSV(t, drop(header), rows...), dsn))
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageRead, se.Stage)
	assert.Equal(t, SchemaReady, se.State)
	var mc *source.MissingColumnsError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, []string{"Sound_dB"}, mc.Missing)
	assert.Equal(t, Closed, res.State)

	repo, err := sqlite.NewMulti(context.Background(), storage.MultiConfig{Kind: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, wantThreeRowCounts, counts(t, repo))
}

type countingRepo struct {
	storage.MultiRepository
	closes int
}

func (c *countingRepo) Close() {
	c.closes++
	c.MultiRepository.Close()
}

func TestRun_ClosesStoreOnceOnFailure(t *testing.T) {
	t.Parallel()

	var opened *countingRepo
	r := testRunner(t)
	r.NewRepository = func(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error) {
		repo, err := storage.NewMulti(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opened = &countingRepo{MultiRepository: repo}
		return opened, nil
	}

	bad := "M3,Press,2012,1,1,1,1,1,1,1,1,1,1,maybe,1,1,1,0,,,,"
	_, err := r.Run(context.Background(), testPipeline(t, writeCSV(t, header, bad), ":memory:"))

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageTransform, se.Stage)
	assert.Equal(t, SourceLoaded, se.State)
	var re *transformer.RowError
	require.ErrorAs(t, err, &re)
	require.NotNil(t, opened)
	assert.Equal(t, 1, opened.closes)
}

func TestRun_InvalidConfigNeverOpensStore(t *testing.T) {
	t.Parallel()

	r := testRunner(t)
	r.NewRepository = func(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error) {
		t.Fatalf("store opened despite invalid config")
		return nil, nil
	}
	p := testPipeline(t, "unused.csv", ":memory:")
	p.Storage.DB.LoadMode = "sometimes"

	_, err := r.Run(context.Background(), p)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageConfig, se.Stage)
	assert.Contains(t, err.Error(), "storage.db.load_mode")
}

func TestRun_OpenFailureIsFatal(t *testing.T) {
	t.Parallel()

	r := testRunner(t)
	r.NewRepository = func(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error) {
		return nil, errors.New("connection refused")
	}
	_, err := r.Run(context.Background(), testPipeline(t, "unused.csv", ":memory:"))

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageOpen, se.Stage)
	assert.Equal(t, Idle, se.State)
}

func TestRun_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testRunner(t).Run(ctx, testPipeline(t, writeCSV(t, header, threeRows...), ":memory:"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestBootstrap_ArtifactIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newMemRepo(t)
	cfg := config.Schema{Path: schemaPath}
	require.NoError(t, Bootstrap(context.Background(), repo, cfg, zap.NewNop()))
	require.NoError(t, Bootstrap(context.Background(), repo, cfg, zap.NewNop()))
	for _, n := range counts(t, repo) {
		assert.Zero(t, n)
	}
}

func TestBootstrap_MissingArtifact(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.sql")

	t.Run("warns_and_continues", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		repo := newMemRepo(t)

		require.NoError(t, Bootstrap(context.Background(), repo, config.Schema{Path: missing}, zap.New(core)))
		assert.Equal(t, 1, logs.FilterMessage("schema artifact not found; continuing without it").Len())
		_, err := repo.CountRows(context.Background(), model.TableMachines)
		assert.Error(t, err, "no tables expected without auto_create")
	})

	t.Run("auto_create", func(t *testing.T) {
		repo := newMemRepo(t)
		require.NoError(t, Bootstrap(context.Background(), repo, config.Schema{Path: missing, AutoCreate: true}, zap.NewNop()))
		for _, n := range counts(t, repo) {
			assert.Zero(t, n)
		}
	})
}

type failingRepo struct {
	storage.MultiRepository
	failTable string
}

func (f *failingRepo) Begin(ctx context.Context) (storage.LoadTx, error) {
	tx, err := f.MultiRepository.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{LoadTx: tx, failTable: f.failTable}, nil
}

type failingTx struct {
	storage.LoadTx
	failTable string
}

var errInjected = errors.New("injected insert failure")

func (t *failingTx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if table == t.failTable {
		return 0, errInjected
	}
	return t.LoadTx.InsertRows(ctx, table, columns, rows)
}

func TestLoad_AtomicFailureRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo(t)
	require.NoError(t, Bootstrap(ctx, repo, config.Schema{Path: schemaPath}, zap.NewNop()))

	_, err := Load(ctx, repo, buildBatch(t, threeRows...), config.LoadModeAtomic, zap.NewNop())
	require.NoError(t, err)

	bigger := buildBatch(t, append(threeRows, "M9,Press,2020,1,1,1,1,1,1,1,1,1,1,0,0,0,10,1,,,,")...)
	_, err = Load(ctx, &failingRepo{MultiRepository: repo, failTable: model.TableFailurePredictions}, bigger, config.LoadModeAtomic, zap.NewNop())
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, wantThreeRowCounts, counts(t, repo))
}

func TestLoad_PerTableRerunRestoresConsistency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo(t)
	require.NoError(t, Bootstrap(ctx, repo, config.Schema{Path: schemaPath}, zap.NewNop()))
	batch := buildBatch(t, threeRows...)

	core, logs := observer.New(zapcore.WarnLevel)
	_, err := Load(ctx, &failingRepo{MultiRepository: repo, failTable: model.TableAIMonitoring}, batch, config.LoadModePerTable, zap.New(core))
	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, 1, logs.FilterMessageSnippet("rerun the pipeline").Len())

	partial := counts(t, repo)
	assert.Equal(t, int64(2), partial[model.TableMachines])
	assert.Equal(t, int64(3), partial[model.TableMaintenanceRecords])
	assert.Zero(t, partial[model.TableAIMonitoring])
	assert.Zero(t, partial[model.TableFailurePredictions])

	loads, err := Load(ctx, repo, batch, config.LoadModePerTable, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, loads, len(model.LoadOrder))
	assert.Equal(t, wantThreeRowCounts, counts(t, repo))
	assert.Zero(t, Validate(ctx, repo, zap.NewNop()).OrphanTotal())
}

func TestLoad_UnknownMode(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), newMemRepo(t), &model.Batch{}, "eventually", zap.NewNop())
	require.Error(t, err)
}

func TestValidate_OrphansAndUnknownLabel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo(t)
	require.NoError(t, Bootstrap(ctx, repo, config.Schema{Path: schemaPath}, zap.NewNop()))

	_, err := repo.DB().ExecContext(ctx, "PRAGMA foreign_keys = OFF")
	require.NoError(t, err)
	for _, q := range []string{
		`INSERT INTO machines (machine_id, machine_type, installation_year, created_at) VALUES ('M1', 'Lathe', 2010, '2025-06-01T12:00:00Z')`,
		`INSERT INTO sensor_readings (reading_id, machine_id, reading_timestamp) VALUES (1, 'M1', '2024-01-01T00:00:00Z'), (2, 'GHOST', '2024-01-02T00:00:00Z')`,
		`INSERT INTO failure_predictions (prediction_id, machine_id, failure_within_7_days, predicted_at) VALUES (1, 'M1', 1, '2024-01-01T00:00:00Z'), (2, 'M1', NULL, '2024-01-02T00:00:00Z')`,
	} {
		_, err := repo.DB().ExecContext(ctx, q)
		require.NoError(t, err)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	rep := Validate(ctx, repo, zap.New(core))

	assert.Equal(t, int64(1), rep.Orphans[model.TableSensorReadings])
	assert.Equal(t, int64(1), rep.OrphanTotal())
	warns := logs.FilterMessage("orphaned foreign keys").All()
	require.Len(t, warns, 1)
	assert.Equal(t, zapcore.WarnLevel, warns[0].Level)

	assert.Equal(t, []LabelShare{
		{Label: "true", Count: 1, Percent: 50},
		{Label: LabelUnknown, Count: 1, Percent: 50},
	}, rep.Labels)
	assert.Equal(t, int64(2), rep.Counts[model.TableSensorReadings])
}

type brokenRepo struct{ storage.MultiRepository }

var errBroken = errors.New("store gone")

func (brokenRepo) CountRows(context.Context, string) (int64, error) { return 0, errBroken }
func (brokenRepo) CountOrphans(context.Context, string, string, string) (int64, error) {
	return 0, errBroken
}
func (brokenRepo) GroupCounts(context.Context, string, string) ([]storage.GroupCount, error) {
	return nil, errBroken
}

func TestValidate_NeverAborts(t *testing.T) {
	t.Parallel()

	rep := Validate(context.Background(), brokenRepo{}, zap.NewNop())
	assert.Len(t, rep.Errors, len(model.ChildTables)+1+len(model.LoadOrder))
	assert.Empty(t, rep.Counts)
}

func TestLabelShares_FoldsEncodings(t *testing.T) {
	t.Parallel()

	got := labelShares([]storage.GroupCount{
		{Value: int64(1), Count: 3},
		{Value: true, Count: 1},
		{Value: []byte("0"), Count: 2},
		{Value: nil, Count: 2},
	})
	assert.Equal(t, []LabelShare{
		{Label: "false", Count: 2, Percent: 25},
		{Label: "true", Count: 4, Percent: 50},
		{Label: LabelUnknown, Count: 2, Percent: 25},
	}, got)
	assert.Empty(t, labelShares(nil))
}

func TestTransformOptions(t *testing.T) {
	t.Parallel()

	seed := uint64(9)
	opt, err := transformOptions(config.Transform{Seed: &seed, TimestampStart: "2024-01-01", TimestampEnd: "2024-12-31"}, runAt)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), opt.Seed)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), opt.End)
	assert.Equal(t, runAt, opt.Now)

	_, err = transformOptions(config.Transform{TimestampStart: "01/01/2024", TimestampEnd: "2024-12-31"}, runAt)
	assert.Error(t, err)
}

func TestStateAndStageError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "schema_ready", SchemaReady.String())
	assert.Equal(t, "state(42)", State(42).String())

	err := error(&StageError{Stage: StageLoad, State: Transformed, Err: context.DeadlineExceeded})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "load (after transformed): context deadline exceeded", err.Error())
}

// Package pipeline runs the five sequential stages of a normalization run
// (bootstrap, read, transform, load, validate) against one store handle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sensoretl/internal/config"
	"sensoretl/internal/metrics"
	"sensoretl/internal/model"
	"sensoretl/internal/schema"
	"sensoretl/internal/source"
	"sensoretl/internal/storage"
	"sensoretl/internal/transformer"
)

// Stage names used in logs, metrics and StageError.
const (
	StageConfig    = "config"
	StageOpen      = "open"
	StageBootstrap = "bootstrap"
	StageRead      = "read"
	StageTransform = "transform"
	StageLoad      = "load"
	StageValidate  = "validate"
)

// Runner executes pipeline runs.
type Runner struct {
	// storage-agnostic factory seam
	NewRepository func(ctx context.Context, cfg storage.MultiConfig) (storage.MultiRepository, error)

	// Now stamps machines.created_at; defaults to time.Now.
	Now func() time.Time

	Log *zap.Logger
}

// NewDefaultRunner returns a Runner backed by the storage registry. Backends
// must be linked in by the caller (see internal/storage/all).
func NewDefaultRunner(log *zap.Logger) *Runner {
	return &Runner{
		NewRepository: storage.NewMulti,
		Now:           time.Now,
		Log:           log,
	}
}

// Result summarizes a run. It is returned even when the run fails, carrying
// whatever was produced before the failure.
type Result struct {
	RunID   string
	Seed    uint64
	State   State
	Quality source.QualityReport
	Loads   []TableLoad
	Report  Report
}

// Run executes one full pipeline run. The store is opened once and closed
// exactly once on every path; every fatal failure is a *StageError.
func (r *Runner) Run(ctx context.Context, p config.Pipeline) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), State: Idle}
	log := r.logger().With(zap.String("run_id", res.RunID))
	fail := func(stage string, err error) (*Result, error) {
		se := &StageError{Stage: stage, State: res.State, Err: err}
		log.Error("pipeline failed", zap.String("stage", stage), zap.Stringer("state", res.State), zap.Error(err))
		res.State = Closed
		return res, se
	}

	if err := checkConfig(p, log); err != nil {
		return fail(StageConfig, err)
	}
	topt, err := transformOptions(p.Transform, r.now())
	if err != nil {
		return fail(StageConfig, err)
	}
	res.Seed = topt.Seed
	log.Info("pipeline starting",
		zap.String("source", p.Source.File.Path),
		zap.String("storage", p.Storage.Kind),
		zap.String("load_mode", p.Storage.DB.LoadMode),
		zap.Uint64("seed", topt.Seed))

	repo, err := r.open(ctx, p)
	if err != nil {
		return fail(StageOpen, err)
	}
	defer func() {
		repo.Close()
		res.State = Closed
		log.Info("store closed")
	}()

	step := func(stage string, next State, fn func() error) error {
		start := time.Now()
		err := fn()
		if err == nil {
			err = ctx.Err()
		}
		d := time.Since(start)
		metrics.RecordStep(p.Job, stage, err, d)
		if err != nil {
			return err
		}
		res.State = next
		log.Info("stage ok", zap.String("stage", stage), zap.Int64("duration_ms", durMS(d)))
		return nil
	}

	schemaCfg := config.Schema{Path: p.SchemaPath(), AutoCreate: p.Schema.AutoCreate}
	if err := step(StageBootstrap, SchemaReady, func() error {
		return Bootstrap(ctx, repo, schemaCfg, log)
	}); err != nil {
		return fail(StageBootstrap, err)
	}

	var table *source.Table
	if err := step(StageRead, SourceLoaded, func() error {
		var err error
		if table, err = source.Read(ctx, p.Source.File.Path, p.Parser.Kind, p.Parser.Options); err != nil {
			return err
		}
		if res.Quality, err = source.Inspect(table, schema.SensorContract()); err != nil {
			return err
		}
		res.Quality.Log(log)
		recordQuality(p.Job, res.Quality)
		return nil
	}); err != nil {
		return fail(StageRead, err)
	}

	var batch *model.Batch
	if err := step(StageTransform, Transformed, func() error {
		var err error
		if batch, err = transformer.Transform(table, topt); err != nil {
			return err
		}
		log.Info("batch built",
			zap.Int("source_rows", table.Len()),
			zap.Int("machines", len(batch.Machines)))
		return nil
	}); err != nil {
		return fail(StageTransform, err)
	}

	if err := step(StageLoad, Loaded, func() error {
		var err error
		if res.Loads, err = Load(ctx, repo, batch, p.Storage.DB.LoadMode, log); err != nil {
			return err
		}
		for _, tl := range res.Loads {
			metrics.RecordRows(p.Job, tl.Table, tl.Inserted)
		}
		return nil
	}); err != nil {
		return fail(StageLoad, err)
	}

	_ = step(StageValidate, Validated, func() error {
		res.Report = Validate(ctx, repo, log)
		metrics.RecordQuality(p.Job, "orphans", res.Report.OrphanTotal())
		return nil
	})

	log.Info("pipeline finished", zap.Stringer("state", res.State))
	return res, nil
}

// ValidateOnly opens the store and runs the post-load validator without
// touching data.
func (r *Runner) ValidateOnly(ctx context.Context, p config.Pipeline) (Report, error) {
	log := r.logger().With(zap.String("run_id", uuid.NewString()))
	repo, err := r.open(ctx, p)
	if err != nil {
		return Report{}, &StageError{Stage: StageOpen, State: Idle, Err: err}
	}
	defer repo.Close()

	start := time.Now()
	rep := Validate(ctx, repo, log)
	metrics.RecordStep(p.Job, StageValidate, nil, time.Since(start))
	return rep, nil
}

func (r *Runner) open(ctx context.Context, p config.Pipeline) (storage.MultiRepository, error) {
	if r.NewRepository == nil {
		return nil, errors.New("runner: NewRepository is nil")
	}
	repo, err := r.NewRepository(ctx, storage.MultiConfig{
		Kind:      p.Storage.Kind,
		DSN:       os.ExpandEnv(p.Storage.DB.DSN),
		BatchSize: p.Runtime.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", p.Storage.Kind, err)
	}
	return repo, nil
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// checkConfig logs warnings and joins errors.
func checkConfig(p config.Pipeline, log *zap.Logger) error {
	var errs []error
	for _, iss := range config.ValidatePipeline(p) {
		if iss.Severity == config.SeverityError {
			errs = append(errs, iss)
			continue
		}
		log.Warn("config warning", zap.String("path", iss.Path), zap.String("message", iss.Message))
	}
	return errors.Join(errs...)
}

// transformOptions resolves the seed (a nil seed draws a fresh one) and parses
// the timestamp window.
func transformOptions(t config.Transform, now time.Time) (transformer.Options, error) {
	start, err := time.Parse(time.DateOnly, t.TimestampStart)
	if err != nil {
		return transformer.Options{}, fmt.Errorf("timestamp_start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, t.TimestampEnd)
	if err != nil {
		return transformer.Options{}, fmt.Errorf("timestamp_end: %w", err)
	}
	seed := rand.Uint64()
	if t.Seed != nil {
		seed = *t.Seed
	}
	return transformer.Options{Seed: seed, Start: start, End: end, Now: now.UTC()}, nil
}

func recordQuality(job string, q source.QualityReport) {
	var nulls int64
	for _, n := range q.NullCounts {
		nulls += int64(n)
	}
	metrics.RecordQuality(job, "null_required", nulls)
	metrics.RecordQuality(job, "duplicate_rows", int64(q.DuplicateRows))
}

func durMS(d time.Duration) int64 { return d.Milliseconds() }

// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the pipeline.
//
//   - Backend is a narrow interface focused on counters and timings.
//   - The global backend defaults to a no-op, so instrumentation is always
//     safe to call even when no metrics system is configured.
//   - Concrete systems (Datadog, Prometheus Pushgateway) live in subpackages.
package metrics

import (
	"sync"
	"time"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Metric names shared by every backend.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	RowsLoadedTotal     = "etl_rows_loaded_total"
	QualityFindings     = "etl_quality_findings_total"
)

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep records latency and success/failure for one pipeline stage.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRows counts rows inserted into table.
func RecordRows(job, table string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsLoadedTotal, float64(n), Labels{
		"job":   job,
		"table": table,
	})
}

// RecordQuality counts advisory data-quality findings. Typical kinds:
//   - "null_required"
//   - "duplicate_rows"
//   - "orphans"
func RecordQuality(job, kind string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(QualityFindings, float64(n), Labels{
		"job":  job,
		"kind": kind,
	})
}

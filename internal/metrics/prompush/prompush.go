// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A batch job has no scrape endpoint, so collected metrics
// are pushed to a Pushgateway on Flush.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"sensoretl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // etl_step_total
	stepDuration  *prometheus.SummaryVec // etl_step_duration_seconds
	rowsCounter   *prometheus.CounterVec // etl_rows_loaded_total
	qualityCounts *prometheus.CounterVec // etl_quality_findings_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "sensoretl"
	}

	reg := prometheus.NewRegistry()
	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        reg,
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Pipeline stage executions, partitioned by step and status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.StepDurationSeconds,
				Help:       "Duration of pipeline stages in seconds.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"step", "status"},
		),
		rowsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsLoadedTotal,
				Help: "Rows inserted per target table.",
			},
			[]string{"table"},
		),
		qualityCounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.QualityFindings,
				Help: "Advisory data-quality findings (nulls, duplicates, orphans).",
			},
			[]string{"kind"},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":    b.stepCounter,
		"step summary":    b.stepDuration,
		"rows counter":    b.rowsCounter,
		"quality counter": b.qualityCounts,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RowsLoadedTotal:
		b.rowsCounter.WithLabelValues(labels["table"]).Add(delta)
	case metrics.QualityFindings:
		b.qualityCounts.WithLabelValues(labels["kind"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}

var _ metrics.Backend = (*Backend)(nil)

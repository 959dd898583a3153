package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"sensoretl/internal/config"
	"sensoretl/internal/metrics"
	"sensoretl/internal/metrics/datadog"
	"sensoretl/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend and returns its
// shutdown hook. A backend that fails to initialize leaves the no-op backend
// in place; metrics never fail a run.
func setupMetrics(ctx context.Context, p config.Pipeline, log *zap.Logger) func() {
	switch p.Metrics.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(p.Job, p.Metrics.PushgatewayURL)
		if err != nil {
			log.Warn("metrics: pushgateway backend unavailable; using nop", zap.Error(err))
			return func() {}
		}
		metrics.SetBackend(b)
		log.Info("metrics: pushgateway", zap.String("url", p.Metrics.PushgatewayURL))
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn("metrics: push failed", zap.Error(err))
			}
		}

	case "datadog":
		tags := append([]string(nil), p.Metrics.DatadogTags...)
		tags = append(tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    p.Job,
			Tags:       tags,
			FlushEvery: p.Metrics.FlushEvery,
		})
		if err != nil {
			log.Warn("metrics: datadog backend unavailable; using nop", zap.Error(err))
			return func() {}
		}
		metrics.SetBackend(b)
		log.Info("metrics: datadog", zap.Strings("tags", tags))
		return func() {
			// Close stops the flush loop, then flushes one last time.
			if err := b.Close(); err != nil {
				log.Warn("metrics: datadog close/flush failed", zap.Error(err))
			}
		}

	default:
		log.Debug("metrics: disabled", zap.String("backend", p.Metrics.Backend))
		return func() {}
	}
}

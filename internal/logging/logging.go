// Package logging builds the process logger: one zap.Logger writing the same
// timestamped lines to stdout and to an append-mode log file.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sensoretl/internal/config"
)

// New builds a logger from cfg. The returned logger must be synced by the
// caller before exit.
//
// Edge cases:
//   - cfg.File empty: stdout only.
//   - Unknown level falls back to info.
func New(cfg config.Logging, job string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.Encoding = encoding(cfg.Format)
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.Sampling = nil

	zcfg.OutputPaths = []string{"stdout"}
	if f := strings.TrimSpace(cfg.File); f != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, f)
	}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}
	if job != "" {
		l = l.With(zap.String("job", job))
	}
	return l, nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoding(format string) string {
	if format == "json" {
		return "json"
	}
	return "console"
}

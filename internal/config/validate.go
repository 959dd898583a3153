package config

import (
	"fmt"
	"strings"
	"time"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.db.load_mode").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation of a Pipeline. It does not mutate
// the pipeline; callers decide how to surface warnings.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateTransform(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateLogging(p.Logging)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	if p.Runtime.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must be >= 0",
		})
	}
	return issues
}

// Errors filters issues down to SeverityError.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			out = append(out, iss)
		}
	}
	return out
}

func validateSource(s Source) []Issue {
	if s.Kind != "file" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unsupported source kind %q (want file)", s.Kind),
		}}
	}
	if strings.TrimSpace(s.File.Path) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "source.file.path",
			Message:  "file source requires a non-empty path",
		}}
	}
	return nil
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	switch p.Kind {
	case "csv", "xlsx":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q (want csv or xlsx)", p.Kind),
		})
	}
	if p.Kind == "csv" {
		switch strings.ToLower(p.Options.String("encoding", "utf-8")) {
		case "utf-8", "utf8", "utf-16", "utf16", "latin1", "iso-8859-1":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.encoding",
				Message:  fmt.Sprintf("unsupported encoding %q", p.Options.String("encoding", "")),
			})
		}
		if c := p.Options.String("comma", ","); len([]rune(c)) != 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.comma",
				Message:  "comma must be a single character",
			})
		}
	}
	return issues
}

func validateTransform(t Transform) []Issue {
	var issues []Issue
	start, errStart := time.Parse(time.DateOnly, t.TimestampStart)
	if errStart != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "transform.timestamp_start",
			Message:  fmt.Sprintf("want YYYY-MM-DD: %v", errStart),
		})
	}
	end, errEnd := time.Parse(time.DateOnly, t.TimestampEnd)
	if errEnd != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "transform.timestamp_end",
			Message:  fmt.Sprintf("want YYYY-MM-DD: %v", errEnd),
		})
	}
	if errStart == nil && errEnd == nil && end.Before(start) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "transform.timestamp_end",
			Message:  "timestamp_end is before timestamp_start",
		})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	switch s.Kind {
	case "sqlite", "postgres", "mssql", "duckdb":
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "dsn must not be empty",
		})
	}
	switch s.DB.LoadMode {
	case LoadModeAtomic, LoadModePerTable:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.load_mode",
			Message:  fmt.Sprintf("unsupported load_mode %q (want %s or %s)", s.DB.LoadMode, LoadModeAtomic, LoadModePerTable),
		})
	}
	if s.Kind == "duckdb" && s.DB.LoadMode == LoadModeAtomic {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.load_mode",
			Message:  "duckdb cannot clear and reload the tables in one transaction; use load_mode per_table",
		})
	}
	return issues
}

func validateLogging(l Logging) []Issue {
	var issues []Issue
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "logging.level",
			Message:  fmt.Sprintf("unsupported level %q", l.Level),
		})
	}
	switch l.Format {
	case "console", "json":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "logging.format",
			Message:  fmt.Sprintf("unsupported format %q (want console or json)", l.Format),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none", "datadog":
		return nil
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			}}
		}
		return nil
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unsupported metrics backend %q", m.Backend),
		}}
	}
}

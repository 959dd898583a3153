// Package config defines the pipeline configuration model for sensoretl.
//
// A pipeline file is YAML or JSON (JSON is decoded by the YAML decoder, so both
// share one code path). Every field has a default, so an empty file describes
// the stock run: data/raw CSV -> SQLite file store.
//
// Example (trimmed):
//
//	job: sensor_normalize
//	source: { kind: file, file: { path: data/raw/factory_sensor_simulator_2040.csv } }
//	parser: { kind: csv, options: { comma: ",", encoding: utf-8 } }
//	transform: { seed: 42 }
//	storage: { kind: sqlite, db: { dsn: db/hermes_reply.sqlite, load_mode: atomic } }
package config

import (
	"time"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	Job       string    `yaml:"job" json:"job"`
	Source    Source    `yaml:"source" json:"source"`
	Parser    Parser    `yaml:"parser" json:"parser"`
	Schema    Schema    `yaml:"schema" json:"schema"`
	Transform Transform `yaml:"transform" json:"transform"`
	Storage   Storage   `yaml:"storage" json:"storage"`
	Runtime   Runtime   `yaml:"runtime" json:"runtime"`
	Logging   Logging   `yaml:"logging" json:"logging"`
	Metrics   Metrics   `yaml:"metrics" json:"metrics"`
}

// Source identifies where the flat sensor table comes from.
type Source struct {
	// Kind selects the source implementation. Current value: "file".
	Kind string     `yaml:"kind" json:"kind"`
	File SourceFile `yaml:"file" json:"file"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `yaml:"path" json:"path"`
}

// Parser selects how the source bytes become a table.
type Parser struct {
	// Kind is "csv" or "xlsx".
	Kind string `yaml:"kind" json:"kind"`

	// Options is interpreted by the parser. Typical CSV keys:
	//   comma (string), trim_space (bool), lazy_quotes (bool),
	//   encoding (utf-8|utf-16|latin1), header_map (object)
	// XLSX keys:
	//   sheet (string)
	Options Options `yaml:"options" json:"options"`
}

// Schema points at the DDL artifact applied by the bootstrapper.
type Schema struct {
	// Path defaults per storage kind, see Pipeline.SchemaPath.
	Path string `yaml:"path" json:"path"`

	// AutoCreate creates the six tables from built-in specs when Path is missing.
	AutoCreate bool `yaml:"auto_create" json:"auto_create"`
}

// Transform configures the row fan-out.
type Transform struct {
	// Seed drives the timestamp permutation. Nil means a fresh seed per run
	// (logged so the run can be reproduced).
	Seed *uint64 `yaml:"seed" json:"seed"`

	// TimestampStart and TimestampEnd bound the synthetic event times
	// (YYYY-MM-DD, both inclusive).
	TimestampStart string `yaml:"timestamp_start" json:"timestamp_start"`
	TimestampEnd   string `yaml:"timestamp_end" json:"timestamp_end"`
}

// Storage selects the relational store.
type Storage struct {
	// Kind is a registered backend: sqlite, postgres, mssql, duckdb.
	Kind string   `yaml:"kind" json:"kind"`
	DB   DBConfig `yaml:"db" json:"db"`
}

// DBConfig configures the store connection and load behavior.
type DBConfig struct {
	// DSN is passed to the backend driver. Environment variables are expanded.
	DSN string `yaml:"dsn" json:"dsn"`

	// LoadMode is "atomic" (one transaction for all tables) or "per_table".
	LoadMode string `yaml:"load_mode" json:"load_mode"`
}

// Runtime controls batching.
type Runtime struct {
	// BatchSize caps the rows per INSERT statement. Backends lower it further
	// to stay under their bind-parameter limit.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// Logging configures the process logger.
type Logging struct {
	File   string `yaml:"file" json:"file"`
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	// Backend is none, datadog or pushgateway.
	Backend        string        `yaml:"backend" json:"backend"`
	PushgatewayURL string        `yaml:"pushgateway_url" json:"pushgateway_url"`
	DatadogTags    []string      `yaml:"datadog_tags" json:"datadog_tags"`
	FlushEvery     time.Duration `yaml:"flush_every" json:"flush_every"`
}

// Load modes.
const (
	LoadModeAtomic   = "atomic"
	LoadModePerTable = "per_table"
)

// Defaults returns the stock pipeline.
func Defaults() Pipeline {
	return Pipeline{
		Job: "sensor_normalize",
		Source: Source{
			Kind: "file",
			File: SourceFile{Path: "data/raw/factory_sensor_simulator_2040.csv"},
		},
		Parser: Parser{Kind: "csv", Options: Options{}},
		Transform: Transform{
			TimestampStart: "2024-01-01",
			TimestampEnd:   "2024-12-31",
		},
		Storage: Storage{
			Kind: "sqlite",
			DB: DBConfig{
				DSN:      "db/hermes_reply.sqlite",
				LoadMode: LoadModeAtomic,
			},
		},
		Runtime: Runtime{BatchSize: 500},
		Logging: Logging{File: "etl_process.log", Level: "info", Format: "console"},
		Metrics: Metrics{Backend: "none", FlushEvery: time.Minute},
	}
}

// SchemaPath returns the configured DDL artifact, or the artifact shipped for
// the storage kind under db/.
func (p Pipeline) SchemaPath() string {
	if p.Schema.Path != "" {
		return p.Schema.Path
	}
	switch p.Storage.Kind {
	case "postgres":
		return "db/init_schema.postgres.sql"
	case "mssql":
		return "db/init_schema.mssql.sql"
	default:
		return "db/init_schema.sql"
	}
}

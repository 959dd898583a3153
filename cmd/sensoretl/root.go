package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sensoretl/internal/config"
)

const envPrefix = "SENSORETL"

// NewRootCommand builds the command tree. Output goes to stdout; cobra's own
// error and usage text goes to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:          "sensoretl",
		Short:        "Normalize factory sensor exports into a relational store.",
		SilenceUsage: true,
	}
	rc.PersistentFlags().StringP("config", "c", "", "pipeline file (YAML or JSON); defaults apply when empty")

	rc.AddCommand(newRunCommand(stdout))
	rc.AddCommand(newValidateCommand(stdout))
	rc.AddCommand(newProfileCommand(stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// addPipelineFlags registers the overrides shared by run and validate.
func addPipelineFlags(fs *pflag.FlagSet) {
	fs.String("source", "", "source file path")
	fs.String("parser", "", "source parser: csv or xlsx")
	fs.String("storage", "", "storage kind: sqlite, postgres, mssql, duckdb")
	fs.String("dsn", "", "storage DSN (environment variables are expanded)")
	fs.String("schema", "", "DDL artifact path")
	fs.Bool("auto-create", false, "create built-in tables when the DDL artifact is missing")
	fs.Uint64("seed", 0, "timestamp permutation seed (random when unset)")
	fs.String("load-mode", "", "atomic or per_table")
	fs.Int("batch-size", 0, "max rows per INSERT statement")
	fs.String("log-file", "", "log file path (empty: stdout only)")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "console or json")
	fs.String("metrics-backend", "", "none, datadog or pushgateway")
	fs.String("pushgateway-url", "", "Pushgateway base URL")
}

// newViper binds flags and SENSORETL_* environment variables.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// loadPipeline reads the config file named by v and applies every override
// that was set by flag or environment.
func loadPipeline(v *viper.Viper) (config.Pipeline, error) {
	p, err := config.Load(v.GetString("config"))
	if err != nil {
		return p, err
	}

	str := map[string]*string{
		"source":          &p.Source.File.Path,
		"parser":          &p.Parser.Kind,
		"storage":         &p.Storage.Kind,
		"dsn":             &p.Storage.DB.DSN,
		"schema":          &p.Schema.Path,
		"load-mode":       &p.Storage.DB.LoadMode,
		"log-file":        &p.Logging.File,
		"log-level":       &p.Logging.Level,
		"log-format":      &p.Logging.Format,
		"metrics-backend": &p.Metrics.Backend,
		"pushgateway-url": &p.Metrics.PushgatewayURL,
	}
	for key, dst := range str {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	if v.IsSet("auto-create") {
		p.Schema.AutoCreate = v.GetBool("auto-create")
	}
	if v.IsSet("batch-size") {
		p.Runtime.BatchSize = v.GetInt("batch-size")
	}
	if v.IsSet("seed") {
		seed := v.GetUint64("seed")
		p.Transform.Seed = &seed
	}
	return p, nil
}

// checkPipeline prints every issue and fails on errors.
func checkPipeline(w io.Writer, p config.Pipeline) error {
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if errs := config.Errors(issues); len(errs) > 0 {
		return fmt.Errorf("configuration is invalid (%d errors)", len(errs))
	}
	return nil
}

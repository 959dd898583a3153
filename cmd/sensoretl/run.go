package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sensoretl/internal/logging"
	"sensoretl/internal/pipeline"
)

func newRunCommand(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: schema, read, transform, load, validate.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				return err
			}
			p, err := loadPipeline(v)
			if err != nil {
				return err
			}

			log, err := logging.New(p.Logging, p.Job)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			closeMetrics := setupMetrics(ctx, p, log)
			defer closeMetrics()

			res, err := pipeline.NewDefaultRunner(log).Run(ctx, p)
			if err != nil {
				return err
			}
			log.Info("run complete", zap.String("run_id", res.RunID))
			printRun(stdout, res)
			return nil
		},
	}
	addPipelineFlags(cmd.Flags())
	return cmd
}

func printRun(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "run_id=%s seed=%d\n", res.RunID, res.Seed)
	for _, tl := range res.Loads {
		fmt.Fprintf(w, "loaded %s rows=%d\n", tl.Table, tl.Count)
	}
	printReport(w, res.Report)
}

func printReport(w io.Writer, rep pipeline.Report) {
	fmt.Fprintf(w, "orphans=%d\n", rep.OrphanTotal())
	for _, l := range rep.Labels {
		fmt.Fprintf(w, "failure_within_7_days=%s count=%d percent=%.2f\n", l.Label, l.Count, l.Percent)
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(w, "check failed: %s\n", e)
	}
}

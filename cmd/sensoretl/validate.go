package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sensoretl/internal/logging"
	"sensoretl/internal/model"
	"sensoretl/internal/pipeline"
)

func newValidateCommand(stdout io.Writer) *cobra.Command {
	var configOnly bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration, then run the post-load checks against the store.",
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
			if err := checkPipeline(stdout, p); err != nil {
				return err
			}
			if configOnly {
				fmt.Fprintln(stdout, "configuration is valid")
				return nil
			}

			log, err := logging.New(p.Logging, p.Job)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			rep, err := pipeline.NewDefaultRunner(log).ValidateOnly(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, t := range model.LoadOrder {
				fmt.Fprintf(stdout, "%s rows=%d\n", t, rep.Counts[t])
			}
			printReport(stdout, rep)
			return nil
		},
	}
	addPipelineFlags(cmd.Flags())
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "validate the configuration and exit")
	return cmd
}

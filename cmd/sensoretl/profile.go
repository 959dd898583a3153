package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sensoretl/internal/probe"
	"sensoretl/internal/schema"
	"sensoretl/internal/source"
)

func newProfileCommand(stdout io.Writer) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Infer column types and null counts of a source file without touching a store.",
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

			tab, err := source.Read(cmd.Context(), p.Source.File.Path, p.Parser.Kind, p.Parser.Options)
			if err != nil {
				return err
			}
			prof := probe.Run(tab, schema.SensorContract())

			switch format {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				err = enc.Encode(prof)
			case "text", "":
				err = prof.WriteText(stdout)
			default:
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
			if err != nil {
				return err
			}
			if len(prof.MissingRequired) > 0 {
				return fmt.Errorf("source lacks %d required columns", len(prof.MissingRequired))
			}
			return nil
		},
	}
	cmd.Flags().String("source", "", "source file path")
	cmd.Flags().String("parser", "", "source parser: csv or xlsx")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

// Command sensoretl normalizes a flat factory sensor export into six related
// tables.
//
//	sensoretl run      --config configs/pipeline.yaml
//	sensoretl validate --config configs/pipeline.yaml
//	sensoretl profile  --source data/raw/factory_sensor_simulator_2040.csv
//
// Every flag can also be set through a SENSORETL_* environment variable
// (dashes become underscores: --load-mode -> SENSORETL_LOAD_MODE). Flags and
// environment override values from the config file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	// register all backends with the storage factory
	_ "sensoretl/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := NewRootCommand(os.Stdout, os.Stderr)
	if err := rc.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// Package schema defines the two fixed contracts of the pipeline: the source
// column contract (Contract) and the six target tables (Tables).
package schema

import (
	"sensoretl/internal/model"
	"sensoretl/internal/storage"
)

var notNull = func() *bool { b := false; return &b }()

const machineRef = model.TableMachines + "(machine_id)"

// Tables returns the target table specs in dependency order. Backends use them
// to generate DDL when no schema artifact is available.
func Tables() []storage.TableSpec {
	return []storage.TableSpec{
		{
			Name:       model.TableMachines,
			PrimaryKey: &storage.PrimaryKeySpec{Name: "machine_id", Type: "VARCHAR(64)"},
			Columns: []storage.ColumnSpec{
				{Name: "machine_type", Type: "VARCHAR(64)"},
				{Name: "installation_year", Type: "INTEGER"},
				{Name: "created_at", Type: "TIMESTAMP", Nullable: notNull},
			},
		},
		{
			Name:       model.TableSensorReadings,
			PrimaryKey: &storage.PrimaryKeySpec{Name: "reading_id", Type: "BIGINT"},
			Columns: []storage.ColumnSpec{
				{Name: "machine_id", Type: "VARCHAR(64)", References: machineRef, Nullable: notNull},
				{Name: "operational_hours", Type: "DOUBLE PRECISION"},
				{Name: "temperature_c", Type: "DOUBLE PRECISION"},
				{Name: "vibration_mms", Type: "DOUBLE PRECISION"},
				{Name: "sound_db", Type: "DOUBLE PRECISION"},
				{Name: "oil_level_pct", Type: "DOUBLE PRECISION"},
				{Name: "coolant_level_pct", Type: "DOUBLE PRECISION"},
				{Name: "power_consumption_kw", Type: "DOUBLE PRECISION"},
				{Name: "reading_timestamp", Type: "TIMESTAMP", Nullable: notNull},
			},
		},
		{
			Name:       model.TableMaintenanceRecords,
			PrimaryKey: &storage.PrimaryKeySpec{Name: "maintenance_id", Type: "BIGINT"},
			Columns: []storage.ColumnSpec{
				{Name: "machine_id", Type: "VARCHAR(64)", References: machineRef, Nullable: notNull},
				{Name: "last_maintenance_days_ago", Type: "INTEGER"},
				{Name: "maintenance_history_count", Type: "INTEGER"},
				{Name: "failure_history_count", Type: "INTEGER"},
				{Name: "recorded_at", Type: "TIMESTAMP", Nullable: notNull},
			},
		},
		{
			Name:       model.TableAIMonitoring,
			PrimaryKey: &storage.PrimaryKeySpec{Name: "ai_record_id", Type: "BIGINT"},
			Columns: []storage.ColumnSpec{
				{Name: "machine_id", Type: "VARCHAR(64)", References: machineRef, Nullable: notNull},
				{Name: "ai_supervision", Type: "BOOLEAN"},
				{Name: "ai_override_events", Type: "INTEGER"},
				{Name: "error_codes_last_30_days", Type: "INTEGER"},
				{Name: "monitored_at", Type: "TIMESTAMP", Nullable: notNull},
			},
		},
		{
			Name:       model.TableMachineSpecificSensors,
			PrimaryKey: &storage.PrimaryKeySpec{Name: "specific_sensor_id", Type: "BIGINT"},
			Columns: []storage.ColumnSpec{
				{Name: "machine_id", Type: "VARCHAR(64)", References: machineRef, Nullable: notNull},
				{Name: model.SensorLaserIntensity, Type: "DOUBLE PRECISION"},
				{Name: model.SensorHydraulicPressureBar, Type: "DOUBLE PRECISION"},
				{Name: model.SensorCoolantFlowLMin, Type: "DOUBLE PRECISION"},
				{Name: model.SensorHeatIndex, Type: "DOUBLE PRECISION"},
				{Name: "measured_at", Type: "TIMESTAMP", Nullable: notNull},
			},
		},
		{
			Name:       model.TableFailurePredictions,
			PrimaryKey: &storage.PrimaryKeySpec{Name: "prediction_id", Type: "BIGINT"},
			Columns: []storage.ColumnSpec{
				{Name: "machine_id", Type: "VARCHAR(64)", References: machineRef, Nullable: notNull},
				{Name: "remaining_useful_life_days", Type: "DOUBLE PRECISION"},
				{Name: "failure_within_7_days", Type: "BOOLEAN"},
				{Name: "predicted_at", Type: "TIMESTAMP", Nullable: notNull},
			},
		},
	}
}

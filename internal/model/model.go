// Package model holds the six normalized record types produced from one flat
// sensor row, plus Batch, the load-ready bundle of all six collections.
package model

import (
	"database/sql"
	"time"
)

// Target table names, in load (dependency) order.
const (
	TableMachines               = "machines"
	TableSensorReadings         = "sensor_readings"
	TableMaintenanceRecords     = "maintenance_records"
	TableAIMonitoring           = "ai_monitoring"
	TableMachineSpecificSensors = "machine_specific_sensors"
	TableFailurePredictions     = "failure_predictions"
)

// LoadOrder lists every target table parents-first.
var LoadOrder = []string{
	TableMachines,
	TableSensorReadings,
	TableMaintenanceRecords,
	TableAIMonitoring,
	TableMachineSpecificSensors,
	TableFailurePredictions,
}

// ChildTables lists the tables holding a machine_id foreign key.
var ChildTables = LoadOrder[1:]

// Optional per-type sensors, by target column name.
const (
	SensorLaserIntensity       = "laser_intensity"
	SensorHydraulicPressureBar = "hydraulic_pressure_bar"
	SensorCoolantFlowLMin      = "coolant_flow_l_min"
	SensorHeatIndex            = "heat_index"
)

// SpecificSensors is the fixed column order of the optional sensor group.
var SpecificSensors = []string{
	SensorLaserIntensity,
	SensorHydraulicPressureBar,
	SensorCoolantFlowLMin,
	SensorHeatIndex,
}

// Machine is the deduplicated dimension row.
type Machine struct {
	MachineID        string
	MachineType      sql.Null[string]
	InstallationYear sql.Null[int64]
	CreatedAt        time.Time
}

type SensorReading struct {
	ReadingID          int64
	MachineID          string
	OperationalHours   sql.Null[float64]
	TemperatureC       sql.Null[float64]
	VibrationMMS       sql.Null[float64]
	SoundDB            sql.Null[float64]
	OilLevelPct        sql.Null[float64]
	CoolantLevelPct    sql.Null[float64]
	PowerConsumptionKW sql.Null[float64]
	ReadingTimestamp   time.Time
}

type MaintenanceRecord struct {
	MaintenanceID           int64
	MachineID               string
	LastMaintenanceDaysAgo  sql.Null[int64]
	MaintenanceHistoryCount sql.Null[int64]
	FailureHistoryCount     sql.Null[int64]
	RecordedAt              time.Time
}

type AIMonitoringRecord struct {
	AIRecordID           int64
	MachineID            string
	AISupervision        sql.Null[bool]
	AIOverrideEvents     sql.Null[int64]
	ErrorCodesLast30Days sql.Null[int64]
	MonitoredAt          time.Time
}

// MachineSpecificSensorReading carries the optional sensor group. A sensor
// whose value is unknown (blank, unparsable or column absent) is present in
// Sensors with Valid=false.
type MachineSpecificSensorReading struct {
	SpecificSensorID int64
	MachineID        string
	Sensors          map[string]sql.Null[float64]
	MeasuredAt       time.Time
}

type FailurePrediction struct {
	PredictionID            int64
	MachineID               string
	RemainingUsefulLifeDays sql.Null[float64]
	FailureWithin7Days      sql.Null[bool]
	PredictedAt             time.Time
}

// Batch is the output of one transform: six independently ordered collections.
type Batch struct {
	Machines               []Machine
	SensorReadings         []SensorReading
	MaintenanceRecords     []MaintenanceRecord
	AIMonitoring           []AIMonitoringRecord
	MachineSpecificSensors []MachineSpecificSensorReading
	FailurePredictions     []FailurePrediction
}

// TableData is one table's rows in insert shape: an explicit column list and
// positional values matching it. Unknown values are nil.
type TableData struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Tables returns the batch as insert-ready tables in LoadOrder.
func (b *Batch) Tables() []TableData {
	return []TableData{
		b.machinesTable(),
		b.sensorReadingsTable(),
		b.maintenanceTable(),
		b.aiMonitoringTable(),
		b.specificSensorsTable(),
		b.failurePredictionsTable(),
	}
}

// RowCounts returns the row count per table.
func (b *Batch) RowCounts() map[string]int {
	return map[string]int{
		TableMachines:               len(b.Machines),
		TableSensorReadings:         len(b.SensorReadings),
		TableMaintenanceRecords:     len(b.MaintenanceRecords),
		TableAIMonitoring:           len(b.AIMonitoring),
		TableMachineSpecificSensors: len(b.MachineSpecificSensors),
		TableFailurePredictions:     len(b.FailurePredictions),
	}
}

func (b *Batch) machinesTable() TableData {
	t := TableData{
		Name:    TableMachines,
		Columns: []string{"machine_id", "machine_type", "installation_year", "created_at"},
		Rows:    make([][]any, 0, len(b.Machines)),
	}
	for _, m := range b.Machines {
		t.Rows = append(t.Rows, []any{m.MachineID, nullable(m.MachineType), nullable(m.InstallationYear), m.CreatedAt})
	}
	return t
}

func (b *Batch) sensorReadingsTable() TableData {
	t := TableData{
		Name: TableSensorReadings,
		Columns: []string{
			"reading_id", "machine_id", "operational_hours", "temperature_c", "vibration_mms",
			"sound_db", "oil_level_pct", "coolant_level_pct", "power_consumption_kw", "reading_timestamp",
		},
		Rows: make([][]any, 0, len(b.SensorReadings)),
	}
	for _, r := range b.SensorReadings {
		t.Rows = append(t.Rows, []any{
			r.ReadingID, r.MachineID,
			nullable(r.OperationalHours), nullable(r.TemperatureC), nullable(r.VibrationMMS),
			nullable(r.SoundDB), nullable(r.OilLevelPct), nullable(r.CoolantLevelPct),
			nullable(r.PowerConsumptionKW), r.ReadingTimestamp,
		})
	}
	return t
}

func (b *Batch) maintenanceTable() TableData {
	t := TableData{
		Name: TableMaintenanceRecords,
		Columns: []string{
			"maintenance_id", "machine_id", "last_maintenance_days_ago",
			"maintenance_history_count", "failure_history_count", "recorded_at",
		},
		Rows: make([][]any, 0, len(b.MaintenanceRecords)),
	}
	for _, r := range b.MaintenanceRecords {
		t.Rows = append(t.Rows, []any{
			r.MaintenanceID, r.MachineID, nullable(r.LastMaintenanceDaysAgo),
			nullable(r.MaintenanceHistoryCount), nullable(r.FailureHistoryCount), r.RecordedAt,
		})
	}
	return t
}

func (b *Batch) aiMonitoringTable() TableData {
	t := TableData{
		Name: TableAIMonitoring,
		Columns: []string{
			"ai_record_id", "machine_id", "ai_supervision",
			"ai_override_events", "error_codes_last_30_days", "monitored_at",
		},
		Rows: make([][]any, 0, len(b.AIMonitoring)),
	}
	for _, r := range b.AIMonitoring {
		t.Rows = append(t.Rows, []any{
			r.AIRecordID, r.MachineID, nullable(r.AISupervision),
			nullable(r.AIOverrideEvents), nullable(r.ErrorCodesLast30Days), r.MonitoredAt,
		})
	}
	return t
}

func (b *Batch) specificSensorsTable() TableData {
	cols := make([]string, 0, 3+len(SpecificSensors))
	cols = append(cols, "specific_sensor_id", "machine_id")
	cols = append(cols, SpecificSensors...)
	cols = append(cols, "measured_at")

	t := TableData{
		Name:    TableMachineSpecificSensors,
		Columns: cols,
		Rows:    make([][]any, 0, len(b.MachineSpecificSensors)),
	}
	for _, r := range b.MachineSpecificSensors {
		row := make([]any, 0, len(cols))
		row = append(row, r.SpecificSensorID, r.MachineID)
		for _, s := range SpecificSensors {
			row = append(row, nullable(r.Sensors[s]))
		}
		row = append(row, r.MeasuredAt)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (b *Batch) failurePredictionsTable() TableData {
	t := TableData{
		Name: TableFailurePredictions,
		Columns: []string{
			"prediction_id", "machine_id", "remaining_useful_life_days",
			"failure_within_7_days", "predicted_at",
		},
		Rows: make([][]any, 0, len(b.FailurePredictions)),
	}
	for _, r := range b.FailurePredictions {
		t.Rows = append(t.Rows, []any{
			r.PredictionID, r.MachineID, nullable(r.RemainingUsefulLifeDays),
			nullable(r.FailureWithin7Days), r.PredictedAt,
		})
	}
	return t
}

// nullable maps an unknown value to nil so every driver binds SQL NULL.
func nullable[T any](n sql.Null[T]) any {
	if !n.Valid {
		return nil
	}
	return n.V
}

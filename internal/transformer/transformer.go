// Package transformer fans each source row out into the six normalized
// record collections.
package transformer

import (
	"database/sql"
	"fmt"
	"math/rand/v2"
	"time"

	"sensoretl/internal/model"
	"sensoretl/internal/schema"
	"sensoretl/internal/source"
)

// Options controls the synthesized parts of a transform.
type Options struct {
	// Seed drives the timestamp permutation; equal seeds give equal batches.
	Seed uint64
	// Start and End bound the synthetic timestamps, both inclusive.
	Start, End time.Time
	// Now stamps machines.created_at.
	Now time.Time
}

// MachineConflictError reports one machine_id seen with two different
// (machine_type, installation_year) pairs.
type MachineConflictError struct {
	MachineID string
	FirstRow  int
	Row       int
}

func (e *MachineConflictError) Error() string {
	return fmt.Sprintf("transform: machine %q at row %d disagrees with row %d on type or installation year",
		e.MachineID, e.Row, e.FirstRow)
}

// Transform builds the batch. Any uncoercible value in a non-optional column
// fails the whole transform; nothing partial is returned.
func Transform(t *source.Table, opt Options) (*model.Batch, error) {
	if opt.End.Before(opt.Start) {
		return nil, fmt.Errorf("transform: end %s before start %s", opt.End.Format(time.DateOnly), opt.Start.Format(time.DateOnly))
	}

	n := t.Len()
	ts := Timestamps(n, opt.Start, opt.End, opt.Seed)
	col := func(name string) column { return column{name: name, get: t.Getter(name)} }

	var (
		machineID   = col(schema.ColMachineID)
		machineType = col(schema.ColMachineType)
		installYear = col(schema.ColInstallationYear)
		opHours     = col(schema.ColOperationalHours)
		temp        = col(schema.ColTemperatureC)
		vib         = col(schema.ColVibrationMMS)
		sound       = col(schema.ColSoundDB)
		oil         = col(schema.ColOilLevelPct)
		coolant     = col(schema.ColCoolantLevelPct)
		power       = col(schema.ColPowerConsumptionKW)
		lastMaint   = col(schema.ColLastMaintenanceDaysAgo)
		maintCount  = col(schema.ColMaintenanceHistoryCount)
		failCount   = col(schema.ColFailureHistoryCount)
		aiSup       = col(schema.ColAISupervision)
		aiOverride  = col(schema.ColAIOverrideEvents)
		errCodes    = col(schema.ColErrorCodesLast30Days)
		rul         = col(schema.ColRemainingUsefulLifeDays)
		fail7       = col(schema.ColFailureWithin7Days)
	)
	specific := make(map[string]func(int) string, len(model.SpecificSensors))
	for _, s := range model.SpecificSensors {
		specific[s] = t.Getter(schema.SpecificSensorSources[s])
	}

	b := &model.Batch{
		SensorReadings:         make([]model.SensorReading, 0, n),
		MaintenanceRecords:     make([]model.MaintenanceRecord, 0, n),
		AIMonitoring:           make([]model.AIMonitoringRecord, 0, n),
		MachineSpecificSensors: make([]model.MachineSpecificSensorReading, 0, n),
		FailurePredictions:     make([]model.FailurePrediction, 0, n),
	}
	type seen struct{ idx, row int }
	firstSeen := make(map[string]seen)

	for i := 0; i < n; i++ {
		s := scan{row: i}
		id := machineID.text(i)
		if id == "" {
			return nil, &RowError{Row: i + 1, Column: schema.ColMachineID, Value: machineID.get(i), Err: fmt.Errorf("machine id is empty")}
		}
		key := int64(i + 1)
		at := ts[i]

		m := model.Machine{
			MachineID:        id,
			MachineType:      machineType.nullText(i),
			InstallationYear: s.intOf(installYear),
			CreatedAt:        opt.Now,
		}
		b.SensorReadings = append(b.SensorReadings, model.SensorReading{
			ReadingID:          key,
			MachineID:          id,
			OperationalHours:   s.floatOf(opHours),
			TemperatureC:       s.floatOf(temp),
			VibrationMMS:       s.floatOf(vib),
			SoundDB:            s.floatOf(sound),
			OilLevelPct:        s.floatOf(oil),
			CoolantLevelPct:    s.floatOf(coolant),
			PowerConsumptionKW: s.floatOf(power),
			ReadingTimestamp:   at,
		})
		b.MaintenanceRecords = append(b.MaintenanceRecords, model.MaintenanceRecord{
			MaintenanceID:           key,
			MachineID:               id,
			LastMaintenanceDaysAgo:  s.intOf(lastMaint),
			MaintenanceHistoryCount: s.intOf(maintCount),
			FailureHistoryCount:     s.intOf(failCount),
			RecordedAt:              at,
		})
		b.AIMonitoring = append(b.AIMonitoring, model.AIMonitoringRecord{
			AIRecordID:           key,
			MachineID:            id,
			AISupervision:        s.boolOf(aiSup),
			AIOverrideEvents:     s.intOf(aiOverride),
			ErrorCodesLast30Days: s.intOf(errCodes),
			MonitoredAt:          at,
		})
		sensors := make(map[string]sql.Null[float64], len(specific))
		for name, get := range specific {
			sensors[name] = parseOptionalFloat(get(i))
		}
		b.MachineSpecificSensors = append(b.MachineSpecificSensors, model.MachineSpecificSensorReading{
			SpecificSensorID: key,
			MachineID:        id,
			Sensors:          sensors,
			MeasuredAt:       at,
		})
		b.FailurePredictions = append(b.FailurePredictions, model.FailurePrediction{
			PredictionID:            key,
			MachineID:               id,
			RemainingUsefulLifeDays: s.floatOf(rul),
			FailureWithin7Days:      s.boolOf(fail7),
			PredictedAt:             at,
		})
		if s.err != nil {
			return nil, s.err
		}

		if prev, ok := firstSeen[id]; ok {
			pm := b.Machines[prev.idx]
			if pm.MachineType != m.MachineType || pm.InstallationYear != m.InstallationYear {
				return nil, &MachineConflictError{MachineID: id, FirstRow: prev.row, Row: i + 1}
			}
			continue
		}
		firstSeen[id] = seen{idx: len(b.Machines), row: i + 1}
		b.Machines = append(b.Machines, m)
	}
	return b, nil
}

// scan coerces one row's columns and keeps the first error.
type scan struct {
	row int
	err error
}

func (s *scan) floatOf(c column) sql.Null[float64] {
	if s.err != nil {
		return sql.Null[float64]{}
	}
	v, err := c.floatAt(s.row)
	s.err = err
	return v
}

func (s *scan) intOf(c column) sql.Null[int64] {
	if s.err != nil {
		return sql.Null[int64]{}
	}
	v, err := c.intAt(s.row)
	s.err = err
	return v
}

func (s *scan) boolOf(c column) sql.Null[bool] {
	if s.err != nil {
		return sql.Null[bool]{}
	}
	v, err := c.boolAt(s.row)
	s.err = err
	return v
}

// Timestamps returns n instants evenly spaced over [start, end], endpoints
// included, shuffled by a PCG stream seeded with seed. n == 1 yields start.
func Timestamps(n int, start, end time.Time, seed uint64) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, n)
	if n == 1 {
		out[0] = start
		return out
	}
	span := int64(end.Sub(start))
	steps := int64(n - 1)
	q, r := span/steps, span%steps
	for i := int64(0); i < int64(n); i++ {
		out[i] = start.Add(time.Duration(q*i + r*i/steps))
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

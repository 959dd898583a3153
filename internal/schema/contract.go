package schema

import "sensoretl/internal/model"

// Source column names. They are literal and case-sensitive.
const (
	ColMachineID               = "Machine_ID"
	ColMachineType             = "Machine_Type"
	ColInstallationYear        = "Installation_Year"
	ColOperationalHours        = "Operational_Hours"
	ColTemperatureC            = "Temperature_C"
	ColVibrationMMS            = "Vibration_mms"
	ColSoundDB                 = "Sound_dB"
	ColOilLevelPct             = "Oil_Level_pct"
	ColCoolantLevelPct         = "Coolant_Level_pct"
	ColPowerConsumptionKW      = "Power_Consumption_kW"
	ColLastMaintenanceDaysAgo  = "Last_Maintenance_Days_Ago"
	ColMaintenanceHistoryCount = "Maintenance_History_Count"
	ColFailureHistoryCount     = "Failure_History_Count"
	ColAISupervision           = "AI_Supervision"
	ColAIOverrideEvents        = "AI_Override_Events"
	ColErrorCodesLast30Days    = "Error_Codes_Last_30_Days"
	ColLaserIntensity          = "Laser_Intensity"
	ColHydraulicPressureBar    = "Hydraulic_Pressure_bar"
	ColCoolantFlowLMin         = "Coolant_Flow_L_min"
	ColHeatIndex               = "Heat_Index"
	ColRemainingUsefulLifeDays = "Remaining_Useful_Life_days"
	ColFailureWithin7Days      = "Failure_Within_7_Days"
)

// Contract is the source column contract.
type Contract struct {
	// Required columns must be present; absence is fatal.
	Required []string
	// Expected columns are tolerated when absent or sparse; they load as NULL.
	Expected []string
}

// SensorContract is the contract of the factory sensor simulator export.
func SensorContract() Contract {
	return Contract{
		Required: []string{
			ColMachineID,
			ColMachineType,
			ColInstallationYear,
			ColTemperatureC,
			ColVibrationMMS,
			ColSoundDB,
			ColPowerConsumptionKW,
			ColFailureWithin7Days,
			ColRemainingUsefulLifeDays,
		},
		Expected: []string{
			ColOperationalHours,
			ColOilLevelPct,
			ColCoolantLevelPct,
			ColLastMaintenanceDaysAgo,
			ColMaintenanceHistoryCount,
			ColFailureHistoryCount,
			ColAISupervision,
			ColAIOverrideEvents,
			ColErrorCodesLast30Days,
			ColLaserIntensity,
			ColHydraulicPressureBar,
			ColCoolantFlowLMin,
			ColHeatIndex,
		},
	}
}

// SpecificSensorSources maps each optional sensor target column to its source column.
var SpecificSensorSources = map[string]string{
	model.SensorLaserIntensity:       ColLaserIntensity,
	model.SensorHydraulicPressureBar: ColHydraulicPressureBar,
	model.SensorCoolantFlowLMin:      ColCoolantFlowLMin,
	model.SensorHeatIndex:            ColHeatIndex,
}

package analyzer

import "fmt"

const (
	FailureStrategyLegacy    = "legacy"
	FailureStrategyRunLength = "run_length"
)

// KPIConfig holds the constants of the OEE and reliability model.
type KPIConfig struct {
	// Average running vibration (mm/s) at which performance reaches zero.
	PerformanceCeiling float64 `yaml:"performance_ceiling" validate:"gt=0"`
	// Average running vibration (mm/s) below which quality is QualityHigh.
	QualityVibrationLimit float64 `yaml:"quality_vibration_limit" validate:"gt=0"`
	QualityHigh           float64 `yaml:"quality_high" validate:"gt=0,lte=1"`
	QualityLow            float64 `yaml:"quality_low" validate:"gt=0,lte=1"`
	// OEE ratios separating Excelente / Alerta / Crítico.
	ExcellentOEE float64 `yaml:"excellent_oee" validate:"gt=0,lte=1"`
	AlertOEE     float64 `yaml:"alert_oee" validate:"gte=0,lt=1"`

	FailureStrategy string `yaml:"failure_strategy" validate:"oneof=legacy run_length"`
	// Consecutive stopped readings assumed per stoppage by the legacy estimator.
	ReadingsPerStop int `yaml:"readings_per_stop" validate:"gte=1"`
}

func DefaultKPIConfig() KPIConfig {
	return KPIConfig{
		PerformanceCeiling:    10,
		QualityVibrationLimit: 5,
		QualityHigh:           0.98,
		QualityLow:            0.85,
		ExcellentOEE:          0.85,
		AlertOEE:              0.60,
		FailureStrategy:       FailureStrategyLegacy,
		ReadingsPerStop:       3,
	}
}

func (c KPIConfig) Validate() error {
	if c.AlertOEE >= c.ExcellentOEE {
		return fmt.Errorf("alert_oee (%.2f) must be below excellent_oee (%.2f)", c.AlertOEE, c.ExcellentOEE)
	}
	if c.QualityLow > c.QualityHigh {
		return fmt.Errorf("quality_low (%.2f) must not exceed quality_high (%.2f)", c.QualityLow, c.QualityHigh)
	}
	return nil
}

// AlertConfig holds the alert classifier thresholds.
type AlertConfig struct {
	// Number of most recent readings scanned per classification.
	Window             int     `yaml:"window" validate:"gte=1"`
	VibrationThreshold float64 `yaml:"vibration_threshold" validate:"gt=0"`
	RiskThreshold      float64 `yaml:"risk_threshold" validate:"gte=0,lte=1"`

	VibrationCap int `yaml:"vibration_cap" validate:"gte=1"`
	RiskCap      int `yaml:"risk_cap" validate:"gte=1"`
	StopsCap     int `yaml:"stops_cap" validate:"gte=1"`

	// The plant is critical when any count exceeds its cutoff.
	CriticalVibration int `yaml:"critical_vibration" validate:"gte=0"`
	CriticalRisk      int `yaml:"critical_risk" validate:"gte=0"`
	CriticalStops     int `yaml:"critical_stops" validate:"gte=0"`

	Devices DeviceAlertConfig `yaml:"devices"`
}

// DeviceAlertConfig drives the two-level per-device alerts.
type DeviceAlertConfig struct {
	// Most recent readings of a device considered per evaluation.
	History int `yaml:"history" validate:"gte=1"`

	// Operational limits the proximity ratios are taken against.
	TemperatureLimit float64 `yaml:"temperature_limit" validate:"gt=0"` // °C
	VibrationLimit   float64 `yaml:"vibration_limit" validate:"gt=0"`   // mm/s

	PreAlertRisk      float64 `yaml:"pre_alert_risk" validate:"gt=0,lte=1"`
	CriticalRisk      float64 `yaml:"critical_risk" validate:"gt=0,lte=1"`
	WarningProximity  float64 `yaml:"warning_proximity" validate:"gt=0"`
	CriticalProximity float64 `yaml:"critical_proximity" validate:"gt=0"`

	// A rising trend is TrendRises steps above the rise thresholds among
	// the last TrendReadings readings.
	TrendReadings   int     `yaml:"trend_readings" validate:"gte=2"`
	TrendRises      int     `yaml:"trend_rises" validate:"gte=1"`
	VibrationRise   float64 `yaml:"vibration_rise" validate:"gte=0"`
	TemperatureRise float64 `yaml:"temperature_rise" validate:"gte=0"`
}

func DefaultDeviceAlertConfig() DeviceAlertConfig {
	return DeviceAlertConfig{
		History:           20,
		TemperatureLimit:  100,
		VibrationLimit:    10,
		PreAlertRisk:      0.60,
		CriticalRisk:      0.80,
		WarningProximity:  0.85,
		CriticalProximity: 0.95,
		TrendReadings:     5,
		TrendRises:        3,
		VibrationRise:     0.1,
		TemperatureRise:   1.0,
	}
}

func (c DeviceAlertConfig) Validate() error {
	if c.PreAlertRisk >= c.CriticalRisk {
		return fmt.Errorf("pre_alert_risk (%.2f) must be below critical_risk (%.2f)", c.PreAlertRisk, c.CriticalRisk)
	}
	if c.WarningProximity >= c.CriticalProximity {
		return fmt.Errorf("warning_proximity (%.2f) must be below critical_proximity (%.2f)", c.WarningProximity, c.CriticalProximity)
	}
	if c.TrendRises >= c.TrendReadings {
		return fmt.Errorf("trend_rises (%d) must be below trend_readings (%d)", c.TrendRises, c.TrendReadings)
	}
	return nil
}

func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		Window:             100,
		VibrationThreshold: 4.5,
		RiskThreshold:      0.7,
		VibrationCap:       50,
		RiskCap:            50,
		StopsCap:           5,
		CriticalVibration:  2,
		CriticalRisk:       0,
		CriticalStops:      2,
		Devices:            DefaultDeviceAlertConfig(),
	}
}

// Validate rejects caps that would hide a critical count. Counts are taken
// from the capped lists, so a cap at or below its cutoff could never trip it.
func (c AlertConfig) Validate() error {
	if c.VibrationCap <= c.CriticalVibration {
		return fmt.Errorf("vibration_cap (%d) must exceed critical_vibration (%d)", c.VibrationCap, c.CriticalVibration)
	}
	if c.RiskCap <= c.CriticalRisk {
		return fmt.Errorf("risk_cap (%d) must exceed critical_risk (%d)", c.RiskCap, c.CriticalRisk)
	}
	if c.StopsCap <= c.CriticalStops {
		return fmt.Errorf("stops_cap (%d) must exceed critical_stops (%d)", c.StopsCap, c.CriticalStops)
	}
	if err := c.Devices.Validate(); err != nil {
		return fmt.Errorf("devices: %w", err)
	}
	return nil
}

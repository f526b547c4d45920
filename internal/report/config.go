package report

import (
	"fmt"
	"time"
)

// Config holds the quick report limits and the complete report labels.
type Config struct {
	TemperatureLimit float64 `yaml:"temperature_limit" validate:"gt=0"` // °C
	VibrationLimit   float64 `yaml:"vibration_limit" validate:"gt=0"`   // mm/s

	// Risk percentages where Preventivo and Crítico begin.
	PreventiveRisk float64 `yaml:"preventive_risk" validate:"gt=0"`
	CriticalRisk   float64 `yaml:"critical_risk" validate:"gtfield=PreventiveRisk"`

	TrendVibration   float64 `yaml:"trend_vibration" validate:"gte=0"`
	FailureVibration float64 `yaml:"failure_vibration" validate:"gte=0"`

	// IANA zone used for day windows and timestamps. Empty means local time.
	Timezone string `yaml:"timezone"`
}

func DefaultConfig() Config {
	return Config{
		TemperatureLimit: 85,
		VibrationLimit:   4.5,
		PreventiveRisk:   30,
		CriticalRisk:     70,
		TrendVibration:   3.0,
		FailureVibration: 4.0,
	}
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("report timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"go.uber.org/zap"
)

// ErrUnknownDevice is returned when a device has no readings.
var ErrUnknownDevice = errors.New("no readings for device")

type AlertLevel string

const (
	AlertNormal   AlertLevel = "normal"
	AlertPreAlert AlertLevel = "pre_alert"
	AlertCritical AlertLevel = "critical"
)

// Rank orders levels so escalations can be detected.
func (l AlertLevel) Rank() int {
	switch l {
	case AlertCritical:
		return 2
	case AlertPreAlert:
		return 1
	}
	return 0
}

type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing_abnormal"
)

// DeviceAlert is the evaluated alert level of one device, taken from its
// most recent reading and short-term trend.
type DeviceAlert struct {
	DeviceID  string         `json:"device_id"`
	Level     AlertLevel     `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Status    storage.Status `json:"status"`

	RiskScore   float64 `json:"risk_score"`
	Temperature float64 `json:"temperature"`
	Vibration   float64 `json:"vibration"`
	Pressure    float64 `json:"pressure"`

	TemperatureLimit     float64 `json:"temp_limit"`
	VibrationLimit       float64 `json:"vib_limit"`
	TemperatureProximity float64 `json:"temp_proximity"`
	VibrationProximity   float64 `json:"vib_proximity"`

	Trend   Trend    `json:"trend"`
	Reasons []string `json:"reasons"`
}

// DeviceEvaluator rates devices as normal, pre-alert or critical. It keeps
// no state; cooldowns belong to whoever publishes the alerts.
type DeviceEvaluator struct {
	store storage.ReadingStore
	cfg   DeviceAlertConfig
}

func NewDeviceEvaluator(store storage.ReadingStore, cfg DeviceAlertConfig) *DeviceEvaluator {
	return &DeviceEvaluator{
		store: store,
		cfg:   cfg,
	}
}

// EvaluateDevice rates one device from its latest History readings.
func (e *DeviceEvaluator) EvaluateDevice(ctx context.Context, deviceID string) (*DeviceAlert, error) {
	start := time.Now()
	defer observeDuration("evaluate_device", start)

	readings, err := e.store.LatestDeviceReadings(ctx, deviceID, e.cfg.History)
	if err != nil {
		return nil, storeFailure("evaluate_device", err)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return e.evaluate(deviceID, readings), nil
}

// EvaluateDevices rates every device seen among the window most recent
// readings, most recently reporting first. Readings without a device ID
// are skipped.
func (e *DeviceEvaluator) EvaluateDevices(ctx context.Context, window int) ([]*DeviceAlert, error) {
	recent, err := e.store.LatestReadings(ctx, window)
	if err != nil {
		return nil, storeFailure("evaluate_devices", err)
	}

	seen := make(map[string]bool)
	alerts := make([]*DeviceAlert, 0)
	for _, r := range recent {
		if r.DeviceID == "" || seen[r.DeviceID] {
			continue
		}
		seen[r.DeviceID] = true

		alert, err := e.EvaluateDevice(ctx, r.DeviceID)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// evaluate expects readings in descending ID order. Critical conditions are
// checked before pre-alert ones and the first match supplies the reason.
func (e *DeviceEvaluator) evaluate(deviceID string, readings []*storage.SensorReading) *DeviceAlert {
	last := readings[0]
	alert := &DeviceAlert{
		DeviceID:             deviceID,
		Level:                AlertNormal,
		Timestamp:            last.Timestamp,
		Status:               last.Status,
		RiskScore:            last.Risk(),
		Temperature:          last.Temperature,
		Vibration:            last.Vibration,
		Pressure:             last.Pressure,
		TemperatureLimit:     e.cfg.TemperatureLimit,
		VibrationLimit:       e.cfg.VibrationLimit,
		TemperatureProximity: last.Temperature / e.cfg.TemperatureLimit,
		VibrationProximity:   last.Vibration / e.cfg.VibrationLimit,
		Trend:                e.trend(readings),
		Reasons:              make([]string, 0, 1),
	}

	proximity := max(alert.TemperatureProximity, alert.VibrationProximity)
	switch {
	case alert.RiskScore >= e.cfg.CriticalRisk:
		alert.Level = AlertCritical
		alert.Reasons = append(alert.Reasons, fmt.Sprintf("Risco crítico: %.1f%%", alert.RiskScore*100))
	case proximity >= e.cfg.CriticalProximity:
		alert.Level = AlertCritical
		alert.Reasons = append(alert.Reasons, "Sensor próximo ao limite crítico")
	case alert.RiskScore >= e.cfg.PreAlertRisk:
		alert.Level = AlertPreAlert
		alert.Reasons = append(alert.Reasons, fmt.Sprintf("Risco elevado: %.1f%%", alert.RiskScore*100))
	case proximity >= e.cfg.WarningProximity:
		alert.Level = AlertPreAlert
		alert.Reasons = append(alert.Reasons, "Sensor se aproximando dos limites operacionais")
	case alert.Trend == TrendIncreasing:
		alert.Level = AlertPreAlert
		alert.Reasons = append(alert.Reasons, "Tendência anormal detectada (crescimento contínuo)")
	}

	if alert.Level != AlertNormal {
		logger.Debug("Device alert evaluated",
			zap.String("device_id", deviceID),
			zap.String("level", string(alert.Level)),
			zap.Strings("reasons", alert.Reasons),
		)
	}
	return alert
}

// trend looks at the last TrendReadings readings in time order. Vibration
// is checked before temperature.
func (e *DeviceEvaluator) trend(readings []*storage.SensorReading) Trend {
	n := e.cfg.TrendReadings
	if len(readings) < n {
		return TrendStable
	}

	rises := func(value func(*storage.SensorReading) float64, step float64) int {
		count := 0
		// readings[i] is newer than readings[i+1]
		for i := n - 2; i >= 0; i-- {
			if value(readings[i])-value(readings[i+1]) > step {
				count++
			}
		}
		return count
	}

	if rises(func(r *storage.SensorReading) float64 { return r.Vibration }, e.cfg.VibrationRise) >= e.cfg.TrendRises {
		return TrendIncreasing
	}
	if rises(func(r *storage.SensorReading) float64 { return r.Temperature }, e.cfg.TemperatureRise) >= e.cfg.TrendRises {
		return TrendIncreasing
	}
	return TrendStable
}

package analyzer

import (
	"context"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const summaryTitle = "Relatório Consolidado Smart Factory"

// Engine is the read-only query surface over the reading store. It keeps no
// state between calls.
type Engine struct {
	store      storage.ReadingStore
	kpis       *KPIAggregator
	classifier *AlertClassifier
	devices    *DeviceEvaluator
	window     int
}

func NewEngine(store storage.ReadingStore, kpiCfg KPIConfig, alertCfg AlertConfig) (*Engine, error) {
	failures, err := NewFailureEstimator(kpiCfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing KPI engine",
		zap.String("failure_strategy", failures.Name()),
		zap.Int("alert_window", alertCfg.Window),
	)

	return &Engine{
		store:      store,
		kpis:       NewKPIAggregator(store, kpiCfg, failures),
		classifier: NewAlertClassifier(store, alertCfg),
		devices:    NewDeviceEvaluator(store, alertCfg.Devices),
		window:     alertCfg.Window,
	}, nil
}

func (e *Engine) ComputeKPIs(ctx context.Context, window *storage.TimeRange) (*KPIResult, error) {
	return e.kpis.ComputeKPIs(ctx, window)
}

func (e *Engine) ComputeDeviceKPIs(ctx context.Context, deviceID string, window *storage.TimeRange) (*KPIResult, error) {
	return e.kpis.ComputeDeviceKPIs(ctx, deviceID, window)
}

// EvaluateDevice returns ErrUnknownDevice for a device without readings.
func (e *Engine) EvaluateDevice(ctx context.Context, deviceID string) (*DeviceAlert, error) {
	return e.devices.EvaluateDevice(ctx, deviceID)
}

// DeviceAlerts evaluates every device reporting within the alert window.
func (e *Engine) DeviceAlerts(ctx context.Context) ([]*DeviceAlert, error) {
	return e.devices.EvaluateDevices(ctx, e.window)
}

func (e *Engine) ClassifyAlerts(ctx context.Context, limit int) (*AlertSnapshot, error) {
	return e.classifier.ClassifyAlerts(ctx, limit)
}

func (e *Engine) LatestReadings(ctx context.Context, limit int) ([]*storage.SensorReading, error) {
	readings, err := e.store.LatestReadings(ctx, limit)
	if err != nil {
		return nil, storeFailure("latest_readings", err)
	}
	return readings, nil
}

func (e *Engine) Health(ctx context.Context) error {
	return e.store.Health(ctx)
}

// Snapshot computes whole-store KPIs and the current alert snapshot
// concurrently.
func (e *Engine) Snapshot(ctx context.Context) (*KPIResult, *AlertSnapshot, error) {
	var (
		kpis   *KPIResult
		alerts *AlertSnapshot
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		kpis, err = e.kpis.ComputeKPIs(gCtx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		alerts, err = e.classifier.ClassifyAlerts(gCtx, 0)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return kpis, alerts, nil
}

// Summary builds the consolidated plant report.
func (e *Engine) Summary(ctx context.Context) (*PlantSummary, error) {
	kpis, alerts, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BuildSummary(kpis, alerts, time.Now()), nil
}

func BuildSummary(kpis *KPIResult, alerts *AlertSnapshot, now time.Time) *PlantSummary {
	devices := make([]string, 0, len(alerts.RiskAlerts))
	seen := make(map[string]bool, len(alerts.RiskAlerts))
	for _, r := range alerts.RiskAlerts {
		if seen[r.DeviceID] {
			continue
		}
		seen[r.DeviceID] = true
		devices = append(devices, r.DeviceID)
	}

	return &PlantSummary{
		GeneratedAt:    now,
		Title:          summaryTitle,
		KPIs:           kpis.View(),
		CriticalEvents: len(alerts.RiskAlerts) + len(alerts.VibrationAlerts),
		CriticalState:  alerts.CriticalState,
		Alerts: SummaryAlerts{
			HighRiskDevices:   devices,
			VibrationWarnings: len(alerts.VibrationAlerts),
			RecentStops:       len(alerts.RecentStops),
		},
	}
}

package analyzer

import (
	"context"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"go.uber.org/zap"
)

// KPIAggregator derives OEE and reliability figures from a reading window.
type KPIAggregator struct {
	store    storage.ReadingStore
	cfg      KPIConfig
	failures FailureEstimator
}

func NewKPIAggregator(store storage.ReadingStore, cfg KPIConfig, failures FailureEstimator) *KPIAggregator {
	if failures == nil {
		failures = LegacyFailureEstimator{ReadingsPerStop: cfg.ReadingsPerStop}
	}
	return &KPIAggregator{
		store:    store,
		cfg:      cfg,
		failures: failures,
	}
}

// ComputeKPIs aggregates the readings inside window, or the whole store when
// window is nil. An empty window yields a zero result labelled Crítico.
func (a *KPIAggregator) ComputeKPIs(ctx context.Context, window *storage.TimeRange) (*KPIResult, error) {
	return a.ComputeDeviceKPIs(ctx, "", window)
}

// ComputeDeviceKPIs is ComputeKPIs restricted to one device. An empty
// deviceID covers the whole plant.
func (a *KPIAggregator) ComputeDeviceKPIs(ctx context.Context, deviceID string, window *storage.TimeRange) (*KPIResult, error) {
	start := time.Now()
	defer observeDuration("compute_kpis", start)

	scope := storage.ReadingQuery{DeviceID: deviceID, Range: window}

	total, err := a.store.CountReadings(ctx, scope)
	if err != nil {
		return nil, storeFailure("compute_kpis", err)
	}

	stopped := scope
	stopped.Status = storage.StatusStopped
	downtime, err := a.store.CountReadings(ctx, stopped)
	if err != nil {
		return nil, storeFailure("compute_kpis", err)
	}

	running := scope
	running.Status = storage.StatusRunning
	avgVibration, err := a.store.AverageVibration(ctx, running)
	if err != nil {
		return nil, storeFailure("compute_kpis", err)
	}

	failures, err := a.failures.EstimateFailures(ctx, a.store, scope, downtime)
	if err != nil {
		return nil, storeFailure("compute_kpis", err)
	}

	result := a.derive(total, downtime, avgVibration, failures)
	result.Window = window
	result.DeviceID = deviceID

	logger.Debug("KPIs computed",
		zap.String("device_id", deviceID),
		zap.Int64("total", result.TotalReadings),
		zap.Int64("downtime", result.DowntimeReadings),
		zap.Int("oee", result.OEE),
		zap.String("status", string(result.Status)),
		zap.String("failure_strategy", a.failures.Name()),
	)
	return result, nil
}

// derive applies the KPI model to raw counts. It never divides by zero.
func (a *KPIAggregator) derive(total, downtime int64, avgVibration float64, failures int64) *KPIResult {
	if downtime > total {
		downtime = total
	}
	operational := total - downtime
	if failures < 1 {
		failures = 1
	}

	availability := clamp01(safeDiv(float64(operational), float64(total)))
	performance := clamp01(1 - safeDiv(avgVibration, a.cfg.PerformanceCeiling))

	quality := a.cfg.QualityLow
	if avgVibration < a.cfg.QualityVibrationLimit {
		quality = a.cfg.QualityHigh
	}
	quality = clamp01(quality)

	ratio := availability * performance * quality

	return &KPIResult{
		TotalReadings:       total,
		DowntimeReadings:    downtime,
		OperationalReadings: operational,
		AvgVibrationRunning: avgVibration,
		Availability:        availability,
		Performance:         performance,
		Quality:             quality,
		OEE:                 PercentOf(ratio),
		EstimatedFailures:   failures,
		MTBF:                safeDiv(float64(operational), float64(failures)),
		MTTR:                safeDiv(float64(downtime), float64(failures)),
		Status:              a.classify(ratio),
	}
}

// classify compares the unrounded OEE ratio, so 0.853 is Excelente even
// though it displays as 85%.
func (a *KPIAggregator) classify(ratio float64) StatusLabel {
	switch {
	case ratio > a.cfg.ExcellentOEE:
		return StatusExcellent
	case ratio > a.cfg.AlertOEE:
		return StatusAlert
	default:
		return StatusCritical
	}
}

package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"go.uber.org/zap"
)

// AlertClassifier scans recent readings for threshold breaches.
type AlertClassifier struct {
	store storage.ReadingStore
	cfg   AlertConfig
}

func NewAlertClassifier(store storage.ReadingStore, cfg AlertConfig) *AlertClassifier {
	return &AlertClassifier{
		store: store,
		cfg:   cfg,
	}
}

// ClassifyAlerts reads the limit most recent readings (the configured window
// when limit <= 0) and derives the alert snapshot.
func (c *AlertClassifier) ClassifyAlerts(ctx context.Context, limit int) (*AlertSnapshot, error) {
	start := time.Now()
	defer observeDuration("classify_alerts", start)

	if limit <= 0 {
		limit = c.cfg.Window
	}

	readings, err := c.store.LatestReadings(ctx, limit)
	if err != nil {
		return nil, storeFailure("classify_alerts", err)
	}

	snapshot := c.classify(readings)

	if snapshot.CriticalState {
		logger.Warn("Plant in critical state",
			zap.Strings("reasons", snapshot.Reasons),
			zap.Int("vibration_alerts", len(snapshot.VibrationAlerts)),
			zap.Int("risk_alerts", len(snapshot.RiskAlerts)),
			zap.Int("recent_stops", len(snapshot.RecentStops)),
		)
	}
	return snapshot, nil
}

// classify expects readings in descending ID order.
func (c *AlertClassifier) classify(readings []*storage.SensorReading) *AlertSnapshot {
	snapshot := &AlertSnapshot{
		VibrationAlerts: make([]*storage.SensorReading, 0),
		RiskAlerts:      make([]*storage.SensorReading, 0),
		RecentStops:     make([]*storage.SensorReading, 0),
		Scanned:         len(readings),
	}

	for _, r := range readings {
		if r.IsRunning() && r.Vibration > c.cfg.VibrationThreshold && len(snapshot.VibrationAlerts) < c.cfg.VibrationCap {
			snapshot.VibrationAlerts = append(snapshot.VibrationAlerts, r)
		}
		if r.Risk() > c.cfg.RiskThreshold && len(snapshot.RiskAlerts) < c.cfg.RiskCap {
			snapshot.RiskAlerts = append(snapshot.RiskAlerts, r)
		}
		if r.IsStopped() && len(snapshot.RecentStops) < c.cfg.StopsCap {
			snapshot.RecentStops = append(snapshot.RecentStops, r)
		}
	}

	if n := len(snapshot.VibrationAlerts); n > c.cfg.CriticalVibration {
		snapshot.Reasons = append(snapshot.Reasons, fmt.Sprintf("%d leituras com vibração acima de %.1f mm/s", n, c.cfg.VibrationThreshold))
	}
	if n := len(snapshot.RiskAlerts); n > c.cfg.CriticalRisk {
		snapshot.Reasons = append(snapshot.Reasons, fmt.Sprintf("%d leituras com risco acima de %.0f%%", n, c.cfg.RiskThreshold*100))
	}
	if n := len(snapshot.RecentStops); n > c.cfg.CriticalStops {
		snapshot.Reasons = append(snapshot.Reasons, fmt.Sprintf("%d paradas recentes", n))
	}
	snapshot.CriticalState = len(snapshot.Reasons) > 0

	return snapshot
}

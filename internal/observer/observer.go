// Package observer periodically recomputes the plant dashboard and fans it
// out to Prometheus, WebSocket clients and the critical-state notifier.
package observer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/notifier"
	"go.uber.org/zap"
)

const DashboardMessage = "dashboard"

var ErrAlreadyRunning = errors.New("observer already running")

type Config struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		Timeout:  5 * time.Second,
	}
}

type Engine interface {
	Snapshot(ctx context.Context) (*analyzer.KPIResult, *analyzer.AlertSnapshot, error)
	DeviceAlerts(ctx context.Context) ([]*analyzer.DeviceAlert, error)
}

type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

type Notifier interface {
	Notify(ctx context.Context, kpis *analyzer.KPIResult, alerts *analyzer.AlertSnapshot) (*notifier.Event, error)
	NotifyDevices(ctx context.Context, alerts []*analyzer.DeviceAlert) ([]*notifier.Event, error)
}

// Snapshot is the dashboard payload pushed to clients.
type Snapshot struct {
	GeneratedAt time.Time               `json:"generated_at"`
	KPIs        analyzer.KPIView        `json:"kpis"`
	Alerts      *analyzer.AlertSnapshot `json:"alertas"`
	Devices     []*analyzer.DeviceAlert `json:"dispositivos"`
}

type Observer struct {
	engine   Engine
	hub      Broadcaster
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	running atomic.Bool

	mu   sync.RWMutex
	last *Snapshot
}

// New wires the observer. hub and notifier may be nil.
func New(engine Engine, hub Broadcaster, notifier Notifier, cfg Config, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		engine:   engine,
		hub:      hub,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "observer")),
		now:      time.Now,
	}
}

// Start refreshes once, then on every interval until ctx ends. It returns
// ctx.Err() and may be called again afterwards, but not concurrently.
func (o *Observer) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	o.logger.Info("Dashboard observer started", zap.Duration("interval", o.cfg.Interval))
	o.refreshAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Dashboard observer stopped")
			return ctx.Err()
		case <-ticker.C:
			o.refreshAndLog(ctx)
		}
	}
}

func (o *Observer) refreshAndLog(ctx context.Context) {
	if _, err := o.Refresh(ctx); err != nil && ctx.Err() == nil {
		o.logger.Error("Dashboard refresh failed", zap.Error(err))
	}
}

// Refresh computes one snapshot and publishes it. Hub and notifier failures
// are logged and do not fail the refresh.
func (o *Observer) Refresh(ctx context.Context) (*Snapshot, error) {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	kpis, alerts, err := o.engine.Snapshot(ctx)
	if err != nil {
		ticksTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	devices, err := o.engine.DeviceAlerts(ctx)
	if err != nil {
		ticksTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	ticksTotal.WithLabelValues("ok").Inc()
	recordSnapshot(kpis, alerts, devices)

	snap := &Snapshot{
		GeneratedAt: o.now(),
		KPIs:        kpis.View(),
		Alerts:      alerts,
		Devices:     devices,
	}

	o.mu.Lock()
	o.last = snap
	o.mu.Unlock()

	if o.hub != nil {
		if err := o.hub.Broadcast(DashboardMessage, snap); err != nil {
			o.logger.Warn("Dashboard broadcast failed", zap.Error(err))
		}
	}
	if o.notifier != nil {
		if _, err := o.notifier.Notify(ctx, kpis, alerts); err != nil {
			o.logger.Warn("Critical state notification failed", zap.Error(err))
		}
		if _, err := o.notifier.NotifyDevices(ctx, devices); err != nil {
			o.logger.Warn("Device alert notification failed", zap.Error(err))
		}
	}

	o.logger.Debug("Dashboard refreshed",
		zap.Int("oee", kpis.OEE),
		zap.Bool("critical", alerts.CriticalState),
		zap.Int("devices", len(devices)),
	)
	return snap, nil
}

// Last is the most recent published snapshot, or nil before the first
// successful refresh.
func (o *Observer) Last() *Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

func (o *Observer) Running() bool {
	return o.running.Load()
}

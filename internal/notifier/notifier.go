// Package notifier publishes plant critical-state transitions and per-device
// alerts to Kafka.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type EventType string

const (
	EventCritical EventType = "critical"
	EventResolved EventType = "resolved"
	EventPreAlert EventType = "pre_alert"
)

// Event is the Kafka payload. Device events set DeviceID and Device and are
// keyed by device; plant events are keyed by PlantID.
type Event struct {
	ID              string                `json:"id"`
	Type            EventType             `json:"type"`
	DeviceID        string                `json:"device_id,omitempty"`
	Device          *analyzer.DeviceAlert `json:"device,omitempty"`
	Timestamp       time.Time             `json:"timestamp"`
	CriticalState   bool                  `json:"critical_state"`
	Reasons         []string              `json:"reasons"`
	VibrationAlerts int                   `json:"vibration_alerts"`
	RiskAlerts      int                   `json:"risk_alerts"`
	RecentStops     int                   `json:"recent_stops"`
	OEE             int                   `json:"oee"`
	StatusGeral     analyzer.StatusLabel  `json:"status_geral"`
}

type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic        string        `yaml:"topic" validate:"required_if=Enabled true"`
	PlantID      string        `yaml:"plant_id"`
	Cooldown     time.Duration `yaml:"cooldown" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Topic:        "factory.alerts",
		PlantID:      "plant-1",
		Cooldown:     15 * time.Minute,
		WriteTimeout: 5 * time.Second,
	}
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Recorder persists transition events, published or not.
type Recorder interface {
	SaveAlertEvent(ctx context.Context, event *storage.AlertEvent) error
}

// Notifier tracks the last published critical state. A critical event is
// repeated once per cooldown while the plant stays critical, and a resolved
// event is sent when it recovers. Device alerts have their own cooldown per
// device.
type Notifier struct {
	cfg      Config
	writer   MessageWriter
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	critical bool
	lastSent time.Time
	devices  map[string]deviceState
}

type deviceState struct {
	level analyzer.AlertLevel
	sent  time.Time
}

// New builds a Kafka-backed notifier. A disabled config yields a no-op.
func New(cfg Config, logger *zap.Logger) *Notifier {
	var writer MessageWriter
	if cfg.Enabled {
		writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: cfg.WriteTimeout,
		}
	}
	return NewWithWriter(cfg, writer, logger)
}

func NewWithWriter(cfg Config, writer MessageWriter, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		cfg:     cfg,
		writer:  writer,
		logger:  logger.With(zap.String("component", "notifier")),
		now:     time.Now,
		devices: make(map[string]deviceState),
	}
}

// WithRecorder keeps a history of every transition. With a recorder the
// transitions are tracked even when Kafka publishing is disabled.
func (n *Notifier) WithRecorder(r Recorder) *Notifier {
	n.recorder = r
	return n
}

// Enabled reports whether events are published to Kafka.
func (n *Notifier) Enabled() bool {
	return n != nil && n.writer != nil
}

// Notify compares the snapshot with the last published state and publishes
// at most one event. The returned event is nil when nothing was sent.
func (n *Notifier) Notify(ctx context.Context, kpis *analyzer.KPIResult, alerts *analyzer.AlertSnapshot) (*Event, error) {
	if (!n.Enabled() && n.recorder == nil) || alerts == nil {
		return nil, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	var eventType EventType
	switch {
	case alerts.CriticalState && !n.critical:
		eventType = EventCritical
	case alerts.CriticalState && now.Sub(n.lastSent) >= n.cfg.Cooldown:
		eventType = EventCritical
	case !alerts.CriticalState && n.critical:
		eventType = EventResolved
	default:
		return nil, nil
	}

	event := newEvent(eventType, now, kpis, alerts)
	published := false
	if n.Enabled() {
		if err := n.publish(ctx, event); err != nil {
			// state is left untouched so the next snapshot retries
			return nil, err
		}
		published = true
	}

	n.critical = alerts.CriticalState
	n.lastSent = now
	n.record(ctx, event, published)

	n.logger.Info("Critical state changed",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Bool("published", published),
		zap.Strings("reasons", event.Reasons),
	)
	return event, nil
}

// NotifyDevice publishes a pre-alert or critical event for one device. A
// device alerted within the cooldown stays quiet unless it escalates from
// pre-alert to critical. Normal devices are ignored and keep their cooldown.
func (n *Notifier) NotifyDevice(ctx context.Context, alert *analyzer.DeviceAlert) (*Event, error) {
	if (!n.Enabled() && n.recorder == nil) || alert == nil || alert.Level == analyzer.AlertNormal {
		return nil, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if prev, ok := n.devices[alert.DeviceID]; ok {
		escalated := alert.Level.Rank() > prev.level.Rank()
		if !escalated && now.Sub(prev.sent) < n.cfg.Cooldown {
			return nil, nil
		}
	}

	event := &Event{
		ID:            uuid.NewString(),
		Type:          EventType(alert.Level),
		DeviceID:      alert.DeviceID,
		Device:        alert,
		Timestamp:     now.UTC(),
		CriticalState: alert.Level == analyzer.AlertCritical,
		Reasons:       append([]string{}, alert.Reasons...),
	}

	published := false
	if n.Enabled() {
		if err := n.publish(ctx, event); err != nil {
			return nil, err
		}
		published = true
	}

	n.devices[alert.DeviceID] = deviceState{level: alert.Level, sent: now}
	n.record(ctx, event, published)

	n.logger.Info("Device alert raised",
		zap.String("event_id", event.ID),
		zap.String("device_id", alert.DeviceID),
		zap.String("level", string(alert.Level)),
		zap.Bool("published", published),
		zap.Strings("reasons", event.Reasons),
	)
	return event, nil
}

// NotifyDevices calls NotifyDevice for each alert. A failed device does not
// stop the others; the failures are joined.
func (n *Notifier) NotifyDevices(ctx context.Context, alerts []*analyzer.DeviceAlert) ([]*Event, error) {
	var (
		events []*Event
		errs   []error
	)
	for _, alert := range alerts {
		event, err := n.NotifyDevice(ctx, alert)
		if err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", alert.DeviceID, err))
			continue
		}
		if event != nil {
			events = append(events, event)
		}
	}
	return events, errors.Join(errs...)
}

func (n *Notifier) record(ctx context.Context, event *Event, published bool) {
	if n.recorder == nil {
		return
	}
	stored := &storage.AlertEvent{
		EventID:       event.ID,
		Type:          string(event.Type),
		DeviceID:      event.DeviceID,
		Timestamp:     event.Timestamp,
		CriticalState: event.CriticalState,
		Reasons:       event.Reasons,
		OEE:           event.OEE,
		StatusGeral:   string(event.StatusGeral),
		Published:     published,
	}
	if event.Device != nil {
		risk := event.Device.RiskScore
		stored.RiskScore = &risk
	}
	err := n.recorder.SaveAlertEvent(ctx, stored)
	if err != nil {
		n.logger.Warn("Failed to record alert event", zap.String("event_id", event.ID), zap.Error(err))
	}
}

func newEvent(t EventType, now time.Time, kpis *analyzer.KPIResult, alerts *analyzer.AlertSnapshot) *Event {
	e := &Event{
		ID:              uuid.NewString(),
		Type:            t,
		Timestamp:       now.UTC(),
		CriticalState:   alerts.CriticalState,
		Reasons:         append([]string{}, alerts.Reasons...),
		VibrationAlerts: len(alerts.VibrationAlerts),
		RiskAlerts:      len(alerts.RiskAlerts),
		RecentStops:     len(alerts.RecentStops),
	}
	if kpis != nil {
		e.OEE = kpis.OEE
		e.StatusGeral = kpis.Status
	}
	return e
}

func (n *Notifier) publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}

	if n.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.WriteTimeout)
		defer cancel()
	}

	key := n.cfg.PlantID
	if event.DeviceID != "" {
		key = event.DeviceID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  event.Timestamp,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func (n *Notifier) Close() error {
	if !n.Enabled() {
		return nil
	}
	return n.writer.Close()
}

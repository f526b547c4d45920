package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func (w *recordingWriter) events(t *testing.T) []Event {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Event, 0, len(w.msgs))
	for _, m := range w.msgs {
		var e Event
		require.NoError(t, json.Unmarshal(m.Value, &e))
		out = append(out, e)
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestNotifier(w *recordingWriter) (*Notifier, *clock) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.PlantID = "plant-7"
	c := &clock{t: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
	n := NewWithWriter(cfg, w, nil)
	n.now = c.now
	return n, c
}

func critical() *analyzer.AlertSnapshot {
	stop := &storage.SensorReading{ID: 9, Status: storage.StatusStopped}
	return &analyzer.AlertSnapshot{
		VibrationAlerts: []*storage.SensorReading{},
		RiskAlerts:      []*storage.SensorReading{{ID: 10}},
		RecentStops:     []*storage.SensorReading{stop},
		CriticalState:   true,
		Reasons:         []string{"1 leituras com risco acima de 70%"},
	}
}

func normal() *analyzer.AlertSnapshot {
	return &analyzer.AlertSnapshot{}
}

var kpis = &analyzer.KPIResult{OEE: 42, Status: analyzer.StatusCritical}

func TestNotifyTransitions(t *testing.T) {
	w := &recordingWriter{}
	n, c := newTestNotifier(w)
	ctx := context.Background()

	ev, err := n.Notify(ctx, kpis, normal())
	require.NoError(t, err)
	assert.Nil(t, ev, "normal state publishes nothing")

	ev, err = n.Notify(ctx, kpis, critical())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventCritical, ev.Type)

	c.advance(5 * time.Minute)
	ev, err = n.Notify(ctx, kpis, critical())
	require.NoError(t, err)
	assert.Nil(t, ev, "inside cooldown")

	c.advance(10 * time.Minute)
	ev, err = n.Notify(ctx, kpis, critical())
	require.NoError(t, err)
	require.NotNil(t, ev, "cooldown elapsed")
	assert.Equal(t, EventCritical, ev.Type)

	c.advance(time.Minute)
	ev, err = n.Notify(ctx, kpis, normal())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventResolved, ev.Type)

	ev, err = n.Notify(ctx, kpis, normal())
	require.NoError(t, err)
	assert.Nil(t, ev)

	events := w.events(t)
	require.Len(t, events, 3)
	assert.Equal(t, []EventType{EventCritical, EventCritical, EventResolved}, []EventType{events[0].Type, events[1].Type, events[2].Type})
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestNotifyPayload(t *testing.T) {
	w := &recordingWriter{}
	n, _ := newTestNotifier(w)

	_, err := n.Notify(context.Background(), kpis, critical())
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "plant-7", string(w.msgs[0].Key))

	e := w.events(t)[0]
	assert.True(t, e.CriticalState)
	assert.Equal(t, 1, e.RiskAlerts)
	assert.Equal(t, 1, e.RecentStops)
	assert.Equal(t, 0, e.VibrationAlerts)
	assert.Equal(t, 42, e.OEE)
	assert.Equal(t, analyzer.StatusCritical, e.StatusGeral)
	assert.Equal(t, []string{"1 leituras com risco acima de 70%"}, e.Reasons)
	assert.Len(t, e.ID, 36)
}

func TestNotifyRetriesAfterWriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	n, _ := newTestNotifier(w)
	ctx := context.Background()

	_, err := n.Notify(ctx, kpis, critical())
	assert.Error(t, err)

	w.err = nil
	ev, err := n.Notify(ctx, kpis, critical())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventCritical, ev.Type)
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	n := New(DefaultConfig(), nil)
	assert.False(t, n.Enabled())

	ev, err := n.Notify(context.Background(), kpis, critical())
	assert.NoError(t, err)
	assert.Nil(t, ev)
	assert.NoError(t, n.Close())
}

func TestCloseClosesWriter(t *testing.T) {
	w := &recordingWriter{}
	n, _ := newTestNotifier(w)
	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestRecorderWithoutKafka(t *testing.T) {
	history := storage.NewMemoryStore()
	n := New(DefaultConfig(), nil).WithRecorder(history)
	c := &clock{t: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
	n.now = c.now
	ctx := context.Background()

	ev, err := n.Notify(ctx, kpis, critical())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.False(t, n.Enabled())

	c.advance(time.Minute)
	ev, err = n.Notify(ctx, kpis, normal())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventResolved, ev.Type)

	events, err := history.RecentAlertEvents(ctx, storage.AlertEventQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(EventResolved), events[0].Type)
	assert.Equal(t, string(EventCritical), events[1].Type)
	assert.False(t, events[1].Published)
	assert.Equal(t, []string{"1 leituras com risco acima de 70%"}, events[1].Reasons)
	assert.Equal(t, 42, events[1].OEE)
	assert.Equal(t, "Crítico", events[1].StatusGeral)
}

func TestRecorderSkipsFailedPublish(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	n, _ := newTestNotifier(w)
	history := storage.NewMemoryStore()
	n.WithRecorder(history)
	ctx := context.Background()

	_, err := n.Notify(ctx, kpis, critical())
	require.Error(t, err)
	events, err := history.RecentAlertEvents(ctx, storage.AlertEventQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, events)

	w.err = nil
	_, err = n.Notify(ctx, kpis, critical())
	require.NoError(t, err)
	events, err = history.RecentAlertEvents(ctx, storage.AlertEventQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Published)
}

func deviceAlert(id string, level analyzer.AlertLevel) *analyzer.DeviceAlert {
	return &analyzer.DeviceAlert{
		DeviceID:  id,
		Level:     level,
		RiskScore: 0.65,
		Reasons:   []string{"Risco elevado: 65.0%"},
	}
}

func TestNotifyDeviceCooldownAndEscalation(t *testing.T) {
	w := &recordingWriter{}
	n, c := newTestNotifier(w)
	ctx := context.Background()

	ev, err := n.NotifyDevice(ctx, deviceAlert("DEV-1", analyzer.AlertNormal))
	require.NoError(t, err)
	assert.Nil(t, ev, "normal devices publish nothing")

	ev, err = n.NotifyDevice(ctx, deviceAlert("DEV-1", analyzer.AlertPreAlert))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventPreAlert, ev.Type)
	assert.False(t, ev.CriticalState)

	c.advance(time.Minute)
	ev, err = n.NotifyDevice(ctx, deviceAlert("DEV-1", analyzer.AlertPreAlert))
	require.NoError(t, err)
	assert.Nil(t, ev, "same level inside cooldown")

	ev, err = n.NotifyDevice(ctx, deviceAlert("DEV-2", analyzer.AlertPreAlert))
	require.NoError(t, err)
	require.NotNil(t, ev, "cooldown is per device")

	ev, err = n.NotifyDevice(ctx, deviceAlert("DEV-1", analyzer.AlertCritical))
	require.NoError(t, err)
	require.NotNil(t, ev, "escalation bypasses cooldown")
	assert.Equal(t, EventCritical, ev.Type)
	assert.True(t, ev.CriticalState)

	c.advance(time.Minute)
	ev, err = n.NotifyDevice(ctx, deviceAlert("DEV-1", analyzer.AlertPreAlert))
	require.NoError(t, err)
	assert.Nil(t, ev, "de-escalation waits for the cooldown")

	c.advance(15 * time.Minute)
	ev, err = n.NotifyDevice(ctx, deviceAlert("DEV-1", analyzer.AlertPreAlert))
	require.NoError(t, err)
	require.NotNil(t, ev, "cooldown elapsed")

	require.Len(t, w.msgs, 4)
	assert.Equal(t, "DEV-1", string(w.msgs[0].Key))
	assert.Equal(t, "DEV-2", string(w.msgs[1].Key))

	e := w.events(t)[0]
	assert.Equal(t, "DEV-1", e.DeviceID)
	require.NotNil(t, e.Device)
	assert.Equal(t, analyzer.AlertPreAlert, e.Device.Level)
	assert.Equal(t, []string{"Risco elevado: 65.0%"}, e.Reasons)
}

func TestNotifyDevicesRecordsHistory(t *testing.T) {
	history := storage.NewMemoryStore()
	w := &recordingWriter{}
	n, _ := newTestNotifier(w)
	n.WithRecorder(history)
	ctx := context.Background()

	events, err := n.NotifyDevices(ctx, []*analyzer.DeviceAlert{
		deviceAlert("DEV-1", analyzer.AlertPreAlert),
		deviceAlert("DEV-2", analyzer.AlertNormal),
		deviceAlert("DEV-3", analyzer.AlertCritical),
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	active, err := history.ActiveAlertEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "DEV-3", active[0].DeviceID)
	assert.Equal(t, string(EventCritical), active[0].Type)
	require.NotNil(t, active[0].RiskScore)
	assert.InDelta(t, 0.65, *active[0].RiskScore, 1e-9)
	assert.True(t, active[0].Published)

	w.err = errors.New("broker down")
	_, err = n.NotifyDevices(ctx, []*analyzer.DeviceAlert{deviceAlert("DEV-4", analyzer.AlertCritical)})
	assert.ErrorContains(t, err, "device DEV-4")

	w.err = nil
	events, err = n.NotifyDevices(ctx, []*analyzer.DeviceAlert{deviceAlert("DEV-4", analyzer.AlertCritical)})
	require.NoError(t, err)
	assert.Len(t, events, 1, "failed publish leaves the device unalerted")
}

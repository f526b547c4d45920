package observer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/notifier"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu       sync.Mutex
	messages []any
}

func (h *recordingHub) Broadcast(msgType string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, payload)
	return nil
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func newTestObserver(t *testing.T, store storage.ReadingStore, interval time.Duration) (*Observer, *recordingHub, *recordingWriter) {
	t.Helper()
	engine, err := analyzer.NewEngine(store, analyzer.DefaultKPIConfig(), analyzer.DefaultAlertConfig())
	require.NoError(t, err)

	hub := &recordingHub{}
	writer := &recordingWriter{}
	cfg := notifier.DefaultConfig()
	cfg.Enabled = true
	n := notifier.NewWithWriter(cfg, writer, nil)

	return New(engine, hub, n, Config{Interval: interval, Timeout: time.Second}, nil), hub, writer
}

func criticalStore() *storage.MemoryStore {
	store := storage.NewMemoryStore()
	for i := 0; i < 3; i++ {
		store.Append(storage.SensorReading{Status: storage.StatusStopped})
	}
	return store
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	obs, hub, writer := newTestObserver(t, criticalStore(), time.Hour)
	assert.Nil(t, obs.Last())

	snap, err := obs.Refresh(context.Background())
	require.NoError(t, err)

	assert.Same(t, snap, obs.Last())
	assert.Equal(t, analyzer.StatusCritical, snap.KPIs.StatusGeral)
	assert.True(t, snap.Alerts.CriticalState)
	assert.Equal(t, 1, hub.count())
	assert.Len(t, writer.msgs, 1, "transition to critical is notified")

	_, err = obs.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, hub.count())
	assert.Len(t, writer.msgs, 1, "cooldown suppresses repeats")
}

func TestRefreshStoreFailureKeepsLastSnapshot(t *testing.T) {
	store := criticalStore()
	obs, hub, _ := newTestObserver(t, store, time.Hour)

	first, err := obs.Refresh(context.Background())
	require.NoError(t, err)

	store.SetError(errors.New("db gone"))
	_, err = obs.Refresh(context.Background())
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
	assert.Same(t, first, obs.Last())
	assert.Equal(t, 1, hub.count())
}

func TestStartIsRestartableButNotConcurrent(t *testing.T) {
	obs, hub, _ := newTestObserver(t, criticalStore(), 10*time.Millisecond)

	for round := 0; round < 2; round++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- obs.Start(ctx) }()

		require.Eventually(t, obs.Running, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, obs.Start(context.Background()), ErrAlreadyRunning)

		before := hub.count()
		require.Eventually(t, func() bool { return hub.count() >= before+2 }, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("observer did not stop")
		}
		assert.False(t, obs.Running())
	}
}

func TestNilCollaborators(t *testing.T) {
	engine, err := analyzer.NewEngine(storage.NewMemoryStore(), analyzer.DefaultKPIConfig(), analyzer.DefaultAlertConfig())
	require.NoError(t, err)

	obs := New(engine, nil, nil, DefaultConfig(), nil)
	snap, err := obs.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Alerts.CriticalState)
	assert.Zero(t, snap.KPIs.OEE)
}

func TestRefreshRaisesDeviceAlerts(t *testing.T) {
	store := storage.NewMemoryStore()
	risk := 0.9
	store.Append(
		storage.SensorReading{DeviceID: "DEV-1", Status: storage.StatusRunning, Temperature: 60, Vibration: 2},
		storage.SensorReading{DeviceID: "DEV-9", Status: storage.StatusRunning, Temperature: 60, Vibration: 2, RiskScore: &risk},
	)
	obs, _, writer := newTestObserver(t, store, time.Hour)

	snap, err := obs.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Devices, 2)
	assert.Equal(t, "DEV-9", snap.Devices[0].DeviceID)
	assert.Equal(t, analyzer.AlertCritical, snap.Devices[0].Level)
	assert.Equal(t, analyzer.AlertNormal, snap.Devices[1].Level)

	require.Len(t, writer.msgs, 2, "plant transition and one device alert")
	assert.Equal(t, "plant-1", string(writer.msgs[0].Key))
	assert.Equal(t, "DEV-9", string(writer.msgs[1].Key))

	_, err = obs.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, writer.msgs, 2, "device cooldown suppresses repeats")
}

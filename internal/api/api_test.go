package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/assistant"
	"github.com/namansh70747/smart-factory-monitor/internal/report"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var base = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T, store *storage.MemoryStore, mutate ...func(*Deps)) *gin.Engine {
	t.Helper()
	engine, err := analyzer.NewEngine(store, analyzer.DefaultKPIConfig(), analyzer.DefaultAlertConfig())
	require.NoError(t, err)

	cfg := report.DefaultConfig()
	cfg.Timezone = "UTC"
	formatter, err := report.NewFormatter(engine, cfg)
	require.NoError(t, err)

	deps := Deps{
		Engine:          engine,
		Reports:         formatter,
		Assistant:       assistant.New(engine, formatter, nil),
		AppName:         "factory-monitor",
		AppVersion:      "test",
		ChatRate:        100,
		ChatBurst:       100,
		MaxMessageBytes: 2000,
	}
	for _, m := range mutate {
		m(&deps)
	}
	return NewRouter(deps)
}

func seeded() *storage.MemoryStore {
	store := storage.NewMemoryStore()
	for i := 0; i < 25; i++ {
		status := storage.StatusRunning
		if i%5 == 0 {
			status = storage.StatusStopped
		}
		store.Append(storage.SensorReading{
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			DeviceID:    "DEV-100",
			Status:      status,
			Temperature: 60,
			Vibration:   2,
		})
	}
	return store
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestReadingsDefaultLimitAndOrder(t *testing.T) {
	router := newTestRouter(t, seeded())

	w := do(router, http.MethodGet, "/sensores", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var readings []storage.SensorReading
	decode(t, w, &readings)
	require.Len(t, readings, 20)
	assert.EqualValues(t, 25, readings[0].ID)
	assert.EqualValues(t, 6, readings[19].ID)

	w = do(router, http.MethodGet, "/sensores?limit=3", "")
	decode(t, w, &readings)
	assert.Len(t, readings, 3)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/sensores?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/sensores?limit=abc", "").Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newTestRouter(t, seeded())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestKPIs(t *testing.T) {
	router := newTestRouter(t, seeded())

	w := do(router, http.MethodGet, "/kpis", "")
	require.Equal(t, http.StatusOK, w.Code)

	var all analyzer.KPIView
	decode(t, w, &all)
	assert.EqualValues(t, 25, all.LeiturasTotais)
	assert.EqualValues(t, 5, all.TempoParadoRegistros)
	assert.Equal(t, 80.0, all.Disponibilidade)

	w = do(router, http.MethodGet, "/kpis?start=2025-06-02&end=2025-06-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	var day analyzer.KPIView
	decode(t, w, &day)
	assert.EqualValues(t, 16, day.LeiturasTotais)

	w = do(router, http.MethodGet, "/kpis?start=2025-06-02T08:00:00Z&end=2025-06-02%2009:00:00", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hours analyzer.KPIView
	decode(t, w, &hours)
	assert.EqualValues(t, 2, hours.LeiturasTotais)
}

func TestKPIsRejectsBadWindows(t *testing.T) {
	router := newTestRouter(t, seeded())

	for _, q := range []string{
		"/kpis?start=2025-06-02",
		"/kpis?end=2025-06-02",
		"/kpis?start=02/06/2025&end=03/06/2025",
		"/kpis?start=2025-06-03&end=2025-06-02",
	} {
		assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, q, "").Code, q)
	}
}

func TestAlerts(t *testing.T) {
	router := newTestRouter(t, seeded())

	w := do(router, http.MethodGet, "/alertas", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, true, body["critical_state"])
	assert.Len(t, body["ultimas_paradas"], 5)
	assert.Len(t, body["vibracao_alta"], 0)
	assert.Len(t, body["risco_alto"], 0)
}

func TestStoreOutageIs503(t *testing.T) {
	store := seeded()
	store.SetError(errors.New("pool closed"))
	router := newTestRouter(t, store)

	for _, path := range []string{"/sensores", "/kpis", "/alertas", "/report/full", "/report/quick", "/report/complete?date=02/06/2025", "/health", "/ready"} {
		assert.Equal(t, http.StatusServiceUnavailable, do(router, http.MethodGet, path, "").Code, path)
	}
}

func TestChat(t *testing.T) {
	router := newTestRouter(t, seeded())

	w := do(router, http.MethodPost, "/chat", `{"message":"oi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var reply assistant.Reply
	decode(t, w, &reply)
	assert.NotEmpty(t, reply.Reply)
	assert.NotEmpty(t, reply.Options)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/chat", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/chat", `not json`).Code)

	long := `{"message":"` + strings.Repeat("a", 2001) + `"}`
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(router, http.MethodPost, "/chat", long).Code)
}

func TestChatRateLimit(t *testing.T) {
	router := newTestRouter(t, seeded(), func(d *Deps) {
		d.ChatRate = 0.001
		d.ChatBurst = 2
	})

	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/chat", `{"message":"oee"}`).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/chat", `{"message":"oee"}`).Code)
	w := do(router, http.MethodPost, "/chat", `{"message":"oee"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestClientLimiterEvictsIdleClients(t *testing.T) {
	now := base
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }

	a := l.get("10.0.0.1")
	l.get("10.0.0.2")
	assert.Len(t, l.buckets, 2)

	now = now.Add(5 * time.Minute)
	assert.Same(t, a, l.get("10.0.0.1"))

	now = now.Add(6 * time.Minute)
	l.get("10.0.0.3")
	assert.Len(t, l.buckets, 2)
	assert.Contains(t, l.buckets, "10.0.0.1")
	assert.NotContains(t, l.buckets, "10.0.0.2")
	assert.Same(t, a, l.get("10.0.0.1"))
}

func TestReports(t *testing.T) {
	router := newTestRouter(t, seeded())

	w := do(router, http.MethodGet, "/report/full", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary analyzer.PlantSummary
	decode(t, w, &summary)
	assert.Equal(t, "Relatório Consolidado Smart Factory", summary.Title)
	assert.True(t, summary.CriticalState)

	w = do(router, http.MethodGet, "/report/quick", "")
	require.Equal(t, http.StatusOK, w.Code)
	var quick report.Report
	decode(t, w, &quick)
	assert.Equal(t, report.KindQuick, quick.Kind)
	assert.Equal(t, string(report.LevelCritical), quick.Status)

	w = do(router, http.MethodGet, "/report/complete?date=02/06/2025&time=10:00", "")
	require.Equal(t, http.StatusOK, w.Code)
	var complete report.Report
	decode(t, w, &complete)
	assert.Contains(t, complete.Text, "Data Base: 02/06/2025 às 10:00")

	w = do(router, http.MethodGet, "/report/complete?date=31/02/2025", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.Contains(t, body["error"], "dd/mm/aaaa")
}

func TestOperationalEndpoints(t *testing.T) {
	router := newTestRouter(t, seeded())

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/ready", "").Code)

	w := do(router, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]any
	decode(t, w, &status)
	assert.Equal(t, "factory-monitor", status["service"])
	assert.Equal(t, "test", status["version"])

	w = do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "factory_http_request_duration_seconds")

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/ws", "").Code)
}

func TestAlertHistory(t *testing.T) {
	store := seeded()
	ctx := context.Background()
	require.NoError(t, store.SaveAlertEvent(ctx, &storage.AlertEvent{EventID: "e-1", Type: "critical", Timestamp: base, CriticalState: true}))
	require.NoError(t, store.SaveAlertEvent(ctx, &storage.AlertEvent{EventID: "e-2", Type: "resolved", Timestamp: base.Add(time.Hour)}))

	router := newTestRouter(t, store, func(d *Deps) { d.History = store })

	w := do(router, http.MethodGet, "/alertas/historico?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var events []storage.AlertEvent
	decode(t, w, &events)
	require.Len(t, events, 1)
	assert.Equal(t, "e-2", events[0].EventID)

	store.SetError(errors.New("pool closed"))
	assert.Equal(t, http.StatusServiceUnavailable, do(router, http.MethodGet, "/alertas/historico", "").Code)

	plain := newTestRouter(t, seeded())
	assert.Equal(t, http.StatusNotFound, do(plain, http.MethodGet, "/alertas/historico", "").Code)
}

func TestKPIsForOneDevice(t *testing.T) {
	store := seeded()
	store.Append(storage.SensorReading{Timestamp: base, DeviceID: "DEV-200", Status: storage.StatusRunning, Vibration: 9})
	router := newTestRouter(t, store)

	w := do(router, http.MethodGet, "/kpis?device=DEV-200", "")
	require.Equal(t, http.StatusOK, w.Code)
	var one analyzer.KPIView
	decode(t, w, &one)
	assert.Equal(t, "DEV-200", one.Dispositivo)
	assert.EqualValues(t, 1, one.LeiturasTotais)
	assert.Equal(t, 9.0, one.VibracaoMediaOperacao)

	w = do(router, http.MethodGet, "/kpis?device=DEV-100&start=2025-06-02&end=2025-06-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	var day analyzer.KPIView
	decode(t, w, &day)
	assert.EqualValues(t, 16, day.LeiturasTotais)
}

func TestDeviceAlertEndpoint(t *testing.T) {
	store := seeded()
	store.Append(storage.SensorReading{DeviceID: "DEV-300", Status: storage.StatusRunning, Temperature: 96, Vibration: 2})
	router := newTestRouter(t, store)

	w := do(router, http.MethodGet, "/dispositivos/DEV-300/alerta", "")
	require.Equal(t, http.StatusOK, w.Code)
	var alert analyzer.DeviceAlert
	decode(t, w, &alert)
	assert.Equal(t, analyzer.AlertCritical, alert.Level)
	assert.InDelta(t, 0.96, alert.TemperatureProximity, 1e-9)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/dispositivos/DEV-404/alerta", "").Code)
}

func TestActiveAlertsAndResolve(t *testing.T) {
	store := seeded()
	ctx := context.Background()
	require.NoError(t, store.SaveAlertEvent(ctx, &storage.AlertEvent{EventID: "p-1", Type: "critical", Timestamp: base}))
	require.NoError(t, store.SaveAlertEvent(ctx, &storage.AlertEvent{EventID: "d-1", Type: "pre_alert", DeviceID: "DEV-100", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, store.SaveAlertEvent(ctx, &storage.AlertEvent{EventID: "d-2", Type: "critical", DeviceID: "DEV-200", Timestamp: base.Add(2 * time.Minute)}))

	router := newTestRouter(t, store, func(d *Deps) { d.History = store })

	w := do(router, http.MethodGet, "/alertas/historico?device=DEV-200", "")
	require.Equal(t, http.StatusOK, w.Code)
	var byDevice []storage.AlertEvent
	decode(t, w, &byDevice)
	require.Len(t, byDevice, 1)
	assert.Equal(t, "d-2", byDevice[0].EventID)

	w = do(router, http.MethodGet, "/alertas/ativos", "")
	require.Equal(t, http.StatusOK, w.Code)
	var active []storage.AlertEvent
	decode(t, w, &active)
	require.Len(t, active, 2)

	w = do(router, http.MethodPost, "/alertas/2/resolver", `{"resolved_by":"maria"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resolved storage.AlertEvent
	decode(t, w, &resolved)
	assert.Equal(t, "maria", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	w = do(router, http.MethodPost, "/alertas/3/resolver", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resolved)
	assert.Equal(t, "system", resolved.ResolvedBy)

	w = do(router, http.MethodGet, "/alertas/ativos", "")
	decode(t, w, &active)
	assert.Empty(t, active)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodPost, "/alertas/99/resolver", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/alertas/abc/resolver", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/alertas/2/resolver", `{"resolved_by":`).Code)
}

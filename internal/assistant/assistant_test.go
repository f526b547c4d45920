package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/report"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)

func newTestAssistant(t *testing.T, store *storage.MemoryStore) *Assistant {
	t.Helper()
	engine, err := analyzer.NewEngine(store, analyzer.DefaultKPIConfig(), analyzer.DefaultAlertConfig())
	require.NoError(t, err)

	cfg := report.DefaultConfig()
	cfg.Timezone = "UTC"
	formatter, err := report.NewFormatter(engine, cfg)
	require.NoError(t, err)

	a := New(engine, formatter, nil)
	a.now = func() time.Time { return now }
	return a
}

func seeded() *storage.MemoryStore {
	store := storage.NewMemoryStore()
	risk := 0.9
	store.Append(
		storage.SensorReading{Timestamp: now, DeviceID: "DEV-100", Status: storage.StatusRunning, Temperature: 61.25, Vibration: 1.5},
		storage.SensorReading{Timestamp: now, DeviceID: "DEV-101", Status: storage.StatusStopped},
		storage.SensorReading{Timestamp: now, DeviceID: "DEV-102", Status: storage.StatusRunning, Temperature: 72.04, Vibration: 2.346, RiskScore: &risk},
	)
	return store
}

func TestRouting(t *testing.T) {
	a := newTestAssistant(t, seeded())

	cases := []struct {
		msg    string
		intent string
	}{
		{"", "greeting"},
		{"  Bom dia!", "greeting"},
		{"ajuda", "greeting"},
		{"relatorio", "quick_report"},
		{"Relatório Rápido", "quick_report"},
		{"relatorio agora", "quick_report"},
		{"relatório completo", "complete_report"},
		{"relatorio de 01/06/2025 10:00", "complete_report"},
		{"relatorio semanal", "fallback"},
		{"qual o OEE?", "kpi_oee"},
		{"quantas paradas hoje", "kpi_parada"},
		{"disponibilidade", "kpi_disponibilidade"},
		{"performance da linha", "kpi_performance"},
		{"qualidade", "kpi_qualidade"},
		{"mtbf", "kpi_mtbf"},
		{"e o mttr?", "kpi_mttr"},
		{"Status das Máquinas", "status"},
		{"Alertas Ativos", "alerts"},
		{"houve alguma falha?", "alerts"},
		{"temperatura", "latest_reading"},
		{"vibração", "latest_reading"},
		{"status DEV-100", "device_status"},
		{"qual o status da dev-7?", "device_status"},
		{"oee DEV-101", "device_oee"},
		{"dev-100", "fallback"},
		{"xyz", "fallback"},
	}

	for _, tc := range cases {
		intent, _ := a.route(normalize(tc.msg))
		assert.Equal(t, tc.intent, intent, tc.msg)
	}
}

func normalize(msg string) string {
	return strings.ToLower(strings.TrimSpace(msg))
}

func TestGreetingHasOptions(t *testing.T) {
	reply := newTestAssistant(t, seeded()).Handle(context.Background(), "oi")
	assert.Equal(t, greetingReply, reply.Reply)
	assert.Len(t, reply.Options, 4)
}

func TestKPIAnswers(t *testing.T) {
	a := newTestAssistant(t, seeded())
	ctx := context.Background()

	assert.Contains(t, a.Handle(ctx, "oee").Reply, "%")
	assert.Contains(t, a.Handle(ctx, "disponibilidade").Reply, "66.67%")
	assert.Contains(t, a.Handle(ctx, "paradas").Reply, "**1**")
}

func TestStatusAndLatestReading(t *testing.T) {
	a := newTestAssistant(t, seeded())
	ctx := context.Background()

	status := a.Handle(ctx, "status")
	assert.Contains(t, status.Reply, "🟢 Operando")
	assert.Contains(t, status.Reply, "72.0°C")

	latest := a.Handle(ctx, "temperatura")
	assert.Equal(t, "📊 Última leitura: 72.0°C / 2.35mm/s", latest.Reply)
}

func TestDeviceCommands(t *testing.T) {
	a := newTestAssistant(t, seeded())
	ctx := context.Background()

	assert.Equal(t,
		"📊 OEE DEV-100: **83%** (Alerta). (A: 100.00%, P: 85.00%, Q: 98.00%)",
		a.Handle(ctx, "oee DEV-100").Reply)

	assert.Equal(t,
		"DEV-102: 🟢 Operando. Temp: 72.0°C. Vibração: 2.35 mm/s. Nível de alerta: Crítico. Risco crítico: 90.0%.",
		a.Handle(ctx, "status dev-102").Reply)

	stopped := a.Handle(ctx, "Status DEV-101").Reply
	assert.Contains(t, stopped, "🔴 Parado")
	assert.Contains(t, stopped, "Nível de alerta: Normal.")

	assert.Equal(t, "Não encontrei o dispositivo DEV-999 ou dados recentes.", a.Handle(ctx, "status DEV-999").Reply)
	assert.Equal(t, "Não encontrei o dispositivo DEV-999 ou dados recentes.", a.Handle(ctx, "oee DEV-999").Reply)
}

func TestAlertSummary(t *testing.T) {
	a := newTestAssistant(t, seeded())

	reply := a.Handle(context.Background(), "alertas")
	assert.Contains(t, reply.Reply, "Detectei 2 eventos")
	assert.Contains(t, reply.Reply, "HÁ 1 INDICAÇÕES")
	assert.Contains(t, reply.Reply, "CRÍTICO")

	empty := newTestAssistant(t, storage.NewMemoryStore()).Handle(context.Background(), "alertas")
	assert.Equal(t, "✅ Nenhuma anomalia detectada recentemente.", empty.Reply)
}

func TestCompleteReportDefaultsToToday(t *testing.T) {
	reply := newTestAssistant(t, seeded()).Handle(context.Background(), "relatorio completo")
	assert.Contains(t, reply.Reply, "Data Base: 02/06/2025 às 09:15")
}

func TestCompleteReportExtractsDateAndTime(t *testing.T) {
	reply := newTestAssistant(t, seeded()).Handle(context.Background(), "relatório completo 01/06/2025 às 10:30")
	assert.Contains(t, reply.Reply, "Data Base: 01/06/2025 às 10:30")
}

func TestCompleteReportInvalidDateIsAMessage(t *testing.T) {
	reply := newTestAssistant(t, seeded()).Handle(context.Background(), "relatorio 31/02/2025")
	assert.Equal(t, "❌ Data inválida. Use o formato dd/mm/aaaa.", reply.Reply)
}

func TestQuickReport(t *testing.T) {
	reply := newTestAssistant(t, seeded()).Handle(context.Background(), "relatorio")
	assert.Contains(t, reply.Reply, "Equipamento: DEV-102")
	assert.Contains(t, reply.Reply, "Sensor: Temperatura")
}

func TestStoreFailureBecomesApology(t *testing.T) {
	store := seeded()
	store.SetError(errors.New("connection refused"))
	a := newTestAssistant(t, store)

	for _, msg := range []string{"relatorio", "relatorio completo", "oee", "status", "alertas", "vibração"} {
		reply := a.Handle(context.Background(), msg)
		assert.Equal(t, apologyReply, reply.Reply, msg)
	}

	assert.Equal(t, fallbackReply, a.Handle(context.Background(), "???").Reply)
}

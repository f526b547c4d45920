// Package assistant answers operator chat messages by keyword dispatch over
// the KPI engine and the report formatter.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/report"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"go.uber.org/zap"
)

// Reply is the chat response body.
type Reply struct {
	Reply   string   `json:"reply"`
	Options []string `json:"options,omitempty"`
}

type Reporter interface {
	FormatQuickReport(ctx context.Context) (*report.Report, error)
	FormatCompleteReport(ctx context.Context, date, clock string) (*report.Report, error)
	Location() *time.Location
}

// Engine is the plant-wide report source plus the device-scoped queries.
type Engine interface {
	report.Source
	ComputeDeviceKPIs(ctx context.Context, deviceID string, window *storage.TimeRange) (*analyzer.KPIResult, error)
	EvaluateDevice(ctx context.Context, deviceID string) (*analyzer.DeviceAlert, error)
}

type Assistant struct {
	engine  Engine
	reports Reporter
	logger  *zap.Logger
	now     func() time.Time
}

func New(engine Engine, reports Reporter, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		engine:  engine,
		reports: reports,
		logger:  logger,
		now:     time.Now,
	}
}

var (
	greetingPattern = regexp.MustCompile(`^(oi|ola|olá|bom dia|boa tarde|boa noite|ajuda)`)
	datePattern     = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	clockPattern    = regexp.MustCompile(`\b\d{2}:\d{2}\b`)
	devicePattern   = regexp.MustCompile(`\bdev-\d+\b`)
)

// handler answers one intent. Returning an error turns into the apology reply.
type handler func(ctx context.Context, msg string) (*Reply, error)

// Handle routes a message to the first matching intent. It never fails: any
// engine error is logged and answered with a fixed apology.
func (a *Assistant) Handle(ctx context.Context, message string) *Reply {
	msg := strings.ToLower(strings.TrimSpace(message))

	intent, h := a.route(msg)
	reply, err := h(ctx, msg)
	if err != nil {
		a.logger.Error("Chat intent failed",
			zap.String("intent", intent),
			zap.Error(err),
		)
		return &Reply{Reply: apologyReply}
	}

	a.logger.Debug("Chat message answered", zap.String("intent", intent))
	return reply
}

func (a *Assistant) route(msg string) (string, handler) {
	if msg == "" || greetingPattern.MatchString(msg) {
		return "greeting", a.greeting
	}

	if containsAny(msg, "relatorio", "relatório") {
		switch {
		case msg == "relatorio" || msg == "relatório" || containsAny(msg, "rapido", "rápido", "agora"):
			return "quick_report", a.quickReport
		case strings.Contains(msg, "completo") || datePattern.MatchString(msg):
			return "complete_report", a.completeReport
		}
	}

	if id := devicePattern.FindString(msg); id != "" {
		device := strings.ToUpper(id)
		switch {
		case strings.Contains(msg, "oee"):
			return "device_oee", func(ctx context.Context, _ string) (*Reply, error) {
				return a.deviceOEE(ctx, device)
			}
		case strings.Contains(msg, "status"):
			return "device_status", func(ctx context.Context, _ string) (*Reply, error) {
				return a.deviceStatus(ctx, device)
			}
		}
	}

	for _, topic := range kpiTopics {
		if strings.Contains(msg, topic.keyword) {
			answer := topic.answer
			return "kpi_" + topic.keyword, func(ctx context.Context, _ string) (*Reply, error) {
				return a.kpiAnswer(ctx, answer)
			}
		}
	}

	switch {
	case strings.Contains(msg, "status"):
		return "status", a.status
	case containsAny(msg, "alerta", "falha", "risco", "erro"):
		return "alerts", a.alerts
	case containsAny(msg, "temperatura", "vibra"):
		return "latest_reading", a.latestReading
	}
	return "fallback", a.fallback
}

func (a *Assistant) greeting(context.Context, string) (*Reply, error) {
	return &Reply{Reply: greetingReply, Options: greetingOptions}, nil
}

func (a *Assistant) fallback(context.Context, string) (*Reply, error) {
	return &Reply{Reply: fallbackReply}, nil
}

func (a *Assistant) quickReport(ctx context.Context, _ string) (*Reply, error) {
	r, err := a.reports.FormatQuickReport(ctx)
	if err != nil {
		return nil, err
	}
	return &Reply{Reply: r.Text}, nil
}

// completeReport pulls dd/mm/yyyy and hh:mm out of the message, defaulting
// to the current day and time.
func (a *Assistant) completeReport(ctx context.Context, msg string) (*Reply, error) {
	date := datePattern.FindString(msg)
	clock := clockPattern.FindString(msg)

	if date == "" {
		now := a.now().In(a.reports.Location())
		date = now.Format("02/01/2006")
		if clock == "" {
			clock = now.Format("15:04")
		}
	}

	r, err := a.reports.FormatCompleteReport(ctx, date, clock)
	if err != nil {
		return nil, err
	}
	return &Reply{Reply: r.Text}, nil
}

type kpiTopic struct {
	keyword string
	answer  func(v analyzer.KPIView) string
}

var kpiTopics = []kpiTopic{
	{"oee", func(v analyzer.KPIView) string {
		return fmt.Sprintf("O OEE atual da planta é de **%d%%**. (Meta: >85%%)", v.OEE)
	}},
	{"parada", func(v analyzer.KPIView) string {
		return fmt.Sprintf("Registramos **%d** leituras de máquina parada (%d paradas estimadas).", v.TempoParadoRegistros, v.FalhasEstimadas)
	}},
	{"disponibilidade", func(v analyzer.KPIView) string {
		return fmt.Sprintf("A disponibilidade operacional está em **%.2f%%**.", v.Disponibilidade)
	}},
	{"performance", func(v analyzer.KPIView) string {
		return fmt.Sprintf("A performance está em **%.2f%%** (vibração média em operação: %.2f mm/s).", v.Performance, v.VibracaoMediaOperacao)
	}},
	{"qualidade", func(v analyzer.KPIView) string {
		return fmt.Sprintf("A qualidade estimada está em **%.2f%%**.", v.Qualidade)
	}},
	{"mtbf", func(v analyzer.KPIView) string {
		return fmt.Sprintf("O MTBF (Tempo Médio Entre Falhas) atual é de **%.1f** leituras.", v.MTBF)
	}},
	{"mttr", func(v analyzer.KPIView) string {
		return fmt.Sprintf("O MTTR (Tempo Médio de Reparo) atual é de **%.1f** leituras.", v.MTTR)
	}},
}

func (a *Assistant) kpiAnswer(ctx context.Context, answer func(analyzer.KPIView) string) (*Reply, error) {
	kpis, err := a.engine.ComputeKPIs(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Reply{Reply: answer(kpis.View())}, nil
}

func (a *Assistant) deviceOEE(ctx context.Context, device string) (*Reply, error) {
	kpis, err := a.engine.ComputeDeviceKPIs(ctx, device, nil)
	if err != nil {
		return nil, err
	}
	if kpis.TotalReadings == 0 {
		return &Reply{Reply: fmt.Sprintf(unknownDeviceReply, device)}, nil
	}

	v := kpis.View()
	return &Reply{Reply: fmt.Sprintf("📊 OEE %s: **%d%%** (%s). (A: %.2f%%, P: %.2f%%, Q: %.2f%%)",
		device, v.OEE, v.StatusGeral, v.Disponibilidade, v.Performance, v.Qualidade)}, nil
}

func (a *Assistant) deviceStatus(ctx context.Context, device string) (*Reply, error) {
	alert, err := a.engine.EvaluateDevice(ctx, device)
	if errors.Is(err, analyzer.ErrUnknownDevice) {
		return &Reply{Reply: fmt.Sprintf(unknownDeviceReply, device)}, nil
	}
	if err != nil {
		return nil, err
	}

	state := "🔴 Parado"
	if alert.Status == storage.StatusRunning {
		state = "🟢 Operando"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s. Temp: %.1f°C. Vibração: %.2f mm/s. Nível de alerta: %s.",
		device, state, alert.Temperature, alert.Vibration, levelLabels[alert.Level])
	for _, reason := range alert.Reasons {
		fmt.Fprintf(&b, " %s.", reason)
	}
	return &Reply{Reply: b.String()}, nil
}

func (a *Assistant) latest(ctx context.Context) (*storage.SensorReading, error) {
	readings, err := a.engine.LatestReadings(ctx, 1)
	if err != nil || len(readings) == 0 {
		return nil, err
	}
	return readings[0], nil
}

func (a *Assistant) status(ctx context.Context, _ string) (*Reply, error) {
	last, err := a.latest(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &Reply{Reply: noReadingsReply}, nil
	}

	state := "🔴 Parado"
	if last.IsRunning() {
		state = "🟢 Operando"
	}
	return &Reply{Reply: fmt.Sprintf("Status Geral da Linha: %s. Equipamento: %s. Temperatura: %.1f°C.", state, last.DeviceID, last.Temperature)}, nil
}

func (a *Assistant) alerts(ctx context.Context, _ string) (*Reply, error) {
	snap, err := a.engine.ClassifyAlerts(ctx, 0)
	if err != nil {
		return nil, err
	}

	count := len(snap.VibrationAlerts) + len(snap.RecentStops) + len(snap.RiskAlerts)
	if count == 0 {
		return &Reply{Reply: "✅ Nenhuma anomalia detectada recentemente."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 Atenção: Detectei %d eventos recentes.", count)
	if n := len(snap.RiskAlerts); n > 0 {
		fmt.Fprintf(&b, " ⚠️ HÁ %d INDICAÇÕES DE ALTO RISCO DE FALHA!", n)
	}
	if snap.CriticalState {
		b.WriteString(" Planta em estado CRÍTICO.")
	}
	return &Reply{Reply: b.String()}, nil
}

func (a *Assistant) latestReading(ctx context.Context, _ string) (*Reply, error) {
	last, err := a.latest(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &Reply{Reply: noReadingsReply}, nil
	}
	return &Reply{Reply: fmt.Sprintf("📊 Última leitura: %.1f°C / %.2fmm/s", last.Temperature, last.Vibration)}, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

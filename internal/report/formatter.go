package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"go.uber.org/zap"
)

type Kind string

const (
	KindQuick    Kind = "quick"
	KindComplete Kind = "complete"
)

type RiskLevel string

const (
	LevelNormal     RiskLevel = "Normal"
	LevelPreventive RiskLevel = "Preventivo"
	LevelCritical   RiskLevel = "Crítico"
)

// StatusNoData is the Report.Status of a quick report over an empty store.
const StatusNoData = "Sem dados"

// Report is the rendered text of a quick or complete report. Err is set
// instead of returning an error when the request itself was malformed.
type Report struct {
	Kind        Kind      `json:"kind"`
	Status      string    `json:"status"`
	GeneratedAt time.Time `json:"generated_at"`
	Text        string    `json:"text"`
	Err         error     `json:"-"`
}

// Source is the part of the engine the formatter reads from.
type Source interface {
	LatestReadings(ctx context.Context, limit int) ([]*storage.SensorReading, error)
	ComputeKPIs(ctx context.Context, window *storage.TimeRange) (*analyzer.KPIResult, error)
	ClassifyAlerts(ctx context.Context, limit int) (*analyzer.AlertSnapshot, error)
}

type Formatter struct {
	source Source
	cfg    Config
	loc    *time.Location
	now    func() time.Time
}

func NewFormatter(source Source, cfg Config) (*Formatter, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Formatter{
		source: source,
		cfg:    cfg,
		loc:    loc,
		now:    time.Now,
	}, nil
}

// Location is the zone used for day windows.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// Assessment is the per-reading risk derived from the operational limits.
type Assessment struct {
	Reading     *storage.SensorReading
	RiskPercent float64 // one decimal
	Level       RiskLevel
	Sensor      string
	Value       string
	Limit       string
}

// Assess rates a single reading by the larger of its temperature and
// vibration ratios to their limits.
func (f *Formatter) Assess(r *storage.SensorReading) Assessment {
	tempRatio := r.Temperature / f.cfg.TemperatureLimit
	vibRatio := r.Vibration / f.cfg.VibrationLimit

	raw := math.Max(tempRatio, vibRatio) * 100
	a := Assessment{
		Reading:     r,
		RiskPercent: analyzer.RoundTo(raw, 1),
		Level:       f.level(raw),
	}

	if vibRatio > tempRatio {
		a.Sensor = sensorVibration
		a.Value = fmt.Sprintf("%.2f mm/s", r.Vibration)
		a.Limit = fmt.Sprintf("%.1f mm/s", f.cfg.VibrationLimit)
	} else {
		a.Sensor = sensorTemperature
		a.Value = fmt.Sprintf("%.1f °C", r.Temperature)
		a.Limit = fmt.Sprintf("%.1f °C", f.cfg.TemperatureLimit)
	}
	return a
}

// riskEpsilon keeps an exact 30 or 70 in its upper band despite float error
// in the ratio.
const riskEpsilon = 1e-9

// level bands the unrounded percentage.
func (f *Formatter) level(pct float64) RiskLevel {
	switch {
	case pct+riskEpsilon < f.cfg.PreventiveRisk:
		return LevelNormal
	case pct+riskEpsilon < f.cfg.CriticalRisk:
		return LevelPreventive
	default:
		return LevelCritical
	}
}

// FormatQuickReport renders the risk report of the most recent reading.
func (f *Formatter) FormatQuickReport(ctx context.Context) (*Report, error) {
	readings, err := f.source.LatestReadings(ctx, 1)
	if err != nil {
		return nil, err
	}

	report := &Report{Kind: KindQuick, GeneratedAt: f.now()}
	if len(readings) == 0 {
		report.Status = StatusNoData
		report.Text = noDataText
		return report, nil
	}

	a := f.Assess(readings[0])
	report.Status = string(a.Level)
	report.Text = f.renderQuick(a)
	return report, nil
}

func (f *Formatter) renderQuick(a Assessment) string {
	tpl := levelTemplates[a.Level]
	sensor := sensorTemplates[a.Sensor]

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", tpl.header)
	fmt.Fprintf(&b, "Status: %s\n", tpl.status)
	fmt.Fprintf(&b, "Data/Hora: %s\n", a.Reading.Timestamp.In(f.loc).Format("02/01/2006 – 15:04"))
	fmt.Fprintf(&b, "Equipamento: %s\n", a.Reading.DeviceID)
	fmt.Fprintf(&b, "Sensor: %s\n", a.Sensor)
	fmt.Fprintf(&b, "Valor Atual: %s\n", a.Value)
	fmt.Fprintf(&b, "Limite Operacional: %s\n", a.Limit)
	fmt.Fprintf(&b, "Risco Estimado: %.1f%%\n\n", a.RiskPercent)
	fmt.Fprintf(&b, "Análise:\n%s %s\n\n", tpl.analysis, fmt.Sprintf(sensor.analysis, a.Value))
	fmt.Fprintf(&b, "Recomendação:\n%s %s", tpl.recommendation, sensor.recommendation)
	return b.String()
}

// FormatCompleteReport renders the KPIs of one calendar day together with
// the current alert snapshot. A malformed date or clock is reported through
// Report.Err; only store failures are returned as errors.
func (f *Formatter) FormatCompleteReport(ctx context.Context, date, clock string) (*Report, error) {
	report := &Report{Kind: KindComplete, GeneratedAt: f.now()}

	base, err := ParseDateTime(date, clock, f.loc)
	if err != nil {
		var invalid *InvalidDateError
		if errors.As(err, &invalid) {
			logger.Debug("Rejected complete report date",
				zap.String("date", date),
				zap.String("time", clock),
				zap.Error(err),
			)
			report.Status = "Data inválida"
			report.Text = invalid.UserMessage()
			report.Err = err
			return report, nil
		}
		return nil, err
	}

	kpis, err := f.source.ComputeKPIs(ctx, storage.DayRange(base))
	if err != nil {
		return nil, err
	}
	alerts, err := f.source.ClassifyAlerts(ctx, 0)
	if err != nil {
		return nil, err
	}

	report.Status = string(kpis.Status)
	report.Text = f.renderComplete(base, kpis, alerts)
	return report, nil
}

func (f *Formatter) renderComplete(base time.Time, kpis *analyzer.KPIResult, alerts *analyzer.AlertSnapshot) string {
	v := kpis.View()

	trend := "Estável ➡️"
	if kpis.AvgVibrationRunning > f.cfg.TrendVibration {
		trend = "Tendência de Alta Vibração 📈"
	}
	failure := "Baixa"
	if kpis.AvgVibrationRunning > f.cfg.FailureVibration {
		failure = "ALTA (Requer Manutenção)"
	}

	var b strings.Builder
	b.WriteString("📑 *Relatório Completo*\n")
	fmt.Fprintf(&b, "📅 Data Base: %s às %s\n\n", base.Format(dateLayout), base.Format(timeLayout))

	b.WriteString("*Indicadores de Performance (KPIs)*\n")
	fmt.Fprintf(&b, "- OEE: %d%%\n", v.OEE)
	fmt.Fprintf(&b, "- Disponibilidade: %.2f%%\n", v.Disponibilidade)
	fmt.Fprintf(&b, "- Performance: %.2f%%\n", v.Performance)
	fmt.Fprintf(&b, "- Qualidade: %.2f%%\n", v.Qualidade)
	fmt.Fprintf(&b, "- Status Geral: %s\n\n", v.StatusGeral)

	b.WriteString("*Confiabilidade*\n")
	fmt.Fprintf(&b, "- MTBF: %.1f leituras\n", v.MTBF)
	fmt.Fprintf(&b, "- MTTR: %.1f leituras\n", v.MTTR)
	fmt.Fprintf(&b, "- Falhas Estimadas: %d\n", v.FalhasEstimadas)
	fmt.Fprintf(&b, "- Total Paradas: %d\n\n", v.TempoParadoRegistros)

	b.WriteString("*Análise Preditiva*\n")
	fmt.Fprintf(&b, "- Tendência: %s\n", trend)
	fmt.Fprintf(&b, "- Probabilidade de Falha Futura: %s\n", failure)
	fmt.Fprintf(&b, "- Vibração Média: %.2f mm/s\n\n", v.VibracaoMediaOperacao)

	b.WriteString("*Resumo de Alertas (Atuais)*\n")
	fmt.Fprintf(&b, "- Críticos: %d\n", len(alerts.RiskAlerts))
	fmt.Fprintf(&b, "- Avisos: %d\n", len(alerts.VibrationAlerts))
	fmt.Fprintf(&b, "- Paradas Recentes: %d\n\n", len(alerts.RecentStops))

	b.WriteString("_Fim do relatório._")
	return b.String()
}

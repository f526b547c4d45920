package analyzer

import (
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
)

type StatusLabel string

const (
	StatusExcellent StatusLabel = "Excelente"
	StatusAlert     StatusLabel = "Alerta"
	StatusCritical  StatusLabel = "Crítico"
)

// KPIResult is recomputed from the store on every request.
type KPIResult struct {
	Window   *storage.TimeRange `json:"window,omitempty"`
	DeviceID string             `json:"device_id,omitempty"`

	TotalReadings       int64   `json:"total_readings"`
	DowntimeReadings    int64   `json:"downtime_readings"`
	OperationalReadings int64   `json:"operational_readings"`
	AvgVibrationRunning float64 `json:"avg_vibration_running"`

	Availability float64 `json:"availability"` // 0-1
	Performance  float64 `json:"performance"`  // 0-1
	Quality      float64 `json:"quality"`      // 0-1
	OEE          int     `json:"oee"`          // rounded percentage

	EstimatedFailures int64   `json:"estimated_failures"`
	MTBF              float64 `json:"mtbf"` // reading intervals
	MTTR              float64 `json:"mttr"` // reading intervals

	Status StatusLabel `json:"status"`
}

// KPIView is the dashboard representation of a KPIResult: ratios as
// percentages with two decimals, reliability figures with one.
type KPIView struct {
	Dispositivo           string      `json:"dispositivo,omitempty"`
	OEE                   int         `json:"oee"`
	MTBF                  float64     `json:"mtbf"`
	MTTR                  float64     `json:"mttr"`
	Disponibilidade       float64     `json:"disponibilidade"`
	Performance           float64     `json:"performance"`
	Qualidade             float64     `json:"qualidade"`
	FalhasEstimadas       int64       `json:"falhas_estimadas"`
	LeiturasTotais        int64       `json:"leituras_totais"`
	TempoParadoRegistros  int64       `json:"tempo_parado_registros"`
	VibracaoMediaOperacao float64     `json:"vibracao_media_operacao"`
	StatusGeral           StatusLabel `json:"status_geral"`
}

func (k *KPIResult) View() KPIView {
	return KPIView{
		Dispositivo:           k.DeviceID,
		OEE:                   k.OEE,
		MTBF:                  RoundTo(k.MTBF, 1),
		MTTR:                  RoundTo(k.MTTR, 1),
		Disponibilidade:       RoundTo(k.Availability*100, 2),
		Performance:           RoundTo(k.Performance*100, 2),
		Qualidade:             RoundTo(k.Quality*100, 2),
		FalhasEstimadas:       k.EstimatedFailures,
		LeiturasTotais:        k.TotalReadings,
		TempoParadoRegistros:  k.DowntimeReadings,
		VibracaoMediaOperacao: RoundTo(k.AvgVibrationRunning, 2),
		StatusGeral:           k.Status,
	}
}

// AlertSnapshot is the alert state over the most recent readings.
type AlertSnapshot struct {
	VibrationAlerts []*storage.SensorReading `json:"vibracao_alta"`
	RiskAlerts      []*storage.SensorReading `json:"risco_alto"`
	RecentStops     []*storage.SensorReading `json:"ultimas_paradas"`
	CriticalState   bool                     `json:"critical_state"`
	Reasons         []string                 `json:"reasons,omitempty"`
	Scanned         int                      `json:"leituras_analisadas"`
}

// PlantSummary is the consolidated KPI and alert payload.
type PlantSummary struct {
	GeneratedAt    time.Time     `json:"generated_at"`
	Title          string        `json:"title"`
	KPIs           KPIView       `json:"kpis"`
	CriticalEvents int           `json:"critical_events"`
	CriticalState  bool          `json:"critical_state"`
	Alerts         SummaryAlerts `json:"alerts"`
}

type SummaryAlerts struct {
	HighRiskDevices   []string `json:"high_risk_devices"`
	VibrationWarnings int      `json:"vibration_warnings"`
	RecentStops       int      `json:"recent_stops"`
}

package observer

import (
	"github.com/namansh70747/smart-factory-monitor/internal/analyzer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	oeeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "plant",
		Name:      "oee_percent",
		Help:      "Overall equipment effectiveness over the whole store.",
	})
	availabilityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "plant",
		Name:      "availability_ratio",
		Help:      "Share of readings with the machine running.",
	})
	mtbfGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "plant",
		Name:      "mtbf_readings",
		Help:      "Estimated mean time between failures, in reading intervals.",
	})
	mttrGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "plant",
		Name:      "mttr_readings",
		Help:      "Estimated mean time to repair, in reading intervals.",
	})
	criticalGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "plant",
		Name:      "critical_state",
		Help:      "1 while the alert classifier reports a critical plant.",
	})
	alertsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "plant",
		Name:      "alerts",
		Help:      "Alerts in the latest classification window by kind.",
	}, []string{"kind"})

	deviceAlertsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "plant",
		Name:      "device_alerts",
		Help:      "Devices in the latest evaluation by alert level.",
	}, []string{"level"})

	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factory",
		Subsystem: "observer",
		Name:      "ticks_total",
		Help:      "Dashboard refreshes by result.",
	}, []string{"result"})
)

func recordSnapshot(kpis *analyzer.KPIResult, alerts *analyzer.AlertSnapshot, devices []*analyzer.DeviceAlert) {
	oeeGauge.Set(float64(kpis.OEE))
	availabilityGauge.Set(kpis.Availability)
	mtbfGauge.Set(kpis.MTBF)
	mttrGauge.Set(kpis.MTTR)

	critical := 0.0
	if alerts.CriticalState {
		critical = 1
	}
	criticalGauge.Set(critical)

	alertsGauge.WithLabelValues("vibration").Set(float64(len(alerts.VibrationAlerts)))
	alertsGauge.WithLabelValues("risk").Set(float64(len(alerts.RiskAlerts)))
	alertsGauge.WithLabelValues("stop").Set(float64(len(alerts.RecentStops)))

	levels := map[analyzer.AlertLevel]int{}
	for _, d := range devices {
		levels[d.Level]++
	}
	for _, level := range []analyzer.AlertLevel{analyzer.AlertNormal, analyzer.AlertPreAlert, analyzer.AlertCritical} {
		deviceAlertsGauge.WithLabelValues(string(level)).Set(float64(levels[level]))
	}
}

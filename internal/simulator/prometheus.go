package simulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factory",
		Subsystem: "simulator",
		Name:      "readings_total",
		Help:      "Simulated readings written to the store.",
	}, []string{"device_id", "status"})
	insertErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factory",
		Subsystem: "simulator",
		Name:      "insert_errors_total",
		Help:      "Simulated readings the store rejected.",
	})
	temperatureGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "simulator",
		Name:      "temperature_celsius",
		Help:      "Last simulated temperature per device.",
	}, []string{"device_id"})
	vibrationGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "factory",
		Subsystem: "simulator",
		Name:      "vibration_mm_s",
		Help:      "Last simulated vibration per device.",
	}, []string{"device_id"})
)

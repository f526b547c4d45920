package analyzer

import (
	"errors"
	"fmt"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"github.com/namansh70747/smart-factory-monitor/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "factory",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of KPI and alert computations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "factory",
			Subsystem: "engine",
			Name:      "store_errors_total",
			Help:      "Reading store failures seen by the engine.",
		},
		[]string{"operation"},
	)
)

func observeDuration(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// storeFailure records the failure and guarantees the returned error
// matches storage.ErrStoreUnavailable.
func storeFailure(operation string, err error) error {
	storeErrors.WithLabelValues(operation).Inc()
	logger.Error("Reading store query failed",
		zap.String("operation", operation),
		zap.Error(err),
	)
	if errors.Is(err, storage.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", storage.ErrStoreUnavailable, operation, err)
}

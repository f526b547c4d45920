package analyzer

import (
	"context"
	"fmt"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
)

// FailureEstimator infers the number of discrete stoppages among the
// readings selected by scope. Implementations must return at least 1 so
// MTBF and MTTR stay defined.
type FailureEstimator interface {
	Name() string
	EstimateFailures(ctx context.Context, store storage.ReadingStore, scope storage.ReadingQuery, downtime int64) (int64, error)
}

// LegacyFailureEstimator assumes each stoppage spans ReadingsPerStop
// consecutive stopped readings: max(1, ceil(downtime / ReadingsPerStop)).
// It only needs the downtime count and never touches the store.
type LegacyFailureEstimator struct {
	ReadingsPerStop int
}

func (e LegacyFailureEstimator) Name() string { return FailureStrategyLegacy }

func (e LegacyFailureEstimator) EstimateFailures(_ context.Context, _ storage.ReadingStore, _ storage.ReadingQuery, downtime int64) (int64, error) {
	per := int64(e.ReadingsPerStop)
	if per < 1 {
		per = 1
	}
	return max(1, ceilDiv(downtime, per)), nil
}

// RunLengthFailureEstimator counts maximal runs of consecutive stopped
// readings in ID order. Each run is one stoppage.
type RunLengthFailureEstimator struct{}

func (RunLengthFailureEstimator) Name() string { return FailureStrategyRunLength }

func (RunLengthFailureEstimator) EstimateFailures(ctx context.Context, store storage.ReadingStore, scope storage.ReadingQuery, downtime int64) (int64, error) {
	if downtime == 0 {
		return 1, nil
	}

	scope.Status = ""
	readings, err := store.ListReadings(ctx, scope)
	if err != nil {
		return 0, err
	}
	return max(1, countStopRuns(readings)), nil
}

func countStopRuns(readings []*storage.SensorReading) int64 {
	var runs int64
	inRun := false
	for _, r := range readings {
		if r.IsStopped() {
			if !inRun {
				runs++
			}
			inRun = true
			continue
		}
		inRun = false
	}
	return runs
}

// NewFailureEstimator resolves the configured strategy name.
func NewFailureEstimator(cfg KPIConfig) (FailureEstimator, error) {
	switch cfg.FailureStrategy {
	case "", FailureStrategyLegacy:
		return LegacyFailureEstimator{ReadingsPerStop: cfg.ReadingsPerStop}, nil
	case FailureStrategyRunLength:
		return RunLengthFailureEstimator{}, nil
	}
	return nil, fmt.Errorf("unknown failure strategy %q", cfg.FailureStrategy)
}

package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrStoreUnavailable is returned (wrapped) whenever the reading store cannot
// be queried. Callers check it with errors.Is.
var ErrStoreUnavailable = errors.New("reading store unavailable")

// ReadingStore is read access to historical sensor readings.
type ReadingStore interface {
	// CountReadings returns how many readings match the query.
	CountReadings(ctx context.Context, q ReadingQuery) (int64, error)
	// AverageVibration returns the mean vibration of matching readings, 0 when none match.
	AverageVibration(ctx context.Context, q ReadingQuery) (float64, error)
	// LatestReadings returns up to limit readings ordered by descending ID.
	LatestReadings(ctx context.Context, limit int) ([]*SensorReading, error)
	// LatestDeviceReadings returns up to limit readings of one device ordered
	// by descending ID.
	LatestDeviceReadings(ctx context.Context, deviceID string, limit int) ([]*SensorReading, error)
	// ListReadings returns all matching readings ordered by ascending ID.
	ListReadings(ctx context.Context, q ReadingQuery) ([]*SensorReading, error)
	Health(ctx context.Context) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

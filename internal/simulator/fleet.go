package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
	"go.uber.org/zap"
)

type Config struct {
	Devices       int           `yaml:"devices" validate:"min=1"`
	FirstDevice   int           `yaml:"first_device" validate:"min=0"`
	Tick          time.Duration `yaml:"tick" validate:"gt=0"`
	ScenarioTicks int           `yaml:"scenario_ticks" validate:"min=0"`
	// Backfill is the number of past readings written per device before the
	// first tick.
	Backfill     int           `yaml:"backfill" validate:"min=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	MetricsPort  int           `yaml:"metrics_port" validate:"min=0,max=65535"`
	Seed         int64         `yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Devices:       3,
		FirstDevice:   100,
		Tick:          time.Second,
		ScenarioTicks: 30,
		Backfill:      120,
		WriteTimeout:  3 * time.Second,
		MetricsPort:   8090,
	}
}

// Sink receives generated readings. Both reading stores satisfy it.
type Sink interface {
	InsertReading(ctx context.Context, r *storage.SensorReading) error
}

// Fleet drives one Sensor per device and rotates the scenario every
// ScenarioTicks ticks. It is not safe for concurrent use.
type Fleet struct {
	cfg      Config
	sink     Sink
	sensors  []*Sensor
	logger   *zap.Logger
	now      func() time.Time
	ticks    int
	scenario int
}

func NewFleet(cfg Config, sink Sink, logger *zap.Logger) *Fleet {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	sensors := make([]*Sensor, cfg.Devices)
	for i := range sensors {
		sensors[i] = NewSensor(fmt.Sprintf("DEV-%d", cfg.FirstDevice+i), rng)
	}
	return &Fleet{
		cfg:     cfg,
		sink:    sink,
		sensors: sensors,
		logger:  logger.With(zap.String("component", "simulator")),
		now:     time.Now,
	}
}

func (f *Fleet) DeviceIDs() []string {
	ids := make([]string, len(f.sensors))
	for i, s := range f.sensors {
		ids[i] = s.deviceID
	}
	return ids
}

func (f *Fleet) Scenario() Scenario {
	return cycle[f.scenario]
}

// Backfill writes Backfill readings per device, spaced one tick apart and
// ending one tick before now. Scenario rotation applies as if the ticks
// had happened live.
func (f *Fleet) Backfill(ctx context.Context) (int, error) {
	n := f.cfg.Backfill
	if n == 0 {
		return 0, nil
	}
	start := f.now().Add(-time.Duration(n) * f.cfg.Tick)

	written := 0
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		ok, err := f.step(ctx, start.Add(time.Duration(i)*f.cfg.Tick))
		written += ok
		if err != nil {
			return written, err
		}
	}
	f.logger.Info("Backfill written",
		zap.Int("readings", written),
		zap.Int("devices", len(f.sensors)),
	)
	return written, nil
}

// Run writes one reading per device every tick until ctx ends. Failed
// writes are counted and logged; Run only returns ctx.Err().
func (f *Fleet) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Tick)
	defer ticker.Stop()

	f.logger.Info("Sensor simulator started",
		zap.Strings("devices", f.DeviceIDs()),
		zap.Duration("tick", f.cfg.Tick),
	)
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Sensor simulator stopped")
			return ctx.Err()
		case <-ticker.C:
			_, _ = f.step(ctx, f.now())
		}
	}
}

// step writes one reading per sensor at ts. Write failures do not stop the
// remaining sensors; the last one is returned unless ctx ended.
func (f *Fleet) step(ctx context.Context, ts time.Time) (int, error) {
	f.ticks++
	if f.cfg.ScenarioTicks > 0 && f.ticks%f.cfg.ScenarioTicks == 0 {
		f.scenario = (f.scenario + 1) % len(cycle)
		for _, s := range f.sensors {
			s.SetScenario(cycle[f.scenario])
		}
		f.logger.Debug("Scenario changed", zap.String("scenario", string(cycle[f.scenario])))
	}

	var lastErr error
	written := 0
	for _, s := range f.sensors {
		r := s.Next(ts)
		writeCtx, cancel := context.WithTimeout(ctx, f.cfg.WriteTimeout)
		err := f.sink.InsertReading(writeCtx, &r)
		cancel()
		if err != nil {
			insertErrors.Inc()
			f.logger.Warn("Reading write failed", zap.String("device_id", r.DeviceID), zap.Error(err))
			lastErr = err
			continue
		}
		written++
		readingsTotal.WithLabelValues(r.DeviceID, string(r.Status)).Inc()
		temperatureGauge.WithLabelValues(r.DeviceID).Set(r.Temperature)
		vibrationGauge.WithLabelValues(r.DeviceID).Set(r.Vibration)
	}
	if ctx.Err() != nil {
		return written, ctx.Err()
	}
	return written, lastErr
}

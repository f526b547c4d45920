// Package simulator generates synthetic machine readings for development
// and demos.
package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
)

type Scenario string

const (
	ScenarioNormal   Scenario = "normal"
	ScenarioPositive Scenario = "positive"
	ScenarioNegative Scenario = "negative"
)

// cycle is the rotation the fleet walks through.
var cycle = []Scenario{ScenarioNormal, ScenarioPositive, ScenarioNegative}

const (
	stopTicks      = 10
	pressureBase   = 10.0
	stoppedMinTemp = 25.0
)

type profile struct {
	temperature float64
	vibration   float64
	noise       float64
	// normalChance is the probability a tick is plain fluctuation rather than a spike.
	normalChance float64
	// runChance is the probability a running machine keeps running this tick.
	runChance float64
}

var profiles = map[Scenario]profile{
	ScenarioNormal:   {temperature: 60, vibration: 2.0, noise: 1.0, normalChance: 0.95, runChance: 0.99},
	ScenarioPositive: {temperature: 70, vibration: 1.0, noise: 0.5, normalChance: 0.95, runChance: 0.99},
	ScenarioNegative: {temperature: 100, vibration: 6.0, noise: 2.0, normalChance: 0.70, runChance: 0.95},
}

// Sensor generates readings for one machine. It is not safe for concurrent use.
type Sensor struct {
	deviceID string
	scenario Scenario
	stopped  int
	rng      *rand.Rand
}

func NewSensor(deviceID string, rng *rand.Rand) *Sensor {
	return &Sensor{
		deviceID: deviceID,
		scenario: ScenarioNormal,
		rng:      rng,
	}
}

// SetScenario ignores unknown scenarios.
func (s *Sensor) SetScenario(sc Scenario) {
	if _, ok := profiles[sc]; ok {
		s.scenario = sc
	}
}

func (s *Sensor) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Next produces the reading taken at ts. A stop lasts stopTicks readings.
func (s *Sensor) Next(ts time.Time) storage.SensorReading {
	p := profiles[s.scenario]

	var temp, vib float64
	if s.rng.Float64() > p.normalChance {
		temp = p.temperature + s.uniform(10, 20)*p.noise
		vib = p.vibration + s.uniform(2, 5)*p.noise
	} else {
		temp = p.temperature + s.uniform(-2, 2)*p.noise
		vib = p.vibration + s.uniform(-0.5, 0.5)*p.noise
	}
	pressure := pressureBase + s.uniform(-1, 1)

	if s.stopped == 0 && s.rng.Float64() > p.runChance {
		s.stopped = stopTicks
	}

	status := storage.StatusRunning
	if s.stopped > 0 {
		s.stopped--
		status = storage.StatusStopped
		temp = math.Max(stoppedMinTemp, temp-20)
		vib = 0
		pressure = 0
	}

	temp, vib, pressure = round2(temp), round2(vib), round2(pressure)
	risk := riskScore(temp, vib)
	return storage.SensorReading{
		Timestamp:   ts,
		DeviceID:    s.deviceID,
		Temperature: temp,
		Vibration:   vib,
		Pressure:    pressure,
		Status:      status,
		RiskScore:   &risk,
	}
}

// riskScore is the heuristic used when no trained model is available.
func riskScore(temp, vib float64) float64 {
	risk := 0.0
	if temp > 90 {
		risk += 0.5
	}
	if vib > 5 {
		risk += 0.4
	}
	return math.Min(risk, 1.0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

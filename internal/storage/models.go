package storage

import (
	"strings"
	"time"
)

// Status is the operating state reported with each reading.
type Status string

const (
	StatusRunning Status = "rodando"
	StatusStopped Status = "parado"
)

// ParseStatus normalises the status values emitted by the different
// producers ("running"/"stopped" and the plant locale "rodando"/"parado").
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "rodando", "running":
		return StatusRunning, true
	case "parado", "stopped":
		return StatusStopped, true
	}
	return "", false
}

// aliases returns every stored spelling of the status.
func (s Status) aliases() []string {
	switch s {
	case StatusRunning:
		return []string{"rodando", "running"}
	case StatusStopped:
		return []string{"parado", "stopped"}
	}
	return []string{string(s)}
}

// SensorReading is one timestamped sample for one device. Readings are
// append-only; ID order is recency order.
type SensorReading struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	DeviceID    string    `json:"device_id"`
	Temperature float64   `json:"temperatura"`
	Vibration   float64   `json:"vibracao"`
	Pressure    float64   `json:"pressure"`
	Status      Status    `json:"status"`
	RiskScore   *float64  `json:"risk_score"`
}

// Risk returns the predicted failure risk, treating a missing score as 0.
func (r *SensorReading) Risk() float64 {
	if r.RiskScore == nil {
		return 0
	}
	return *r.RiskScore
}

func (r *SensorReading) IsRunning() bool { return r.Status == StatusRunning }

func (r *SensorReading) IsStopped() bool { return r.Status == StatusStopped }

// TimeRange is an inclusive [Start, End] window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (tr *TimeRange) Contains(t time.Time) bool {
	if tr == nil {
		return true
	}
	return !t.Before(tr.Start) && !t.After(tr.End)
}

// DayRange returns the [00:00:00, 23:59:59] window of the given calendar day.
func DayRange(day time.Time) *TimeRange {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return &TimeRange{
		Start: start,
		End:   start.Add(24*time.Hour - time.Second),
	}
}

// ReadingQuery filters readings by device, status and time window. Zero
// values mean "any device", "any status" and "whole store".
type ReadingQuery struct {
	DeviceID string
	Status   Status
	Range    *TimeRange
}

func (q ReadingQuery) Matches(r *SensorReading) bool {
	if q.DeviceID != "" && r.DeviceID != q.DeviceID {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return q.Range.Contains(r.Timestamp)
}

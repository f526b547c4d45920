package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process ReadingStore used for development and tests.
// IDs are assigned on Append in insertion order.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []*SensorReading
	events   []*AlertEvent
	nextID   int64
	err      error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append stores copies of the readings and returns the IDs assigned to them.
func (s *MemoryStore) Append(readings ...SensorReading) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(readings))
	for _, r := range readings {
		r.ID = s.nextID
		s.nextID++
		if parsed, ok := ParseStatus(string(r.Status)); ok {
			r.Status = parsed
		}
		if r.Timestamp.IsZero() {
			r.Timestamp = time.Now()
		}
		stored := r
		s.readings = append(s.readings, &stored)
		ids = append(ids, r.ID)
	}
	return ids
}

// SetError makes every subsequent query fail with ErrStoreUnavailable
// wrapping err. A nil err restores normal operation.
func (s *MemoryStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// snapshot copies the matching readings under the read lock.
func (s *MemoryStore) snapshot(op string, q ReadingQuery) ([]*SensorReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, unavailable(op, s.err)
	}

	out := make([]*SensorReading, 0, len(s.readings))
	for _, r := range s.readings {
		if q.Matches(r) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountReadings(ctx context.Context, q ReadingQuery) (int64, error) {
	matched, err := s.snapshot("count readings", q)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (s *MemoryStore) AverageVibration(ctx context.Context, q ReadingQuery) (float64, error) {
	matched, err := s.snapshot("average vibration", q)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	var sum float64
	for _, r := range matched {
		sum += r.Vibration
	}
	return sum / float64(len(matched)), nil
}

func (s *MemoryStore) LatestReadings(ctx context.Context, limit int) ([]*SensorReading, error) {
	all, err := s.snapshot("latest readings", ReadingQuery{})
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}

	out := make([]*SensorReading, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *MemoryStore) LatestDeviceReadings(ctx context.Context, deviceID string, limit int) ([]*SensorReading, error) {
	matched, err := s.snapshot("latest device readings", ReadingQuery{DeviceID: deviceID})
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}

	out := make([]*SensorReading, 0, limit)
	for i := len(matched) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, matched[i])
	}
	return out, nil
}

// InsertReading appends a copy of r and sets its ID.
func (s *MemoryStore) InsertReading(ctx context.Context, r *SensorReading) error {
	s.mu.RLock()
	err := s.err
	s.mu.RUnlock()
	if err != nil {
		return unavailable("insert reading", err)
	}
	r.ID = s.Append(*r)[0]
	return nil
}

func (s *MemoryStore) ListReadings(ctx context.Context, q ReadingQuery) ([]*SensorReading, error) {
	return s.snapshot("list readings", q)
}

func (s *MemoryStore) Health(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return unavailable("ping", s.err)
	}
	return nil
}

func (s *MemoryStore) SaveAlertEvent(ctx context.Context, event *AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return unavailable("save alert event", s.err)
	}
	event.ID = int64(len(s.events) + 1)
	stored := *event
	stored.Reasons = append([]string(nil), event.Reasons...)
	s.events = append(s.events, &stored)
	return nil
}

// RecentAlertEvents returns matching events in reverse insertion order.
func (s *MemoryStore) RecentAlertEvents(ctx context.Context, q AlertEventQuery) ([]*AlertEvent, error) {
	return s.alertEvents("recent alert events", q.Limit, q.matches)
}

func (s *MemoryStore) ActiveAlertEvents(ctx context.Context, limit int) ([]*AlertEvent, error) {
	return s.alertEvents("active alert events", limit, (*AlertEvent).Active)
}

func (s *MemoryStore) alertEvents(op string, limit int, keep func(*AlertEvent) bool) ([]*AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, unavailable(op, s.err)
	}
	out := make([]*AlertEvent, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if keep(s.events[i]) {
			out = append(out, copyEvent(s.events[i]))
		}
	}
	return out, nil
}

func (s *MemoryStore) ResolveAlertEvent(ctx context.Context, id int64, resolvedBy string, at time.Time) (*AlertEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, unavailable("resolve alert event", s.err)
	}
	if id < 1 || id > int64(len(s.events)) {
		return nil, ErrAlertNotFound
	}
	e := s.events[id-1]
	if e.ResolvedAt == nil {
		e.ResolvedAt = &at
		e.ResolvedBy = resolvedBy
	}
	return copyEvent(e), nil
}

func copyEvent(e *AlertEvent) *AlertEvent {
	c := *e
	c.Reasons = append([]string(nil), e.Reasons...)
	return &c
}

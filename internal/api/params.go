package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/namansh70747/smart-factory-monitor/internal/storage"
)

const (
	defaultReadingsLimit = 20
	maxReadingsLimit     = 500
)

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultReadingsLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxReadingsLimit {
		return 0, fmt.Errorf("limit must be an integer between 1 and %d", maxReadingsLimit)
	}
	return n, nil
}

var boundLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// parseBound accepts RFC3339, "2006-01-02 15:04:05" or a bare date. A bare
// date used as an end bound covers the whole day.
func parseBound(raw string, loc *time.Location, end bool) (time.Time, error) {
	for _, layout := range boundLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err != nil {
			continue
		}
		if end && layout == "2006-01-02" {
			t = t.Add(24*time.Hour - time.Second)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC3339, YYYY-MM-DD HH:MM:SS or YYYY-MM-DD", raw)
}

// parseWindow returns nil when both bounds are absent.
func parseWindow(start, end string, loc *time.Location) (*storage.TimeRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("start and end must be given together")
	}

	s, err := parseBound(start, loc, false)
	if err != nil {
		return nil, err
	}
	e, err := parseBound(end, loc, true)
	if err != nil {
		return nil, err
	}
	if e.Before(s) {
		return nil, fmt.Errorf("end is before start")
	}
	return &storage.TimeRange{Start: s, End: e}, nil
}

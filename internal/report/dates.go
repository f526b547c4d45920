package report

import (
	"regexp"
	"strings"
	"time"
)

const (
	dateLayout = "02/01/2006"
	timeLayout = "15:04"
)

var (
	datePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ParseDateTime parses a dd/mm/yyyy date and an optional hh:mm clock in loc.
// Impossible calendar dates such as 31/02 are rejected.
func ParseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = "00:00"
	}

	if !datePattern.MatchString(date) {
		return time.Time{}, &InvalidDateError{Field: "date", Input: date}
	}
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, &InvalidDateError{Field: "date", Input: date, Cause: err}
	}

	if !timePattern.MatchString(clock) {
		return time.Time{}, &InvalidDateError{Field: "time", Input: clock}
	}
	hm, err := time.Parse(timeLayout, clock)
	if err != nil {
		return time.Time{}, &InvalidDateError{Field: "time", Input: clock, Cause: err}
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), nil
}

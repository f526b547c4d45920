package report

import (
	"errors"
	"fmt"
)

// ErrInvalidDate is matched by every date or time parse failure.
var ErrInvalidDate = errors.New("invalid date")

const (
	invalidDateMessage = "❌ Data inválida. Use o formato dd/mm/aaaa."
	invalidTimeMessage = "❌ Hora inválida. Use o formato hh:mm."
)

// InvalidDateError describes which argument of a complete report request
// could not be parsed.
type InvalidDateError struct {
	Field string // "date" or "time"
	Input string
	Cause error
}

func (e *InvalidDateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Input, e.Cause)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Input)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrInvalidDate
}

// UserMessage is the reply shown to operators.
func (e *InvalidDateError) UserMessage() string {
	if e.Field == "time" {
		return invalidTimeMessage
	}
	return invalidDateMessage
}

package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTable is returned when the input has no header row
var ErrEmptyTable = errors.New("table has no header row")

// MissingFieldError reports a required logical field that no input column
// resolved to. Found lists the normalized field names that were present.
type MissingFieldError struct {
	Field string
	Found []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s (found fields: [%s])", e.Field, strings.Join(e.Found, ", "))
}

// ValueError reports a cell that could not be parsed as a number.
// Row is the 1-based data row, not counting the header.
type ValueError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("row %d: invalid %s value %q", e.Row, e.Field, e.Value)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

// InsufficientDataError is returned when the daily series is too short to forecast
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient history: %d distinct dates, need at least %d", e.Have, e.Need)
}

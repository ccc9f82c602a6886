package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewPoints is returned when a series is too short to fit
	ErrTooFewPoints = errors.New("not enough points to fit")
	// ErrNonFinite is returned for NaN or infinite inputs or outputs
	ErrNonFinite = errors.New("non-finite value")
	// ErrSingular is returned when the least squares system has no unique solution
	ErrSingular = errors.New("singular system")
)

// InsufficientForecastError is returned by Summarize when the forecast does
// not reach far enough into the future.
type InsufficientForecastError struct {
	Have int
	Need int
}

func (e *InsufficientForecastError) Error() string {
	return fmt.Sprintf("insufficient forecast: %d future points, need %d", e.Have, e.Need)
}

// ShapeError reports a prediction that does not line up with the requested dates
type ShapeError struct {
	Model  string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s model returned a malformed prediction: %s", e.Model, e.Reason)
}

package forecast

import (
	"context"
	"math"
	"time"

	"retailcast/pkg/contracts/domain"
)

// Model fits a daily series
type Model interface {
	Name() string
	Fit(ctx context.Context, series domain.DailySeries) (Fitted, error)
}

// Fitted predicts estimates and bounds for arbitrary dates
type Fitted interface {
	Predict(ctx context.Context, dates []time.Time) ([]domain.ForecastPoint, error)
}

// FutureDates returns horizon consecutive days following last
func FutureDates(last time.Time, horizon int) []time.Time {
	if horizon <= 0 {
		return nil
	}
	dates := make([]time.Time, horizon)
	for i := range dates {
		dates[i] = last.AddDate(0, 0, i+1)
	}
	return dates
}

// daysBetween counts whole calendar days from a to b
func daysBetween(a, b time.Time) float64 {
	return math.Round(b.Sub(a).Hours() / 24)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkSeries(series domain.DailySeries, minPoints int) error {
	if len(series) < minPoints {
		return ErrTooFewPoints
	}
	for _, p := range series {
		if !finite(p.Total) {
			return ErrNonFinite
		}
	}
	return nil
}

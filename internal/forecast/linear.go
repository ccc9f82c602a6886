package forecast

import (
	"context"
	"time"

	"retailcast/pkg/contracts/domain"
)

// Fallback band as a fraction of the estimate
const (
	LinearLowerFactor = 0.9
	LinearUpperFactor = 1.1
)

// LinearModel regresses the daily total on the zero-based row index.
// Historical dates echo the observed value; any other date is placed on the
// index axis by its distance in days from the last observation.
type LinearModel struct{}

// NewLinearModel creates the fallback model
func NewLinearModel() *LinearModel {
	return &LinearModel{}
}

func (m *LinearModel) Name() string {
	return string(domain.ForecastMethodLinearFallback)
}

func (m *LinearModel) Fit(ctx context.Context, series domain.DailySeries) (Fitted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSeries(series, 1); err != nil {
		return nil, err
	}

	n := float64(len(series))
	meanX := (n - 1) / 2
	meanY := 0.0
	for _, p := range series {
		meanY += p.Total
	}
	meanY /= n

	var sxy, sxx float64
	for i, p := range series {
		dx := float64(i) - meanX
		sxy += dx * (p.Total - meanY)
		sxx += dx * dx
	}

	slope := 0.0
	if sxx > 0 {
		slope = sxy / sxx
	}

	observed := make(map[time.Time]float64, len(series))
	for _, p := range series {
		observed[p.Date] = p.Total
	}

	last, _ := series.Last()
	return &linearFit{
		intercept: meanY - slope*meanX,
		slope:     slope,
		lastIndex: n - 1,
		last:      last.Date,
		observed:  observed,
	}, nil
}

type linearFit struct {
	intercept float64
	slope     float64
	lastIndex float64
	last      time.Time
	observed  map[time.Time]float64
}

func (f *linearFit) Predict(ctx context.Context, dates []time.Time) ([]domain.ForecastPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]domain.ForecastPoint, len(dates))
	for i, d := range dates {
		if y, ok := f.observed[d]; ok {
			points[i] = domain.ForecastPoint{Date: d, Estimate: y, Lower: y, Upper: y}
			continue
		}

		idx := f.lastIndex + daysBetween(f.last, d)
		est := f.intercept + f.slope*idx
		points[i] = domain.ForecastPoint{
			Date:     d,
			Estimate: est,
			Lower:    est * LinearLowerFactor,
			Upper:    est * LinearUpperFactor,
		}
	}
	return points, nil
}

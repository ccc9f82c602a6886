package services

import (
	"context"
	"fmt"

	"retailcast/internal/dataprocessing"
	"retailcast/internal/forecast"
	"retailcast/pkg/contracts/domain"
)

// ForecastOutcome is everything derived from one set of normalized rows
type ForecastOutcome struct {
	Series  domain.DailySeries
	Result  *forecast.Result
	Summary domain.Summary
}

// RunForecast aggregates rows into a daily series, forecasts it and extracts
// the summary. It holds no state and may run concurrently. An empty or short
// row set fails the history check with *dataprocessing.InsufficientDataError.
func RunForecast(ctx context.Context, rows []domain.SalesRow, aggregator *dataprocessing.Aggregator, forecaster *forecast.Forecaster) (*ForecastOutcome, error) {
	series, err := aggregator.Aggregate(rows)
	if err != nil {
		return nil, err
	}

	result, err := forecaster.Forecast(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("forecast failed: %w", err)
	}

	summary, err := forecast.Summarize(result.Points, forecaster.Horizon())
	if err != nil {
		return nil, err
	}

	return &ForecastOutcome{
		Series:  series,
		Result:  result,
		Summary: summary,
	}, nil
}

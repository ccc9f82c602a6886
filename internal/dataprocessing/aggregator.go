package dataprocessing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"retailcast/pkg/contracts/domain"
)

// DefaultMinDistinctDates is the shortest history the forecaster accepts
const DefaultMinDistinctDates = 7

// Aggregator groups sales rows into a daily series
type Aggregator struct {
	MinDistinctDates int
}

// NewAggregator returns an aggregator with the given minimum history.
// Values below 1 select DefaultMinDistinctDates.
func NewAggregator(minDistinctDates int) *Aggregator {
	if minDistinctDates < 1 {
		minDistinctDates = DefaultMinDistinctDates
	}
	return &Aggregator{MinDistinctDates: minDistinctDates}
}

// Aggregate sums TotalPrice per calendar day and returns the days in
// ascending order. Sums are exact decimals converted to float64 at the end.
func (a *Aggregator) Aggregate(rows []domain.SalesRow) (domain.DailySeries, error) {
	sums := make(map[time.Time]decimal.Decimal)
	for _, r := range rows {
		day := truncateToDay(r.Date)
		sums[day] = sums[day].Add(r.TotalPrice)
	}

	series := make(domain.DailySeries, 0, len(sums))
	for day, total := range sums {
		series = append(series, domain.DailyPoint{Date: day, Total: total.InexactFloat64()})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	if err := a.CheckHistory(series); err != nil {
		return nil, err
	}
	return series, nil
}

// CheckHistory enforces the minimum number of distinct dates on a series
// that was produced elsewhere, such as one read back from a daily file.
func (a *Aggregator) CheckHistory(series domain.DailySeries) error {
	if len(series) < a.MinDistinctDates {
		return &InsufficientDataError{Have: len(series), Need: a.MinDistinctDates}
	}
	return nil
}

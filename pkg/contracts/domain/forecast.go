package domain

import "time"

// ForecastMethod names the model that produced a forecast
type ForecastMethod string

const (
	ForecastMethodSeasonal       ForecastMethod = "seasonal"
	ForecastMethodLinearFallback ForecastMethod = "linear_fallback"
)

// ForecastPoint is a point estimate with its lower and upper bound
type ForecastPoint struct {
	Date     time.Time `json:"ds"`
	Estimate float64   `json:"yhat"`
	Lower    float64   `json:"yhat_lower"`
	Upper    float64   `json:"yhat_upper"`
}

// Summary holds the headline totals taken from the future part of a forecast
type Summary struct {
	NextDay    float64 `json:"next_day_total"`
	Next7Days  float64 `json:"next_7_day_total"`
	Next30Days float64 `json:"next_30_day_total"`
}

// Metric is a display-ready summary figure
type Metric struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// ChartPayload carries everything needed to draw the forecast chart: the
// observed history plus the future estimates with their confidence band.
type ChartPayload struct {
	Title    string          `json:"title"`
	History  DailySeries     `json:"history"`
	Forecast []ForecastPoint `json:"forecast"`
}

// BarChart is a category breakdown rendered as bars
type BarChart struct {
	Title string          `json:"title"`
	Bars  []CategoryTotal `json:"bars"`
}

// Dashboard is the interactive-mode result for one uploaded file
type Dashboard struct {
	RunID        string         `json:"run_id"`
	Method       ForecastMethod `json:"method"`
	PrimaryError string         `json:"primary_error,omitempty"`
	Summary      Summary        `json:"summary"`
	Metrics      []Metric       `json:"metrics"`
	Chart        ChartPayload   `json:"chart"`
	ByChannel    BarChart       `json:"by_channel"`
	ByRegion     BarChart       `json:"by_region"`
	RowsLoaded   int            `json:"rows_loaded"`
	RowsDropped  int            `json:"rows_dropped"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

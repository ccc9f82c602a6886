package exporter

import (
	"fmt"

	"retailcast/pkg/contracts/domain"
)

// DateLayout is the date format of every exported artifact
const DateLayout = "2006-01-02"

// Artifact headers
var (
	DailyHeaders    = []string{"ds", "y"}
	ForecastHeaders = []string{"ds", "yhat", "yhat_lower", "yhat_upper"}
)

// WriteDailySeries writes the aggregated series as a ds,y file
func (w *CSVWriter) WriteDailySeries(filePath string, series domain.DailySeries) error {
	records := make([][]string, len(series))
	for i, p := range series {
		records[i] = []string{p.Date.Format(DateLayout), formatFloat(p.Total)}
	}

	if err := w.WriteSimpleCSV(filePath, DailyHeaders, records); err != nil {
		return fmt.Errorf("failed to write daily series: %w", err)
	}
	return nil
}

// WriteForecast writes every forecast point with its bounds
func (w *CSVWriter) WriteForecast(filePath string, points []domain.ForecastPoint) error {
	records := make([][]string, len(points))
	for i, p := range points {
		records[i] = []string{
			p.Date.Format(DateLayout),
			formatFloat(p.Estimate),
			formatFloat(p.Lower),
			formatFloat(p.Upper),
		}
	}

	if err := w.WriteSimpleCSV(filePath, ForecastHeaders, records); err != nil {
		return fmt.Errorf("failed to write forecast: %w", err)
	}
	return nil
}

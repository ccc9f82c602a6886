// Package exporter writes pipeline artifacts and formats figures for display.
//
// CSVWriter is the low-level writer: headers, append mode, optional UTF-8
// BOM and streaming. Relative paths are placed under the configured output
// directory.
//
// WriteDailySeries and WriteForecast produce the two batch artifacts:
//
//	ds,y                          (daily_clean.csv)
//	ds,yhat,yhat_lower,yhat_upper (forecast_latest.csv)
//
// Dates are written as 2006-01-02 and values with two decimals.
//
// FormatCurrency and SummaryMetrics render the headline figures shown on the
// dashboard, e.g. ₹1,234.
package exporter

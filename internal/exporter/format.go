package exporter

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"retailcast/pkg/contracts/domain"
)

// Metric labels shown on the dashboard
const (
	LabelNextDay    = "Next Day"
	LabelNext7Days  = "Next 7 Days"
	LabelNext30Days = "Next 30 Days"
)

// CurrencySymbol prefixes every formatted amount
const CurrencySymbol = "₹"

var printer = message.NewPrinter(language.English)

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// FormatCurrency drops the fractional part and groups thousands, e.g.
// 1234.99 becomes ₹1,234.
func FormatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return CurrencySymbol + "0"
	}
	return printer.Sprintf("%s%d", CurrencySymbol, int64(math.Trunc(v)))
}

// SummaryMetrics turns a summary into the three dashboard metric cards
func SummaryMetrics(s domain.Summary) []domain.Metric {
	return []domain.Metric{
		{Label: LabelNextDay, Value: s.NextDay, Display: FormatCurrency(s.NextDay)},
		{Label: LabelNext7Days, Value: s.Next7Days, Display: FormatCurrency(s.Next7Days)},
		{Label: LabelNext30Days, Value: s.Next30Days, Display: FormatCurrency(s.Next30Days)},
	}
}

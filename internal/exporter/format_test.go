package exporter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"retailcast/pkg/contracts/domain"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "₹0"},
		{100, "₹100"},
		{999.99, "₹999"},
		{1234.56, "₹1,234"},
		{3000, "₹3,000"},
		{1234567.8, "₹1,234,567"},
		{-1500.7, "₹-1,500"},
		{math.NaN(), "₹0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.in), "input %v", tt.in)
	}
}

func TestSummaryMetrics(t *testing.T) {
	metrics := SummaryMetrics(domain.Summary{NextDay: 100, Next7Days: 700, Next30Days: 3000.4})

	assert.Equal(t, []domain.Metric{
		{Label: "Next Day", Value: 100, Display: "₹100"},
		{Label: "Next 7 Days", Value: 700, Display: "₹700"},
		{Label: "Next 30 Days", Value: 3000.4, Display: "₹3,000"},
	}, metrics)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "13.40", formatFloat(13.4))
	assert.Equal(t, "0.00", formatFloat(0))
}

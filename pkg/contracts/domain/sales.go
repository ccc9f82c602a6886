package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesRow is one normalized transaction. Date carries no time-of-day
// component and TotalPrice is always populated, either from the input or as
// Quantity × UnitPrice.
type SalesRow struct {
	Date       time.Time       `json:"date" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Channel    string          `json:"channel"`
	Region     string          `json:"region"`
}

// Field returns the value of a categorical field by logical name
func (r SalesRow) Field(name string) (string, bool) {
	switch name {
	case "channel":
		return r.Channel, true
	case "region":
		return r.Region, true
	default:
		return "", false
	}
}

// DailyPoint is one entry of a daily series: the summed total for a calendar day.
type DailyPoint struct {
	Date  time.Time `json:"ds"`
	Total float64   `json:"y"`
}

// DailySeries is ordered ascending by date with one entry per distinct day.
type DailySeries []DailyPoint

// Dates returns the dates of the series in order
func (s DailySeries) Dates() []time.Time {
	dates := make([]time.Time, len(s))
	for i, p := range s {
		dates[i] = p.Date
	}
	return dates
}

// Last returns the final point of the series; ok is false when empty
func (s DailySeries) Last() (DailyPoint, bool) {
	if len(s) == 0 {
		return DailyPoint{}, false
	}
	return s[len(s)-1], true
}

// CategoryTotal is the summed sales of a single channel or region value
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

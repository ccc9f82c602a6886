package forecast

import "retailcast/pkg/contracts/domain"

// SummaryDays is the longest window reported by Summarize
const SummaryDays = 30

// FuturePoints returns the trailing horizon points, or all points when there
// are fewer.
func FuturePoints(points []domain.ForecastPoint, horizon int) []domain.ForecastPoint {
	if horizon < 0 || horizon >= len(points) {
		return points
	}
	return points[len(points)-horizon:]
}

// LeadingPoints returns the first days points of the forecast horizon, the
// window Summarize totals.
func LeadingPoints(points []domain.ForecastPoint, horizon, days int) []domain.ForecastPoint {
	future := FuturePoints(points, horizon)
	if days >= 0 && days < len(future) {
		return future[:days]
	}
	return future
}

// Summarize totals the future part of a forecast: the first day, the first
// seven days and the first thirty days.
func Summarize(points []domain.ForecastPoint, horizon int) (domain.Summary, error) {
	future := FuturePoints(points, horizon)
	if horizon < SummaryDays || len(future) < SummaryDays {
		have := len(future)
		if horizon < have {
			have = horizon
		}
		return domain.Summary{}, &InsufficientForecastError{Have: have, Need: SummaryDays}
	}

	var s domain.Summary
	s.NextDay = future[0].Estimate
	for i := 0; i < SummaryDays; i++ {
		if i < 7 {
			s.Next7Days += future[i].Estimate
		}
		s.Next30Days += future[i].Estimate
	}
	return s, nil
}

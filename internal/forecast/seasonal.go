package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"retailcast/pkg/contracts/domain"
)

// Seasonal periods in days
const (
	WeeklyPeriod = 7.0
	YearlyPeriod = 365.25
)

// SeasonalConfig controls the Fourier orders, the ridge penalty on the
// seasonal coefficients and the coverage of the uncertainty band.
type SeasonalConfig struct {
	WeeklyOrder    int
	YearlyOrder    int
	Regularization float64
	IntervalWidth  float64
}

// DefaultSeasonalConfig returns weekly order 3, yearly order 10 and an 80% band
func DefaultSeasonalConfig() SeasonalConfig {
	return SeasonalConfig{
		WeeklyOrder:    3,
		YearlyOrder:    10,
		Regularization: 0.01,
		IntervalWidth:  0.8,
	}
}

// SeasonalModel is an additive trend plus weekly and yearly seasonality model
type SeasonalModel struct {
	cfg SeasonalConfig
}

// NewSeasonalModel creates a seasonal model
func NewSeasonalModel(cfg SeasonalConfig) *SeasonalModel {
	return &SeasonalModel{cfg: cfg}
}

func (m *SeasonalModel) Name() string {
	return string(domain.ForecastMethodSeasonal)
}

// Fit scales the series, builds the design matrix and solves the ridge system.
// The intercept and slope are not penalized.
func (m *SeasonalModel) Fit(ctx context.Context, series domain.DailySeries) (Fitted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSeries(series, 2); err != nil {
		return nil, err
	}
	if m.cfg.IntervalWidth <= 0 || m.cfg.IntervalWidth >= 1 {
		return nil, fmt.Errorf("interval width %.3f outside (0, 1)", m.cfg.IntervalWidth)
	}

	first, last := series[0].Date, series[len(series)-1].Date
	span := daysBetween(first, last)
	if span <= 0 {
		return nil, ErrTooFewPoints
	}

	scale := 0.0
	for _, p := range series {
		scale = math.Max(scale, math.Abs(p.Total))
	}
	if scale == 0 {
		scale = 1
	}

	weekly, yearly := seasonalOrders(m.cfg, len(series), span)
	f := &seasonalFit{
		weekly: weekly,
		yearly: yearly,
		origin: first,
		last:   last,
		span:   span,
		scale:  scale,
		n:      float64(len(series)),
		z:      math.Sqrt2 * math.Erfinv(m.cfg.IntervalWidth),
	}

	x := make([][]float64, len(series))
	y := make([]float64, len(series))
	for i, p := range series {
		x[i] = f.features(p.Date)
		y[i] = p.Total / scale
	}

	penalty := make([]float64, len(x[0]))
	for j := 2; j < len(penalty); j++ {
		penalty[j] = m.cfg.Regularization
	}

	beta, err := ridgeLeastSquares(x, y, penalty)
	if err != nil {
		return nil, fmt.Errorf("seasonal fit: %w", err)
	}
	f.beta = beta

	sse := 0.0
	for i, p := range series {
		r := p.Total - f.estimate(x[i])
		sse += r * r
	}
	df := f.n - float64(len(beta))
	if df <= 0 {
		return nil, ErrTooFewPoints
	}
	f.sigma = math.Sqrt(sse / df)
	if !finite(f.sigma) {
		return nil, ErrNonFinite
	}

	return f, nil
}

// seasonalOrders returns the Fourier orders actually fitted. A seasonality
// needs at least one full period of history, and the design keeps at least
// one residual degree of freedom, weekly pairs taking precedence.
func seasonalOrders(cfg SeasonalConfig, n int, span float64) (weekly, yearly int) {
	weekly, yearly = cfg.WeeklyOrder, cfg.YearlyOrder
	if span+1 < WeeklyPeriod {
		weekly = 0
	}
	if span+1 < YearlyPeriod {
		yearly = 0
	}

	pairs := max(0, (n-3)/2)
	weekly = min(weekly, pairs)
	yearly = min(yearly, pairs-weekly)
	return weekly, yearly
}

type seasonalFit struct {
	weekly int
	yearly int
	origin time.Time
	last   time.Time
	span   float64
	scale  float64
	n      float64
	z      float64
	beta   []float64
	sigma  float64
}

// features returns [1, t, weekly sin/cos..., yearly sin/cos...] for a date,
// with t scaled so the history covers [0, 1].
func (f *seasonalFit) features(date time.Time) []float64 {
	t := daysBetween(f.origin, date)
	row := make([]float64, 0, 2+2*(f.weekly+f.yearly))
	row = append(row, 1, t/f.span)
	row = appendFourier(row, t, WeeklyPeriod, f.weekly)
	row = appendFourier(row, t, YearlyPeriod, f.yearly)
	return row
}

func appendFourier(row []float64, t, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		angle := 2 * math.Pi * float64(k) * t / period
		row = append(row, math.Sin(angle), math.Cos(angle))
	}
	return row
}

func (f *seasonalFit) estimate(row []float64) float64 {
	sum := 0.0
	for j, v := range row {
		sum += f.beta[j] * v
	}
	return sum * f.scale
}

func (f *seasonalFit) Predict(ctx context.Context, dates []time.Time) ([]domain.ForecastPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]domain.ForecastPoint, len(dates))
	for i, d := range dates {
		est := f.estimate(f.features(d))
		h := math.Max(0, daysBetween(f.last, d))
		band := f.z * f.sigma * math.Sqrt(1+h/f.n)
		if !finite(est) || !finite(band) {
			return nil, ErrNonFinite
		}
		points[i] = domain.ForecastPoint{
			Date:     d,
			Estimate: est,
			Lower:    est - band,
			Upper:    est + band,
		}
	}
	return points, nil
}

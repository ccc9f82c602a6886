package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"retailcast/internal/config"
	"retailcast/internal/infrastructure"
	"retailcast/pkg/contracts/domain"
)

// DefaultHorizon is the number of future days forecast by default
const DefaultHorizon = 30

// PrimaryNone disables the primary model in ForecastConfig.Primary
const PrimaryNone = "none"

// Result is the outcome of one forecast run
type Result struct {
	Points       []domain.ForecastPoint
	Method       domain.ForecastMethod
	PrimaryError error // why the primary model was abandoned, nil otherwise
}

// Forecaster runs the primary model once and falls back to the linear model
type Forecaster struct {
	primary  Model
	fallback Model
	horizon  int
	logger   *slog.Logger
	metrics  *infrastructure.BusinessMetrics
	tracer   trace.Tracer
}

// NewForecaster creates a forecaster. A nil primary runs the fallback only.
func NewForecaster(primary, fallback Model, horizon int, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Forecaster {
	if fallback == nil {
		fallback = NewLinearModel()
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forecaster{
		primary:  primary,
		fallback: fallback,
		horizon:  horizon,
		logger:   logger.With(slog.String("component", "forecaster")),
		metrics:  metrics,
		tracer:   otel.Tracer("retailcast/forecast"),
	}
}

// New builds a forecaster from configuration
func New(cfg config.ForecastConfig, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Forecaster {
	var primary Model
	if cfg.Primary != PrimaryNone {
		primary = NewSeasonalModel(SeasonalConfig{
			WeeklyOrder:    cfg.WeeklyOrder,
			YearlyOrder:    cfg.YearlyOrder,
			Regularization: cfg.Regularization,
			IntervalWidth:  cfg.IntervalWidth,
		})
	}
	return NewForecaster(primary, NewLinearModel(), cfg.Horizon, logger, metrics)
}

// Horizon returns the number of future days produced per run
func (f *Forecaster) Horizon() int {
	return f.horizon
}

// Forecast predicts every date of series followed by Horizon consecutive days
func (f *Forecaster) Forecast(ctx context.Context, series domain.DailySeries) (*Result, error) {
	ctx, span := f.tracer.Start(ctx, "forecast.run",
		trace.WithAttributes(
			attribute.Int("series.length", len(series)),
			attribute.Int("forecast.horizon", f.horizon),
		))
	defer span.End()

	last, ok := series.Last()
	if !ok {
		return nil, ErrTooFewPoints
	}
	dates := append(series.Dates(), FutureDates(last.Date, f.horizon)...)

	start := time.Now()
	result := &Result{}

	if f.primary != nil {
		points, err := f.run(ctx, f.primary, series, dates)
		if err == nil {
			result.Points = points
			result.Method = domain.ForecastMethod(f.primary.Name())
			f.finish(ctx, span, result, start)
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		result.PrimaryError = err
		f.logger.WarnContext(ctx, "forecast_fallback",
			slog.String("primary", f.primary.Name()),
			slog.String("error", err.Error()))
		infrastructure.AddSpanEvent(ctx, "forecast_fallback", attribute.String("error", err.Error()))
	}

	points, err := f.run(ctx, f.fallback, series, dates)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fallback forecast failed: %w", err)
	}
	result.Points = points
	result.Method = domain.ForecastMethod(f.fallback.Name())
	f.finish(ctx, span, result, start)
	return result, nil
}

func (f *Forecaster) finish(ctx context.Context, span trace.Span, result *Result, start time.Time) {
	fallback := result.Method != domain.ForecastMethodSeasonal
	span.SetAttributes(attribute.String("forecast.method", string(result.Method)))
	f.metrics.RecordForecast(ctx, string(result.Method), fallback)

	f.logger.InfoContext(ctx, "forecast_completed",
		slog.String("method", string(result.Method)),
		slog.Int("points", len(result.Points)),
		slog.Duration("duration", time.Since(start)))
}

// run fits and predicts with one model, turning panics and malformed output
// into errors.
func (f *Forecaster) run(ctx context.Context, model Model, series domain.DailySeries, dates []time.Time) (points []domain.ForecastPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			points = nil
			err = fmt.Errorf("%s model panicked: %v", model.Name(), r)
		}
	}()

	fitted, err := model.Fit(ctx, series)
	if err != nil {
		return nil, err
	}
	points, err = fitted.Predict(ctx, dates)
	if err != nil {
		return nil, err
	}
	if err := checkShape(model.Name(), points, dates); err != nil {
		return nil, err
	}
	return points, nil
}

func checkShape(name string, points []domain.ForecastPoint, dates []time.Time) error {
	if len(points) != len(dates) {
		return &ShapeError{Model: name, Reason: fmt.Sprintf("%d points for %d dates", len(points), len(dates))}
	}
	for i, p := range points {
		if !p.Date.Equal(dates[i]) {
			return &ShapeError{Model: name, Reason: fmt.Sprintf("point %d dated %s, want %s",
				i, p.Date.Format("2006-01-02"), dates[i].Format("2006-01-02"))}
		}
		if !finite(p.Estimate) || !finite(p.Lower) || !finite(p.Upper) {
			return &ShapeError{Model: name, Reason: fmt.Sprintf("non-finite value at %s", p.Date.Format("2006-01-02"))}
		}
	}
	return nil
}

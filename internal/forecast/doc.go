// Package forecast turns a daily sales series into a forecast with bounds.
//
// # Models
//
// A Model is fitted once per series and the resulting Fitted value predicts
// any set of dates:
//
//   - SeasonalModel: additive linear trend plus weekly and yearly Fourier
//     terms, fitted by ridge least squares. Bounds widen with the horizon.
//   - LinearModel: ordinary least squares against the row index. Used as the
//     fallback; bounds are a fixed ±10% of the estimate.
//
// # Forecaster
//
// Forecaster predicts every historical date plus Horizon future days. The
// primary model gets exactly one attempt; an error, a panic or a malformed
// prediction switches the run to the linear model and the Result records
// which model produced the points.
//
// # Usage
//
//	f := forecast.New(cfg.Forecast, logger, metrics)
//	result, err := f.Forecast(ctx, series)
//	if err != nil {
//	    return err
//	}
//	summary, err := forecast.Summarize(result.Points, cfg.Forecast.Horizon)
package forecast

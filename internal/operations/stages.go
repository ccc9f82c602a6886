package operations

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"retailcast/internal/config"
	"retailcast/internal/dataprocessing"
	"retailcast/internal/exporter"
	"retailcast/internal/forecast"
	"retailcast/internal/infrastructure"
	"retailcast/internal/validation"
)

// StageDeps carries the collaborators shared by the pipeline stages
type StageDeps struct {
	Paths      *config.Paths
	Loader     *dataprocessing.Loader
	Aggregator *dataprocessing.Aggregator
	Forecaster *forecast.Forecaster
	Writer     *exporter.CSVWriter
	Files      *validation.FileValidator // optional; enables extension and readability checks
	Metrics    *infrastructure.BusinessMetrics
	Logger     *slog.Logger
}

func (d StageDeps) logger(component string) *slog.Logger {
	return infrastructure.WithComponent(d.Logger, component)
}

// MakeDailyStage reads the raw sales file and writes the daily series
type MakeDailyStage struct {
	BaseStage
	deps   StageDeps
	logger *slog.Logger
}

// NewMakeDailyStage creates the aggregation stage
func NewMakeDailyStage(deps StageDeps) *MakeDailyStage {
	return &MakeDailyStage{
		BaseStage: NewBaseStage(StageIDMakeDaily, StageNameMakeDaily, nil),
		deps:      deps,
		logger:    deps.logger("make_daily_stage"),
	}
}

// Validate checks that the input file exists
func (s *MakeDailyStage) Validate(state *OperationState) error {
	input := state.GetConfigString(ConfigKeyInputFile, s.deps.Paths.InputFile)
	if s.deps.Files != nil {
		return s.deps.Files.ValidateInputFile(input)
	}
	if !config.FileExists(input) {
		return fmt.Errorf("input file not found: %s", input)
	}
	return nil
}

// Execute loads, normalizes and aggregates the input, then writes ds,y
func (s *MakeDailyStage) Execute(ctx context.Context, state *OperationState) error {
	input := state.GetConfigString(ConfigKeyInputFile, s.deps.Paths.InputFile)
	output := state.GetConfigString(ConfigKeyDailyFile, s.deps.Paths.DailyFile)

	s.reportProgress(state, 10, "Reading input file", map[string]interface{}{"input_file": input})
	table, err := dataprocessing.ReadFile(ctx, input)
	if err != nil {
		return err
	}

	s.reportProgress(state, 40, "Normalizing rows", nil)
	result, err := s.deps.Loader.Load(ctx, table)
	if err != nil {
		return err
	}
	s.deps.Metrics.RecordLoad(ctx, len(result.Rows), result.DroppedRows)

	s.reportProgress(state, 70, "Aggregating daily totals", map[string]interface{}{
		ContextKeyRowsLoaded:  len(result.Rows),
		ContextKeyRowsDropped: result.DroppedRows,
	})
	series, err := s.deps.Aggregator.Aggregate(result.Rows)
	if err != nil {
		return err
	}

	if err := s.deps.Writer.WriteDailySeries(output, series); err != nil {
		return err
	}

	state.SetContext(ContextKeyRowsLoaded, len(result.Rows))
	state.SetContext(ContextKeyRowsDropped, result.DroppedRows)
	state.SetContext(ContextKeyDays, len(series))
	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMetadata(ContextKeyDays, len(series))
		stepState.SetMetadata("daily_file", output)
	}

	s.logger.InfoContext(ctx, "daily_series_written",
		slog.String("operation_id", state.ID),
		slog.String("file", output),
		slog.Int("days", len(series)),
		slog.Int("rows_dropped", result.DroppedRows))
	return nil
}

// ForecastStage reads the daily series and writes the forecast file
type ForecastStage struct {
	BaseStage
	deps   StageDeps
	logger *slog.Logger
}

// NewForecastStage creates the forecasting stage. It depends on make_daily.
func NewForecastStage(deps StageDeps) *ForecastStage {
	return &ForecastStage{
		BaseStage: NewBaseStage(StageIDForecast, StageNameForecast, []string{StageIDMakeDaily}),
		deps:      deps,
		logger:    deps.logger("forecast_stage"),
	}
}

// Validate checks that the daily file exists
func (s *ForecastStage) Validate(state *OperationState) error {
	daily := state.GetConfigString(ConfigKeyDailyFile, s.deps.Paths.DailyFile)
	if _, err := os.Stat(daily); err != nil {
		return fmt.Errorf("daily file not available: %w", err)
	}
	return nil
}

// Execute enforces the minimum history, forecasts and writes
// ds,yhat,yhat_lower,yhat_upper.
func (s *ForecastStage) Execute(ctx context.Context, state *OperationState) error {
	daily := state.GetConfigString(ConfigKeyDailyFile, s.deps.Paths.DailyFile)
	output := state.GetConfigString(ConfigKeyForecastFile, s.deps.Paths.ForecastFile)

	s.reportProgress(state, 10, "Reading daily series", map[string]interface{}{"daily_file": daily})
	table, err := dataprocessing.ReadFile(ctx, daily)
	if err != nil {
		return err
	}
	series, err := dataprocessing.ParseDailySeries(table)
	if err != nil {
		return err
	}
	if err := s.deps.Aggregator.CheckHistory(series); err != nil {
		return err
	}

	s.reportProgress(state, 40, "Fitting forecast model", map[string]interface{}{ContextKeyDays: len(series)})
	result, err := s.deps.Forecaster.Forecast(ctx, series)
	if err != nil {
		return err
	}

	summary, err := forecast.Summarize(result.Points, s.deps.Forecaster.Horizon())
	if err != nil {
		return err
	}

	s.reportProgress(state, 80, "Writing forecast", map[string]interface{}{ContextKeyMethod: string(result.Method)})
	if err := s.deps.Writer.WriteForecast(output, result.Points); err != nil {
		return err
	}

	state.SetContext(ContextKeyMethod, string(result.Method))
	state.SetContext(ContextKeySummary, summary)
	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMetadata(ContextKeyMethod, string(result.Method))
		stepState.SetMetadata("forecast_file", output)
		stepState.SetMetadata("next_day_total", summary.NextDay)
		stepState.SetMetadata("next_7_day_total", summary.Next7Days)
		stepState.SetMetadata("next_30_day_total", summary.Next30Days)
		if result.PrimaryError != nil {
			stepState.SetMetadata("primary_error", result.PrimaryError.Error())
		}
	}

	s.logger.InfoContext(ctx, "forecast_written",
		slog.String("operation_id", state.ID),
		slog.String("file", output),
		slog.String("method", string(result.Method)),
		slog.Int("points", len(result.Points)))
	return nil
}

package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"retailcast/internal/dataprocessing"
	"retailcast/internal/exporter"
	"retailcast/internal/forecast"
	"retailcast/internal/infrastructure"
	"retailcast/pkg/contracts/domain"
)

// Dashboard chart titles
const (
	ChartTitle        = "30-Day Retail Sales Forecast"
	ChannelChartTitle = "Sales by Channel"
	RegionChartTitle  = "Sales by Region"
)

// DashboardService turns an uploaded sales file into the interactive dashboard
type DashboardService struct {
	loader     *dataprocessing.Loader
	aggregator *dataprocessing.Aggregator
	forecaster *forecast.Forecaster
	metrics    *infrastructure.BusinessMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewDashboardService creates a dashboard service
func NewDashboardService(loader *dataprocessing.Loader, aggregator *dataprocessing.Aggregator, forecaster *forecast.Forecaster, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		loader:     loader,
		aggregator: aggregator,
		forecaster: forecaster,
		metrics:    metrics,
		logger:     infrastructure.WithComponent(logger, "dashboard_service"),
		now:        time.Now,
	}
}

// FromUpload parses r with the reader matching filename and builds the dashboard
func (s *DashboardService) FromUpload(ctx context.Context, filename string, r io.Reader) (*domain.Dashboard, error) {
	reader, err := dataprocessing.ReaderFor(filename)
	if err != nil {
		return nil, err
	}

	table, err := reader.Read(ctx, r)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "upload parsed",
		slog.String("filename", filename),
		slog.Int("columns", len(table.Header)),
		slog.Int("rows", len(table.Rows)))

	return s.Build(ctx, table)
}

// Build loads the table, then computes the forecast and both category
// breakdowns concurrently.
func (s *DashboardService) Build(ctx context.Context, table *dataprocessing.Table) (*domain.Dashboard, error) {
	loaded, err := s.loader.Load(ctx, table)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLoad(ctx, len(loaded.Rows), loaded.DroppedRows)

	var (
		outcome   *ForecastOutcome
		byChannel []domain.CategoryTotal
		byRegion  []domain.CategoryTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		outcome, err = RunForecast(gctx, loaded.Rows, s.aggregator, s.forecaster)
		return err
	})
	g.Go(func() error {
		var err error
		byChannel, err = dataprocessing.SumByField(loaded.Rows, dataprocessing.FieldChannel)
		return err
	})
	g.Go(func() error {
		var err error
		byRegion, err = dataprocessing.SumByField(loaded.Rows, dataprocessing.FieldRegion)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "dashboard build failed", slog.String("error", err.Error()))
		return nil, err
	}

	dashboard := &domain.Dashboard{
		RunID:   uuid.New().String(),
		Method:  outcome.Result.Method,
		Summary: outcome.Summary,
		Metrics: exporter.SummaryMetrics(outcome.Summary),
		Chart: domain.ChartPayload{
			Title:    ChartTitle,
			History:  outcome.Series,
			Forecast: forecast.LeadingPoints(outcome.Result.Points, s.forecaster.Horizon(), forecast.SummaryDays),
		},
		ByChannel:   domain.BarChart{Title: ChannelChartTitle, Bars: byChannel},
		ByRegion:    domain.BarChart{Title: RegionChartTitle, Bars: byRegion},
		RowsLoaded:  len(loaded.Rows),
		RowsDropped: loaded.DroppedRows,
		GeneratedAt: s.now().UTC(),
	}
	if outcome.Result.PrimaryError != nil {
		dashboard.PrimaryError = outcome.Result.PrimaryError.Error()
	}

	s.logger.InfoContext(ctx, "dashboard built",
		slog.String("run_id", dashboard.RunID),
		slog.String("method", string(dashboard.Method)),
		slog.Int("days", len(outcome.Series)),
		slog.Int("rows_dropped", loaded.DroppedRows),
		slog.Float64("next_30_days", outcome.Summary.Next30Days))

	return dashboard, nil
}

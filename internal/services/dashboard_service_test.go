package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcast/internal/config"
	"retailcast/internal/dataprocessing"
	"retailcast/internal/forecast"
	"retailcast/pkg/contracts/domain"
)

func newDashboardService() *DashboardService {
	logger := discardLogger()
	s := NewDashboardService(
		dataprocessing.NewLoader(nil, logger),
		dataprocessing.NewAggregator(7),
		linearForecaster(),
		nil,
		logger,
	)
	s.now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestDashboardFromUpload(t *testing.T) {
	dash, err := newDashboardService().FromUpload(context.Background(), "sales.csv", strings.NewReader(salesCSV(10)))
	require.NoError(t, err)

	assert.NotEmpty(t, dash.RunID)
	assert.Equal(t, domain.ForecastMethodLinearFallback, dash.Method)
	assert.Equal(t, 20, dash.RowsLoaded)
	assert.Equal(t, 1, dash.RowsDropped)
	assert.Equal(t, time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC), dash.GeneratedAt)

	assert.InDelta(t, 20, dash.Summary.NextDay, 1e-6)
	assert.InDelta(t, 140, dash.Summary.Next7Days, 1e-6)
	assert.InDelta(t, 600, dash.Summary.Next30Days, 1e-6)

	require.Len(t, dash.Metrics, 3)
	assert.Equal(t, "Next Day", dash.Metrics[0].Label)
	assert.Equal(t, "₹600", dash.Metrics[2].Display)

	assert.Equal(t, ChartTitle, dash.Chart.Title)
	assert.Len(t, dash.Chart.History, 10)
	require.Len(t, dash.Chart.Forecast, 30)
	assert.Equal(t, "2024-01-11", dash.Chart.Forecast[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-02-09", dash.Chart.Forecast[29].Date.Format("2006-01-02"))

	assert.Equal(t, ChannelChartTitle, dash.ByChannel.Title)
	assert.Equal(t, []domain.CategoryTotal{
		{Category: "Online", Total: 100},
		{Category: "Store", Total: 100},
	}, dash.ByChannel.Bars)
	assert.Equal(t, RegionChartTitle, dash.ByRegion.Title)
	assert.Equal(t, []domain.CategoryTotal{
		{Category: "North", Total: 100},
		{Category: "South", Total: 100},
	}, dash.ByRegion.Bars)
}

func TestDashboardChartMatchesSummaryWindow(t *testing.T) {
	cfg := config.Default().Forecast
	cfg.Primary = forecast.PrimaryNone
	cfg.Horizon = 45

	s := newDashboardService()
	s.forecaster = forecast.New(cfg, discardLogger(), nil)

	dash, err := s.FromUpload(context.Background(), "sales.csv", strings.NewReader(salesCSV(10)))
	require.NoError(t, err)

	require.Len(t, dash.Chart.Forecast, 30)
	assert.Equal(t, "2024-01-11", dash.Chart.Forecast[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-02-09", dash.Chart.Forecast[29].Date.Format("2006-01-02"))

	total := 0.0
	for _, p := range dash.Chart.Forecast {
		total += p.Estimate
	}
	assert.InDelta(t, dash.Summary.Next30Days, total, 1e-6)
	assert.InDelta(t, dash.Summary.NextDay, dash.Chart.Forecast[0].Estimate, 1e-6)
}

func TestDashboardDefaultsAbsentCategories(t *testing.T) {
	table := &dataprocessing.Table{
		Header: []string{"date", "quantity", "unit_price"},
	}
	for d := 1; d <= 7; d++ {
		table.Rows = append(table.Rows, []string{
			time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), "1", "3.50",
		})
	}

	dash, err := newDashboardService().Build(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, []domain.CategoryTotal{{Category: "Online", Total: 24.5}}, dash.ByChannel.Bars)
	assert.Equal(t, []domain.CategoryTotal{{Category: "North", Total: 24.5}}, dash.ByRegion.Bars)
}

func TestDashboardErrors(t *testing.T) {
	s := newDashboardService()
	ctx := context.Background()

	t.Run("short history", func(t *testing.T) {
		_, err := s.FromUpload(ctx, "sales.csv", strings.NewReader(salesCSV(5)))
		var insufficient *dataprocessing.InsufficientDataError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, 5, insufficient.Have)
		assert.Equal(t, 7, insufficient.Need)
	})

	t.Run("no valid dates", func(t *testing.T) {
		_, err := s.FromUpload(ctx, "sales.csv", strings.NewReader("date,quantity,unit_price\nx,1,1\n"))
		var insufficient *dataprocessing.InsufficientDataError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, 0, insufficient.Have)
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := s.FromUpload(ctx, "sales.csv", strings.NewReader("date,quantity\n2024-01-01,1\n"))
		var missing *dataprocessing.MissingFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, dataprocessing.FieldUnitPrice, missing.Field)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := s.FromUpload(ctx, "sales.pdf", strings.NewReader("%PDF"))
		assert.ErrorIs(t, err, dataprocessing.ErrUnsupportedFormat)
	})
}

func TestRunForecast(t *testing.T) {
	rows := make([]domain.SalesRow, 0, 8)
	for d := 0; d < 8; d++ {
		rows = append(rows, domain.SalesRow{
			Date: time.Date(2024, 1, 1+d, 9, 30, 0, 0, time.UTC),
		})
	}

	outcome, err := RunForecast(context.Background(), rows, dataprocessing.NewAggregator(7), linearForecaster())
	require.NoError(t, err)
	assert.Len(t, outcome.Series, 8)
	assert.Len(t, outcome.Result.Points, 38)
	assert.InDelta(t, 0, outcome.Summary.Next30Days, 1e-9)
}

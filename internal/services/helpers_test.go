package services

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retailcast/internal/config"
	"retailcast/internal/dataprocessing"
	"retailcast/internal/exporter"
	"retailcast/internal/forecast"
	"retailcast/internal/operations"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// linearForecaster skips the seasonal model so totals are exact
func linearForecaster() *forecast.Forecaster {
	cfg := config.Default().Forecast
	cfg.Primary = forecast.PrimaryNone
	return forecast.New(cfg, discardLogger(), nil)
}

// salesCSV builds days days of two rows each: Online/North and Store/South,
// both worth 10.00, followed by one row with an unparseable date.
func salesCSV(days int) string {
	var b strings.Builder
	b.WriteString("Date,Quantity,Unit Price,Channel,Region\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		fmt.Fprintf(&b, "%s,2,5.00,Online,North\n", date)
		fmt.Fprintf(&b, "%s,1,10.00,Store,South\n", date)
	}
	b.WriteString("someday,1,1.00,Online,North\n")
	return b.String()
}

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	pc := config.Default().Paths
	pc.BaseDir = t.TempDir()
	paths, err := pc.Resolve()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

func stageDeps(paths *config.Paths) operations.StageDeps {
	logger := discardLogger()
	return operations.StageDeps{
		Paths:      paths,
		Loader:     dataprocessing.NewLoader(nil, logger),
		Aggregator: dataprocessing.NewAggregator(7),
		Forecaster: linearForecaster(),
		Writer:     exporter.NewCSVWriter(paths, logger),
		Logger:     logger,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// mockHub records run snapshots pushed by the operations manager
type mockHub struct {
	mock.Mock
}

func (m *mockHub) BroadcastUpdate(eventType, runID, status string, data interface{}) {
	m.Called(eventType, runID, status, data)
}

// Command pipeline runs the batch stages without the HTTP server.
//
//	pipeline -stage make_daily            aggregate the raw sales file into the daily series
//	pipeline -stage forecast              forecast the daily series
//	pipeline -stage all                   both, in order
//
// Relative -input, -daily and -forecast paths are resolved against the base
// directory and may not leave it. The exit status is non-zero when any stage fails.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"retailcast/internal/config"
	"retailcast/internal/dataprocessing"
	"retailcast/internal/exporter"
	"retailcast/internal/forecast"
	"retailcast/internal/infrastructure"
	"retailcast/internal/operations"
	"retailcast/internal/services"
	"retailcast/internal/validation"
	api "retailcast/pkg/contracts/api/v1"
	"retailcast/pkg/contracts/events"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	fs.SetOutput(stderr)
	stage := fs.String("stage", api.StageAll, "stage to run: make_daily, forecast or all")
	input := fs.String("input", "", "raw sales file (defaults to the configured input file)")
	daily := fs.String("daily", "", "daily series file (defaults to the configured daily file)")
	forecastFile := fs.String("forecast", "", "forecast output file (defaults to the configured forecast file)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	svc, err := newPipelineService(cfg, logger, &progressPrinter{w: stderr})
	if err != nil {
		logger.Error("Failed to initialize pipeline", slog.String("error", err.Error()))
		return 1
	}
	defer svc.Shutdown(context.Background())

	ctx = infrastructure.EnsureTraceID(ctx)
	resp, err := svc.Run(ctx, api.PipelineRunRequest{
		Stage:        *stage,
		InputFile:    *input,
		DailyFile:    *daily,
		ForecastFile: *forecastFile,
	})
	if resp != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(resp); encErr != nil && err == nil {
			err = encErr
		}
	}
	if err != nil {
		logger.Error("Pipeline run failed", slog.String("stage", *stage), slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "pipeline: %v\n", err)
		return 1
	}
	if resp.Status != string(operations.OperationStatusCompleted) {
		return 1
	}
	return 0
}

func newPipelineService(cfg *config.Config, logger *slog.Logger, hub operations.WebSocketHub) (*services.PipelineService, error) {
	paths, err := cfg.Paths.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	defaults, err := dataprocessing.FieldDefaultsFromMap(cfg.Loader.Defaults)
	if err != nil {
		return nil, fmt.Errorf("invalid loader defaults: %w", err)
	}

	metrics := infrastructure.NoopBusinessMetrics()
	deps := operations.StageDeps{
		Paths:      paths,
		Loader:     dataprocessing.NewLoader(defaults, logger),
		Aggregator: dataprocessing.NewAggregator(cfg.Forecast.MinDistinctDates),
		Forecaster: forecast.New(cfg.Forecast, logger, metrics),
		Writer:     exporter.NewCSVWriter(paths, logger),
		Files:      validation.NewFileValidator(cfg.Server.MaxUploadBytes, logger),
		Metrics:    metrics,
		Logger:     logger,
	}

	return services.NewPipelineService(hub, deps, cfg.Server.RunTimeout, logger)
}

// progressPrinter writes one line per snapshot change
type progressPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progressPrinter) BroadcastUpdate(eventType, runID, status string, data interface{}) {
	snapshot, ok := data.(*events.RunSnapshot)
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	step := snapshot.CurrentStep
	if step == "" {
		step = "-"
	}
	fmt.Fprintf(p.w, "[%3d%%] %-10s %s", snapshot.Progress, step, status)
	if snapshot.Error != "" {
		fmt.Fprintf(p.w, ": %s", snapshot.Error)
	}
	fmt.Fprintln(p.w)
}

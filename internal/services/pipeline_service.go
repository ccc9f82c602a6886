package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"retailcast/internal/config"
	"retailcast/internal/infrastructure"
	"retailcast/internal/operations"
	"retailcast/internal/validation"
	api "retailcast/pkg/contracts/api/v1"
	"retailcast/pkg/contracts/events"
)

// Finished run snapshots are kept for SnapshotRetention and swept every
// SnapshotSweepInterval
const (
	SnapshotRetention     = 24 * time.Hour
	SnapshotSweepInterval = time.Hour
)

// PipelineService runs the make_daily and forecast stages through the
// operations manager
type PipelineService struct {
	manager    *operations.Manager
	paths      *config.Paths
	runTimeout time.Duration
	logger     *slog.Logger

	// base is cancelled by Shutdown; background runs derive from it
	base     context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopping bool
}

// NewPipelineService creates the manager, registers both stages and wires
// status updates to hub. hub may be nil.
func NewPipelineService(hub operations.WebSocketHub, deps operations.StageDeps, runTimeout time.Duration, logger *slog.Logger) (*PipelineService, error) {
	logger = infrastructure.WithComponent(logger, "pipeline_service")

	manager := operations.NewManager(hub, nil, operations.NewConfig(), logger)
	manager.SetTracer(operations.NewOperationTracer(deps.Metrics))

	for _, step := range []operations.Step{
		operations.NewMakeDailyStage(deps),
		operations.NewForecastStage(deps),
	} {
		if err := manager.RegisterStage(step); err != nil {
			manager.Shutdown()
			return nil, fmt.Errorf("failed to register stage %s: %w", step.ID(), err)
		}
	}

	logger.Info("pipeline service initialized",
		slog.String("input_file", deps.Paths.InputFile),
		slog.String("daily_file", deps.Paths.DailyFile),
		slog.String("forecast_file", deps.Paths.ForecastFile),
		slog.Duration("run_timeout", runTimeout))

	base, stop := context.WithCancel(context.Background())
	s := &PipelineService{
		manager:    manager,
		paths:      deps.Paths,
		runTimeout: runTimeout,
		logger:     logger,
		base:       base,
		stop:       stop,
	}

	s.wg.Add(1)
	go s.sweepSnapshots()

	return s, nil
}

func (s *PipelineService) sweepSnapshots() {
	defer s.wg.Done()

	ticker := time.NewTicker(SnapshotSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.base.Done():
			return
		case <-ticker.C:
			s.manager.GetBroadcaster().CleanupOldOperations(s.base, SnapshotRetention)
		}
	}
}

// Manager exposes the underlying operations manager
func (s *PipelineService) Manager() *operations.Manager {
	return s.manager
}

// Run executes the requested stage synchronously and reports every stage
func (s *PipelineService) Run(ctx context.Context, req api.PipelineRunRequest) (*api.PipelineRunResponse, error) {
	opReq, err := s.operationRequest(req)
	if err != nil {
		return nil, err
	}

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	resp, err := s.manager.Execute(ctx, opReq)
	return toRunResponse(resp), err
}

// Start validates req, publishes a pending snapshot and runs the pipeline in
// the background. The run outlives the calling request and is bounded by the
// run timeout.
func (s *PipelineService) Start(ctx context.Context, req api.PipelineRunRequest) (*events.RunSnapshot, error) {
	opReq, err := s.operationRequest(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return nil, ErrShuttingDown
	}

	if err := s.manager.Prepare(&opReq); err != nil {
		return nil, err
	}

	runCtx := infrastructure.WithTraceID(s.base, infrastructure.GetTraceID(ctx))
	var cancel context.CancelFunc
	if s.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, s.runTimeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		if _, err := s.manager.Execute(runCtx, opReq); err != nil {
			s.logger.WarnContext(runCtx, "background run failed",
				slog.String("operation_id", opReq.ID),
				slog.String("error", err.Error()))
		}
	}()

	s.logger.InfoContext(ctx, "pipeline run started",
		slog.String("operation_id", opReq.ID),
		slog.String("stage", opReq.Stage))

	return s.manager.GetSnapshot(opReq.ID)
}

// ActiveRuns counts runs that have not finished
func (s *PipelineService) ActiveRuns() int {
	return len(s.manager.ListOperations())
}

// Status returns the last known snapshot of a run
func (s *PipelineService) Status(id string) (*events.RunSnapshot, error) {
	return s.manager.GetSnapshot(id)
}

// Cancel stops a running pipeline
func (s *PipelineService) Cancel(id string) error {
	return s.manager.CancelOperation(id)
}

// Shutdown cancels background runs and waits for them, bounded by ctx
func (s *PipelineService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	defer s.manager.Shutdown()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown: %w", ctx.Err())
	}
}

// operationRequest resolves path overrides under the base directory
func (s *PipelineService) operationRequest(req api.PipelineRunRequest) (operations.OperationRequest, error) {
	params := make(map[string]interface{})
	overrides := []struct {
		key, value string
	}{
		{operations.ConfigKeyInputFile, req.InputFile},
		{operations.ConfigKeyDailyFile, req.DailyFile},
		{operations.ConfigKeyForecastFile, req.ForecastFile},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		resolved, err := validation.ResolveWithin(s.paths.BaseDir, o.value)
		if err != nil {
			return operations.OperationRequest{}, fmt.Errorf("%s: %w", o.key, err)
		}
		params[o.key] = resolved
	}

	return operations.OperationRequest{
		Stage:      req.Stage,
		Parameters: params,
	}, nil
}

func toRunResponse(resp *operations.OperationResponse) *api.PipelineRunResponse {
	if resp == nil {
		return nil
	}

	out := &api.PipelineRunResponse{
		ID:        resp.ID,
		Status:    string(resp.Status),
		Duration:  resp.Duration.Round(time.Millisecond).String(),
		Stages:    make(map[string]api.StageResult, len(resp.Steps)),
		Error:     resp.Error,
		StartedAt: resp.StartedAt,
	}
	for id, step := range resp.Steps {
		out.Stages[id] = api.StageResult{
			Status:   string(step.Status),
			Message:  step.Message,
			Error:    step.ErrorText,
			Metadata: step.Metadata,
		}
	}
	return out
}

package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"retailcast/pkg/contracts/events"
)

// Manager orchestrates pipeline runs
type Manager struct {
	registry    *Registry
	config      *Config
	broadcaster *StatusBroadcaster
	tracer      *OperationTracer
	logger      *slog.Logger

	// Active runs
	mu         sync.RWMutex
	operations map[string]*OperationState
	cancels    map[string]context.CancelFunc
}

// NewManager creates a new operation manager
func NewManager(hub WebSocketHub, registry *Registry, config *Config, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "operations"))

	return &Manager{
		registry:    registry,
		config:      config,
		broadcaster: NewStatusBroadcaster(hub, logger),
		tracer:      NewOperationTracer(nil),
		logger:      logger,
		operations:  make(map[string]*OperationState),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// SetTracer replaces the tracer used for spans and metrics
func (m *Manager) SetTracer(tracer *OperationTracer) {
	if tracer != nil {
		m.tracer = tracer
	}
}

// RegisterStage registers a Step and hands it the broadcaster when it reports progress
func (m *Manager) RegisterStage(step Step) error {
	if err := m.registry.Register(step); err != nil {
		return err
	}
	if aware, ok := step.(broadcasterAware); ok {
		aware.SetBroadcaster(m.broadcaster)
	}
	return nil
}

// GetRegistry returns the registry for accessing registered stages
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs the requested stage, or every stage when req.Stage is empty or "all"
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	state := NewOperationState(req.ID)
	for k, v := range req.Parameters {
		state.SetConfig(k, v)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.storeOperation(state, cancel)
	defer m.removeOperation(req.ID)

	ctx, span := m.tracer.TraceOperationExecution(ctx, req.ID, req)
	defer span.End()

	steps, err := m.resolveSteps(req.Stage)
	if err != nil {
		m.logger.ErrorContext(ctx, "operation_error",
			slog.String("operation_id", req.ID),
			slog.String("error", err.Error()))
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
		m.tracer.RecordOperationCompletion(ctx, span, req.ID, state.Duration(), err)
		return m.createResponse(state), err
	}

	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}
	m.broadcaster.CreateOperation(req.ID, steps)

	state.Start()
	m.broadcaster.StartOperation(req.ID)
	m.logger.InfoContext(ctx, "operation_start",
		slog.String("operation_id", req.ID),
		slog.String("stage", req.Stage),
		slog.Int("step_count", len(steps)))

	err = m.executeSequential(ctx, state, steps)

	switch {
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		state.Cancel()
		m.broadcaster.CancelOperation(req.ID)
	case err != nil:
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
	default:
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "Run completed successfully")
	}

	m.tracer.RecordOperationCompletion(ctx, span, req.ID, state.Duration(), err)
	m.logger.InfoContext(ctx, "operation_complete",
		slog.String("operation_id", req.ID),
		slog.String("status", string(state.GetStatus())),
		slog.Duration("duration", state.Duration()))

	return m.createResponse(state), err
}

// Prepare assigns req an ID when it has none and publishes a pending snapshot,
// so the run can be looked up before Execute picks it up. Unknown stages are
// rejected here.
func (m *Manager) Prepare(req *OperationRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	steps, err := m.resolveSteps(req.Stage)
	if err != nil {
		return err
	}
	m.broadcaster.CreateOperation(req.ID, steps)
	return nil
}

func (m *Manager) resolveSteps(stage string) ([]Step, error) {
	if stage == "" || stage == StageAll {
		steps, err := m.registry.GetDependencyOrder()
		if err != nil {
			return nil, NewFatalError("failed to get dependency order", err)
		}
		if len(steps) == 0 {
			return nil, NewFatalError("no stages registered", nil)
		}
		return steps, nil
	}

	step, err := m.registry.Get(stage)
	if err != nil {
		return nil, NewValidationError(stage, fmt.Sprintf("unknown stage %q", stage))
	}
	return []Step{step}, nil
}

// executeSequential executes steps one by one
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	var firstErr error

	for i, step := range steps {
		if ctx.Err() != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			return NewCancellationError(step.ID())
		}

		stepState := state.GetStage(step.ID())
		if stepState != nil && stepState.GetStatus() == StepStatusSkipped {
			continue
		}

		m.logger.InfoContext(ctx, "executing_stage",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(steps)))

		if err := m.executeStage(ctx, state, step); err != nil {
			m.skipDependentStages(ctx, state, steps, step.ID())
			if !m.config.ContinueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
			m.logger.WarnContext(ctx, "stage_failed_continuing",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
		}
	}

	return firstErr
}

// executeStage executes a single Step with retry logic
func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(err.Error())
		m.broadcaster.SkipStep(state.ID, step.ID(), err.Error())
		return err
	}

	if err := step.Validate(state); err != nil {
		vErr := NewValidationError(step.ID(), err.Error())
		vErr.Cause = err
		stepState.Fail(vErr)
		m.broadcaster.FailStep(state.ID, step.ID(), vErr)
		m.logger.WarnContext(ctx, "validation_failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.String("error", err.Error()))
		return vErr
	}

	timeout := m.config.GetStageTimeout(step.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stageCtx, span := m.tracer.TraceStageExecution(stageCtx, state.ID, step.ID())
	defer span.End()

	retryConfig := m.config.RetryConfig
	maxAttempts := retryConfig.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		stepState.Start()
		m.broadcaster.StartStep(state.ID, step.ID())

		start := time.Now()
		err := runStep(stageCtx, state, step)
		duration := time.Since(start)

		if err == nil {
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed successfully", stepState.clone().Metadata)
			m.tracer.RecordStageCompletion(stageCtx, span, step.ID(), duration, nil)
			m.logger.InfoContext(ctx, "stage_completed",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.Duration("duration", duration))
			return nil
		}

		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			tErr := NewTimeoutError(step.ID(), timeout.String())
			tErr.Cause = err
			err = tErr
		}

		m.logger.ErrorContext(ctx, "stage_error",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))

		if !IsRetryable(err) || attempt >= maxAttempts || stageCtx.Err() != nil {
			stepState.Fail(err)
			m.broadcaster.FailStep(state.ID, step.ID(), err)
			m.tracer.RecordStageCompletion(stageCtx, span, step.ID(), duration, err)
			return WrapError(err, step.ID(), "step execution failed")
		}

		delay := m.calculateRetryDelay(attempt, retryConfig)
		m.logger.WarnContext(ctx, "stage_retry",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-stageCtx.Done():
			tErr := NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(tErr)
			m.broadcaster.FailStep(state.ID, step.ID(), tErr)
			return tErr
		}
	}
}

// runStep executes a step and converts a panic into a fatal error
func runStep(ctx context.Context, state *OperationState, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewFatalError(fmt.Sprintf("step %s panicked: %v", step.ID(), r), nil)
		}
	}()
	return step.Execute(ctx, state)
}

// skipDependentStages marks all pending steps that depend on the failed step as skipped
func (m *Manager) skipDependentStages(ctx context.Context, state *OperationState, steps []Step, failedStageID string) {
	for _, step := range steps {
		for _, dep := range step.GetDependencies() {
			if dep != failedStageID {
				continue
			}
			stepState := state.GetStage(step.ID())
			if stepState != nil && stepState.GetStatus() == StepStatusPending {
				reason := fmt.Sprintf("Dependency %s failed", failedStageID)
				stepState.Skip(reason)
				m.broadcaster.SkipStep(state.ID, step.ID(), reason)
				m.logger.InfoContext(ctx, "stage_skipped",
					slog.String("operation_id", state.ID),
					slog.String("step", step.ID()),
					slog.String("failed_dependency", failedStageID))
				m.skipDependentStages(ctx, state, steps, step.ID())
			}
			break
		}
	}
}

// checkDependencies verifies dependencies that are part of this run. A
// dependency outside the run is assumed to have produced its artifacts
// earlier; the step's Validate checks for them.
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			continue
		}
		if status := depState.GetStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep,
				fmt.Sprintf("dependency %s not completed (status: %s)", dep, status))
		}
	}
	return nil
}

// calculateRetryDelay calculates the delay before next retry
func (m *Manager) calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	snapshot := state.Clone()
	resp := &OperationResponse{
		ID:        snapshot.ID,
		Status:    snapshot.Status,
		Duration:  state.Duration(),
		StartedAt: snapshot.StartTime,
		Steps:     snapshot.Steps,
	}
	if snapshot.Error != nil {
		resp.Error = snapshot.Error.Error()
	}
	return resp
}

// GetOperation retrieves the state of a running operation
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.operations[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	return state.Clone(), nil
}

// GetSnapshot returns the last broadcast snapshot of a run, finished or not
func (m *Manager) GetSnapshot(id string) (*events.RunSnapshot, error) {
	snapshot, ok := m.broadcaster.GetSnapshot(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	return snapshot, nil
}

// ListOperations returns all active operations
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, state := range m.operations {
		operations = append(operations, state.Clone())
	}
	return operations
}

// CancelOperation cancels a running operation
func (m *Manager) CancelOperation(id string) error {
	m.mu.RLock()
	cancel, exists := m.cancels[id]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	cancel()
	return nil
}

// Shutdown stops the broadcaster loop
func (m *Manager) Shutdown() {
	m.broadcaster.Stop()
}

func (m *Manager) storeOperation(state *OperationState, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = state
	m.cancels[state.ID] = cancel
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
	delete(m.cancels, id)
}

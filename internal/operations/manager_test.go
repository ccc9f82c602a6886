package operations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, hub WebSocketHub, config *Config, steps ...Step) *Manager {
	t.Helper()
	m := NewManager(hub, nil, config, nil)
	t.Cleanup(m.Shutdown)
	for _, s := range steps {
		require.NoError(t, m.RegisterStage(s))
	}
	return m
}

func TestManagerRunsAllStagesInOrder(t *testing.T) {
	var order []string
	daily := newFakeStep(StageIDMakeDaily)
	daily.execute = func(ctx context.Context, state *OperationState) error {
		order = append(order, StageIDMakeDaily)
		state.SetContext(ContextKeyDays, 10)
		return nil
	}
	fc := newFakeStep(StageIDForecast, StageIDMakeDaily)
	fc.execute = func(ctx context.Context, state *OperationState) error {
		order = append(order, StageIDForecast)
		days, ok := state.GetContext(ContextKeyDays)
		require.True(t, ok)
		assert.Equal(t, 10, days)
		return nil
	}

	hub := &recordingHub{}
	m := newTestManager(t, hub, nil, fc, daily)

	resp, err := m.Execute(context.Background(), OperationRequest{ID: "run-1", Stage: StageAll})
	require.NoError(t, err)

	assert.Equal(t, []string{StageIDMakeDaily, StageIDForecast}, order)
	assert.Equal(t, OperationStatusCompleted, resp.Status)
	assert.Equal(t, StepStatusCompleted, resp.Steps[StageIDMakeDaily].Status)
	assert.Equal(t, StepStatusCompleted, resp.Steps[StageIDForecast].Status)

	last := hub.last()
	require.NotNil(t, last)
	assert.Equal(t, "run-1", last.RunID)
	assert.Equal(t, "completed", last.Status)
	assert.Equal(t, 100, last.Progress)
	assert.NotNil(t, last.CompletedAt)

	snapshot, err := m.GetSnapshot("run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", snapshot.Status)
	require.Len(t, snapshot.Steps, 2)
	assert.Equal(t, "Step make_daily", snapshot.Steps[0].Name)
}

func TestManagerFailedStageSkipsDependents(t *testing.T) {
	daily := newFakeStep(StageIDMakeDaily)
	daily.execute = func(ctx context.Context, state *OperationState) error { return errBoom }
	fc := newFakeStep(StageIDForecast, StageIDMakeDaily)

	hub := &recordingHub{}
	m := newTestManager(t, hub, nil, daily, fc)

	resp, err := m.Execute(context.Background(), OperationRequest{ID: "run-2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, OperationStatusFailed, resp.Status)
	assert.Equal(t, StepStatusFailed, resp.Steps[StageIDMakeDaily].Status)
	assert.Equal(t, StepStatusSkipped, resp.Steps[StageIDForecast].Status)
	assert.Equal(t, int32(0), fc.calls.Load())
	assert.Equal(t, int32(1), daily.calls.Load(), "stages are attempted once")

	last := hub.last()
	require.NotNil(t, last)
	assert.Equal(t, "failed", last.Status)
	assert.Contains(t, last.Error, "boom")
	assert.Equal(t, "skipped", last.Steps[1].Status)
}

func TestManagerSingleStage(t *testing.T) {
	daily := newFakeStep(StageIDMakeDaily)
	fc := newFakeStep(StageIDForecast, StageIDMakeDaily)
	m := newTestManager(t, nil, nil, daily, fc)

	resp, err := m.Execute(context.Background(), OperationRequest{Stage: StageIDForecast})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, int32(0), daily.calls.Load())
	assert.Equal(t, int32(1), fc.calls.Load())
	assert.Len(t, resp.Steps, 1)
}

func TestManagerUnknownStage(t *testing.T) {
	m := newTestManager(t, nil, nil, newFakeStep(StageIDMakeDaily))

	resp, err := m.Execute(context.Background(), OperationRequest{Stage: "train"})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Equal(t, OperationStatusFailed, resp.Status)
}

func TestManagerPrepare(t *testing.T) {
	m := newTestManager(t, nil, nil, newFakeStep(StageIDMakeDaily), newFakeStep(StageIDForecast, StageIDMakeDaily))

	req := OperationRequest{Stage: StageAll}
	require.NoError(t, m.Prepare(&req))
	require.NotEmpty(t, req.ID)

	snapshot, err := m.GetSnapshot(req.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", snapshot.Status)
	require.Len(t, snapshot.Steps, 2)
	assert.Equal(t, StageIDMakeDaily, snapshot.Steps[0].ID)

	err = m.Prepare(&OperationRequest{Stage: "train"})
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
}

func TestManagerValidationFailure(t *testing.T) {
	daily := newFakeStep(StageIDMakeDaily)
	daily.validateErr = errors.New("input file not found")
	m := newTestManager(t, nil, nil, daily)

	resp, err := m.Execute(context.Background(), OperationRequest{Stage: StageIDMakeDaily})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Equal(t, int32(0), daily.calls.Load())
	assert.Equal(t, StepStatusFailed, resp.Steps[StageIDMakeDaily].Status)
	assert.Contains(t, resp.Steps[StageIDMakeDaily].ErrorText, "input file not found")
}

func TestManagerRetriesRetryableErrors(t *testing.T) {
	daily := newFakeStep(StageIDMakeDaily)
	daily.execute = func(ctx context.Context, state *OperationState) error {
		if daily.calls.Load() < 3 {
			return NewExecutionError(StageIDMakeDaily, errBoom, true)
		}
		return nil
	}

	cfg := NewConfigBuilder().
		WithRetryConfig(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}).
		Build()
	m := newTestManager(t, nil, cfg, daily)

	_, err := m.Execute(context.Background(), OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), daily.calls.Load())
}

func TestManagerStageTimeout(t *testing.T) {
	daily := newFakeStep(StageIDMakeDaily)
	daily.execute = func(ctx context.Context, state *OperationState) error {
		<-ctx.Done()
		return ctx.Err()
	}

	cfg := NewConfigBuilder().WithStageTimeout(StageIDMakeDaily, 20*time.Millisecond).Build()
	m := newTestManager(t, nil, cfg, daily)

	_, err := m.Execute(context.Background(), OperationRequest{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
}

func TestManagerRecoversPanics(t *testing.T) {
	daily := newFakeStep(StageIDMakeDaily)
	daily.execute = func(ctx context.Context, state *OperationState) error {
		panic("nil map")
	}
	m := newTestManager(t, nil, nil, daily)

	_, err := m.Execute(context.Background(), OperationRequest{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeFatal, GetErrorType(err))
	assert.Contains(t, err.Error(), "panicked")
}

func TestManagerCancel(t *testing.T) {
	started := make(chan struct{})
	daily := newFakeStep(StageIDMakeDaily)
	daily.execute = func(ctx context.Context, state *OperationState) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	m := newTestManager(t, nil, nil, daily)

	done := make(chan *OperationResponse)
	go func() {
		resp, _ := m.Execute(context.Background(), OperationRequest{ID: "run-cancel"})
		done <- resp
	}()

	<-started
	require.Len(t, m.ListOperations(), 1)
	require.NoError(t, m.CancelOperation("run-cancel"))

	select {
	case resp := <-done:
		assert.Equal(t, OperationStatusCancelled, resp.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	assert.ErrorIs(t, m.CancelOperation("run-cancel"), ErrOperationNotFound)
	_, err := m.GetOperation("run-cancel")
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestCalculateRetryDelay(t *testing.T) {
	m := &Manager{}
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, m.calculateRetryDelay(1, cfg))
	assert.Equal(t, 2*time.Second, m.calculateRetryDelay(2, cfg))
	assert.Equal(t, 4*time.Second, m.calculateRetryDelay(3, cfg))
	assert.Equal(t, 5*time.Second, m.calculateRetryDelay(4, cfg))
}

package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"retailcast/pkg/contracts/events"
)

// StatusBroadcaster is the single authority for run status updates. It keeps
// the complete state of every run and broadcasts a snapshot on each change.
type StatusBroadcaster struct {
	mu       sync.RWMutex
	runs     map[string]*events.RunSnapshot
	hub      WebSocketHub
	logger   *slog.Logger
	updates  chan updateRequest
	stop     chan struct{}
	stopOnce sync.Once
}

type updateRequest struct {
	runID      string
	updateFunc func(*events.RunSnapshot)
	done       chan struct{}
}

// NewStatusBroadcaster creates a new status broadcaster. hub may be nil, in
// which case snapshots are only retained.
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		runs:    make(map[string]*events.RunSnapshot),
		hub:     hub,
		logger:  logger.With(slog.String("component", "status_broadcaster")),
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates applies updates one at a time so snapshots never interleave
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	snapshot, exists := sb.runs[req.runID]
	if !exists {
		now := time.Now()
		snapshot = &events.RunSnapshot{
			RunID:     req.runID,
			Status:    string(OperationStatusPending),
			StartedAt: now,
			Steps:     []events.StepSnapshot{},
		}
		sb.runs[req.runID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if len(snapshot.Steps) > 0 {
		total := 0
		for _, step := range snapshot.Steps {
			total += step.Progress
		}
		snapshot.Progress = total / len(snapshot.Steps)
	}

	if isTerminal(snapshot.Status) && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}

	out := copySnapshot(snapshot)
	sb.mu.Unlock()

	sb.broadcast(out)
}

func isTerminal(status string) bool {
	switch OperationStatusValue(status) {
	case OperationStatusCompleted, OperationStatusFailed, OperationStatusCancelled:
		return true
	}
	return false
}

func (sb *StatusBroadcaster) broadcast(snapshot *events.RunSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting_run_snapshot",
		slog.String("run_id", snapshot.RunID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep))

	sb.hub.BroadcastUpdate(string(events.MessageTypeRunSnapshot), snapshot.RunID, snapshot.Status, snapshot)
}

// UpdateStatus applies updateFunc to the run's snapshot and waits until the
// resulting snapshot has been broadcast.
func (sb *StatusBroadcaster) UpdateStatus(runID string, updateFunc func(*events.RunSnapshot)) {
	req := updateRequest{
		runID:      runID,
		updateFunc: updateFunc,
		done:       make(chan struct{}),
	}

	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}
	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// CreateOperation initializes a run with the given steps in execution order
func (sb *StatusBroadcaster) CreateOperation(runID string, steps []Step) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(OperationStatusPending)
		snapshot.Progress = 0
		snapshot.Steps = make([]events.StepSnapshot, len(steps))
		for i, step := range steps {
			snapshot.Steps[i] = events.StepSnapshot{
				ID:     step.ID(),
				Name:   step.Name(),
				Status: string(StepStatusPending),
			}
		}
		snapshot.Message = "Run created"
	})
}

// StartOperation marks a run as running
func (sb *StatusBroadcaster) StartOperation(runID string) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(OperationStatusRunning)
		snapshot.Message = "Run started"
	})
}

// StartStep marks a step as active
func (sb *StatusBroadcaster) StartStep(runID, stepID string) {
	sb.updateStep(runID, stepID, func(snapshot *events.RunSnapshot, step *events.StepSnapshot) {
		step.Status = string(StepStatusActive)
		step.Progress = 0
		step.Message = "Step started"
		step.Error = ""
		snapshot.CurrentStep = step.Name
	})
}

// UpdateStepProgress updates a specific step's progress
func (sb *StatusBroadcaster) UpdateStepProgress(runID, stepID string, progress int, message string) {
	sb.UpdateStepWithMetadata(runID, stepID, progress, message, nil)
}

// UpdateStepWithMetadata updates a step's progress and merges metadata.
// Progress never moves backwards while the step is active.
func (sb *StatusBroadcaster) UpdateStepWithMetadata(runID, stepID string, progress int, message string, metadata map[string]interface{}) {
	progress = clamp(progress, 0, 99)
	sb.updateStep(runID, stepID, func(snapshot *events.RunSnapshot, step *events.StepSnapshot) {
		if progress > step.Progress || step.Status != string(StepStatusActive) {
			step.Progress = progress
		}
		step.Status = string(StepStatusActive)
		step.Message = message
		if len(metadata) > 0 {
			if step.Metadata == nil {
				step.Metadata = make(map[string]interface{}, len(metadata))
			}
			for k, v := range metadata {
				step.Metadata[k] = v
			}
		}
		snapshot.CurrentStep = step.Name
	})
}

// CompleteStep marks a step as completed
func (sb *StatusBroadcaster) CompleteStep(runID, stepID string, message string, metadata map[string]interface{}) {
	sb.updateStep(runID, stepID, func(snapshot *events.RunSnapshot, step *events.StepSnapshot) {
		step.Status = string(StepStatusCompleted)
		step.Progress = 100
		step.Message = message
		if len(metadata) > 0 {
			step.Metadata = metadata
		}
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(runID, stepID string, err error) {
	sb.updateStep(runID, stepID, func(snapshot *events.RunSnapshot, step *events.StepSnapshot) {
		step.Status = string(StepStatusFailed)
		if err != nil {
			step.Error = err.Error()
		}
	})
}

// SkipStep marks a step as skipped. Skipped steps count as done for progress.
func (sb *StatusBroadcaster) SkipStep(runID, stepID, reason string) {
	sb.updateStep(runID, stepID, func(snapshot *events.RunSnapshot, step *events.StepSnapshot) {
		step.Status = string(StepStatusSkipped)
		step.Progress = 100
		step.Message = reason
	})
}

func (sb *StatusBroadcaster) updateStep(runID, stepID string, fn func(*events.RunSnapshot, *events.StepSnapshot)) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				fn(snapshot, &snapshot.Steps[i])
				return
			}
		}
		snapshot.Steps = append(snapshot.Steps, events.StepSnapshot{ID: stepID, Name: stepID})
		fn(snapshot, &snapshot.Steps[len(snapshot.Steps)-1])
	})
}

// CompleteOperation marks a run as completed
func (sb *StatusBroadcaster) CompleteOperation(runID string, message string) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(OperationStatusCompleted)
		snapshot.CurrentStep = ""
		snapshot.Message = message
	})
}

// FailOperation marks a run as failed
func (sb *StatusBroadcaster) FailOperation(runID string, err error) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(OperationStatusFailed)
		if err != nil {
			snapshot.Error = err.Error()
		}
		snapshot.CurrentStep = ""
	})
}

// CancelOperation marks a run as cancelled
func (sb *StatusBroadcaster) CancelOperation(runID string) {
	sb.UpdateStatus(runID, func(snapshot *events.RunSnapshot) {
		snapshot.Status = string(OperationStatusCancelled)
		snapshot.CurrentStep = ""
		snapshot.Message = "Run cancelled"
	})
}

// GetSnapshot returns a copy of the current snapshot for a run
func (sb *StatusBroadcaster) GetSnapshot(runID string) (*events.RunSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.runs[runID]
	if !exists {
		return nil, false
	}
	return copySnapshot(snapshot), true
}

// GetAllSnapshots returns copies of every retained snapshot
func (sb *StatusBroadcaster) GetAllSnapshots() []*events.RunSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*events.RunSnapshot, 0, len(sb.runs))
	for _, snapshot := range sb.runs {
		snapshots = append(snapshots, copySnapshot(snapshot))
	}
	return snapshots
}

// CleanupOldOperations removes finished runs that completed more than maxAge ago
func (sb *StatusBroadcaster) CleanupOldOperations(ctx context.Context, maxAge time.Duration) int {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, snapshot := range sb.runs {
		if !isTerminal(snapshot.Status) || snapshot.CompletedAt == nil {
			continue
		}
		if now.Sub(*snapshot.CompletedAt) > maxAge {
			delete(sb.runs, id)
			removed++
		}
	}
	if removed > 0 {
		sb.logger.InfoContext(ctx, "old_runs_cleaned",
			slog.Int("removed", removed),
			slog.Duration("max_age", maxAge))
	}
	return removed
}

// Stop shuts down the update loop. Pending and later updates are dropped.
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() { close(sb.stop) })
}

func copySnapshot(s *events.RunSnapshot) *events.RunSnapshot {
	c := *s
	c.Steps = make([]events.StepSnapshot, len(s.Steps))
	for i, step := range s.Steps {
		c.Steps[i] = step
		if step.Metadata != nil {
			c.Steps[i].Metadata = make(map[string]interface{}, len(step.Metadata))
			for k, v := range step.Metadata {
				c.Steps[i].Metadata[k] = v
			}
		}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

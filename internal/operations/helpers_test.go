package operations

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"retailcast/pkg/contracts/events"
)

// recordingHub captures every snapshot broadcast
type recordingHub struct {
	mu        sync.Mutex
	snapshots []*events.RunSnapshot
}

func (h *recordingHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := metadata.(*events.RunSnapshot); ok && eventType == string(events.MessageTypeRunSnapshot) {
		h.snapshots = append(h.snapshots, s)
	}
}

func (h *recordingHub) last() *events.RunSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.snapshots) == 0 {
		return nil
	}
	return h.snapshots[len(h.snapshots)-1]
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.snapshots)
}

// fakeStep is a configurable step for manager tests
type fakeStep struct {
	BaseStage
	calls       atomic.Int32
	execute     func(ctx context.Context, state *OperationState) error
	validateErr error
}

func newFakeStep(id string, deps ...string) *fakeStep {
	return &fakeStep{BaseStage: NewBaseStage(id, "Step "+id, deps)}
}

func (s *fakeStep) Validate(state *OperationState) error {
	return s.validateErr
}

func (s *fakeStep) Execute(ctx context.Context, state *OperationState) error {
	s.calls.Add(1)
	if s.execute != nil {
		return s.execute(ctx, state)
	}
	return nil
}

var errBoom = errors.New("boom")

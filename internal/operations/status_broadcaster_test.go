package operations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusBroadcasterLifecycle(t *testing.T) {
	hub := &recordingHub{}
	sb := NewStatusBroadcaster(hub, discardLogger())
	t.Cleanup(sb.Stop)

	steps := []Step{newFakeStep(StageIDMakeDaily), newFakeStep(StageIDForecast, StageIDMakeDaily)}
	sb.CreateOperation("run", steps)
	sb.StartOperation("run")
	sb.StartStep("run", StageIDMakeDaily)

	snap, ok := sb.GetSnapshot("run")
	require.True(t, ok)
	assert.Equal(t, "running", snap.Status)
	assert.Equal(t, "Step make_daily", snap.CurrentStep)
	assert.Equal(t, "active", snap.Steps[0].Status)

	sb.UpdateStepWithMetadata("run", StageIDMakeDaily, 60, "Aggregating", map[string]interface{}{"rows": 10})
	sb.UpdateStepProgress("run", StageIDMakeDaily, 20, "Still aggregating")

	snap, _ = sb.GetSnapshot("run")
	assert.Equal(t, 60, snap.Steps[0].Progress, "progress never moves backwards")
	assert.Equal(t, "Still aggregating", snap.Steps[0].Message)
	assert.Equal(t, 10, snap.Steps[0].Metadata["rows"])
	assert.Equal(t, 30, snap.Progress)

	sb.UpdateStepProgress("run", StageIDMakeDaily, 250, "")
	snap, _ = sb.GetSnapshot("run")
	assert.Equal(t, 99, snap.Steps[0].Progress, "only completion reaches 100")

	sb.CompleteStep("run", StageIDMakeDaily, "done", map[string]interface{}{"days": 10})
	sb.FailStep("run", StageIDForecast, errors.New("model diverged"))
	sb.FailOperation("run", errors.New("model diverged"))

	snap, _ = sb.GetSnapshot("run")
	assert.Equal(t, "failed", snap.Status)
	assert.Equal(t, "model diverged", snap.Error)
	assert.Equal(t, "model diverged", snap.Steps[1].Error)
	assert.Equal(t, 100, snap.Steps[0].Progress)
	require.NotNil(t, snap.CompletedAt)

	assert.Equal(t, 9, hub.count(), "every update is broadcast")
	assert.Equal(t, "failed", hub.last().Status)
}

func TestStatusBroadcasterSnapshotsAreCopies(t *testing.T) {
	sb := NewStatusBroadcaster(nil, discardLogger())
	t.Cleanup(sb.Stop)

	sb.CreateOperation("run", []Step{newFakeStep(StageIDMakeDaily)})
	sb.CompleteStep("run", StageIDMakeDaily, "done", map[string]interface{}{"days": 10})

	snap, ok := sb.GetSnapshot("run")
	require.True(t, ok)
	snap.Steps[0].Status = "mutated"
	snap.Steps[0].Metadata["days"] = 0

	again, _ := sb.GetSnapshot("run")
	assert.Equal(t, "completed", again.Steps[0].Status)
	assert.Equal(t, 10, again.Steps[0].Metadata["days"])

	_, ok = sb.GetSnapshot("other")
	assert.False(t, ok)
}

func TestStatusBroadcasterSkipCountsAsDone(t *testing.T) {
	sb := NewStatusBroadcaster(nil, discardLogger())
	t.Cleanup(sb.Stop)

	sb.CreateOperation("run", []Step{newFakeStep(StageIDMakeDaily), newFakeStep(StageIDForecast)})
	sb.FailStep("run", StageIDMakeDaily, errBoom)
	sb.SkipStep("run", StageIDForecast, "Dependency make_daily failed")

	snap, _ := sb.GetSnapshot("run")
	assert.Equal(t, "skipped", snap.Steps[1].Status)
	assert.Equal(t, "Dependency make_daily failed", snap.Steps[1].Message)
	assert.Equal(t, 50, snap.Progress)
}

func TestStatusBroadcasterCleanup(t *testing.T) {
	sb := NewStatusBroadcaster(nil, discardLogger())
	t.Cleanup(sb.Stop)

	sb.CreateOperation("done", nil)
	sb.CompleteOperation("done", "ok")
	sb.CreateOperation("running", nil)
	sb.StartOperation("running")

	assert.Equal(t, 0, sb.CleanupOldOperations(context.Background(), time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, sb.CleanupOldOperations(context.Background(), time.Millisecond))

	_, ok := sb.GetSnapshot("done")
	assert.False(t, ok)
	_, ok = sb.GetSnapshot("running")
	assert.True(t, ok)
	assert.Len(t, sb.GetAllSnapshots(), 1)
}

func TestStatusBroadcasterStop(t *testing.T) {
	sb := NewStatusBroadcaster(nil, discardLogger())
	sb.Stop()
	sb.Stop()

	done := make(chan struct{})
	go func() {
		sb.StartOperation("late")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update blocked after stop")
	}
}

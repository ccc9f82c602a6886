package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepIDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	return ids
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newFakeStep("a")))
	assert.Error(t, r.Register(newFakeStep("a")), "duplicate IDs are rejected")
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(newFakeStep("")))

	assert.True(t, r.Has("a"))
	assert.Equal(t, 1, r.Count())

	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegistryDependencyOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep(StageIDForecast, StageIDMakeDaily)))
	require.NoError(t, r.Register(newFakeStep("report", StageIDForecast)))
	require.NoError(t, r.Register(newFakeStep(StageIDMakeDaily)))

	steps, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{StageIDMakeDaily, StageIDForecast, "report"}, stepIDs(steps))
	assert.Equal(t, []string{StageIDForecast, "report", StageIDMakeDaily}, r.ListIDs())

	dependents := r.GetDependents(StageIDMakeDaily)
	assert.Equal(t, []string{StageIDForecast}, stepIDs(dependents))
}

func TestRegistryDependencyErrors(t *testing.T) {
	t.Run("missing dependency", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeStep("b", "a")))
		assert.Error(t, r.ValidateDependencies())
	})

	t.Run("cycle", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeStep("a", "b")))
		require.NoError(t, r.Register(newFakeStep("b", "a")))
		_, err := r.GetDependencyOrder()
		assert.ErrorContains(t, err, "cycle")
	})
}

package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
)

func snapshotAt(runID string, stage core.Stage, seq int) *core.WorkflowState {
	state := core.NewWorkflowState(core.NewAgentState("input", nil, nil))
	state.RunID = runID
	state.Stage = stage
	state.Checkpoint = seq
	return state
}

func TestInMemoryStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Save(ctx, "run-1", snapshotAt("run-1", core.StageOrchestrating, 1)))
	require.NoError(t, store.Save(ctx, "run-1", snapshotAt("run-1", core.StagePlanning, 2)))

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, core.StagePlanning, loaded.Stage)
	assert.Equal(t, 2, loaded.Checkpoint)
}

func TestInMemoryStore_LoadNotFound(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_CloneOnSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	original := snapshotAt("run-1", core.StageOrchestrating, 1)
	require.NoError(t, store.Save(ctx, "run-1", original))

	// Mutating the saved snapshot afterwards must not affect the store.
	original.Stage = core.StageFailed
	original.State.Input = "mutated"

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, core.StageOrchestrating, loaded.Stage)
	assert.Equal(t, "input", loaded.State.Input)

	// Mutating a loaded snapshot must not affect subsequent loads.
	loaded.State.Input = "mutated again"
	again, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "input", again.State.Input)
}

func TestInMemoryStore_History(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Save(ctx, "run-1", snapshotAt("run-1", core.StageOrchestrating, 1)))
	require.NoError(t, store.Save(ctx, "run-1", snapshotAt("run-1", core.StageExecuting, 2)))
	require.NoError(t, store.Save(ctx, "run-2", snapshotAt("run-2", core.StageOrchestrating, 1)))

	history, err := store.History(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.StageOrchestrating, history[0].Stage)
	assert.Equal(t, core.StageExecuting, history[1].Stage)

	_, err = store.History(ctx, "run-3")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_RunsIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Save(ctx, "run-a", snapshotAt("run-a", core.StageDone, 5)))
	require.NoError(t, store.Save(ctx, "run-b", snapshotAt("run-b", core.StageFailed, 3)))

	a, err := store.Load(ctx, "run-a")
	require.NoError(t, err)
	b, err := store.Load(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, core.StageDone, a.Stage)
	assert.Equal(t, core.StageFailed, b.Stage)
}

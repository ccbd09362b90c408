// Package checkpoint persists workflow state at every stage boundary so a
// run can be inspected, resumed after a crash, or replayed. Checkpoints are
// append-only per run identifier; writers for the same run must be
// serialized by the caller (the Coordinator is strictly sequential per run).
package checkpoint

import (
	"context"
	"errors"

	"github.com/hupe1980/agentpipe/core"
)

// ErrNotFound indicates no checkpoint exists for the requested run.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists workflow state snapshots keyed by run identifier.
type Store interface {
	// Save appends a checkpoint for the run. The snapshot's Checkpoint
	// sequence number orders snapshots within one run.
	Save(ctx context.Context, runID string, state *core.WorkflowState) error

	// Load returns the latest checkpoint for the run, or ErrNotFound.
	Load(ctx context.Context, runID string) (*core.WorkflowState, error)
}

package checkpoint

import (
	"context"
	"sync"

	"github.com/hupe1980/agentpipe/core"
)

// InMemoryStore is a volatile Store implementation keeping checkpoints in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo runs. Snapshots are cloned on save and on load to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]*core.WorkflowState
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string][]*core.WorkflowState)}
}

// Save appends a clone of the snapshot to the run's checkpoint history.
func (s *InMemoryStore) Save(ctx context.Context, runID string, state *core.WorkflowState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = append(s.runs[runID], state.Clone())
	return nil
}

// Load returns a clone of the latest checkpoint for the run.
func (s *InMemoryStore) Load(ctx context.Context, runID string) (*core.WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.runs[runID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	return history[len(history)-1].Clone(), nil
}

// History returns clones of every checkpoint recorded for the run in order.
func (s *InMemoryStore) History(ctx context.Context, runID string) ([]*core.WorkflowState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.runs[runID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	out := make([]*core.WorkflowState, len(history))
	for i, snapshot := range history {
		out[i] = snapshot.Clone()
	}
	return out, nil
}

package core

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies a position in the fixed sequential pipeline.
type Stage string

const (
	// StageStart is the pseudo-state before orchestration begins.
	StageStart Stage = "START"
	// StageOrchestrating classifies the request and picks the routing mode.
	StageOrchestrating Stage = "ORCHESTRATING"
	// StagePlanning produces (or revises) the ordered action plan.
	StagePlanning Stage = "PLANNING"
	// StageExecuting runs the plan steps and records their results.
	StageExecuting Stage = "EXECUTING"
	// StageValidating judges the execution pass against the request.
	StageValidating Stage = "VALIDATING"
	// StageDone is the successful terminal state; Output is set.
	StageDone Stage = "DONE"
	// StageFailed is the unsuccessful terminal state; Output stays unset.
	StageFailed Stage = "FAILED"
)

// Terminal reports whether the stage ends the run.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// RouteDecision records which fallback entry of the model router served an
// agent call. Decisions are part of the checkpointed workflow state so a
// resumed or replayed run can attribute every result to the model that
// produced it.
type RouteDecision struct {
	Agent    string    `json:"agent"`
	Logical  string    `json:"logical"`
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Index    int       `json:"index"`
	At       time.Time `json:"at"`
}

// WorkflowState wraps the AgentState with pipeline metadata. It is the unit
// of checkpoint persistence: created at run start, updated at every stage
// boundary, discarded (or archived) once terminal.
type WorkflowState struct {
	RunID      string          `json:"run_id"`
	Stage      Stage           `json:"stage"`
	Checkpoint int             `json:"checkpoint"`
	State      *AgentState     `json:"state"`
	Decisions  []RouteDecision `json:"decisions,omitempty"`
	Created    time.Time       `json:"created"`
	Updated    time.Time       `json:"updated"`
}

// NewWorkflowState creates run metadata around a fresh AgentState.
func NewWorkflowState(state *AgentState) *WorkflowState {
	now := time.Now().UTC()
	return &WorkflowState{
		RunID:   NewID(),
		Stage:   StageStart,
		State:   state,
		Created: now,
		Updated: now,
	}
}

// Clone returns a deep copy of the workflow state.
func (w *WorkflowState) Clone() *WorkflowState {
	if w == nil {
		return nil
	}
	clone := *w
	clone.State = w.State.Clone()
	clone.Decisions = append([]RouteDecision(nil), w.Decisions...)
	return &clone
}

// Advance moves the workflow to the next stage and bumps the checkpoint
// sequence. Checkpoint numbers are append-only per run identifier.
func (w *WorkflowState) Advance(next Stage) {
	w.Stage = next
	w.Checkpoint++
	w.Updated = time.Now().UTC()
}

// StageEvent is emitted once per stage transition for live observation and
// as the run trace. The embedded state is a snapshot clone; consumers may
// retain it freely.
type StageEvent struct {
	RunID      string      `json:"run_id"`
	From       Stage       `json:"from"`
	To         Stage       `json:"to"`
	RetryCount int         `json:"retry_count"`
	At         time.Time   `json:"at"`
	State      *AgentState `json:"state,omitempty"`
}

// NewID generates a unique identifier for runs and correlation.
func NewID() string { return uuid.NewString() }

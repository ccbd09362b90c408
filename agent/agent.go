// Package agent implements the four pipeline roles: orchestrator, planner,
// executor and validator. All of them embed BaseAgent, which owns model
// routing, per-attempt timeouts and the retry budget, so the concrete agents
// reduce to prompt handling and payload decoding.
package agent

import (
	"context"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/mcp"
)

// Agent is the uniform interface the workflow coordinator drives. Run
// receives a read-only clone of the run state plus the stage context the
// context manager assembled; state changes travel back as a delta inside the
// result, never by mutating the view.
type Agent interface {
	// Name returns the agent's identifier used in logs and errors.
	Name() string

	// Stage returns the pipeline stage this agent serves.
	Stage() core.Stage

	// Run executes the agent once. A non-nil error means the call could
	// not be carried out at all (cancelled context); domain outcomes,
	// including failures, are expressed in the AgentResult status.
	Run(ctx context.Context, view *core.AgentState, mcpCtx mcp.Context) (core.AgentResult, error)
}

// Package tool implements the capability subsystem: the Tool interface plan
// steps are dispatched against, a function adapter, and the Registry the
// executor resolves tool and skill names through.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentpipe/core"
)

// Tool defines a named capability the executor can invoke for a plan step.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Handle errors gracefully and return them rather than panic
//   - Be safe for concurrent use; independent runs may share one instance
//   - Treat the state view as read-only
type Tool interface {
	// Name returns the unique identifier for this capability.
	Name() string

	// Description returns a human-readable description of what this tool
	// does, surfaced to the planner as capability guidance.
	Description() string

	// Invoke executes the capability with the step's arguments and a
	// read-only view of the run state.
	Invoke(ctx context.Context, args map[string]any, view *core.AgentState) (Result, error)
}

// Result is the structured outcome of a tool or skill invocation.
type Result struct {
	Status  core.StepStatus `json:"status"`
	Payload any             `json:"payload,omitempty"`
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

package tool

import (
	"context"

	"github.com/hupe1980/agentpipe/core"
)

// FuncTool is a generic adapter that exposes a plain Go function as a Tool.
//
// A FuncTool has no internal mutable state after construction and is safe for
// concurrent use by multiple goroutines. Errors returned by the wrapped
// function are normalized: a *ToolError passes through unchanged, anything
// else is wrapped with code EXECUTION_ERROR.
type FuncTool struct {
	name        string
	description string
	fn          func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error)
}

// NewFuncTool constructs a FuncTool.
//
// Example:
//
//	sum := NewFuncTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFuncTool(
	name, description string,
	fn func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error),
) *FuncTool {
	return &FuncTool{name: name, description: description, fn: fn}
}

// Name returns the unique tool name used for plan step resolution.
func (t *FuncTool) Name() string { return t.name }

// Description returns the short natural language description exposed to the planner.
func (t *FuncTool) Description() string { return t.description }

// Invoke runs the wrapped function and normalizes the outcome.
func (t *FuncTool) Invoke(ctx context.Context, args map[string]any, view *core.AgentState) (Result, error) {
	payload, err := t.fn(ctx, args, view)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			return Result{Status: core.StepFailed}, toolErr
		}
		return Result{Status: core.StepFailed}, &ToolError{Tool: t.name, Message: err.Error(), Code: "EXECUTION_ERROR"}
	}
	return Result{Status: core.StepSucceeded, Payload: payload}, nil
}

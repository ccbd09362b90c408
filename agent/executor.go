package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/mcp"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/router"
	"github.com/hupe1980/agentpipe/tool"
)

// Executor runs the plan steps strictly in order. Every step produces a
// StepResult regardless of outcome: capability lookups and invocations that
// fail are recorded as failed steps and execution continues, leaving the
// pass/fail judgment to the validator. Steps naming neither a tool nor a
// skill are answered directly with a model call.
type Executor struct {
	BaseAgent
	registry *tool.Registry
}

// NewExecutor creates the executor agent backed by the given capability registry.
func NewExecutor(r *router.Router, registry *tool.Registry, optFns ...func(o *Options)) *Executor {
	return &Executor{
		BaseAgent: NewBaseAgent("executor", core.StageExecuting, r, optFns...),
		registry:  registry,
	}
}

// Run implements Agent.
func (a *Executor) Run(ctx context.Context, view *core.AgentState, mcpCtx mcp.Context) (core.AgentResult, error) {
	if view.Plan.Empty() {
		return core.FatalFailure("executor: no plan to execute"), nil
	}

	var (
		results   []core.StepResult
		decisions []core.RouteDecision
		errs      []string
	)
	for _, step := range view.Plan.Steps {
		if err := ctx.Err(); err != nil {
			return core.AgentResult{}, err
		}

		result, decision := a.executeStep(ctx, step, view, mcpCtx)
		results = append(results, result)
		if decision != nil {
			decisions = append(decisions, *decision)
		}
		if result.Failed() {
			errs = append(errs, fmt.Sprintf("step %d: %s", result.StepID, result.Error))
			a.Logger().Warn("plan step failed", "step", result.StepID, "action", step.Action, "error", result.Error)
		}
	}

	delta := core.StateDelta{
		Results: results,
		Errors:  errs,
		History: []string{fmt.Sprintf("executor: ran %d steps, %d failed", len(results), len(errs))},
	}
	if output := aggregateOutput(results); output != "" {
		delta.Output = &output
	}

	result := core.Success(delta)
	result.Decisions = decisions
	return result, nil
}

func (a *Executor) executeStep(ctx context.Context, step core.PlanStep, view *core.AgentState, mcpCtx mcp.Context) (core.StepResult, *core.RouteDecision) {
	result := core.StepResult{StepID: step.ID, Action: step.Action, Tool: step.Tool, Skill: step.Skill}

	switch {
	case step.Tool != "":
		capability, err := a.registry.Tool(step.Tool)
		if err != nil {
			result.Status = core.StepFailed
			result.Error = err.Error()
			return result, nil
		}
		return a.invokeCapability(ctx, capability, step, view, result), nil

	case step.Skill != "":
		capability, err := a.registry.Skill(step.Skill)
		if err != nil {
			result.Status = core.StepFailed
			result.Error = err.Error()
			return result, nil
		}
		return a.invokeCapability(ctx, capability, step, view, result), nil

	default:
		return a.answerDirectly(ctx, step, view, mcpCtx, result)
	}
}

func (a *Executor) invokeCapability(ctx context.Context, capability tool.Tool, step core.PlanStep, view *core.AgentState, result core.StepResult) core.StepResult {
	outcome, err := capability.Invoke(ctx, step.Args, view)
	if err != nil {
		result.Status = core.StepFailed
		result.Error = err.Error()
		return result
	}
	result.Status = outcome.Status
	result.Payload = outcome.Payload
	return result
}

// answerDirectly serves a step with no capability through a single model
// call. The call is not retried; a failure becomes a failed step and flows
// into the validator's judgment.
func (a *Executor) answerDirectly(ctx context.Context, step core.PlanStep, view *core.AgentState, mcpCtx mcp.Context, result core.StepResult) (core.StepResult, *core.RouteDecision) {
	messages := []model.Message{
		{Role: "user", Content: view.Input},
		{Role: "user", Content: "Current step: " + step.Action},
	}
	for _, prior := range view.Results {
		if prior.Failed() {
			continue
		}
		if text, ok := prior.Payload.(string); ok {
			messages = append(messages, model.Message{Role: "assistant", Content: text})
		}
	}

	text, decision, err := a.invokeOnce(ctx, mcpCtx.Instructions(), messages)
	if err != nil {
		result.Status = core.StepFailed
		result.Error = err.Error()
		return result, nil
	}
	result.Status = core.StepSucceeded
	result.Payload = text
	return result, &decision
}

// aggregateOutput assembles the run output draft from the successful string
// payloads, newest last. The validator judges this draft; on a failed pass
// it is cleared together with the results.
func aggregateOutput(results []core.StepResult) string {
	var parts []string
	for _, r := range results {
		if r.Failed() {
			continue
		}
		if text, ok := r.Payload.(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

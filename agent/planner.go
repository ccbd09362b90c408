package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/internal/jsonx"
	"github.com/hupe1980/agentpipe/mcp"
	"github.com/hupe1980/agentpipe/router"
)

// Planner turns the orchestrator's analysis into an ordered action plan. On
// a feedback retry the stage context carries the validator's diagnostics and
// the previous plan, so the revised plan can address what went wrong; the
// revision counter increments on every pass through this stage.
type Planner struct {
	BaseAgent
}

// NewPlanner creates the planner agent.
func NewPlanner(r *router.Router, optFns ...func(o *Options)) *Planner {
	return &Planner{BaseAgent: NewBaseAgent("planner", core.StagePlanning, r, optFns...)}
}

// Run implements Agent.
func (a *Planner) Run(ctx context.Context, view *core.AgentState, mcpCtx mcp.Context) (core.AgentResult, error) {
	return a.complete(ctx, mcpCtx, func(text string) (core.AgentResult, error) {
		return a.decode(text, view)
	})
}

func (a *Planner) decode(text string, view *core.AgentState) (core.AgentResult, error) {
	var payload struct {
		Steps []struct {
			ID     int            `json:"id"`
			Action string         `json:"action"`
			Tool   string         `json:"tool"`
			Skill  string         `json:"skill"`
			Args   map[string]any `json:"args"`
			Expect string         `json:"expect"`
		} `json:"steps"`
	}
	if err := jsonx.Decode(text, &payload); err != nil {
		return core.AgentResult{}, err
	}
	if len(payload.Steps) == 0 {
		return core.AgentResult{}, &jsonx.MalformedError{Raw: text, Err: fmt.Errorf("plan contains no steps")}
	}

	steps := make([]core.PlanStep, 0, len(payload.Steps))
	for i, s := range payload.Steps {
		if s.Action == "" {
			return core.AgentResult{}, &jsonx.MalformedError{Raw: text, Err: fmt.Errorf("step %d has no action", i+1)}
		}
		// Step IDs are normalized to their position; models drift on
		// numbering and downstream ordering relies on the IDs.
		steps = append(steps, core.PlanStep{
			ID:     i + 1,
			Action: s.Action,
			Tool:   s.Tool,
			Skill:  s.Skill,
			Args:   s.Args,
			Expect: s.Expect,
		})
	}

	revision := 0
	if view.Plan != nil {
		revision = view.Plan.Revision + 1
	}
	plan := &core.Plan{Steps: steps, Revision: revision}

	delta := core.StateDelta{
		Plan:    plan,
		History: []string{fmt.Sprintf("planner: produced plan revision %d with %d steps", revision, len(steps))},
	}
	return core.Success(delta), nil
}

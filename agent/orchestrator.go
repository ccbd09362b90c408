package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/internal/jsonx"
	"github.com/hupe1980/agentpipe/mcp"
	"github.com/hupe1980/agentpipe/router"
)

// Orchestrator is the first pipeline stage. It classifies the request and
// commits the routing decision for the whole run; feedback retries never
// re-enter this stage.
type Orchestrator struct {
	BaseAgent
}

// NewOrchestrator creates the orchestrator agent.
func NewOrchestrator(r *router.Router, optFns ...func(o *Options)) *Orchestrator {
	return &Orchestrator{BaseAgent: NewBaseAgent("orchestrator", core.StageOrchestrating, r, optFns...)}
}

// Run implements Agent.
func (a *Orchestrator) Run(ctx context.Context, view *core.AgentState, mcpCtx mcp.Context) (core.AgentResult, error) {
	return a.complete(ctx, mcpCtx, a.decode)
}

func (a *Orchestrator) decode(text string) (core.AgentResult, error) {
	var payload struct {
		Complexity       string `json:"complexity"`
		RequiresPlanning bool   `json:"requires_planning"`
		Routing          string `json:"routing"`
		Reasoning        string `json:"reasoning"`
	}
	if err := jsonx.Decode(text, &payload); err != nil {
		return core.AgentResult{}, err
	}

	complexity := core.Complexity(payload.Complexity)
	switch complexity {
	case core.ComplexitySimple, core.ComplexityComplex:
	case "medium":
		// Some models hedge; anything beyond a direct answer goes
		// through the full pipeline.
		complexity = core.ComplexityComplex
	default:
		return core.AgentResult{}, &jsonx.MalformedError{Raw: text, Err: fmt.Errorf("unknown complexity %q", payload.Complexity)}
	}

	routing := core.Routing(payload.Routing)
	switch routing {
	case core.RoutingSkipPlanning, core.RoutingFullPipeline:
	case "":
		if complexity == core.ComplexitySimple && !payload.RequiresPlanning {
			routing = core.RoutingSkipPlanning
		} else {
			routing = core.RoutingFullPipeline
		}
	default:
		return core.AgentResult{}, &jsonx.MalformedError{Raw: text, Err: fmt.Errorf("unknown routing %q", payload.Routing)}
	}

	// A complex request never skips planning, whatever the model said.
	if complexity == core.ComplexityComplex {
		routing = core.RoutingFullPipeline
		payload.RequiresPlanning = true
	}

	classification := &core.Classification{
		Complexity:       complexity,
		RequiresPlanning: payload.RequiresPlanning,
		Routing:          routing,
		Reasoning:        payload.Reasoning,
	}
	delta := core.StateDelta{
		Classification: classification,
		History:        []string{fmt.Sprintf("orchestrator: classified request as %s, routing %s", complexity, routing)},
	}
	return core.Success(delta), nil
}

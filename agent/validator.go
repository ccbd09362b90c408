package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/internal/jsonx"
	"github.com/hupe1980/agentpipe/mcp"
	"github.com/hupe1980/agentpipe/router"
)

// Validator is the final pipeline stage. It applies a deterministic check
// first: any failed step fails the pass with diagnostics naming the steps,
// without spending a model call. Only a fully successful pass is judged by
// the model against the original request.
type Validator struct {
	BaseAgent
}

// NewValidator creates the validator agent.
func NewValidator(r *router.Router, optFns ...func(o *Options)) *Validator {
	return &Validator{BaseAgent: NewBaseAgent("validator", core.StageValidating, r, optFns...)}
}

// Run implements Agent.
func (a *Validator) Run(ctx context.Context, view *core.AgentState, mcpCtx mcp.Context) (core.AgentResult, error) {
	if diagnostics := deterministicCheck(view); len(diagnostics) > 0 {
		a.Logger().Info("validation failed deterministically", "diagnostics", diagnostics)
		delta := core.StateDelta{
			Validation: &core.Validation{Verdict: core.VerdictFail, Diagnostics: diagnostics},
			History:    []string{fmt.Sprintf("validator: fail (%d deterministic diagnostics)", len(diagnostics))},
		}
		return core.Success(delta), nil
	}

	return a.complete(ctx, mcpCtx, a.decode)
}

func (a *Validator) decode(text string) (core.AgentResult, error) {
	var payload struct {
		Verdict     string   `json:"verdict"`
		Diagnostics []string `json:"diagnostics"`
	}
	if err := jsonx.Decode(text, &payload); err != nil {
		return core.AgentResult{}, err
	}

	switch core.Verdict(payload.Verdict) {
	case core.VerdictPass:
		delta := core.StateDelta{
			Validation: &core.Validation{Verdict: core.VerdictPass},
			History:    []string{"validator: pass"},
		}
		return core.Success(delta), nil

	case core.VerdictFail:
		if len(payload.Diagnostics) == 0 {
			// A fail the planner cannot act on is useless; make the
			// model try again.
			return core.AgentResult{}, &jsonx.MalformedError{Raw: text, Err: fmt.Errorf("fail verdict without diagnostics")}
		}
		delta := core.StateDelta{
			Validation: &core.Validation{Verdict: core.VerdictFail, Diagnostics: payload.Diagnostics},
			History:    []string{fmt.Sprintf("validator: fail (%d diagnostics)", len(payload.Diagnostics))},
		}
		return core.Success(delta), nil

	default:
		return core.AgentResult{}, &jsonx.MalformedError{Raw: text, Err: fmt.Errorf("unknown verdict %q", payload.Verdict)}
	}
}

// deterministicCheck fails the pass without a model call when the execution
// record alone proves it incomplete.
func deterministicCheck(view *core.AgentState) []string {
	if len(view.Results) == 0 {
		return []string{"no steps were executed"}
	}
	var diagnostics []string
	for _, r := range view.Results {
		if r.Failed() {
			diagnostics = append(diagnostics, fmt.Sprintf("step %d (%s) failed: %s", r.StepID, r.Action, r.Error))
		}
	}
	return diagnostics
}

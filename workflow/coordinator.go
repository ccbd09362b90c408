// Package workflow drives the sequential pipeline: a statechart enforces the
// legal stage transitions while the Coordinator owns the run state, calls
// the stage agents, applies their deltas, persists checkpoints and emits
// stage events. Everything within one run is strictly sequential; run
// independent pipelines concurrently instead of parallelizing inside one.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/checkpoint"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/mcp"
)

// ErrFeedbackBudgetExhausted terminates a run whose validator kept rejecting
// passes until the retry budget was spent. The run ends in FAILED with the
// last diagnostics preserved in the state.
var ErrFeedbackBudgetExhausted = errors.New("feedback retry budget exhausted")

// Options configures a Coordinator.
type Options struct {
	// MaxFeedbackRetries bounds validator-driven replanning per run.
	MaxFeedbackRetries int
	// Store receives a checkpoint at every stage transition. Defaults to
	// an in-memory store.
	Store checkpoint.Store
	// ContextManager assembles the per-stage model context.
	ContextManager *mcp.Manager
	// Logger receives pipeline diagnostics.
	Logger logging.Logger
	// EventBuffer sizes the RunStream event channel.
	EventBuffer int
}

// Coordinator owns the AgentState for the lifetime of a run. Agents receive
// read-only clones and hand back deltas; the Coordinator is the single
// writer.
type Coordinator struct {
	orchestrator agent.Agent
	planner      agent.Agent
	executor     agent.Agent
	validator    agent.Agent
	opts         Options
}

// RunResult is the outcome of a completed (or failed) run.
type RunResult struct {
	RunID  string
	Stage  core.Stage
	Output string
	State  *core.AgentState
	Trace  []core.StageEvent
}

// NewCoordinator wires the four stage agents into a pipeline.
func NewCoordinator(orchestrator, planner, executor, validator agent.Agent, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		MaxFeedbackRetries: 3,
		Logger:             logging.NoOpLogger{},
		EventBuffer:        16,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = checkpoint.NewInMemoryStore()
	}
	if opts.ContextManager == nil {
		opts.ContextManager = mcp.NewManager()
	}

	return &Coordinator{
		orchestrator: orchestrator,
		planner:      planner,
		executor:     executor,
		validator:    validator,
		opts:         opts,
	}
}

// Run executes the pipeline to a terminal stage. The returned RunResult is
// non-nil whenever a run was started, including failed runs; the error
// reports why a run ended in FAILED.
func (c *Coordinator) Run(ctx context.Context, input string, tools, skills []string) (*RunResult, error) {
	wf := core.NewWorkflowState(core.NewAgentState(input, tools, skills))
	return c.drive(ctx, wf)
}

// RunStream starts the pipeline in a goroutine and streams one StageEvent
// per transition. The event channel closes when the run reaches a terminal
// stage; the error channel then delivers at most one error.
func (c *Coordinator) RunStream(ctx context.Context, input string, tools, skills []string) (string, <-chan core.StageEvent, <-chan error) {
	wf := core.NewWorkflowState(core.NewAgentState(input, tools, skills))
	events := make(chan core.StageEvent, c.opts.EventBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)
		_, err := c.execute(ctx, wf, func(ev core.StageEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		if err != nil {
			errs <- err
		}
	}()

	return wf.RunID, events, errs
}

// Resume reloads the latest checkpoint of a run and continues from the
// recorded stage. Runs already in a terminal stage are returned as-is.
func (c *Coordinator) Resume(ctx context.Context, runID string) (*RunResult, error) {
	wf, err := c.opts.Store.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("resume run %s: %w", runID, err)
	}
	if wf.Stage.Terminal() {
		result := c.result(wf)
		if wf.Stage == core.StageFailed {
			return result, ErrFeedbackBudgetExhausted
		}
		return result, nil
	}
	return c.drive(ctx, wf)
}

func (c *Coordinator) drive(ctx context.Context, wf *core.WorkflowState) (*RunResult, error) {
	var trace []core.StageEvent
	result, err := c.execute(ctx, wf, func(ev core.StageEvent) {
		trace = append(trace, ev)
	})
	if result != nil {
		result.Trace = trace
	}
	return result, err
}

// execute is the single pipeline loop behind Run, RunStream and Resume.
func (c *Coordinator) execute(ctx context.Context, wf *core.WorkflowState, emit func(core.StageEvent)) (*RunResult, error) {
	m, err := newMachine(wf, c.opts.MaxFeedbackRetries)
	if err != nil {
		return nil, err
	}
	logger := c.opts.Logger

	for !m.done() {
		if err := ctx.Err(); err != nil {
			return c.result(wf), err
		}

		switch m.stage() {
		case core.StageStart:
			if err := c.advance(ctx, m, wf, core.StageOrchestrating, false, emit); err != nil {
				return c.result(wf), err
			}

		case core.StageOrchestrating:
			if err := c.runStage(ctx, m, wf, c.orchestrator, emit); err != nil {
				return c.result(wf), err
			}
			next := core.StagePlanning
			if wf.State.Classification != nil && wf.State.Classification.Routing == core.RoutingSkipPlanning {
				// The planning stage is skipped; the executor answers
				// through a single synthesized step.
				wf.State.Apply(core.StateDelta{Plan: directAnswerPlan()})
				next = core.StageExecuting
			}
			if err := c.advance(ctx, m, wf, next, false, emit); err != nil {
				return c.result(wf), err
			}

		case core.StagePlanning:
			if err := c.runStage(ctx, m, wf, c.planner, emit); err != nil {
				return c.result(wf), err
			}
			if err := c.advance(ctx, m, wf, core.StageExecuting, false, emit); err != nil {
				return c.result(wf), err
			}

		case core.StageExecuting:
			if err := c.runStage(ctx, m, wf, c.executor, emit); err != nil {
				return c.result(wf), err
			}
			if err := c.advance(ctx, m, wf, core.StageValidating, false, emit); err != nil {
				return c.result(wf), err
			}

		case core.StageValidating:
			if err := c.runStage(ctx, m, wf, c.validator, emit); err != nil {
				return c.result(wf), err
			}

			validation := wf.State.Validation
			switch {
			case validation != nil && validation.Verdict == core.VerdictPass:
				if err := c.advance(ctx, m, wf, core.StageDone, false, emit); err != nil {
					return c.result(wf), err
				}

			case wf.State.RetryCount < c.opts.MaxFeedbackRetries:
				wf.State.RetryCount++
				wf.State.ClearPass()
				logger.Info("validation failed, replanning", "run_id", wf.RunID, "retry_count", wf.State.RetryCount)
				if err := c.advance(ctx, m, wf, core.StagePlanning, true, emit); err != nil {
					return c.result(wf), err
				}

			default:
				logger.Warn("feedback retry budget exhausted", "run_id", wf.RunID, "retry_count", wf.State.RetryCount)
				if err := c.advance(ctx, m, wf, core.StageFailed, false, emit); err != nil {
					return c.result(wf), err
				}
				return c.result(wf), ErrFeedbackBudgetExhausted
			}

		default:
			return c.result(wf), fmt.Errorf("pipeline reached unexpected stage %s", m.stage())
		}
	}

	return c.result(wf), nil
}

// runStage builds the stage context, calls the agent against a state clone
// and applies the returned delta. A fatal result fails the whole run from
// whatever stage it occurred in.
func (c *Coordinator) runStage(ctx context.Context, m *machine, wf *core.WorkflowState, a agent.Agent, emit func(core.StageEvent)) error {
	stage := m.stage()
	view := wf.State.Clone()
	mcpCtx := c.opts.ContextManager.Build(stage, view)

	result, err := a.Run(ctx, view, mcpCtx)
	if err != nil {
		c.fail(ctx, m, wf, emit)
		return err
	}

	switch result.Status {
	case core.StatusSuccess:
		wf.State.Apply(result.Delta)
		wf.Decisions = append(wf.Decisions, result.Decisions...)
		return nil

	case core.StatusFatal:
		wf.State.Errors = append(wf.State.Errors, result.Diagnostics...)
		c.fail(ctx, m, wf, emit)
		return &core.FatalAgentError{Agent: a.Name(), Stage: stage, Diagnostics: result.Diagnostics}

	default:
		// Agents resolve retryable failures internally; one leaking out
		// is a contract violation.
		c.fail(ctx, m, wf, emit)
		return fmt.Errorf("agent %s returned unresolved status %s", a.Name(), result.Status)
	}
}

// advance moves machine and workflow state together, persists a checkpoint
// and emits the stage event.
func (c *Coordinator) advance(ctx context.Context, m *machine, wf *core.WorkflowState, to core.Stage, retry bool, emit func(core.StageEvent)) error {
	from := wf.Stage
	if err := m.transition(to, retry); err != nil {
		return err
	}
	if to == core.StageFailed {
		// A failed run never reports an output; executor drafts from the
		// rejected pass are discarded, diagnostics stay on the state.
		wf.State.Output = nil
	}
	wf.Advance(to)

	if err := c.opts.Store.Save(ctx, wf.RunID, wf); err != nil {
		return fmt.Errorf("persist checkpoint %d: %w", wf.Checkpoint, err)
	}

	c.opts.Logger.Info("stage transition", "run_id", wf.RunID, "from", string(from), "to", string(to), "retry_count", wf.State.RetryCount)
	emit(core.StageEvent{
		RunID:      wf.RunID,
		From:       from,
		To:         to,
		RetryCount: wf.State.RetryCount,
		At:         time.Now().UTC(),
		State:      wf.State.Clone(),
	})
	return nil
}

// fail is the best-effort FAIL edge used on fatal errors; checkpointing here
// must not mask the original failure.
func (c *Coordinator) fail(ctx context.Context, m *machine, wf *core.WorkflowState, emit func(core.StageEvent)) {
	if wf.Stage.Terminal() {
		return
	}
	if err := c.advance(ctx, m, wf, core.StageFailed, false, emit); err != nil {
		c.opts.Logger.Error("failed to record FAILED stage", "run_id", wf.RunID, "error", err)
	}
}

func (c *Coordinator) result(wf *core.WorkflowState) *RunResult {
	output := ""
	if wf.State.Output != nil {
		output = *wf.State.Output
	}
	return &RunResult{
		RunID:  wf.RunID,
		Stage:  wf.Stage,
		Output: output,
		State:  wf.State.Clone(),
	}
}

// directAnswerPlan is the synthesized single-step plan for runs routed past
// the planner.
func directAnswerPlan() *core.Plan {
	return &core.Plan{Steps: []core.PlanStep{{
		ID:     1,
		Action: "Answer the user's request directly",
		Expect: "a complete direct answer",
	}}}
}

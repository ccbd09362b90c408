package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/checkpoint"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/router"
	"github.com/hupe1980/agentpipe/tool"
)

// pipelineModels holds one scripted mock per stage so tests can drive each
// agent independently.
type pipelineModels struct {
	orchestrator *model.MockModel
	planner      *model.MockModel
	executor     *model.MockModel
	validator    *model.MockModel
}

func newPipelineModels() pipelineModels {
	return pipelineModels{
		orchestrator: model.NewMockModel("mock-orchestrator", "mock"),
		planner:      model.NewMockModel("mock-planner", "mock"),
		executor:     model.NewMockModel("mock-executor", "mock"),
		validator:    model.NewMockModel("mock-validator", "mock"),
	}
}

func newTestCoordinator(models pipelineModels, reg *tool.Registry, optFns ...func(o *Options)) *Coordinator {
	r := router.New()
	r.Register("orchestrator", models.orchestrator)
	r.Register("planner", models.planner)
	r.Register("executor", models.executor)
	r.Register("validator", models.validator)

	if reg == nil {
		reg = tool.NewRegistry()
	}

	return NewCoordinator(
		agent.NewOrchestrator(r),
		agent.NewPlanner(r),
		agent.NewExecutor(r, reg),
		agent.NewValidator(r),
		optFns...,
	)
}

func visitedStages(trace []core.StageEvent) []core.Stage {
	stages := make([]core.Stage, 0, len(trace))
	for _, ev := range trace {
		stages = append(stages, ev.To)
	}
	return stages
}

func countStage(trace []core.StageEvent, stage core.Stage) int {
	n := 0
	for _, ev := range trace {
		if ev.To == stage {
			n++
		}
	}
	return n
}

func TestCoordinator_SimpleRequestSkipsPlanning(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.Enqueue(`{"complexity":"simple","requires_planning":false,"routing":"skip_planning","reasoning":"single factual question"}`)
	models.executor.Enqueue("Paris is the capital of France.")
	models.validator.Enqueue(`{"verdict":"pass"}`)

	c := newTestCoordinator(models, nil)
	result, err := c.Run(context.Background(), "What is the capital of France?", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, core.StageDone, result.Stage)
	assert.Equal(t, "Paris is the capital of France.", result.Output)
	assert.Equal(t, []core.Stage{
		core.StageOrchestrating,
		core.StageExecuting,
		core.StageValidating,
		core.StageDone,
	}, visitedStages(result.Trace))
	assert.Equal(t, 0, models.planner.CallCount())

	// The synthesized direct-answer plan is visible in the final state.
	require.NotNil(t, result.State.Plan)
	require.Len(t, result.State.Plan.Steps, 1)
	assert.Empty(t, result.State.Plan.Steps[0].Tool)
}

func TestCoordinator_ComplexRequestRunsFullPipeline(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.Enqueue(`{"complexity":"complex","requires_planning":true,"routing":"full_pipeline"}`)
	models.planner.Enqueue(`{"steps":[
		{"id":1,"action":"echo the first part","tool":"echo","args":{"value":"part one"}},
		{"id":2,"action":"echo the second part","tool":"echo","args":{"value":"part two"}}
	]}`)
	models.validator.Enqueue(`{"verdict":"pass"}`)

	reg := tool.NewRegistry()
	reg.RegisterTool(tool.NewFuncTool("echo", "Echo the args back",
		func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
			return args["value"], nil
		}))

	c := newTestCoordinator(models, reg)
	result, err := c.Run(context.Background(), "echo both parts", []string{"echo"}, nil)
	require.NoError(t, err)

	assert.Equal(t, core.StageDone, result.Stage)
	assert.Equal(t, "part one\n\npart two", result.Output)
	assert.Equal(t, []core.Stage{
		core.StageOrchestrating,
		core.StagePlanning,
		core.StageExecuting,
		core.StageValidating,
		core.StageDone,
	}, visitedStages(result.Trace))
	require.Len(t, result.State.Results, 2)
	assert.Equal(t, 0, models.executor.CallCount())
}

func TestCoordinator_ValidatorFailureTriggersReplanning(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.Enqueue(`{"complexity":"complex","requires_planning":true,"routing":"full_pipeline"}`)
	models.planner.Enqueue(
		`{"steps":[{"id":1,"action":"first attempt","tool":"echo","args":{"value":"draft"}}]}`,
		`{"steps":[{"id":1,"action":"second attempt","tool":"echo","args":{"value":"final"}}]}`,
	)
	models.validator.Enqueue(
		`{"verdict":"fail","diagnostics":["the draft misses the requested detail"]}`,
		`{"verdict":"pass"}`,
	)

	reg := tool.NewRegistry()
	reg.RegisterTool(tool.NewFuncTool("echo", "Echo the args back",
		func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
			return args["value"], nil
		}))

	c := newTestCoordinator(models, reg)
	result, err := c.Run(context.Background(), "produce the final text", []string{"echo"}, nil)
	require.NoError(t, err)

	assert.Equal(t, core.StageDone, result.Stage)
	assert.Equal(t, 1, result.State.RetryCount)
	assert.Equal(t, 2, countStage(result.Trace, core.StagePlanning))
	assert.Equal(t, 2, models.planner.CallCount())

	// The replanned pass replaced the first one completely.
	require.NotNil(t, result.State.Plan)
	assert.Equal(t, 1, result.State.Plan.Revision)
	assert.Equal(t, "second attempt", result.State.Plan.Steps[0].Action)
	require.Len(t, result.State.Results, 1)
	assert.Equal(t, "final", result.State.Results[0].Payload)
	assert.Equal(t, "final", result.Output)
}

func TestCoordinator_FeedbackBudgetExhaustion(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.Enqueue(`{"complexity":"complex","requires_planning":true,"routing":"full_pipeline"}`)
	models.planner.Enqueue(
		`{"steps":[{"id":1,"action":"attempt one","tool":"echo","args":{"value":"a"}}]}`,
		`{"steps":[{"id":1,"action":"attempt two","tool":"echo","args":{"value":"b"}}]}`,
		`{"steps":[{"id":1,"action":"attempt three","tool":"echo","args":{"value":"c"}}]}`,
	)
	models.validator.Enqueue(
		`{"verdict":"fail","diagnostics":["still wrong"]}`,
		`{"verdict":"fail","diagnostics":["still wrong"]}`,
		`{"verdict":"fail","diagnostics":["still wrong"]}`,
	)

	reg := tool.NewRegistry()
	reg.RegisterTool(tool.NewFuncTool("echo", "Echo the args back",
		func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
			return args["value"], nil
		}))

	c := newTestCoordinator(models, reg, func(o *Options) {
		o.MaxFeedbackRetries = 2
	})

	result, err := c.Run(context.Background(), "impossible request", []string{"echo"}, nil)
	require.ErrorIs(t, err, ErrFeedbackBudgetExhausted)
	require.NotNil(t, result)

	assert.Equal(t, core.StageFailed, result.Stage)
	assert.Equal(t, 2, result.State.RetryCount)
	// Initial pass plus two retries, never more.
	assert.Equal(t, 3, models.planner.CallCount())
	assert.Equal(t, 3, models.validator.CallCount())
	// The last diagnostics stay on the state for post-mortem.
	require.NotNil(t, result.State.Validation)
	assert.Equal(t, core.VerdictFail, result.State.Validation.Verdict)
	// A failed run never carries an output, even though the executor
	// produced a draft on every pass.
	assert.Empty(t, result.Output)
	assert.Nil(t, result.State.Output)
}

func TestCoordinator_LastPermittedRetryIsHonored(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.Enqueue(`{"complexity":"complex","requires_planning":true,"routing":"full_pipeline"}`)
	models.planner.Enqueue(
		`{"steps":[{"id":1,"action":"first attempt","tool":"echo","args":{"value":"draft"}}]}`,
		`{"steps":[{"id":1,"action":"second attempt","tool":"echo","args":{"value":"final"}}]}`,
	)
	models.validator.Enqueue(
		`{"verdict":"fail","diagnostics":["the draft is incomplete"]}`,
		`{"verdict":"pass"}`,
	)

	reg := tool.NewRegistry()
	reg.RegisterTool(tool.NewFuncTool("echo", "Echo the args back",
		func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
			return args["value"], nil
		}))

	// Budget of exactly one: the single permitted retry must go through
	// instead of being rejected at the statechart edge.
	c := newTestCoordinator(models, reg, func(o *Options) {
		o.MaxFeedbackRetries = 1
	})

	result, err := c.Run(context.Background(), "produce the final text", []string{"echo"}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.StageDone, result.Stage)
	assert.Equal(t, 1, result.State.RetryCount)
	assert.Equal(t, "final", result.Output)
	assert.Equal(t, 2, countStage(result.Trace, core.StagePlanning))
}

func TestCoordinator_ZeroRetryBudgetFailsWithoutOutput(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.Enqueue(`{"complexity":"complex","requires_planning":true,"routing":"full_pipeline"}`)
	models.planner.Enqueue(`{"steps":[{"id":1,"action":"write the answer","tool":"echo","args":{"value":"draft answer"}}]}`)
	models.validator.Enqueue(`{"verdict":"fail","diagnostics":["the draft misses the point"]}`)

	reg := tool.NewRegistry()
	reg.RegisterTool(tool.NewFuncTool("echo", "Echo the args back",
		func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
			return args["value"], nil
		}))

	c := newTestCoordinator(models, reg, func(o *Options) {
		o.MaxFeedbackRetries = 0
	})

	result, err := c.Run(context.Background(), "impossible request", []string{"echo"}, nil)
	require.ErrorIs(t, err, ErrFeedbackBudgetExhausted)

	assert.Equal(t, core.StageFailed, result.Stage)
	assert.Equal(t, 0, result.State.RetryCount)
	assert.Equal(t, 1, models.planner.CallCount())
	// The executor's draft must not survive into the failed result.
	assert.Empty(t, result.Output)
	assert.Nil(t, result.State.Output)
}

func TestCoordinator_FatalAgentFailsTheRun(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.FailWith(&model.RateLimitError{Provider: "mock"})

	c := newTestCoordinator(models, nil)
	result, err := c.Run(context.Background(), "anything", nil, nil)
	require.Error(t, err)

	var fatal *core.FatalAgentError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "orchestrator", fatal.Agent)
	assert.Equal(t, core.StageOrchestrating, fatal.Stage)

	require.NotNil(t, result)
	assert.Equal(t, core.StageFailed, result.Stage)
	assert.NotEmpty(t, result.State.Errors)
}

func TestCoordinator_CheckpointsEveryTransition(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.Enqueue(`{"complexity":"simple","requires_planning":false,"routing":"skip_planning"}`)
	models.executor.Enqueue("done")
	models.validator.Enqueue(`{"verdict":"pass"}`)

	store := checkpoint.NewInMemoryStore()
	c := newTestCoordinator(models, nil, func(o *Options) {
		o.Store = store
	})

	result, err := c.Run(context.Background(), "quick question", nil, nil)
	require.NoError(t, err)

	history, err := store.History(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, history, len(result.Trace))
	assert.Equal(t, core.StageOrchestrating, history[0].Stage)
	assert.Equal(t, core.StageDone, history[len(history)-1].Stage)

	latest, err := store.Load(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.StageDone, latest.Stage)
	assert.Equal(t, len(result.Trace), latest.Checkpoint)
	// Route decisions travel with the checkpoint for attribution.
	assert.NotEmpty(t, latest.Decisions)
}

func TestCoordinator_ResumeContinuesFromCheckpoint(t *testing.T) {
	models := newPipelineModels()
	models.validator.Enqueue(`{"verdict":"pass"}`)

	reg := tool.NewRegistry()
	reg.RegisterTool(tool.NewFuncTool("echo", "Echo the args back",
		func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
			return args["value"], nil
		}))

	store := checkpoint.NewInMemoryStore()
	c := newTestCoordinator(models, reg, func(o *Options) {
		o.Store = store
	})

	// Simulate a run interrupted right after planning.
	state := core.NewAgentState("echo the value", []string{"echo"}, nil)
	state.Classification = &core.Classification{Complexity: core.ComplexityComplex, RequiresPlanning: true, Routing: core.RoutingFullPipeline}
	state.Plan = &core.Plan{Steps: []core.PlanStep{{ID: 1, Action: "echo it", Tool: "echo", Args: map[string]any{"value": "resumed"}}}}
	wf := core.NewWorkflowState(state)
	wf.Advance(core.StageOrchestrating)
	wf.Advance(core.StagePlanning)
	wf.Advance(core.StageExecuting)
	require.NoError(t, store.Save(context.Background(), wf.RunID, wf))

	result, err := c.Resume(context.Background(), wf.RunID)
	require.NoError(t, err)

	assert.Equal(t, core.StageDone, result.Stage)
	assert.Equal(t, "resumed", result.Output)
	// Orchestrator and planner were never re-run.
	assert.Equal(t, 0, models.orchestrator.CallCount())
	assert.Equal(t, 0, models.planner.CallCount())
	assert.Equal(t, []core.Stage{core.StageValidating, core.StageDone}, visitedStages(result.Trace))
}

func TestCoordinator_ResumeTerminalRunReturnsAsIs(t *testing.T) {
	models := newPipelineModels()
	store := checkpoint.NewInMemoryStore()
	c := newTestCoordinator(models, nil, func(o *Options) {
		o.Store = store
	})

	output := "already answered"
	state := core.NewAgentState("question", nil, nil)
	state.Output = &output
	wf := core.NewWorkflowState(state)
	wf.Stage = core.StageDone
	require.NoError(t, store.Save(context.Background(), wf.RunID, wf))

	result, err := c.Resume(context.Background(), wf.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.StageDone, result.Stage)
	assert.Equal(t, "already answered", result.Output)
	assert.Equal(t, 0, models.orchestrator.CallCount())
}

func TestCoordinator_ResumeUnknownRun(t *testing.T) {
	c := newTestCoordinator(newPipelineModels(), nil)
	_, err := c.Resume(context.Background(), "no-such-run")
	require.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestCoordinator_RunStreamEmitsTransitions(t *testing.T) {
	models := newPipelineModels()
	models.orchestrator.Enqueue(`{"complexity":"simple","requires_planning":false,"routing":"skip_planning"}`)
	models.executor.Enqueue("streamed answer")
	models.validator.Enqueue(`{"verdict":"pass"}`)

	c := newTestCoordinator(models, nil)
	runID, events, errs := c.RunStream(context.Background(), "stream it", nil, nil)
	require.NotEmpty(t, runID)

	var trace []core.StageEvent
	for ev := range events {
		assert.Equal(t, runID, ev.RunID)
		trace = append(trace, ev)
	}
	require.NoError(t, <-errs)

	assert.Equal(t, []core.Stage{
		core.StageOrchestrating,
		core.StageExecuting,
		core.StageValidating,
		core.StageDone,
	}, visitedStages(trace))

	// Each event carries an independent state snapshot.
	last := trace[len(trace)-1]
	require.NotNil(t, last.State)
	require.NotNil(t, last.State.Output)
	assert.Equal(t, "streamed answer", *last.State.Output)
}

func TestCoordinator_CancelledContext(t *testing.T) {
	models := newPipelineModels()
	c := newTestCoordinator(models, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, "never starts", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, models.orchestrator.CallCount())
}

func TestMachine_RejectsIllegalTransition(t *testing.T) {
	wf := core.NewWorkflowState(core.NewAgentState("input", nil, nil))
	m, err := newMachine(wf, 3)
	require.NoError(t, err)

	require.Error(t, m.transition(core.StageValidating, false))
	require.NoError(t, m.transition(core.StageOrchestrating, false))
	assert.Equal(t, core.StageOrchestrating, m.stage())
}

func TestMachine_RetryGuardEnforcesBudget(t *testing.T) {
	wf := core.NewWorkflowState(core.NewAgentState("input", nil, nil))
	m, err := newMachine(wf, 1)
	require.NoError(t, err)

	require.NoError(t, m.transition(core.StageOrchestrating, false))
	require.NoError(t, m.transition(core.StagePlanning, false))
	require.NoError(t, m.transition(core.StageExecuting, false))
	require.NoError(t, m.transition(core.StageValidating, false))

	// The coordinator increments the counter before sending RETRY, so the
	// first (and with budget 1, last) permitted retry carries value 1.
	wf.State.RetryCount = 1
	require.NoError(t, m.transition(core.StagePlanning, true))
	require.NoError(t, m.transition(core.StageExecuting, false))
	require.NoError(t, m.transition(core.StageValidating, false))

	// Beyond the budget the guard blocks the edge.
	wf.State.RetryCount = 2
	err = m.transition(core.StagePlanning, true)
	require.Error(t, err)
	assert.Equal(t, core.StageValidating, m.stage())
}

func TestMachine_RestoreResumesMidPipeline(t *testing.T) {
	wf := core.NewWorkflowState(core.NewAgentState("input", nil, nil))
	wf.Stage = core.StageExecuting

	m, err := newMachine(wf, 3)
	require.NoError(t, err)
	assert.Equal(t, core.StageExecuting, m.stage())
	assert.False(t, m.done())

	require.NoError(t, m.transition(core.StageValidating, false))
	require.NoError(t, m.transition(core.StageDone, false))
	assert.True(t, m.done())

	require.Error(t, m.transition(core.StageFailed, false))
}

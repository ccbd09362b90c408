package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/tool"
)

func echoTool(name string) tool.Tool {
	return tool.NewFuncTool(name, "Echo the args back",
		func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
			return args["value"], nil
		})
}

func failingTool(name string) tool.Tool {
	return tool.NewFuncTool(name, "Always fails",
		func(ctx context.Context, args map[string]any, view *core.AgentState) (any, error) {
			return nil, errors.New("backend unreachable")
		})
}

func TestExecutor_RunsStepsInOrder(t *testing.T) {
	reg := tool.NewRegistry()
	reg.RegisterTool(echoTool("echo"))

	m := model.NewMockModel("mock", "mock")
	e := NewExecutor(newTestRouter(m, "executor"), reg)

	state := core.NewAgentState("run two steps", []string{"echo"}, nil)
	state.Plan = &core.Plan{Steps: []core.PlanStep{
		{ID: 1, Action: "echo first", Tool: "echo", Args: map[string]any{"value": "one"}},
		{ID: 2, Action: "echo second", Tool: "echo", Args: map[string]any{"value": "two"}},
	}}

	result, err := e.Run(context.Background(), state, buildContext(core.StageExecuting, state))
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, result.Status)

	require.Len(t, result.Delta.Results, 2)
	assert.Equal(t, 1, result.Delta.Results[0].StepID)
	assert.Equal(t, "one", result.Delta.Results[0].Payload)
	assert.Equal(t, 2, result.Delta.Results[1].StepID)
	assert.Equal(t, core.StepSucceeded, result.Delta.Results[1].Status)
	assert.Equal(t, 0, m.CallCount())
}

func TestExecutor_RunToCompletionOnStepFailure(t *testing.T) {
	reg := tool.NewRegistry()
	reg.RegisterTool(failingTool("flaky"), echoTool("echo"))

	m := model.NewMockModel("mock", "mock")
	e := NewExecutor(newTestRouter(m, "executor"), reg)

	state := core.NewAgentState("mixed outcome", []string{"flaky", "echo"}, nil)
	state.Plan = &core.Plan{Steps: []core.PlanStep{
		{ID: 1, Action: "hit the backend", Tool: "flaky"},
		{ID: 2, Action: "echo afterwards", Tool: "echo", Args: map[string]any{"value": "still ran"}},
	}}

	result, err := e.Run(context.Background(), state, buildContext(core.StageExecuting, state))
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, result.Status)

	require.Len(t, result.Delta.Results, 2)
	assert.True(t, result.Delta.Results[0].Failed())
	assert.Contains(t, result.Delta.Results[0].Error, "backend unreachable")
	assert.Equal(t, core.StepSucceeded, result.Delta.Results[1].Status)
	require.Len(t, result.Delta.Errors, 1)
}

func TestExecutor_UnknownCapabilityIsTypedFailure(t *testing.T) {
	reg := tool.NewRegistry()
	m := model.NewMockModel("mock", "mock")
	e := NewExecutor(newTestRouter(m, "executor"), reg)

	state := core.NewAgentState("use a ghost tool", nil, nil)
	state.Plan = &core.Plan{Steps: []core.PlanStep{
		{ID: 1, Action: "use it", Tool: "ghost"},
		{ID: 2, Action: "use it as a skill", Skill: "ghost"},
	}}

	result, err := e.Run(context.Background(), state, buildContext(core.StageExecuting, state))
	require.NoError(t, err)

	require.Len(t, result.Delta.Results, 2)
	assert.True(t, result.Delta.Results[0].Failed())
	assert.Contains(t, result.Delta.Results[0].Error, `tool "ghost" not found`)
	assert.Contains(t, result.Delta.Results[1].Error, `skill "ghost" not found`)
}

func TestExecutor_DirectAnswerStepUsesModel(t *testing.T) {
	reg := tool.NewRegistry()
	m := model.NewMockModel("mock", "mock")
	m.Enqueue("Paris is the capital of France.")

	e := NewExecutor(newTestRouter(m, "executor"), reg)
	state := core.NewAgentState("What is the capital of France?", nil, nil)
	state.Plan = &core.Plan{Steps: []core.PlanStep{{ID: 1, Action: "Answer the user's question directly"}}}

	result, err := e.Run(context.Background(), state, buildContext(core.StageExecuting, state))
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, result.Status)

	require.Len(t, result.Delta.Results, 1)
	assert.Equal(t, "Paris is the capital of France.", result.Delta.Results[0].Payload)
	require.NotNil(t, result.Delta.Output)
	assert.Equal(t, "Paris is the capital of France.", *result.Delta.Output)
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, "executor", result.Decisions[0].Agent)
}

func TestExecutor_DirectAnswerFailureBecomesFailedStep(t *testing.T) {
	reg := tool.NewRegistry()
	m := model.NewMockModel("mock", "mock")
	m.FailWith(&model.RateLimitError{Provider: "mock"})

	e := NewExecutor(newTestRouter(m, "executor"), reg)
	state := core.NewAgentState("answer me", nil, nil)
	state.Plan = &core.Plan{Steps: []core.PlanStep{{ID: 1, Action: "answer directly"}}}

	result, err := e.Run(context.Background(), state, buildContext(core.StageExecuting, state))
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, result.Status)
	assert.True(t, result.Delta.Results[0].Failed())
	assert.Nil(t, result.Delta.Output)
}

func TestExecutor_EmptyPlanIsFatal(t *testing.T) {
	reg := tool.NewRegistry()
	m := model.NewMockModel("mock", "mock")
	e := NewExecutor(newTestRouter(m, "executor"), reg)

	state := core.NewAgentState("nothing to do", nil, nil)

	result, err := e.Run(context.Background(), state, buildContext(core.StageExecuting, state))
	require.NoError(t, err)
	assert.Equal(t, core.StatusFatal, result.Status)
}

func TestExecutor_AggregatesMultipleAnswers(t *testing.T) {
	reg := tool.NewRegistry()
	reg.RegisterTool(echoTool("echo"))
	m := model.NewMockModel("mock", "mock")

	e := NewExecutor(newTestRouter(m, "executor"), reg)
	state := core.NewAgentState("two texts", []string{"echo"}, nil)
	state.Plan = &core.Plan{Steps: []core.PlanStep{
		{ID: 1, Action: "first", Tool: "echo", Args: map[string]any{"value": "part one"}},
		{ID: 2, Action: "second", Tool: "echo", Args: map[string]any{"value": "part two"}},
	}}

	result, err := e.Run(context.Background(), state, buildContext(core.StageExecuting, state))
	require.NoError(t, err)
	require.NotNil(t, result.Delta.Output)
	assert.Equal(t, "part one\n\npart two", *result.Delta.Output)
}

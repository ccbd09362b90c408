package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
)

func executedState(input string, results ...core.StepResult) *core.AgentState {
	state := core.NewAgentState(input, nil, nil)
	state.Plan = &core.Plan{Steps: []core.PlanStep{{ID: 1, Action: "answer"}}}
	state.Results = results
	return state
}

func TestValidator_DeterministicFailOnFailedStep(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	v := NewValidator(newTestRouter(m, "validator"))

	state := executedState("do it",
		core.StepResult{StepID: 1, Action: "answer", Status: core.StepFailed, Error: "backend unreachable"},
		core.StepResult{StepID: 2, Action: "follow up", Status: core.StepSucceeded, Payload: "ok"},
	)

	result, err := v.Run(context.Background(), state, buildContext(core.StageValidating, state))
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, result.Status)

	validation := result.Delta.Validation
	require.NotNil(t, validation)
	assert.Equal(t, core.VerdictFail, validation.Verdict)
	require.Len(t, validation.Diagnostics, 1)
	assert.Contains(t, validation.Diagnostics[0], "step 1")
	// The deterministic path never consults the model.
	assert.Equal(t, 0, m.CallCount())
}

func TestValidator_DeterministicFailOnEmptyResults(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	v := NewValidator(newTestRouter(m, "validator"))
	state := executedState("do it")

	result, err := v.Run(context.Background(), state, buildContext(core.StageValidating, state))
	require.NoError(t, err)
	assert.Equal(t, core.VerdictFail, result.Delta.Validation.Verdict)
	assert.Equal(t, 0, m.CallCount())
}

func TestValidator_ModelPass(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(`{"verdict":"pass","diagnostics":[]}`)
	v := NewValidator(newTestRouter(m, "validator"))

	state := executedState("capital of France?",
		core.StepResult{StepID: 1, Action: "answer", Status: core.StepSucceeded, Payload: "Paris"})

	result, err := v.Run(context.Background(), state, buildContext(core.StageValidating, state))
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, result.Status)
	assert.Equal(t, core.VerdictPass, result.Delta.Validation.Verdict)
	assert.Empty(t, result.Delta.Validation.Diagnostics)
	assert.Equal(t, 1, m.CallCount())
}

func TestValidator_ModelFailWithDiagnostics(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(`{"verdict":"fail","diagnostics":["the answer ignores the second part of the question"]}`)
	v := NewValidator(newTestRouter(m, "validator"))

	state := executedState("capital of France and of Spain?",
		core.StepResult{StepID: 1, Action: "answer", Status: core.StepSucceeded, Payload: "Paris"})

	result, err := v.Run(context.Background(), state, buildContext(core.StageValidating, state))
	require.NoError(t, err)
	assert.Equal(t, core.VerdictFail, result.Delta.Validation.Verdict)
	require.Len(t, result.Delta.Validation.Diagnostics, 1)
}

func TestValidator_FailWithoutDiagnosticsIsRetried(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(`{"verdict":"fail","diagnostics":[]}`)
	m.Enqueue(`{"verdict":"fail","diagnostics":["step 1 answered the wrong question"]}`)
	v := NewValidator(newTestRouter(m, "validator"))

	state := executedState("question",
		core.StepResult{StepID: 1, Action: "answer", Status: core.StepSucceeded, Payload: "text"})

	result, err := v.Run(context.Background(), state, buildContext(core.StageValidating, state))
	require.NoError(t, err)
	assert.Equal(t, core.VerdictFail, result.Delta.Validation.Verdict)
	assert.Equal(t, 2, m.CallCount())
}

func TestValidator_UnknownVerdictIsRetryable(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(`{"verdict":"maybe"}`)
	m.Enqueue(`{"verdict":"pass"}`)
	v := NewValidator(newTestRouter(m, "validator"))

	state := executedState("question",
		core.StepResult{StepID: 1, Action: "answer", Status: core.StepSucceeded, Payload: "text"})

	result, err := v.Run(context.Background(), state, buildContext(core.StageValidating, state))
	require.NoError(t, err)
	assert.Equal(t, core.VerdictPass, result.Delta.Validation.Verdict)
}

package core

// Status categorizes the outcome of a single agent call.
type Status string

const (
	// StatusSuccess indicates the agent produced a usable delta.
	StatusSuccess Status = "success"
	// StatusRetryable indicates a transient failure; the base agent retries
	// the call with the same context until its attempt budget is spent.
	StatusRetryable Status = "retryable_failure"
	// StatusFatal aborts the pipeline; it is surfaced to the caller and
	// never silently swallowed.
	StatusFatal Status = "fatal_failure"
)

// AgentResult is the uniform return shape of every agent call. Decisions
// list the route decisions taken while serving the call so the Coordinator
// can record them in the checkpointed workflow state.
type AgentResult struct {
	Status      Status
	Delta       StateDelta
	Diagnostics []string
	Decisions   []RouteDecision
}

// Success wraps a delta in a successful result.
func Success(delta StateDelta) AgentResult {
	return AgentResult{Status: StatusSuccess, Delta: delta}
}

// RetryableFailure builds a transient failure result.
func RetryableFailure(diagnostics ...string) AgentResult {
	return AgentResult{Status: StatusRetryable, Diagnostics: diagnostics}
}

// FatalFailure builds a pipeline-aborting failure result.
func FatalFailure(diagnostics ...string) AgentResult {
	return AgentResult{Status: StatusFatal, Diagnostics: diagnostics}
}

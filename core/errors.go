package core

import "fmt"

// FatalAgentError aborts a run. It carries the stage at which the failure
// occurred and the agent's last diagnostics so a failed run never returns a
// silent empty output.
type FatalAgentError struct {
	Agent       string
	Stage       Stage
	Diagnostics []string
	Err         error
}

func (e *FatalAgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s failed fatally at %s: %v", e.Agent, e.Stage, e.Err)
	}
	return fmt.Sprintf("agent %s failed fatally at %s", e.Agent, e.Stage)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *FatalAgentError) Unwrap() error { return e.Err }

// ModelUnavailableError is raised by the model router when every fallback
// entry for a logical model name has been exhausted. It is fatal for the
// stage that triggered it.
type ModelUnavailableError struct {
	Logical  string
	Attempts int
	LastErr  error
}

func (e *ModelUnavailableError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("model %q unavailable after %d fallback attempts: %v", e.Logical, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("model %q unavailable: no clients registered", e.Logical)
}

// Unwrap exposes the last provider error.
func (e *ModelUnavailableError) Unwrap() error { return e.LastErr }

// CapabilityNotFoundError reports a plan step referencing a tool or skill
// that the caller did not supply. Lookup is by name with this typed failure
// rather than duck-typed dispatch.
type CapabilityNotFoundError struct {
	Kind string // "tool" or "skill"
	Name string
}

func (e *CapabilityNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in capability set", e.Kind, e.Name)
}

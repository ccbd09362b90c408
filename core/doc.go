// Package core defines the shared data model of the agentpipe pipeline:
// the AgentState threaded through every stage, the typed deltas agents
// return, the workflow stage machine vocabulary, the uniform AgentResult
// shape and the error taxonomy.
//
// Ownership rules: the workflow Coordinator is the exclusive owner of an
// AgentState. Agents receive a read view and hand back a StateDelta; they
// never mutate ambient state directly. This keeps a later per-run
// parallelization of stages free of partial-write races.
package core

package workflow

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/hupe1980/agentpipe/core"
)

// machineContext carries the run through the statechart. Guards read it to
// enforce the feedback retry budget.
type machineContext struct {
	Workflow           *core.WorkflowState
	MaxFeedbackRetries int
}

// State IDs as StateID type for statekit.
const (
	stateStart         statekit.StateID = statekit.StateID(core.StageStart)
	stateOrchestrating statekit.StateID = statekit.StateID(core.StageOrchestrating)
	statePlanning      statekit.StateID = statekit.StateID(core.StagePlanning)
	stateExecuting     statekit.StateID = statekit.StateID(core.StageExecuting)
	stateValidating    statekit.StateID = statekit.StateID(core.StageValidating)
	stateDone          statekit.StateID = statekit.StateID(core.StageDone)
	stateFailed        statekit.StateID = statekit.StateID(core.StageFailed)
)

const (
	eventOrchestrate statekit.EventType = "ORCHESTRATE"
	eventPlan        statekit.EventType = "PLAN"
	eventExecute     statekit.EventType = "EXECUTE"
	eventValidate    statekit.EventType = "VALIDATE"
	eventRetry       statekit.EventType = "RETRY"
	eventDone        statekit.EventType = "DONE"
	eventFail        statekit.EventType = "FAIL"
)

// guardRetryBudget sees the retry's ordinal: the coordinator increments
// RetryCount before sending the RETRY event, so retry N carries the value N
// and the budget itself is still permitted.
func guardRetryBudget(ctx *machineContext, _ statekit.Event) bool {
	return ctx.Workflow.State.RetryCount <= ctx.MaxFeedbackRetries
}

// newPipelineMachine creates the canonical pipeline statechart. The retry
// edge VALIDATING -> PLANNING is the only loop; FAIL is reachable from every
// non-terminal state.
func newPipelineMachine() (*statekit.MachineConfig[*machineContext], error) {
	return statekit.NewMachine[*machineContext]("pipeline").
		WithInitial(stateStart).
		WithContext(&machineContext{}).
		WithGuard("retryBudget", guardRetryBudget).
		State(stateStart).
			On(eventOrchestrate).Target(stateOrchestrating).
			On(eventFail).Target(stateFailed).
			Done().
		State(stateOrchestrating).
			On(eventPlan).Target(statePlanning).
			On(eventExecute).Target(stateExecuting).
			On(eventFail).Target(stateFailed).
			Done().
		State(statePlanning).
			On(eventExecute).Target(stateExecuting).
			On(eventFail).Target(stateFailed).
			Done().
		State(stateExecuting).
			On(eventValidate).Target(stateValidating).
			On(eventFail).Target(stateFailed).
			Done().
		State(stateValidating).
			On(eventDone).Target(stateDone).
			On(eventRetry).Target(statePlanning).Guard("retryBudget").
			On(eventFail).Target(stateFailed).
			Done().
		State(stateDone).
			Final().
			Done().
		State(stateFailed).
			Final().
			Done().
		Build()
}

// legalTargets enumerates the transitions the statechart permits; it is
// consulted before Send because the interpreter treats unknown events for a
// state as a no-op rather than an error.
var legalTargets = map[core.Stage][]core.Stage{
	core.StageStart:         {core.StageOrchestrating, core.StageFailed},
	core.StageOrchestrating: {core.StagePlanning, core.StageExecuting, core.StageFailed},
	core.StagePlanning:      {core.StageExecuting, core.StageFailed},
	core.StageExecuting:     {core.StageValidating, core.StageFailed},
	core.StageValidating:    {core.StageDone, core.StagePlanning, core.StageFailed},
}

func eventForTransition(to core.Stage, retry bool) statekit.EventType {
	switch to {
	case core.StageOrchestrating:
		return eventOrchestrate
	case core.StagePlanning:
		if retry {
			return eventRetry
		}
		return eventPlan
	case core.StageExecuting:
		return eventExecute
	case core.StageValidating:
		return eventValidate
	case core.StageDone:
		return eventDone
	case core.StageFailed:
		return eventFail
	default:
		return statekit.EventType(to)
	}
}

// machine wraps the statekit interpreter with pipeline-shaped accessors.
type machine struct {
	interp *statekit.Interpreter[*machineContext]
	mctx   *machineContext
}

func newMachine(wf *core.WorkflowState, maxFeedbackRetries int) (*machine, error) {
	cfg, err := newPipelineMachine()
	if err != nil {
		return nil, fmt.Errorf("build pipeline machine: %w", err)
	}
	mctx := &machineContext{Workflow: wf, MaxFeedbackRetries: maxFeedbackRetries}
	interp := statekit.NewInterpreter(cfg)
	interp.UpdateContext(func(c **machineContext) {
		*c = mctx
	})
	interp.Start()

	m := &machine{interp: interp, mctx: mctx}
	if wf.Stage != core.StageStart {
		if err := m.restore(wf.Stage); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// restore moves the interpreter to a recorded stage, used when resuming a
// checkpointed run.
func (m *machine) restore(stage core.Stage) error {
	snapshot := statekit.Snapshot[*machineContext]{
		MachineID:    "pipeline",
		CurrentState: statekit.StateID(stage),
		Context:      m.mctx,
		CreatedAt:    time.Now(),
	}
	if err := m.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("restore pipeline machine to %s: %w", stage, err)
	}
	return nil
}

func (m *machine) stage() core.Stage {
	return core.Stage(m.interp.State().Value)
}

func (m *machine) done() bool {
	return m.interp.Done()
}

// transition validates the edge against the statechart and sends the event.
func (m *machine) transition(to core.Stage, retry bool) error {
	from := m.stage()
	if !transitionAllowed(from, to) {
		return fmt.Errorf("illegal stage transition %s -> %s", from, to)
	}
	m.interp.Send(statekit.Event{Type: eventForTransition(to, retry)})
	if got := m.stage(); got != to {
		return fmt.Errorf("stage transition %s -> %s rejected (at %s)", from, to, got)
	}
	return nil
}

func transitionAllowed(from, to core.Stage) bool {
	for _, target := range legalTargets[from] {
		if target == to {
			return true
		}
	}
	return false
}

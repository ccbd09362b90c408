package core

// Complexity tags the orchestrator's difficulty assessment of a request.
type Complexity string

const (
	// ComplexitySimple marks requests answerable without multi-step action.
	ComplexitySimple Complexity = "simple"
	// ComplexityComplex marks requests requiring sequenced actions or tools.
	ComplexityComplex Complexity = "complex"
)

// Routing selects the pipeline path chosen by the orchestrator.
type Routing string

const (
	// RoutingSkipPlanning routes directly to execution with a synthesized
	// single direct-answer step.
	RoutingSkipPlanning Routing = "skip_planning"
	// RoutingFullPipeline routes through the planner before execution.
	RoutingFullPipeline Routing = "full_pipeline"
)

// Classification is the orchestrator's committed decision for a run. It is
// set exactly once and never re-evaluated on feedback retries.
type Classification struct {
	Complexity       Complexity `json:"complexity"`
	RequiresPlanning bool       `json:"requires_planning"`
	Routing          Routing    `json:"routing"`
	Reasoning        string     `json:"reasoning,omitempty"`
}

// PlanStep is a single ordered action within a plan. Tool or Skill name the
// capability to invoke; both empty means the step is answered directly by
// the executor's model call.
type PlanStep struct {
	ID     int            `json:"id"`
	Action string         `json:"action"`
	Tool   string         `json:"tool,omitempty"`
	Skill  string         `json:"skill,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Expect string         `json:"expect,omitempty"`
}

// Plan is the ordered action sequence produced by the planner. Revision
// counts how many times the plan has been (re)produced within one run,
// starting at 0.
type Plan struct {
	Steps    []PlanStep `json:"steps"`
	Revision int        `json:"revision"`
}

// Empty reports whether the plan contains no steps.
func (p *Plan) Empty() bool { return p == nil || len(p.Steps) == 0 }

// StepStatus is the outcome category of one executed plan step.
type StepStatus string

const (
	// StepSucceeded marks a step that completed and produced a payload.
	StepSucceeded StepStatus = "success"
	// StepFailed marks a step whose tool, skill or model call failed.
	StepFailed StepStatus = "failed"
)

// StepResult records the outcome of executing a single plan step.
type StepResult struct {
	StepID  int        `json:"step_id"`
	Action  string     `json:"action"`
	Tool    string     `json:"tool,omitempty"`
	Skill   string     `json:"skill,omitempty"`
	Status  StepStatus `json:"status"`
	Payload any        `json:"payload,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Failed reports whether the step did not succeed.
func (r StepResult) Failed() bool { return r.Status != StepSucceeded }

// Verdict is the validator's pass/fail judgment on an execution pass.
type Verdict string

const (
	// VerdictPass accepts the pass and terminates the run successfully.
	VerdictPass Verdict = "pass"
	// VerdictFail rejects the pass and drives the feedback retry.
	VerdictFail Verdict = "fail"
)

// Validation is the validator's output, overwritten on each pass. On fail the
// diagnostics must be specific enough for the planner to act on.
type Validation struct {
	Verdict     Verdict  `json:"verdict"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// AgentState is the single mutable record threaded through the pipeline.
// Input and the capability sets are immutable after creation; everything else
// is written by the Coordinator applying agent deltas.
type AgentState struct {
	Input           string          `json:"input"`
	Classification  *Classification `json:"classification,omitempty"`
	Plan            *Plan           `json:"plan,omitempty"`
	Results         []StepResult    `json:"results,omitempty"`
	Validation      *Validation     `json:"validation,omitempty"`
	Output          *string         `json:"output,omitempty"`
	RetryCount      int             `json:"retry_count"`
	AvailableTools  []string        `json:"available_tools,omitempty"`
	AvailableSkills []string        `json:"available_skills,omitempty"`
	History         []string        `json:"history,omitempty"`
	Errors          []string        `json:"errors,omitempty"`
}

// NewAgentState creates the initial state for a run.
func NewAgentState(input string, tools, skills []string) *AgentState {
	return &AgentState{
		Input:           input,
		AvailableTools:  append([]string(nil), tools...),
		AvailableSkills: append([]string(nil), skills...),
	}
}

// Clone returns a deep copy safe for independent mutation. Step payloads are
// copied by reference; agents must treat payloads as immutable once recorded.
func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Classification != nil {
		c := *s.Classification
		clone.Classification = &c
	}
	if s.Plan != nil {
		p := Plan{Steps: make([]PlanStep, len(s.Plan.Steps)), Revision: s.Plan.Revision}
		copy(p.Steps, s.Plan.Steps)
		clone.Plan = &p
	}
	clone.Results = append([]StepResult(nil), s.Results...)
	if s.Validation != nil {
		v := Validation{Verdict: s.Validation.Verdict, Diagnostics: append([]string(nil), s.Validation.Diagnostics...)}
		clone.Validation = &v
	}
	if s.Output != nil {
		o := *s.Output
		clone.Output = &o
	}
	clone.AvailableTools = append([]string(nil), s.AvailableTools...)
	clone.AvailableSkills = append([]string(nil), s.AvailableSkills...)
	clone.History = append([]string(nil), s.History...)
	clone.Errors = append([]string(nil), s.Errors...)
	return &clone
}

// StateDelta is the explicit, typed change set an agent hands back to the
// Coordinator. Pointer fields replace, slice fields append. Absent fields
// leave the state untouched.
type StateDelta struct {
	Classification *Classification `json:"classification,omitempty"`
	Plan           *Plan           `json:"plan,omitempty"`
	Results        []StepResult    `json:"results,omitempty"`
	Validation     *Validation     `json:"validation,omitempty"`
	Output         *string         `json:"output,omitempty"`
	History        []string        `json:"history,omitempty"`
	Errors         []string        `json:"errors,omitempty"`
}

// Apply merges a delta into the state. Only the Coordinator calls this.
func (s *AgentState) Apply(d StateDelta) {
	if d.Classification != nil {
		s.Classification = d.Classification
	}
	if d.Plan != nil {
		s.Plan = d.Plan
	}
	s.Results = append(s.Results, d.Results...)
	if d.Validation != nil {
		s.Validation = d.Validation
	}
	if d.Output != nil {
		s.Output = d.Output
	}
	s.History = append(s.History, d.History...)
	s.Errors = append(s.Errors, d.Errors...)
}

// ClearPass resets the per-pass fields ahead of a feedback retry: executed
// results are discarded while classification, plan history and the retry
// counter survive.
func (s *AgentState) ClearPass() {
	s.Results = nil
	s.Output = nil
}

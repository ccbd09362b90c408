package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
)

// DefaultBudget is the default context size in runes.
const DefaultBudget = 8192

// Options configures a Manager.
type Options struct {
	// Budget bounds Context.Size() for non-pinned content, in runes.
	Budget int
	// Logger receives truncation diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Manager builds per-stage model contexts from the run state. Building is a
// pure function of (stage, state, budget): identical inputs produce identical
// contexts, including after truncation.
type Manager struct {
	opts Options
}

// NewManager creates a Manager.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{Budget: DefaultBudget, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	return &Manager{opts: opts}
}

// Budget returns the configured context budget.
func (m *Manager) Budget() int { return m.opts.Budget }

// Build assembles the context for a stage. The stage instructions and the
// user input are always present; accumulated run state is included newest
// last and truncated oldest first when the budget would be exceeded.
func (m *Manager) Build(stage core.Stage, state *core.AgentState) Context {
	var entries []Entry

	if inst := instructionsFor(stage); inst != "" {
		entries = append(entries, Entry{Role: "system", Content: inst + "\n\n" + commonInstructions, Pinned: true})
	}
	entries = append(entries, Entry{Role: "user", Content: state.Input, Pinned: true})

	entries = append(entries, m.stageEntries(stage, state)...)

	for _, h := range state.History {
		entries = append(entries, Entry{Role: "assistant", Content: h})
	}

	return m.truncate(stage, Context{Entries: entries})
}

func (m *Manager) stageEntries(stage core.Stage, state *core.AgentState) []Entry {
	var entries []Entry

	switch stage {
	case core.StagePlanning:
		if state.Classification != nil {
			entries = append(entries, jsonEntry("Task analysis", state.Classification))
		}
		entries = append(entries, Entry{Role: "assistant", Content: capabilityList(state)})
		if state.RetryCount > 0 {
			if state.Plan != nil {
				entries = append(entries, jsonEntry("Previous plan", state.Plan))
			}
			if state.Validation != nil && len(state.Validation.Diagnostics) > 0 {
				entries = append(entries, Entry{
					Role:    "assistant",
					Content: "Validator diagnostics from the failed pass:\n- " + strings.Join(state.Validation.Diagnostics, "\n- "),
					Pinned:  true,
				})
			}
		}

	case core.StageExecuting:
		if state.Plan != nil {
			entries = append(entries, jsonEntry("Execution plan", state.Plan))
		}
		entries = append(entries, Entry{Role: "assistant", Content: capabilityList(state)})
		for _, result := range state.Results {
			entries = append(entries, jsonEntry(fmt.Sprintf("Step %d result", result.StepID), result))
		}

	case core.StageValidating:
		if state.Plan != nil {
			entries = append(entries, jsonEntry("Execution plan", state.Plan))
		}
		for _, result := range state.Results {
			entries = append(entries, jsonEntry(fmt.Sprintf("Step %d result", result.StepID), result))
		}
	}

	return entries
}

// truncate drops the oldest non-pinned entries until the context fits the
// budget. Pinned entries are never dropped, so a context consisting solely of
// instructions and input may exceed the budget.
func (m *Manager) truncate(stage core.Stage, ctx Context) Context {
	if ctx.Size() <= m.opts.Budget {
		return ctx
	}

	dropped := 0
	for ctx.Size() > m.opts.Budget {
		idx := -1
		for i, e := range ctx.Entries {
			if !e.Pinned {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		ctx.Entries = append(ctx.Entries[:idx], ctx.Entries[idx+1:]...)
		dropped++
	}

	if dropped > 0 {
		m.opts.Logger.Debug("context truncated", "stage", string(stage), "dropped", dropped, "size", ctx.Size(), "budget", m.opts.Budget)
	}
	return ctx
}

func jsonEntry(label string, v any) Entry {
	data, err := json.Marshal(v)
	if err != nil {
		return Entry{Role: "assistant", Content: label + ": (unencodable)"}
	}
	return Entry{Role: "assistant", Content: label + ": " + string(data)}
}

func capabilityList(state *core.AgentState) string {
	return fmt.Sprintf("Available tools: %s\nAvailable skills: %s",
		nameList(state.AvailableTools), nameList(state.AvailableSkills))
}

func nameList(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

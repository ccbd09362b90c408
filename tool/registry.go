package tool

import (
	"sync"

	"github.com/hupe1980/agentpipe/core"
)

// Registry holds the capabilities available to a run in two separate
// namespaces: tools (external actions) and skills (reusable competencies).
// A tool and a skill may share a name without conflict. Lookup failures are
// typed so the executor records them instead of guessing.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	skills map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		skills: make(map[string]Tool),
	}
}

// RegisterTool adds tools to the tool namespace. Re-registering a name
// replaces the previous entry.
func (r *Registry) RegisterTool(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// RegisterSkill adds skills to the skill namespace.
func (r *Registry) RegisterSkill(skills ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range skills {
		r.skills[s.Name()] = s
	}
}

// Tool resolves a name in the tool namespace.
func (r *Registry) Tool(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, &core.CapabilityNotFoundError{Kind: "tool", Name: name}
	}
	return t, nil
}

// Skill resolves a name in the skill namespace.
func (r *Registry) Skill(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	if !ok {
		return nil, &core.CapabilityNotFoundError{Kind: "skill", Name: name}
	}
	return s, nil
}

// ToolNames returns the registered tool names in registration-independent order.
func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return names(r.tools)
}

// SkillNames returns the registered skill names.
func (r *Registry) SkillNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return names(r.skills)
}

func names(m map[string]Tool) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	return out
}

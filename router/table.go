package router

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentpipe/model"
)

// Table is a declarative routing configuration mapping logical names to
// ordered lists of named clients, typically loaded from YAML:
//
//	routes:
//	  orchestrator: [kimi, claude]
//	  planner: [claude, openai]
type Table struct {
	Routes map[string][]string `yaml:"routes"`
}

// ParseTable decodes a YAML routing table.
func ParseTable(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse route table: %w", err)
	}
	if len(table.Routes) == 0 {
		return nil, fmt.Errorf("route table has no routes")
	}
	return &table, nil
}

// Apply registers every route of the table against the router, resolving
// client names through the provided registry. An unknown client name or an
// empty fallback list is a configuration error.
func (r *Router) Apply(table *Table, clients map[string]model.Model) error {
	for logical, names := range table.Routes {
		if len(names) == 0 {
			return fmt.Errorf("route %q has no clients", logical)
		}
		list := make([]model.Model, 0, len(names))
		for _, name := range names {
			client, ok := clients[name]
			if !ok {
				return fmt.Errorf("route %q references unknown client %q", logical, name)
			}
			list = append(list, client)
		}
		r.Register(logical, list...)
	}
	return nil
}

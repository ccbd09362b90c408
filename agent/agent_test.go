package agent

import (
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/mcp"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/router"
)

// newTestRouter wires a single mock model under the given logical names.
func newTestRouter(m *model.MockModel, logicals ...string) *router.Router {
	r := router.New()
	for _, logical := range logicals {
		r.Register(logical, m)
	}
	return r
}

func buildContext(stage core.Stage, state *core.AgentState) mcp.Context {
	return mcp.NewManager().Build(stage, state)
}

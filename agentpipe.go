// Package agentpipe provides a high-level façade over the sequential
// multi-agent pipeline (orchestrator → planner → executor → validator).
// Most applications interact with this package by:
//  1. Creating a Pipeline via New() (optionally overriding config, the
//     checkpoint store or the logger)
//  2. Registering one or more model clients plus any tools and skills
//  3. Running requests synchronously (Run) or streaming stage transitions
//     (RunStream)
//
// The façade delegates orchestration to workflow.Coordinator while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a checkpoint directory
// and tuned model routes.
package agentpipe

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/checkpoint"
	"github.com/hupe1980/agentpipe/checkpoint/badgerstore"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/mcp"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/router"
	"github.com/hupe1980/agentpipe/tool"
	"github.com/hupe1980/agentpipe/workflow"
)

// stageLogicals are the logical model names the four pipeline agents route
// through. Each can be re-pointed individually via ApplyRouteTable.
var stageLogicals = []string{"orchestrator", "planner", "executor", "validator"}

// Options configures the Pipeline instance.
type Options struct {
	// Config holds the runtime settings; defaults to config.Default().
	Config *config.Config
	// Store overrides checkpoint persistence. When nil, CheckpointDir in
	// the config selects a BadgerDB store, otherwise checkpoints stay in
	// memory.
	Store checkpoint.Store
	// Logger receives pipeline diagnostics. When nil, a structured logger
	// is built from the config's log level and format.
	Logger logging.Logger
}

// Pipeline is the high-level façade aggregating the router, the capability
// registry and the workflow coordinator.
type Pipeline struct {
	opts        Options
	router      *router.Router
	registry    *tool.Registry
	coordinator *workflow.Coordinator
	closeStore  func() error

	mu      sync.Mutex
	clients map[string]model.Model
}

// New creates a Pipeline with optional overrides. Model clients must be
// registered before the first run.
func New(optFns ...func(o *Options)) (*Pipeline, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewSlogLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, false)
	}

	var closeStore func() error
	if opts.Store == nil {
		if cfg.CheckpointDir != "" {
			store, err := badgerstore.New(func(o *badgerstore.Options) {
				o.Dir = cfg.CheckpointDir
			})
			if err != nil {
				return nil, err
			}
			opts.Store = store
			closeStore = store.Close
		} else {
			opts.Store = checkpoint.NewInMemoryStore()
		}
	}

	r := router.New(func(o *router.Options) {
		o.Logger = opts.Logger
	})
	registry := tool.NewRegistry()

	agentOpts := func(o *agent.Options) {
		o.Timeout = cfg.AgentTimeout
		o.MaxRetries = cfg.MaxAgentRetries
		o.Backoff = cfg.RetryBackoff
		o.Temperature = cfg.Temperature
		o.MaxTokens = cfg.MaxTokens
		o.Logger = opts.Logger
	}

	coordinator := workflow.NewCoordinator(
		agent.NewOrchestrator(r, agentOpts),
		agent.NewPlanner(r, agentOpts),
		agent.NewExecutor(r, registry, agentOpts),
		agent.NewValidator(r, agentOpts),
		func(o *workflow.Options) {
			o.MaxFeedbackRetries = cfg.MaxFeedbackRetries
			o.Store = opts.Store
			o.Logger = opts.Logger
			o.ContextManager = mcp.NewManager(func(mo *mcp.Options) {
				mo.Budget = cfg.MCPContextSize
				mo.Logger = opts.Logger
			})
		},
	)

	return &Pipeline{
		opts:        opts,
		router:      r,
		registry:    registry,
		coordinator: coordinator,
		closeStore:  closeStore,
		clients:     make(map[string]model.Model),
	}, nil
}

// RegisterModel adds a named model client and rebuilds the default stage
// routes from the config's default and fallback model names. Clients whose
// names appear in neither list are still addressable via ApplyRouteTable.
func (p *Pipeline) RegisterModel(name string, client model.Model) {
	p.mu.Lock()
	p.clients[name] = client
	list := p.defaultRouteLocked()
	p.mu.Unlock()

	if len(list) == 0 {
		return
	}
	for _, logical := range stageLogicals {
		p.router.Register(logical, list...)
	}
}

// defaultRouteLocked resolves the configured default and fallback model
// names against the registered clients, keeping the configured order.
func (p *Pipeline) defaultRouteLocked() []model.Model {
	names := append([]string{p.opts.Config.DefaultModel}, p.opts.Config.FallbackModels...)
	list := make([]model.Model, 0, len(names))
	for _, name := range names {
		if client, ok := p.clients[name]; ok {
			list = append(list, client)
		}
	}
	return list
}

// ApplyRouteTable overrides stage routes from a declarative YAML table, for
// example routing the planner to a stronger model than the executor. Client
// names resolve against previously registered models.
func (p *Pipeline) ApplyRouteTable(data []byte) error {
	table, err := router.ParseTable(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	clients := make(map[string]model.Model, len(p.clients))
	for name, client := range p.clients {
		clients[name] = client
	}
	p.mu.Unlock()
	return p.router.Apply(table, clients)
}

// RegisterTool adds tools available to the executor.
func (p *Pipeline) RegisterTool(tools ...tool.Tool) { p.registry.RegisterTool(tools...) }

// RegisterSkill adds skills available to the executor.
func (p *Pipeline) RegisterSkill(skills ...tool.Tool) { p.registry.RegisterSkill(skills...) }

// Run executes a request through the full pipeline and blocks until a
// terminal stage is reached.
func (p *Pipeline) Run(ctx context.Context, input string) (*workflow.RunResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	return p.coordinator.Run(ctx, input, p.registry.ToolNames(), p.registry.SkillNames())
}

// RunStream executes a request asynchronously, emitting one StageEvent per
// pipeline transition. The event channel closes at the terminal stage.
func (p *Pipeline) RunStream(ctx context.Context, input string) (string, <-chan core.StageEvent, <-chan error, error) {
	if err := p.ready(); err != nil {
		return "", nil, nil, err
	}
	runID, events, errs := p.coordinator.RunStream(ctx, input, p.registry.ToolNames(), p.registry.SkillNames())
	return runID, events, errs, nil
}

// Resume continues an interrupted run from its latest checkpoint.
func (p *Pipeline) Resume(ctx context.Context, runID string) (*workflow.RunResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	return p.coordinator.Resume(ctx, runID)
}

// Close releases the checkpoint store when the pipeline owns it.
func (p *Pipeline) Close() error {
	if p.closeStore != nil {
		return p.closeStore()
	}
	return nil
}

func (p *Pipeline) ready() error {
	for _, logical := range stageLogicals {
		if _, err := p.router.Resolve(logical); err != nil {
			return fmt.Errorf("pipeline not ready: %w", err)
		}
	}
	return nil
}

// Diagram renders the pipeline topology for logs and docs.
func Diagram() string {
	return `
 ┌──────────────┐    ┌─────────┐    ┌──────────┐    ┌───────────┐
 │ Orchestrator │───▶│ Planner │───▶│ Executor │───▶│ Validator │
 └──────────────┘    └─────────┘    └──────────┘    └───────────┘
        │                 ▲                              │
        │ skip_planning   │ replan (fail + diagnostics)  │
        └────────────▶────┴──────────────◀───────────────┘
`
}

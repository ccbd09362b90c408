// Package router maps logical model names used by agents (for example
// "orchestrator" or "planner") to ordered fallback lists of concrete model
// clients. An invocation walks the list until a client answers; which entry
// served the call is reported as a Decision so runs stay attributable.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/model"
)

// Decision records the outcome of a routed invocation: the logical name, the
// entry that served the call and how many entries were attempted.
type Decision struct {
	Logical  string    `json:"logical"`
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Index    int       `json:"index"`
	Attempts int       `json:"attempts"`
	At       time.Time `json:"at"`
}

// Observer receives a Decision after every successful routed invocation.
type Observer func(Decision)

// Options configures a Router.
type Options struct {
	// Observer is notified of every routing decision. Optional.
	Observer Observer
	// Logger receives routing diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Router resolves logical model names to clients and performs fallback
// invocation. Registration is expected at setup time; invocation is
// read-mostly, so a RWMutex guards the route map.
type Router struct {
	mu     sync.RWMutex
	routes map[string][]model.Model
	opts   Options
}

// New creates an empty Router.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{routes: make(map[string][]model.Model), opts: opts}
}

// Register binds a logical name to an ordered fallback list. Registering the
// same name again replaces the previous list.
func (r *Router) Register(logical string, clients ...model.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[logical] = append([]model.Model(nil), clients...)
}

// Resolve returns the primary client for a logical name, or
// ModelUnavailableError when the name is unknown or has no entries.
func (r *Router) Resolve(logical string) (model.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := r.routes[logical]
	if len(clients) == 0 {
		return nil, &core.ModelUnavailableError{Logical: logical}
	}
	return clients[0], nil
}

// Logicals returns the registered logical names.
func (r *Router) Logicals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	return names
}

// Invoke completes the request against the fallback list for logical. Each
// entry is tried at most once per invocation; a transient failure (timeout,
// rate limit, malformed response, 5xx) moves on to the next entry, while a
// non-transient failure such as bad credentials surfaces immediately since
// it would burn the whole list for nothing. On success the serving entry is
// reported via the Decision return value and the registered observer. When
// the whole list fails the error is ModelUnavailableError carrying the last
// underlying failure.
func (r *Router) Invoke(ctx context.Context, logical string, req model.Request) (*model.Response, Decision, error) {
	r.mu.RLock()
	clients := r.routes[logical]
	r.mu.RUnlock()

	if len(clients) == 0 {
		return nil, Decision{}, &core.ModelUnavailableError{Logical: logical}
	}

	var lastErr error
	for i, client := range clients {
		if err := ctx.Err(); err != nil {
			return nil, Decision{}, err
		}

		info := client.Info()
		resp, err := client.Complete(ctx, req)
		if err != nil {
			if !model.IsTransient(err) {
				r.opts.Logger.Warn("model entry failed hard", "logical", logical, "model", info.Name, "index", i, "error", err)
				return nil, Decision{}, err
			}
			lastErr = err
			r.opts.Logger.Debug("model entry failed, falling back", "logical", logical, "model", info.Name, "index", i, "error", err)
			continue
		}

		decision := Decision{
			Logical:  logical,
			Provider: info.Provider,
			Model:    info.Name,
			Index:    i,
			Attempts: i + 1,
			At:       time.Now().UTC(),
		}
		if r.opts.Observer != nil {
			r.opts.Observer(decision)
		}
		return resp, decision, nil
	}

	return nil, Decision{}, &core.ModelUnavailableError{Logical: logical, Attempts: len(clients), LastErr: lastErr}
}

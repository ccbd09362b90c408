package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/internal/jsonx"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/mcp"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/router"
)

// Options configures the shared behavior embedded in every pipeline agent.
type Options struct {
	// Logical is the logical model name resolved through the router.
	// Defaults to the agent's name.
	Logical string
	// Timeout bounds a single model call attempt. On expiry the attempt is
	// cancelled and counted against the retry budget; it never runs on in
	// the background.
	Timeout time.Duration
	// MaxRetries is the total attempt budget for retryable failures
	// (attempt timeouts, malformed payloads).
	MaxRetries int
	// Backoff is the initial delay between attempts; zero retries
	// immediately.
	Backoff time.Duration
	// Temperature and MaxTokens parameterize the model calls.
	Temperature float64
	MaxTokens   int64
	// Logger receives agent diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// BaseAgent bundles model routing, per-attempt timeouts and retry handling.
// Embed it in concrete agent implementations and supply a Run method; the
// embedding agent contributes only its payload decoding.
//
// Failure handling follows a fixed classification: an attempt timeout or a
// malformed JSON payload is retryable and consumes one attempt; an exhausted
// model router (every fallback entry failed) is fatal immediately; a spent
// retry budget converts the last retryable failure into a fatal one.
type BaseAgent struct {
	name    string
	stage   core.Stage
	router  *router.Router
	retrier retry.Retry[core.AgentResult]
	opts    Options
}

// NewBaseAgent constructs the shared agent core.
func NewBaseAgent(name string, stage core.Stage, r *router.Router, optFns ...func(o *Options)) BaseAgent {
	opts := Options{
		Logical:     name,
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		Temperature: 0.7,
		MaxTokens:   4000,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	return BaseAgent{
		name:   name,
		stage:  stage,
		router: r,
		retrier: retry.New[core.AgentResult](retry.Config{
			MaxAttempts:   opts.MaxRetries,
			InitialDelay:  opts.Backoff,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
		opts: opts,
	}
}

// Name returns the agent's identifier.
func (b *BaseAgent) Name() string { return b.name }

// Stage returns the pipeline stage this agent serves.
func (b *BaseAgent) Stage() core.Stage { return b.stage }

// Logger returns the configured logger.
func (b *BaseAgent) Logger() logging.Logger { return b.opts.Logger }

// complete runs the retrying model call loop: invoke the router under the
// per-attempt timeout, decode the payload, retry on retryable failures.
// decode turns raw model text into the agent's result; returning a
// *jsonx.MalformedError marks the attempt retryable.
func (b *BaseAgent) complete(ctx context.Context, mcpCtx mcp.Context, decode func(text string) (core.AgentResult, error)) (core.AgentResult, error) {
	result, err := b.retrier.Do(ctx, func(ctx context.Context) (core.AgentResult, error) {
		return b.attempt(ctx, mcpCtx, decode)
	})
	if err != nil {
		if ctx.Err() != nil {
			return core.AgentResult{}, ctx.Err()
		}
		b.opts.Logger.Error("agent retry budget exhausted", "agent", b.name, "attempts", b.opts.MaxRetries, "error", err)
		return core.FatalFailure(fmt.Sprintf("%s: retry budget exhausted after %d attempts: %v", b.name, b.opts.MaxRetries, err)), nil
	}
	return result, nil
}

func (b *BaseAgent) attempt(ctx context.Context, mcpCtx mcp.Context, decode func(text string) (core.AgentResult, error)) (core.AgentResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, decision, err := b.router.Invoke(attemptCtx, b.opts.Logical, b.request(mcpCtx))
	if err != nil {
		b.logModelCall(nil, start, err)

		// The attempt deadline expired while the caller is still alive:
		// retryable, the next attempt gets a fresh deadline.
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return core.AgentResult{}, errors.Join(model.ErrTimeout, err)
		}
		if ctx.Err() != nil {
			return core.AgentResult{}, ctx.Err()
		}

		// The router either exhausted its fallback list or stopped on a
		// non-transient provider failure; another attempt would repeat
		// the same outcome.
		return core.FatalFailure(err.Error()), nil
	}
	b.logModelCall(resp, start, nil)

	result, derr := decode(resp.Text)
	if derr != nil {
		var malformed *jsonx.MalformedError
		if errors.As(derr, &malformed) {
			b.opts.Logger.Warn("agent payload malformed, retrying", "agent", b.name, "error", derr)
			return core.AgentResult{}, derr
		}
		return core.FatalFailure(derr.Error()), nil
	}

	result.Decisions = append(result.Decisions, b.routeDecision(decision))
	return result, nil
}

// invokeOnce performs a single routed model call under the per-attempt
// timeout without retry or decoding. The executor uses it for plan steps,
// where a failure becomes a failed step result instead of an agent failure.
func (b *BaseAgent) invokeOnce(ctx context.Context, instructions string, messages []model.Message) (string, core.RouteDecision, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	req := model.Request{
		Instructions: instructions,
		Messages:     messages,
		Temperature:  b.opts.Temperature,
		MaxTokens:    b.opts.MaxTokens,
	}
	start := time.Now()
	resp, decision, err := b.router.Invoke(attemptCtx, b.opts.Logical, req)
	if err != nil {
		b.logModelCall(nil, start, err)
		return "", core.RouteDecision{}, err
	}
	b.logModelCall(resp, start, nil)
	return resp.Text, b.routeDecision(decision), nil
}

func (b *BaseAgent) request(mcpCtx mcp.Context) model.Request {
	var messages []model.Message
	for _, entry := range mcpCtx.Entries {
		if entry.Role == "system" {
			continue
		}
		messages = append(messages, model.Message{Role: entry.Role, Content: entry.Content})
	}
	return model.Request{
		Instructions: mcpCtx.Instructions(),
		Messages:     messages,
		Temperature:  b.opts.Temperature,
		MaxTokens:    b.opts.MaxTokens,
	}
}

func (b *BaseAgent) routeDecision(d router.Decision) core.RouteDecision {
	return core.RouteDecision{
		Agent:    b.name,
		Logical:  d.Logical,
		Provider: d.Provider,
		Model:    d.Model,
		Index:    d.Index,
		At:       d.At,
	}
}

func (b *BaseAgent) logModelCall(resp *model.Response, start time.Time, err error) {
	dur := time.Since(start)
	if err != nil {
		b.opts.Logger.Debug("model call failed", "agent", b.name, "logical", b.opts.Logical, "duration", dur, "error", err)
		return
	}
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	b.opts.Logger.Debug("model call completed", "agent", b.name, "logical", b.opts.Logical, "duration", dur, "tokens", tokens)
}

// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API. It adapts agentpipe's normalized Request/Response
// structures into the SDK's message format and classifies provider failures
// into the shared model error taxonomy.
package openai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentpipe/model"
)

// Options configure the OpenAI model adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model using a non-streaming chat completion.
func (m *Model) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(temperature(req, m.opts)),
		MaxCompletionTokens: openai.Int(maxTokens(req, m.opts)),
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &model.MalformedResponseError{Provider: "openai", Reason: "response contained no choices"}
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return nil, &model.MalformedResponseError{Provider: "openai", Reason: "choice contained no message content"}
	}

	return &model.Response{
		Text: text,
		Raw:  resp,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}

// buildMessages converts normalized messages into OpenAI chat messages; the
// request instructions become the leading system message.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

func temperature(req model.Request, opts Options) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return opts.Temperature
}

func maxTokens(req model.Request, opts Options) int64 {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return opts.MaxCompletionTokens
}

// classify maps SDK errors onto the shared taxonomy so the router and base
// agent can make fallback / retry decisions without provider knowledge.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(model.ErrTimeout, err)
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusTooManyRequests {
			return &model.RateLimitError{Provider: "openai", Err: err}
		}
		return &model.ProviderError{Provider: "openai", StatusCode: apierr.StatusCode, Err: err}
	}
	return err
}

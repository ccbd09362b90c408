// Package anthropic provides a model.Model wrapper for the Anthropic Claude
// Messages API with failure classification into the shared model error
// taxonomy.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentpipe/model"
)

// Options configures the Anthropic model adapter (model id, temperature,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model using a non-streaming message call.
func (m *Model) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req),
		MaxTokens:   maxTokens(req, m.opts),
		Temperature: anthropic.Float(temperature(req, m.opts)),
	}
	if system := systemBlocks(req); len(system) > 0 {
		params.System = system
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return nil, &model.MalformedResponseError{Provider: "anthropic", Reason: "response contained no text blocks"}
	}

	return &model.Response{
		Text: text.String(),
		Raw:  resp,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}

// buildMessages converts normalized messages to the Anthropic message format.
// System entries are handled separately via the System parameter.
func buildMessages(req model.Request) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, msg := range req.Messages {
		if msg.Role == "system" || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return messages
}

// systemBlocks collects the instructions plus any system-role messages.
func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, msg := range req.Messages {
		if msg.Role == "system" && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
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
	return opts.MaxTokens
}

// classify maps SDK errors onto the shared taxonomy.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(model.ErrTimeout, err)
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusTooManyRequests {
			return &model.RateLimitError{Provider: "anthropic", Err: err}
		}
		return &model.ProviderError{Provider: "anthropic", StatusCode: apierr.StatusCode, Err: err}
	}
	return err
}

// Package config provides configuration loading for agentpipe. Values come
// from an optional YAML file overridden by AGENTPIPE_* environment
// variables, with hardcoded defaults below both.
package config

import (
	"fmt"
	"time"
)

// Config holds the runtime settings of a pipeline.
type Config struct {
	// DefaultModel is the primary model name agents route to.
	DefaultModel string `koanf:"default_model"`
	// FallbackModels are tried in order when the default model fails.
	FallbackModels []string `koanf:"fallback_models"`
	// Temperature is the default sampling temperature for model calls.
	Temperature float64 `koanf:"temperature"`
	// MaxTokens caps completion length for model calls.
	MaxTokens int64 `koanf:"max_tokens"`
	// AgentTimeout bounds a single model call attempt within an agent.
	AgentTimeout time.Duration `koanf:"agent_timeout"`
	// MaxAgentRetries bounds retryable failures within one agent call.
	MaxAgentRetries int `koanf:"max_agent_retries"`
	// MaxFeedbackRetries bounds validator-driven replanning per run.
	MaxFeedbackRetries int `koanf:"max_feedback_retries"`
	// MCPContextSize bounds the assembled model context, in runes.
	MCPContextSize int `koanf:"mcp_context_size"`
	// RetryBackoff is the delay between agent retry attempts.
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	// CheckpointDir is the on-disk checkpoint location; empty keeps
	// checkpoints in memory.
	CheckpointDir string `koanf:"checkpoint_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or text.
	LogFormat string `koanf:"log_format"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		DefaultModel:       "kimi",
		Temperature:        0.7,
		MaxTokens:          4000,
		AgentTimeout:       60 * time.Second,
		MaxAgentRetries:    3,
		MaxFeedbackRetries: 3,
		MCPContextSize:     8192,
		RetryBackoff:       0,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Validate checks value ranges. It is called by Load; construct-by-hand
// callers should invoke it themselves.
func (c *Config) Validate() error {
	if c.DefaultModel == "" {
		return fmt.Errorf("default_model must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.AgentTimeout <= 0 {
		return fmt.Errorf("agent_timeout must be positive, got %v", c.AgentTimeout)
	}
	if c.MaxAgentRetries < 1 {
		return fmt.Errorf("max_agent_retries must be at least 1, got %d", c.MaxAgentRetries)
	}
	if c.MaxFeedbackRetries < 0 {
		return fmt.Errorf("max_feedback_retries must not be negative, got %d", c.MaxFeedbackRetries)
	}
	if c.MCPContextSize < 256 {
		return fmt.Errorf("mcp_context_size must be at least 256, got %d", c.MCPContextSize)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must not be negative, got %v", c.RetryBackoff)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

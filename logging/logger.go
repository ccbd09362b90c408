package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug", "DEBUG":
		return LogLevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return LogLevelWarn
	case "error", "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface for agentpipe.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// PipelineLogger wraps slog.Logger adding run/stage context cloning helpers
// and pipeline convenience methods. It is cheap to copy via With* methods.
type PipelineLogger struct {
	logger *slog.Logger
	level  LogLevel
	attrs  map[string]any
	runID  string
	stage  string
}

// LoggerConfig configures construction of a PipelineLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	RunID     string
	Stage     string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// NewLogger builds a PipelineLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *PipelineLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &PipelineLogger{logger: slog.New(handler), level: cfg.Level, attrs: map[string]any{}, runID: cfg.RunID, stage: cfg.Stage}
}

// NewSlogLogger creates a new PipelineLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *PipelineLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *PipelineLogger) clone() *PipelineLogger {
	nl := *l
	nl.attrs = make(map[string]any, len(l.attrs))
	for k, v := range l.attrs {
		nl.attrs[k] = v
	}
	return &nl
}

// WithRun attaches the run identifier to every subsequent log entry.
func (l *PipelineLogger) WithRun(runID string) *PipelineLogger {
	nl := l.clone()
	nl.runID = runID
	return nl
}

// WithStage sets the pipeline stage attribute.
func (l *PipelineLogger) WithStage(stage string) *PipelineLogger {
	nl := l.clone()
	nl.stage = stage
	return nl
}

// WithAttr adds a key/value attribute attached to every log entry.
func (l *PipelineLogger) WithAttr(key string, value any) *PipelineLogger {
	nl := l.clone()
	nl.attrs[key] = value
	return nl
}

func (l *PipelineLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.attrs)+2)
	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}
	if l.stage != "" {
		attrs = append(attrs, slog.String("stage", l.stage))
	}
	for k, v := range l.attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *PipelineLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := l.buildAttrs()
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Debug logs at debug level.
func (l *PipelineLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *PipelineLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *PipelineLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *PipelineLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogStageTransition records a workflow transition between pipeline stages.
func (l *PipelineLogger) LogStageTransition(from, to string, retryCount int) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("from", from), slog.String("to", to), slog.Int("retry_count", retryCount))
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "Stage transition", attrs...)
}

// LogModelCall records model call latency, token usage and success.
func (l *PipelineLogger) LogModelCall(model string, tokens int, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("model", model), slog.Int("token_count", tokens), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Model call completed"
	if !success {
		level = slog.LevelError
		msg = "Model call failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogRouteDecision records which fallback entry the model router used.
func (l *PipelineLogger) LogRouteDecision(logical, provider string, index int) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("logical", logical), slog.String("provider", provider), slog.Int("fallback_index", index))
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "Route decision", attrs...)
}

// LogToolCall records execution details for a tool or skill invocation.
func (l *PipelineLogger) LogToolCall(name string, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("tool_name", name), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Tool execution completed"
	if !success {
		level = slog.LevelError
		msg = "Tool execution failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

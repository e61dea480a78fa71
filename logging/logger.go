// Package logging provides structured logging for the offline queue using
// Go's log/slog package.
package logging

import (
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/c0deZ3R0/go-offline-kit/errors"
)

// Logger wraps slog.Logger with queue-specific convenience methods
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level     string `json:"level" yaml:"level"`           // debug, info, warn, error
	Format    string `json:"format" yaml:"format"`         // text, json
	AddSource bool   `json:"add_source" yaml:"add_source"` // whether to add source code information
}

// DefaultConfig is the configuration used when none is provided.
var DefaultConfig = Config{
	Level:  "info",
	Format: "json",
}

// Component identifies the queue component emitting a record.
type Component string

func (c Component) LogValue() slog.Value {
	return slog.StringValue(string(c))
}

// QueueErrorValuer provides structured logging for QueueError
type QueueErrorValuer struct {
	*errors.QueueError
}

func (e QueueErrorValuer) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("operation", string(e.Op)),
		slog.String("component", e.Component),
		slog.String("code", string(e.Code)),
		slog.Bool("retryable", e.Retryable),
		slog.String("error", e.Err.Error()),
	}

	if e.Metadata != nil {
		metadataAttrs := make([]slog.Attr, 0, len(e.Metadata))
		for k, v := range e.Metadata {
			metadataAttrs = append(metadataAttrs, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Any("metadata", slog.GroupValue(metadataAttrs...)))
	}

	return slog.GroupValue(attrs...)
}

// NewLogger creates a new logger with the provided configuration
func NewLogger(config Config) *Logger {
	var level slog.Level
	switch config.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards all records. Used as the default when
// a component is constructed without an explicit logger.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))}
}

// WithComponent creates a child logger with component context
func (l *Logger) WithComponent(component Component) *Logger {
	return &Logger{Logger: l.With(slog.Any("component", component))}
}

// LogError logs an error with structured attributes. QueueError values get
// their full structured representation.
func (l *Logger) LogError(err error, msg string, attrs ...slog.Attr) {
	allAttrs := make([]any, 0, len(attrs)+1)

	if qe, ok := err.(*errors.QueueError); ok {
		allAttrs = append(allAttrs, slog.Any("queue_error", QueueErrorValuer{QueueError: qe}))
	} else {
		allAttrs = append(allAttrs, slog.String("error", err.Error()))
	}

	for _, attr := range attrs {
		allAttrs = append(allAttrs, attr)
	}

	l.Error(msg, allAttrs...)
}

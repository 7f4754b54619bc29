// Package logging provides structured, leveled logging for the pipeline
// stages (vad, chunker, transcriber, merger, pipeline) and the CLI/HTTP
// surfaces wrapping them. It is a thin, pipeline-shaped wrapper around
// the standard library's structured logging handler rather than a
// hand-rolled formatter: text/JSON rendering, field merging, and level
// filtering are all delegated to log/slog, which already solves them
// correctly for concurrent use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Level represents the severity of a log message. It mirrors slog's own
// level scale (steps of 4) so it can be handed straight to a
// slog.HandlerOptions without a lossy conversion, plus one extra rung
// for Fatal, which slog has no native concept of.
type Level int

const (
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
	LevelFatal Level = Level(slog.LevelError + 4)
)

// ParseLevel converts a string to a Level, defaulting to Info on
// anything unrecognized (spec section 6's LOG_LEVEL-style knobs are
// lowercase by convention but arrive over env/YAML, so both cases are
// accepted).
func ParseLevel(level string) Level {
	switch level {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO", "":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "fatal", "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Format selects which slog.Handler backs a Logger.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(format string) Format {
	switch format {
	case "json", "JSON":
		return FormatJSON
	default:
		return FormatText
	}
}

// Config configures a root Logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger is the root structured logger. Pipeline stages obtain a
// *ContextLogger scoped to their own name via With, which bakes a
// "stage" attribute into every subsequent record.
type Logger struct {
	sl *slog.Logger
}

// New creates a root logger writing to stdout in text format at the
// given level.
func New(level Level) *Logger {
	return NewWithConfig(Config{Level: level, Format: FormatText, Output: os.Stdout})
}

// NewWithConfig creates a root logger with full control over level,
// format, and destination.
func NewWithConfig(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slog.Level(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return &Logger{sl: slog.New(handler)}
}

// WithFields returns a derived root logger carrying additional
// key/value attributes on every subsequent entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{sl: l.sl.With(toArgs(fields)...)}
}

// With returns a ContextLogger scoped to the named pipeline stage (e.g.
// "vad", "chunker", "transcriber", "merger", "pipeline").
func (l *Logger) With(stage string) *ContextLogger {
	return &ContextLogger{sl: l.sl.With("stage", stage)}
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sl.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sl.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sl.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sl.Debug(fmt.Sprintf(format, args...))
}

// Fatal logs at the Fatal rung (above Error on slog's scale, so it is
// never filtered out by a configured level) and terminates the process,
// matching the teacher corpus's convention that Fatal always exits.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.sl.Log(context.Background(), slog.Level(LevelFatal), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// ContextLogger wraps an slog.Logger already carrying a fixed "stage"
// attribute, so call sites never repeat it.
type ContextLogger struct {
	sl *slog.Logger
}

// WithFields returns a derived ContextLogger carrying additional
// key/value attributes, in addition to its stage.
func (c *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	return &ContextLogger{sl: c.sl.With(toArgs(fields)...)}
}

func (c *ContextLogger) Info(format string, args ...interface{}) {
	c.sl.Info(fmt.Sprintf(format, args...))
}

func (c *ContextLogger) InfoWithFields(message string, fields map[string]interface{}) {
	c.sl.Info(message, toArgs(fields)...)
}

func (c *ContextLogger) Warn(format string, args ...interface{}) {
	c.sl.Warn(fmt.Sprintf(format, args...))
}

func (c *ContextLogger) WarnWithFields(message string, fields map[string]interface{}) {
	c.sl.Warn(message, toArgs(fields)...)
}

func (c *ContextLogger) Error(format string, args ...interface{}) {
	c.sl.Error(fmt.Sprintf(format, args...))
}

func (c *ContextLogger) ErrorWithFields(message string, fields map[string]interface{}) {
	c.sl.Error(message, toArgs(fields)...)
}

func (c *ContextLogger) Debug(format string, args ...interface{}) {
	c.sl.Debug(fmt.Sprintf(format, args...))
}

func (c *ContextLogger) DebugWithFields(message string, fields map[string]interface{}) {
	c.sl.Debug(message, toArgs(fields)...)
}

// toArgs flattens a fields map into slog's alternating key/value
// argument list.
func toArgs(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Config struct {
	Level  Level
	Pretty bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig logs warnings and errors to stderr in console format.
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Pretty: true,
		Output: os.Stderr,
	}
}

// LevelFromFlags maps the CLI verbosity flags onto a level. An explicit
// level wins over the verbosity switches.
func LevelFromFlags(explicit string, verbose, trace bool) Level {
	switch {
	case strings.TrimSpace(explicit) != "":
		return Level(strings.ToLower(strings.TrimSpace(explicit)))
	case trace:
		return LevelTrace
	case verbose:
		return LevelDebug
	default:
		return LevelWarn
	}
}

// Setup installs the global logger and level and returns the logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel falls back to warn for unknown names.
func ParseLevel(level Level) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level guidelines:
//
// Trace: per-poll ticks, session acquire and release
// Debug: session creation, per-item progress, fast-path skips
// Info: batch start and end, run summary, written documents
// Warn: retries, session create or close failures, early stops
// Error: items that exhausted their retries
//
// Context fields: component, backend, batch, row, attempt, session_id, url, duration

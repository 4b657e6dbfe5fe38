// Package app provides the main application structure and coordination.
//
// The logger implementation lives in internal/logging so that component
// packages can depend on it without importing app (which imports them);
// the aliases below preserve the app-level names.
package app

import "modeswitch/internal/logging"

// LogLevel represents the severity level of a log message.
type LogLevel = logging.LogLevel

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug = logging.LogLevelDebug
	// LogLevelInfo is for general informational messages.
	LogLevelInfo = logging.LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn = logging.LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError = logging.LogLevelError
)

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel { return logging.ParseLogLevel(s) }

// Logger provides structured logging for the application.
// There is no process-wide logger instance: components receive a *Logger
// explicitly and plugins get it through their injected API modules.
type Logger = logging.Logger

// LoggerConfig configures the logger.
type LoggerConfig = logging.LoggerConfig

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig { return logging.DefaultLoggerConfig() }

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger { return logging.NewLogger(cfg) }

// NullLogger is a logger that discards all output.
var NullLogger = logging.NullLogger

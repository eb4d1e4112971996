package cli

import "github.com/rs/zerolog"

// Logger writes human-facing status messages through zerolog.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger wraps zl.
func NewLogger(zl zerolog.Logger) Logger {
	return Logger{zl: zl}
}

// Info prints an informational message.
func (l Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Warn prints a warning message.
func (l Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

// Error prints an error message.
func (l Logger) Error(msg string) {
	l.zl.Error().Msg(msg)
}

// Success prints a success message.
func (l Logger) Success(msg string) {
	l.zl.Info().Str("status", "ok").Msg(msg)
}

// Failure prints a failed-operation message.
func (l Logger) Failure(msg string) {
	l.zl.Warn().Str("status", "fail").Msg(msg)
}

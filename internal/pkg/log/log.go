// Package log provides a Logger facade backed by Zap.
//
// All methods accept a context, so attributes can be attached to messages
// in the future without changing call sites.
package log

import (
	"context"
	"io"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

type Logger interface {
	// Debug logs a message in the debug level.
	Debug(ctx context.Context, message string)
	// Info logs a message in the info level.
	Info(ctx context.Context, message string)
	// Warn logs a message in the warning level.
	Warn(ctx context.Context, message string)
	// Error logs a message in the error level.
	Error(ctx context.Context, message string)

	// Debugf logs a formatted message in the debug level.
	Debugf(ctx context.Context, template string, args ...any)
	// Infof logs a formatted message in the info level.
	Infof(ctx context.Context, template string, args ...any)
	// Warnf logs a formatted message in the warning level.
	Warnf(ctx context.Context, template string, args ...any)
	// Errorf logs a formatted message in the error level.
	Errorf(ctx context.Context, template string, args ...any)

	// With returns a logger with the key=value attribute attached to all messages.
	With(key string, value any) Logger
	// WithComponent returns a logger with the component name attached to all messages.
	// Nested calls compose the names with a dot.
	WithComponent(component string) Logger

	Sync() error
}

// DebugLogger captures messages in memory, it is intended for tests.
type DebugLogger interface {
	Logger
	ConnectTo(writer io.Writer)
	Truncate()
	AllMessages() string
	CompareJSONMessages(expected string) error
	AssertJSONMessages(t assert.TestingT, expected string, msgAndArgs ...any) bool
}

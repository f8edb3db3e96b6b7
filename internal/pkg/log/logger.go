package log

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger is the default implementation of the Logger interface.
// It wraps a zap core, attributes are mapped to zap fields.
type zapLogger struct {
	core      zapcore.Core
	fields    []zap.Field
	component string
}

func loggerFromCore(core zapcore.Core) *zapLogger {
	return &zapLogger{core: core}
}

func (l *zapLogger) Debug(ctx context.Context, message string) {
	l.log(DebugLevel, message)
}

func (l *zapLogger) Info(ctx context.Context, message string) {
	l.log(InfoLevel, message)
}

func (l *zapLogger) Warn(ctx context.Context, message string) {
	l.log(WarnLevel, message)
}

func (l *zapLogger) Error(ctx context.Context, message string) {
	l.log(ErrorLevel, message)
}

func (l *zapLogger) Debugf(ctx context.Context, template string, args ...any) {
	l.log(DebugLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Infof(ctx context.Context, template string, args ...any) {
	l.log(InfoLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Warnf(ctx context.Context, template string, args ...any) {
	l.log(WarnLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Errorf(ctx context.Context, template string, args ...any) {
	l.log(ErrorLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) With(key string, value any) Logger {
	clone := *l
	clone.fields = append(clone.fields[:len(clone.fields):len(clone.fields)], zap.Any(key, value))
	return &clone
}

func (l *zapLogger) WithComponent(component string) Logger {
	clone := *l
	if clone.component != "" {
		clone.component += "." + component
	} else {
		clone.component = component
	}
	return &clone
}

func (l *zapLogger) Sync() error {
	return l.core.Sync()
}

func (l *zapLogger) log(level zapcore.Level, message string) {
	entry := zapcore.Entry{Time: time.Now(), Level: level, Message: message}
	if checked := l.core.Check(entry, nil); checked != nil {
		fields := l.fields
		if l.component != "" {
			fields = append(fields[:len(fields):len(fields)], zap.String("component", l.component))
		}
		checked.Write(fields...)
	}
}

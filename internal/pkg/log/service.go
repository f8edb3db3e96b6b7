package log

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewServiceLogger creates a logger with JSON output, one message per line.
func NewServiceLogger(writer io.Writer, verbose bool) Logger {
	level := InfoLevel
	if verbose {
		level = DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(writer),
		level,
	)
	return loggerFromCore(core)
}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() Logger {
	return loggerFromCore(zapcore.NewNopCore())
}

package log

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

// memoryLogger implements the DebugLogger interface, messages are stored in memory.
type memoryLogger struct {
	*zapLogger
	recorder *recorder
}

type recorder struct {
	lock    sync.Mutex
	buffer  bytes.Buffer
	writers []io.Writer
}

// NewDebugLogger creates a logger usable in tests, messages are captured as JSON lines.
func NewDebugLogger() DebugLogger {
	r := &recorder{}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(r), DebugLevel)
	return &memoryLogger{zapLogger: loggerFromCore(core), recorder: r}
}

func (r *recorder) Write(p []byte) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, w := range r.writers {
		_, _ = w.Write(p)
	}
	return r.buffer.Write(p)
}

func (l *memoryLogger) ConnectTo(writer io.Writer) {
	l.recorder.lock.Lock()
	defer l.recorder.lock.Unlock()
	l.recorder.writers = append(l.recorder.writers, writer)
}

func (l *memoryLogger) Truncate() {
	l.recorder.lock.Lock()
	defer l.recorder.lock.Unlock()
	l.recorder.buffer.Reset()
}

func (l *memoryLogger) AllMessages() string {
	l.recorder.lock.Lock()
	defer l.recorder.lock.Unlock()
	return l.recorder.buffer.String()
}

// CompareJSONMessages checks that the expected messages occurred in order.
// Extra messages in between are ignored. The %s placeholder matches any non-empty string.
func (l *memoryLogger) CompareJSONMessages(expected string) error {
	actualLines := strings.Split(strings.TrimSpace(l.AllMessages()), "\n")
	pos := 0
	for _, expectedLine := range strings.Split(strings.TrimSpace(expected), "\n") {
		expectedLine = strings.TrimSpace(expectedLine)
		if expectedLine == "" {
			continue
		}
		pattern := wildcardToRegexp(expectedLine)
		found := false
		for ; pos < len(actualLines); pos++ {
			if pattern.MatchString(strings.TrimSpace(actualLines[pos])) {
				found = true
				pos++
				break
			}
		}
		if !found {
			return errors.Errorf("expected message not found:\n%s\nactual messages:\n%s", expectedLine, l.AllMessages())
		}
	}
	return nil
}

func (l *memoryLogger) AssertJSONMessages(t assert.TestingT, expected string, msgAndArgs ...any) bool {
	if err := l.CompareJSONMessages(expected); err != nil {
		assert.Fail(t, err.Error(), msgAndArgs...)
		return false
	}
	return true
}

func wildcardToRegexp(line string) *regexp.Regexp {
	var out strings.Builder
	out.WriteString("^")
	for i, part := range strings.Split(regexp.QuoteMeta(line), "%s") {
		if i > 0 {
			out.WriteString(".+")
		}
		out.WriteString(part)
	}
	out.WriteString("$")
	return regexp.MustCompile(out.String())
}

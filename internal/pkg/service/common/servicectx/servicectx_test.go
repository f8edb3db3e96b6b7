package servicectx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/etcdmq/etcdmq/internal/pkg/log"
	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

func TestProcess_Add(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.NewDebugLogger()
	proc, err := New(ctx, cancel, logger, WithUniqueID("<id>"))
	assert.NoError(t, err)

	// Do some work, operations run in parallel, sleep determines the completion order to make it testable
	proc.Add(func(ctx context.Context, errCh chan<- error) {
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		logger.Info(ctx, "end1")
	})
	proc.Add(func(ctx context.Context, errCh chan<- error) {
		<-ctx.Done()
		time.Sleep(200 * time.Millisecond)
		logger.Info(ctx, "end2")
	})
	proc.Add(func(ctx context.Context, errCh chan<- error) {
		errCh <- errors.New("operation failed")
	})
	proc.OnShutdown(func() {
		logger.Info(ctx, "onShutdown1")
	})
	proc.OnShutdown(func() {
		logger.Info(ctx, "onShutdown2")
	})
	proc.WaitForShutdown()

	// Check logs
	logger.AssertJSONMessages(t, `
{"level":"info","message":"process unique id \"<id>\""}
{"level":"info","message":"exiting (operation failed)"}
{"level":"info","message":"onShutdown2"}
{"level":"info","message":"onShutdown1"}
{"level":"info","message":"end1"}
{"level":"info","message":"end2"}
{"level":"info","message":"exited"}
`)
}

func TestProcess_Shutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.NewDebugLogger()
	proc, err := New(ctx, cancel, logger, WithUniqueID("<id>"))
	assert.NoError(t, err)

	proc.Add(func(ctx context.Context, errCh chan<- error) {
		<-ctx.Done()
		logger.Info(ctx, "end1")
	})
	proc.OnShutdown(func() {
		logger.Info(ctx, "onShutdown1")
	})
	proc.Shutdown(errors.New("some error"))
	proc.WaitForShutdown()

	// Check logs
	logger.AssertJSONMessages(t, `
{"level":"info","message":"exiting (some error)"}
{"level":"info","message":"onShutdown1"}
{"level":"info","message":"end1"}
`)
}

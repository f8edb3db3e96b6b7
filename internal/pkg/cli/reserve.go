package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/etcdmq/etcdmq/internal/pkg/service/queue"
	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

func reserveCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Take one payload from the queue and print it",
		Long: "Take one payload from the queue and print it to the standard output.\n" +
			"With --block the command waits for a payload, otherwise it fails when the queue is empty.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			blocking, _ := cmd.Flags().GetBool("block")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if blocking {
				timeout = 0 // wait for a payload or a signal
			}
			ctx, cancel := cmdContext(cmd, timeout)
			defer cancel()
			if blocking {
				// A signal must interrupt the wait, not only the shutdown
				var stop context.CancelFunc
				ctx, stop = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
			}

			d, err := newDependencies(ctx, cancel, root, cmd)
			if err != nil {
				return err
			}
			defer d.proc.WaitForShutdown()
			defer d.proc.Shutdown(nil)

			consumer, err := queue.NewConsumer(d, queueConfig(cmd))
			if err != nil {
				return err
			}
			id, err := consumer.Register(ctx)
			if err != nil {
				return err
			}
			d.logger.Debugf(ctx, `registered as "%s"`, id)
			defer func() {
				// Deregister even when the reserve was interrupted
				closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer closeCancel()
				if err := consumer.Close(closeCtx); err != nil && !errors.Is(err, queue.ErrConsumerClosed) {
					d.logger.Warnf(closeCtx, "cannot close consumer: %s", err)
				}
			}()

			payload, err := consumer.Reserve(ctx, blocking)
			if errors.Is(err, queue.ErrNoWork) {
				return errors.New("the queue is empty")
			} else if err != nil {
				return err
			}

			if _, err := cmd.OutOrStdout().Write(payload); err != nil {
				return err
			}
			return consumer.Done(ctx)
		},
	}
	cmd.Flags().Bool("block", false, "wait until a payload is available")
	cmd.Flags().Duration("timeout", 30*time.Second, "operation timeout, ignored with --block")
	cmd.Flags().Int("session-ttl", queue.DefaultSessionTTLSeconds, "liveness lease TTL in seconds")
	cmd.Flags().Duration("abandon-after", queue.DefaultAbandonAfter, "age at which a never-populated item is dropped")
	return cmd
}

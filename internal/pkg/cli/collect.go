package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/etcdmq/etcdmq/internal/pkg/service/queue"
)

func collectCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Reclaim payloads abandoned by crashed consumers",
		Long: "Reclaim payloads abandoned by crashed consumers.\n" +
			"One pass by default, with --interval the command runs as a daemon until a signal.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if interval > 0 {
				timeout = 0 // daemon mode ends with a signal
			}
			ctx, cancel := cmdContext(cmd, timeout)
			defer cancel()

			d, err := newDependencies(ctx, cancel, root, cmd)
			if err != nil {
				return err
			}
			defer d.proc.WaitForShutdown()

			collector, err := queue.NewCollector(ctx, d, queueConfig(cmd))
			if err != nil {
				d.proc.Shutdown(err)
				return err
			}

			if interval <= 0 {
				reclaimed, err := collector.Collect(ctx)
				d.proc.Shutdown(nil)
				if err != nil {
					return err
				}
				cmd.Printf("reclaimed %d registrations\n", reclaimed)
				return nil
			}

			// Daemon mode, one pass per tick
			d.proc.Add(func(ctx context.Context, errCh chan<- error) {
				ticker := d.store.Clock().NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.Chan():
						if reclaimed, err := collector.Collect(ctx); err != nil {
							d.logger.Errorf(ctx, "collect pass failed: %s", err)
						} else if reclaimed > 0 {
							d.logger.Infof(ctx, "reclaimed %d registrations", reclaimed)
						}
					}
				}
			})
			return nil
		},
	}
	cmd.Flags().Duration("interval", 0, "run a pass periodically instead of once")
	cmd.Flags().Duration("timeout", 30*time.Second, "operation timeout, ignored with --interval")
	return cmd
}

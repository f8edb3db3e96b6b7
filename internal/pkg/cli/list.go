package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/etcdmq/etcdmq/internal/pkg/service/queue"
)

func listCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the items waiting in the queue, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := cmdContext(cmd, timeout)
			defer cancel()

			d, err := newDependencies(ctx, cancel, root, cmd)
			if err != nil {
				return err
			}
			defer d.proc.WaitForShutdown()
			defer d.proc.Shutdown(nil)

			items, err := queue.Pending(ctx, d, queueConfig(cmd))
			if err != nil {
				return err
			}
			for _, name := range items {
				cmd.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 30*time.Second, "operation timeout")
	return cmd
}

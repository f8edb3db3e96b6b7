package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/etcdmq/etcdmq/internal/pkg/service/queue"
)

func putCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put [payload]",
		Short: "Append a payload to the queue",
		Long:  "Append a payload to the queue. Without an argument the payload is read from the standard input.",
		Args:  cobra.MaximumNArgs(1),
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

			var payload []byte
			if len(args) == 1 && args[0] != "-" {
				payload = []byte(args[0])
			} else {
				payload, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			producer, err := queue.NewProducer(ctx, d, queueConfig(cmd))
			if err != nil {
				return err
			}
			name, err := producer.Put(ctx, payload)
			if err != nil {
				return err
			}
			cmd.Println(name)
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 30*time.Second, "operation timeout")
	return cmd
}

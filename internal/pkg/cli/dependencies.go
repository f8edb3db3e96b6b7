package cli

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/etcdmq/etcdmq/internal/pkg/log"
	"github.com/etcdmq/etcdmq/internal/pkg/service/common/coordstore"
	"github.com/etcdmq/etcdmq/internal/pkg/service/common/etcdclient"
	"github.com/etcdmq/etcdmq/internal/pkg/service/common/servicectx"
	"github.com/etcdmq/etcdmq/internal/pkg/service/queue"
)

// dependencies provides the queue components with the shared services,
// built from the parsed command line flags.
type dependencies struct {
	logger log.Logger
	proc   *servicectx.Process
	store  *coordstore.Store
}

func (d *dependencies) Logger() log.Logger {
	return d.logger
}

func (d *dependencies) CoordStore() *coordstore.Store {
	return d.store
}

func (d *dependencies) Process() *servicectx.Process {
	return d.proc
}

// newDependencies connects to etcd. The connection is closed by the process
// shutdown, every command ends with proc.WaitForShutdown.
func newDependencies(ctx context.Context, cancel context.CancelFunc, root *rootCommand, cmd *cobra.Command) (*dependencies, error) {
	logger := root.logFor(cmd)

	proc, err := servicectx.New(ctx, cancel, logger)
	if err != nil {
		return nil, err
	}

	cfg := etcdClientConfig(cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := etcdclient.New(ctx, proc, logger, cfg)
	if err != nil {
		return nil, err
	}

	return &dependencies{
		logger: logger,
		proc:   proc,
		store:  coordstore.New(client, logger, clockwork.NewRealClock()),
	}, nil
}

// etcdClientConfig builds the etcd connection configuration from the command line flags.
func etcdClientConfig(flags *pflag.FlagSet) etcdclient.Config {
	cfg := etcdclient.NewConfig()
	cfg.Endpoint, _ = flags.GetString("endpoint")
	cfg.Namespace, _ = flags.GetString("etcd-namespace")
	cfg.Username, _ = flags.GetString("username")
	cfg.Password, _ = flags.GetString("password")
	cfg.Normalize()
	return cfg
}

// queueConfig builds the queue configuration from the command line flags.
func queueConfig(cmd *cobra.Command) queue.Config {
	cfg := queue.NewConfig()
	if v, err := cmd.Flags().GetString("queue-root"); err == nil && v != "" {
		cfg.Root = v
	}
	if v, err := cmd.Flags().GetInt("session-ttl"); err == nil && v > 0 {
		cfg.SessionTTLSeconds = v
	}
	if v, err := cmd.Flags().GetDuration("abandon-after"); err == nil && v > 0 {
		cfg.AbandonAfter = v
	}
	return cfg
}

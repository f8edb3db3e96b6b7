// Package cli implements the etcdmq command line interface.
//
// The root command carries the etcd connection flags, each sub-command
// connects on demand and releases the connection on exit.
package cli

import (
	"context"
	"io"
	"path"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/etcdmq/etcdmq/internal/pkg/build"
	"github.com/etcdmq/etcdmq/internal/pkg/log"
)

const description = `
etcdmq

Distributed work queue on top of etcd.

Producers append payloads with "put", consumers take them
with "reserve", the "collect" sub-command reclaims payloads
abandoned by crashed consumers.
`

type rootCommand struct {
	cmd    *cobra.Command
	stdout io.Writer
	stderr io.Writer
	logger log.Logger
}

// NewRootCommand creates parent of all sub-commands.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer, args []string) *rootCommand {
	root := &rootCommand{stdout: stdout, stderr: stderr}

	root.cmd = &cobra.Command{
		Use:           path.Base(args[0]),
		Version:       version(),
		Short:         description,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Print help if no command specified
			return root.cmd.Help()
		},
	}
	root.cmd.SetArgs(args[1:])
	root.cmd.SetIn(stdin)
	root.cmd.SetOut(stdout)
	root.cmd.SetErr(stderr)
	root.cmd.SetVersionTemplate("{{.Version}}")

	// Persistent flags for all sub-commands
	flags := root.cmd.PersistentFlags()
	flags.SortFlags = true
	flags.String("endpoint", "localhost:2379", "etcd endpoint")
	flags.String("etcd-namespace", "etcdmq", "etcd namespace, prefix of all keys")
	flags.String("username", "", "etcd username")
	flags.String("password", "", "etcd password")
	flags.String("queue-root", "queue", "root node of the queue tree")
	flags.BoolP("verbose", "v", false, "print debug log messages")

	root.cmd.AddCommand(
		putCommand(root),
		reserveCommand(root),
		collectCommand(root),
		listCommand(root),
	)

	return root
}

// Execute runs the command, it returns the exit code.
func (root *rootCommand) Execute() int {
	defer func() {
		if root.logger != nil {
			_ = root.logger.Sync()
		}
	}()
	if err := root.cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// logFor creates the logger once the flags are parsed.
func (root *rootCommand) logFor(cmd *cobra.Command) log.Logger {
	if root.logger == nil {
		verbose, _ := cmd.Flags().GetBool("verbose")
		root.logger = log.NewServiceLogger(root.stderr, verbose)
	}
	return root.logger
}

func version() string {
	return "Version:    " + build.BuildVersion + "\n" +
		"Git commit: " + build.GitCommit + "\n" +
		"Build date: " + build.BuildDate + "\n" +
		"Go version: " + runtime.Version() + "\n" +
		"Os/Arch:    " + runtime.GOOS + "/" + runtime.GOARCH + "\n"
}

func cmdContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

package main

import (
	"os"

	"github.com/etcdmq/etcdmq/internal/pkg/cli"
)

func main() {
	cmd := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr, os.Args)
	os.Exit(cmd.Execute())
}

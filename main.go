// The main package for the harvester executable.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ragops/harvester/cmd"
)

// main installs the signal context and defers all execution to the CLI.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}

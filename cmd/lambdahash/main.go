package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lambdahash/internal/cli"
)

// main is a thin boundary: Run writes the result or the single error line,
// and the exit code carries the failure class.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	res, _ := cli.Run(ctx, os.Args[1:], cli.StdStreams())
	stop()
	os.Exit(res.ExitCode)
}

//go:build linux

// Command wlpacer exercises the frame pacing pump against an in-process
// display server and engine, and prints the launcher configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/go-wlpacer/eventloop"
)

// Exit codes.
const (
	exitFailure = 1
	exitSetup   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "wlpacer:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if eventloop.IsFatalKind(err, eventloop.KindSetup) {
		return exitSetup
	}
	return exitFailure
}

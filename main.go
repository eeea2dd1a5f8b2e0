package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaze-network/runes-ledger/cmd"
)

func main() {
	// GOMAXPROCS is tuned by the run command through pkg/automaxprocs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}

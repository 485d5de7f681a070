package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/areino/taegis-detection-analysis/cmd"
	"github.com/areino/taegis-detection-analysis/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}

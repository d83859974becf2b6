package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leafybank/backend/internal/common/bootstrap"
	"github.com/leafybank/backend/internal/seed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewToolApp(ctx, "seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start seed: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if _, err := seed.Run(ctx, app.UserRepo, app.AccountRepo, app.Log); err != nil {
		app.Log.Errorf("seed failed: %v", err)
		app.Close()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	accountservice "github.com/leafybank/backend/internal/account/service"
	"github.com/leafybank/backend/internal/common/bootstrap"
	"github.com/leafybank/backend/internal/common/constants"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewToolApp(ctx, "reconcile")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start reconcile: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	svc := accountservice.NewAccountService(accountservice.Deps{
		Accounts: app.AccountRepo,
		Users:    app.UserRepo,
		Log:      app.Log,
	})

	runCtx, cancel := context.WithTimeout(ctx, constants.DefaultReconcileTimeout)
	defer cancel()

	report, err := svc.Reconcile(runCtx)
	if err != nil {
		app.Log.Errorf("reconcile failed: %v", err)
		app.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		app.Log.Errorf("failed to write report: %v", err)
	}
}

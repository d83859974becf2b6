package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	accounthttp "github.com/leafybank/backend/internal/account/http"
	"github.com/leafybank/backend/internal/account/reconcile"
	"github.com/leafybank/backend/internal/common/bootstrap"
	"github.com/leafybank/backend/internal/common/config"
	commonhttp "github.com/leafybank/backend/internal/common/http"
	srv "github.com/leafybank/backend/internal/common/server"
	"github.com/leafybank/backend/internal/seed"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.NewAccountsApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start accounts service: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	log := app.Log
	cfg := app.Config

	if app.StoreDriver == config.StoreDriverMemory {
		if _, err := seed.Run(ctx, app.UserRepo, app.AccountRepo, log); err != nil {
			log.Fatalf("failed to seed in-memory store: %v", err)
		}
	}

	go reconcile.Start(ctx, app.AccountService, cfg.ReconcileInterval, cfg.ReconcileTimeout, log)

	rateLimiter := commonhttp.NewRouteRateLimiter()
	handler := accounthttp.NewHandler(app.AccountService, app.UserService, accounthttp.Config{
		RequestTimeout: cfg.RequestTimeout,
		JWTSecret:      cfg.JWTSecret,
		HealthCheck:    app.HealthCheck,
	}, rateLimiter, log)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := srv.DefaultServerConfig(cfg.HTTPPort)
	server := srv.NewServer(serverConfig, commonhttp.BuildBaseHandler(log, mux))

	shutdownHooks := []srv.ShutdownHook{
		func(ctx context.Context) error {
			log.Infof("accounts service: stopping reconciler and rate limiters")
			cancel()
			rateLimiter.Stop()
			return nil
		},
	}

	srv.StartWithGracefulShutdownAndHooks(server, log, "accounts", shutdownHooks)
}

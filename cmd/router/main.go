package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"poc-router/apiconfig"
	"poc-router/artifacts"
	"poc-router/backendclient"
	"poc-router/backendpool"
	"poc-router/internal/server"
	"poc-router/logging"
	"poc-router/powrouter"
	"poc-router/resultstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "router: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("ROUTER_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	configManager, err := apiconfig.LoadConfig(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	cfg := configManager.GetConfig()

	logging.Init(cfg.Log.Level, cfg.Log.Format)
	logging.Info("Starting PoC router", logging.Server,
		"port", cfg.Api.Port, "backends", len(cfg.Backends))

	timeout := time.Duration(cfg.Api.RequestTimeoutSeconds) * time.Second
	factory := &backendclient.HttpClientFactory{Timeout: timeout}
	pool, err := backendpool.NewPool(cfg.Backends, factory)
	if err != nil {
		return errors.Wrap(err, "build backend pool")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweepInterval := time.Duration(cfg.Api.HealthSweepSeconds) * time.Second
	worker := backendpool.NewStatusWorker(pool, sweepInterval)
	go worker.Run(ctx)

	resultStore := resultstore.NewResultStorage(ctx, cfg.Api.ResultDbPath, cfg.Api.ResultFileDir)
	defer resultStore.Close()

	router := powrouter.NewRouter(pool)
	srv := server.NewServer(configManager, router,
		server.WithArtifactStore(artifacts.NewManagedStore(artifacts.DefaultRetainCount)),
		server.WithResultStore(resultStore),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Api.Port))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("Shutting down", logging.Server, "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server stopped")
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

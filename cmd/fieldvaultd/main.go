// Command fieldvaultd runs the encryption layer as a sidecar: it loads the
// encryption schema, bootstraps every transit key version into the in-memory
// cache, and serves the administrative endpoints (health, key-cache reload).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hengadev/fieldvault"
	"github.com/hengadev/fieldvault/adminapi"
	"github.com/hengadev/fieldvault/providers/vaulttransit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fieldvaultd failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := fieldvault.LoadConfigFromEnvironment()
	if err != nil {
		return err
	}
	if !cfg.EnableEncryption {
		logger.Warn("encryption is disabled, nothing to serve")
		return nil
	}

	registry, err := fieldvault.LoadSchema(cfg.SchemaPath)
	if err != nil {
		return err
	}
	logger.Info("encryption schema loaded", "collections", len(registry.Collections()))

	exporter, err := vaulttransit.New(cfg.TransitPath, cfg.TransitKey)
	if err != nil {
		return err
	}
	transit, err := fieldvault.NewTransit(exporter, fieldvault.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := transit.LoadAllKeys(ctx); err != nil {
		return err
	}
	logger.Info("encryption keys loaded", "versions", transit.CachedVersions())

	addr := os.Getenv("FIELDVAULT_ADMIN_ADDR")
	if addr == "" {
		addr = ":8089"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: adminapi.NewRouter(transit, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

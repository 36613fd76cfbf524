package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/vibration-stack/common/logging"
	"github.com/telhawk-systems/vibration-stack/common/messaging"
	"github.com/telhawk-systems/vibration-stack/common/records"
	"github.com/telhawk-systems/vibration-stack/common/store"
	"github.com/telhawk-systems/vibration-stack/common/store/notify"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/config"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/handlers"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/ratelimit"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/server"

	natsclient "github.com/telhawk-systems/vibration-stack/common/messaging/nats"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingest"))
	logging.SetDefault(logger)

	slog.Info("Starting Ingest service",
		slog.String("listen_address", cfg.Server.ListenAddress),
		slog.Int("admin_port", cfg.Admin.Port),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Open the record store
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	st, err := store.Open(ctx, cfg.Storage, logger.Logger)
	cancel()
	if err != nil {
		slog.Error("Failed to open record store", logging.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	// Optional ingest notifications over NATS
	var sink records.Store = st
	var broker messaging.Client
	if cfg.NATS.Enabled {
		natsClient, err := natsclient.NewClient(cfg.NATS.Config, logger.Logger)
		if err != nil {
			slog.Warn("Failed to connect to NATS, ingest notifications disabled",
				slog.String("url", cfg.NATS.URL),
				logging.Error(err))
		} else {
			defer natsClient.Drain()
			broker = natsClient
			sink = notify.New(st, natsClient, logger.Logger)
			slog.Info("Ingest notifications enabled", slog.String("url", cfg.NATS.URL))
		}
	}

	frameServer := server.NewFrameServer(sink, cfg.Server.ReadTimeout, logger.Logger)

	// Optional per-host connection rate limit
	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.New(context.Background(), cfg.RateLimit)
		if err != nil {
			slog.Warn("Failed to initialize rate limiter, connections are not limited", logging.Error(err))
		} else {
			defer limiter.Close()
			frameServer.SetLimiter(limiter)
			slog.Info("Connection rate limit enabled",
				slog.Int("limit", cfg.RateLimit.Limit),
				slog.Duration("window", cfg.RateLimit.Window))
		}
	}

	// Admin HTTP server: probes and metrics
	healthHandler := handlers.NewHealthHandler(sink, frameServer)
	if broker != nil {
		healthHandler.SetMessaging(broker)
	}
	admin := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           server.NewAdminRouter(healthHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Admin server listening", slog.String("addr", admin.Addr))
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server error", logging.Error(err))
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Frame server listening", slog.String("addr", cfg.Server.ListenAddress))
		serveErr <- frameServer.ListenAndServe(cfg.Server.ListenAddress)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case err := <-serveErr:
		// A failed sink needs a process restart; nothing is buffered.
		slog.Error("Frame server stopped", logging.Error(err))
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := frameServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Frame server forced to shutdown", logging.Error(err))
	}
	if err := admin.Shutdown(shutdownCtx); err != nil {
		slog.Error("Admin server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
	if exitCode != 0 {
		st.Close()
		os.Exit(exitCode)
	}
}

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
	"github.com/telhawk-systems/vibration-stack/common/middleware"
	"github.com/telhawk-systems/vibration-stack/common/store"
	"github.com/telhawk-systems/vibration-stack/relay/internal/config"
	"github.com/telhawk-systems/vibration-stack/relay/internal/handlers"
	"github.com/telhawk-systems/vibration-stack/relay/internal/server"
	"github.com/telhawk-systems/vibration-stack/relay/internal/session"
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
	).With(logging.Service("relay"))
	logging.SetDefault(logger)

	slog.Info("Starting Relay service",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.Duration("poll_interval", cfg.Relay.PollInterval),
		slog.Duration("staleness_threshold", cfg.Relay.StalenessThreshold),
		slog.Float64("value_divisor", cfg.Relay.ValueDivisor),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	st, err := store.Open(ctx, cfg.Storage, logger.Logger)
	cancel()
	if err != nil {
		slog.Error("Failed to open record store", logging.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	registry := session.NewRegistry()
	handler := handlers.NewHandler(st, registry, cfg, logger)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORS.AllowedOrigins
	router := server.NewRouter(handler, corsConfig)

	// WriteTimeout does not apply to hijacked websocket connections.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Relay service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", logging.Error(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...", slog.Int("active_sessions", registry.Count()))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	registry.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
}

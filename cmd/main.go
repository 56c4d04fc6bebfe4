/*
Package main is the entry point for the chat relay.

It loads configuration, initializes the global logger, wires the membership
registry, event router, and connection manager, serves HTTP, and shuts down
gracefully on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/user"
	"chatrelay/internal/configs"
	"chatrelay/internal/handler"
	"chatrelay/internal/pkg/filter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/metrics"
	"chatrelay/internal/pkg/pow"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(logx.Options{
		Development: cfg.IsDevelopment(),
		Level:       cfg.LogLevel,
	})
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.PowDifficulty).
		Bool("profanity_filter", cfg.ProfanityFilter).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	contentFilter := filter.Nop
	if cfg.ProfanityFilter {
		contentFilter = filter.New()
	}

	registry := user.NewRegistry()
	router := chat.NewRouter(registry,
		chat.WithFilter(contentFilter),
		chat.WithMapBaseURL(cfg.MapBaseURL),
	)
	m := metrics.New()
	manager := chat.NewManager(router, m)

	deps := &handler.AppDeps{
		Manager:  manager,
		Registry: registry,
		Config:   cfg,
		PoW:      pow.NewManager(ctx, cfg.PowDifficulty),
		Metrics:  m,
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Chat relay starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// Hijacked WebSocket connections are not tracked by server.Shutdown.
	manager.Shutdown()

	logx.Info("Server gracefully stopped.")
}

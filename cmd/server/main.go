// Package main is the entry point for the LoanLens portfolio analytics service.
// The application evaluates formulas over loan records, assembles chart data
// for dashboard widgets, and keeps precomputed snapshots warm in the cache.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gralix-technologies/loanlens/internal/config"
	"github.com/gralix-technologies/loanlens/internal/di"
	"github.com/gralix-technologies/loanlens/internal/scheduler"
	"github.com/gralix-technologies/loanlens/internal/server"
	"github.com/gralix-technologies/loanlens/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting LoanLens")

	// Wire all dependencies using DI container.
	// Databases are opened and migrated first, then repositories and
	// services are constructed with their dependencies injected.
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Start the snapshot refresh scheduler
	var sched *scheduler.Scheduler
	if cfg.SnapshotsEnabled {
		sched = scheduler.New(log)
		refreshJob := scheduler.NewSnapshotRefreshJob(container.SnapshotService)
		if err := sched.AddJob(cfg.SnapshotSchedule, refreshJob); err != nil {
			log.Error().Err(err).Str("schedule", cfg.SnapshotSchedule).Msg("Failed to register snapshot refresh job")
		} else {
			sched.Start()
		}
	}

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Config:    cfg,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	// Start server in goroutine so shutdown signals can be handled below
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with a deadline for in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

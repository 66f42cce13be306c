package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/api"
	"github.com/cristianemoyano/swarm-autoscaler/internal/events"
	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/internal/orchestrator"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/config"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/database"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/database/queries"
)

const version = "2.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	logger.Infof("Starting %s %s in %s mode", cfg.App.Name, version, cfg.App.Mode)
	if cfg.Autoscaler.DryRun {
		logger.Warn("Dry-run enabled, scaling decisions will be logged but not applied")
	}

	history, db, err := buildHistory(cfg, *migrate)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	if *migrate {
		return nil
	}

	orch, err := orchestrator.New(cfg, history)
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer orch.Stop()

	server := api.NewServer(cfg.API, cfg.App.Mode, api.Deps{
		Registry: orch.Registry(),
		History:  orch.History(),
		Docker:   orch.Docker(),
		Version:  version,
	})

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("API server listening on port %d", cfg.API.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdownChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	shutdownTimeout := cfg.App.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// buildHistory picks where the scaling audit trail lives. With a
// database configured it goes to Postgres, otherwise it stays in a
// bounded in-memory buffer.
func buildHistory(cfg *config.Config, migrate bool) (events.HistoryStore, *database.DB, error) {
	if !cfg.Database.Enabled {
		if migrate {
			return nil, nil, fmt.Errorf("migrations requested but database is disabled")
		}
		return events.NewMemoryHistory(cfg.Events.MaxHistory), nil, nil
	}

	db, err := database.New(cfg.Database.ToDBConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connection established")

	if migrate {
		logger.Info("Running database migrations")
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := database.NewMigrator(db).Run(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Migrations completed successfully")
		return nil, db, nil
	}

	return queries.NewScalingEventRepository(db.DB, cfg.Events.MaxHistory), db, nil
}

// Magpie - event backbone for point-of-sale terminals.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openretail-labs/magpie/internal/ageverify"
	"github.com/openretail-labs/magpie/internal/api"
	"github.com/openretail-labs/magpie/internal/bus"
	"github.com/openretail-labs/magpie/internal/cache"
	"github.com/openretail-labs/magpie/internal/config"
	"github.com/openretail-labs/magpie/internal/consumer"
	"github.com/openretail-labs/magpie/internal/dedup"
	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/fraud"
	"github.com/openretail-labs/magpie/internal/lookup"
	"github.com/openretail-labs/magpie/internal/plugin"
	"github.com/openretail-labs/magpie/internal/recommend"
	"github.com/openretail-labs/magpie/internal/repository"
	"github.com/openretail-labs/magpie/internal/sink"
	"github.com/openretail-labs/magpie/internal/timetrack"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	setupLogger(cfg.Logging)

	slog.Info("starting magpie",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Realtime push sink rides the bus
	alertSink := sink.NewBusSink(busImpl)

	// Derived state stores
	fraudStore := fraud.NewStore(cfg.Dispatch)
	ageStore := ageverify.NewStore(cfg.Dispatch)

	// Initialize Fraud Engine
	engine, err := fraud.NewEngine(fraudStore)
	if err != nil {
		slog.Error("failed to initialize fraud engine", "error", err)
		os.Exit(1)
	}
	if err := loadFraudRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load fraud rules", "error", err)
		os.Exit(1)
	}
	slog.Info("fraud engine initialized", "rules_count", engine.RulesCount())

	// Build the plugin router: dedup first, registration order matters.
	router := plugin.NewRouter(dedup.New(cfg.Dispatch.DedupWindow), repo)
	router.Register(fraud.NewPlugin(fraudStore, engine, repo, alertSink, busImpl))
	router.Register(ageverify.NewPlugin(ageStore, repo, busImpl))
	router.Register(lookup.NewPlugin(
		lookup.NewClient(cfg.Lookup.APIEndpoint, cfg.Lookup.Timeout, cfg.Lookup.RetryAttempts),
		cacheImpl, repo, busImpl, cfg.Lookup.CacheTTL,
	))
	router.Register(timetrack.NewPlugin(repo))
	router.Register(recommend.NewPlugin(repo, alertSink, busImpl))

	// Start the dispatch loop
	eventConsumer := consumer.New(busImpl, router)
	if err := eventConsumer.Start(); err != nil {
		slog.Error("failed to start event consumer", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, ageStore, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("magpie is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the dispatch loop first so no events arrive mid-shutdown
	if err := eventConsumer.Stop(); err != nil {
		slog.Error("failed to stop event consumer", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("magpie shutdown complete")
}

func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// loadFraudRules loads rules from the database into the engine. An empty
// table is fine: seed via cmd/seed or configure via POST /rules.
func loadFraudRules(ctx context.Context, repo domain.Repository, engine *fraud.Engine) error {
	dbRules, err := repo.ListFraudRules(ctx)
	if err != nil {
		slog.Warn("failed to list fraud rules from database", "error", err)
		return nil
	}

	if len(dbRules) > 0 {
		slog.Info("loading fraud rules from database", "count", len(dbRules))
		return engine.ReloadRules(dbRules)
	}

	slog.Info("no fraud rules in database - seed with cmd/seed or configure via POST /rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  magpie - POS event backbone")
	fmt.Printf("  version: %s\n", version)
	fmt.Printf("  server:  http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  endpoints:")
	fmt.Println("    POST /events                      - Ingest a POS event")
	fmt.Println("    GET  /rules                       - List loaded fraud rules")
	fmt.Println("    POST /rules                       - Create a fraud rule")
	fmt.Println("    POST /rules/reload                - Hot-reload rules from database")
	fmt.Println("    GET  /alerts                      - List fraud alerts")
	fmt.Println("    POST /alerts/{id}/acknowledge     - Acknowledge an alert")
	fmt.Println("    GET  /plugins                     - List plugin configs")
	fmt.Println("    PUT  /plugins/{name}              - Toggle or configure a plugin")
	fmt.Println("    GET  /baskets/{id}/verification   - Age verification state")
	fmt.Println("    GET  /baskets/{id}/recommendations- Basket recommendations")
	fmt.Println("    GET  /violations                  - Age violations")
	fmt.Println("    GET  /timesheets/{employeeID}     - Employee time entries")
	fmt.Println("    GET  /health                      - Health check")
	fmt.Println()
}

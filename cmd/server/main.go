/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the card reward server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment, then flags)
  2. Build the slog logger
  3. Load the catalog (YAML file or the embedded default)
  4. Validate it and drop cards with errors
  5. Open SQLite and merge stored overrides
  6. Start the override refresher and the HTTP server

COMMAND-LINE FLAGS (override the environment):
  -port     HTTP server port
  -db       SQLite database path, ":memory:" for in-memory
  -catalog  YAML catalog path, empty for the embedded catalog
  -env      .env file to load (default .env, missing is fine)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the override refresher
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db=":memory:"
  REWARDS_LOG_FORMAT=text REWARDS_LOG_LEVEL=debug ./server -catalog=./cards.yaml

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - catalog/factory.go: Catalog format
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/card-rewards/api"
	"github.com/warp/card-rewards/catalog"
	"github.com/warp/card-rewards/config"
	"github.com/warp/card-rewards/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	envFile := flag.String("env", ".env", ".env file to load")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	catalogPath := flag.String("catalog", "", "YAML catalog path")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Catalog
	snap, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	kept, issues := catalog.Partition(snap)
	for _, issue := range issues {
		level := slog.LevelWarn
		if issue.Severity == catalog.SeverityError {
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, "catalog issue",
			slog.String("code", string(issue.Code)),
			slog.String("card_id", string(issue.CardID)),
			slog.String("rule_id", string(issue.RuleID)),
			slog.String("message", issue.Message),
		)
	}
	logger.Info("catalog loaded",
		slog.Int("cards", len(kept.Cards)),
		slog.Int("dropped", len(snap.Cards)-len(kept.Cards)),
		slog.Int("merchants", len(kept.Merchants)),
		slog.Int("issues", len(issues)),
	)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, kept, issues, logger)
	if err := handler.LoadOverrides(context.Background()); err != nil {
		logger.Warn("failed to load overrides", slog.Any("error", err))
	}

	refresher := api.NewOverrideRefresher(handler)
	refresher.CheckInterval = cfg.OverrideRefresh
	refresher.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr), slog.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		refresher.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")
	refresher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func loadCatalog(path string) (*catalog.Snapshot, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the point-of-sale engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the logger
  3. Initialize SQLite store
  4. Seed the product catalog
  5. Create services and API handler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port     HTTP server port (HTTP_PORT, default: 8080)
  -db       SQLite database path (DB_PATH, default: pos.db)
            Use ":memory:" for in-memory database
  -catalog  Product catalog JSON (CATALOG_PATH, default: built-in catalog)

ENVIRONMENT:
  LOG_LEVEL                       debug | info | warn | error
  REQUEST_TIMEOUT                 Per-request deadline (default: 15s)
  DISCOUNT_AMOUNT_THRESHOLD       Default: 50
  DISCOUNT_AMOUNT_THRESHOLD_PCT   Default: 0.1
  DISCOUNT_ELIGIBLE_PCT           Default: 0.15

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/pos-engine/api"
	"github.com/warp/pos-engine/catalog"
	"github.com/warp/pos-engine/config"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/sales"
	"github.com/warp/pos-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	flag.IntVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Product catalog JSON file")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Seed products
	products := catalog.Default()
	if cfg.CatalogPath != "" {
		if products, err = catalog.ReadFile(cfg.CatalogPath); err != nil {
			return err
		}
	}
	loaded, err := catalog.Load(context.Background(), store, products)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info("catalog seeded", zap.Int("inserted", loaded), zap.Int("products", len(products)))

	// Services
	ledger := pos.NewStockLedger(store)
	customers := sales.NewCustomers(store, logger.Named("customers"))
	manager := sales.NewManager(store, ledger, cfg.Discount, logger.Named("sales"))
	handler := api.NewHandler(customers, manager, ledger, store, logger.Named("api"))

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      api.NewRouter(handler, cfg.RequestTimeout),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.HTTPPort),
			zap.String("db", cfg.DBPath),
			zap.Stringer("amount_threshold", cfg.Discount.AmountThreshold))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-serveErr:
		if ok {
			return err
		}
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

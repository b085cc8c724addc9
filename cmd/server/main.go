/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the TOIL tracker server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env file, then environment)
  2. Open the store: Postgres when DATABASE_URL is set, SQLite otherwise
  3. Resolve the effective policy (stored settings override environment)
  4. Wire service, handler and router
  5. Start server with graceful shutdown

CONFIGURATION:
  APP_PORT              HTTP server port (default: 8080)
  APP_ENV               development | production
  DATABASE_URL          Postgres connection string; empty selects SQLite
  SQLITE_PATH           SQLite database path (default: ./data/toil.db)
  JWT_SECRET            Token signing secret (required outside development)
  JWT_TTL               Token lifetime (default: 24h)
  SEED_DATA=true        Load development fixtures into an empty SQLite store
  CONTRACTED_MINUTES, GRID_MINUTES, MAX_BALANCE_MINUTES, EXPIRY_DAYS
                        Policy overrides

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite, store/postgres: Database implementations
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quill/toil-tracker/api"
	"github.com/quill/toil-tracker/config"
	"github.com/quill/toil-tracker/store/postgres"
	"github.com/quill/toil-tracker/store/sqlite"
	"github.com/quill/toil-tracker/toil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Open the store. The audit log rides on the same backend.
	var (
		st    toil.Store
		audit toil.AuditLog
	)
	if cfg.DB.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DB.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer pg.Close()
		st, audit = pg, pg
	} else {
		sq, err := sqlite.New(cfg.DB.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer sq.Close()
		if cfg.App.Seed {
			if err := sq.Seed(ctx); err != nil {
				log.Fatalf("Failed to seed database: %v", err)
			}
		}
		st, audit = sq, sq
	}

	// Stored organization settings win over environment defaults.
	policy := cfg.Policy
	if settings, err := st.GetSettings(ctx); err == nil {
		policy = settings.Policy
	}

	service := toil.NewService(st, audit, policy)
	handler := api.NewHandler(service, cfg.JWT.Secret, cfg.JWT.TTL)
	router := api.NewRouter(handler, cfg.App.Env)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load configuration
  2. Build the logrus logger
  3. Initialize SQLite store (and seed fixed holidays if enabled)
  4. Build calendar, certificate store and leave engine
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the config file and environment):
  -config  TOML configuration file (default: leave-engine.toml, optional)
  -env     dotenv file (default: .env, optional)
  -port    HTTP server port
  -db      SQLite database path; ":memory:" for an in-memory database

ENVIRONMENT:
  LEAVE_HOST, LEAVE_PORT, LEAVE_DB_PATH, LEAVE_CERTIFICATES_DIR,
  LEAVE_CERTIFICATES_INBOX, LEAVE_SEED_HOLIDAYS, LEAVE_LOG_LEVEL, LEAVE_LOG_FORMAT,
  LEAVE_BALANCE_KINDS, LEAVE_CERTIFICATE_KINDS

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/leave.db"
  ./server -db=":memory:" -port=3000
  LEAVE_LOG_FORMAT=json ./server

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/certstore"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "leave-engine.toml", "TOML configuration file")
	envFile := flag.String("env", ".env", "dotenv file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.DatabasePath = *dbPath
	}

	logger := config.NewLogger(cfg.Logging)

	// Initialize store
	if cfg.Storage.DatabasePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
			logger.WithError(err).Fatal("failed to create database directory")
		}
	}
	store, err := sqlite.New(cfg.Storage.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	if cfg.Storage.SeedHolidays {
		added, err := store.SeedDefaultHolidays(context.Background())
		if err != nil {
			logger.WithError(err).Warn("failed to seed default holidays")
		} else if added > 0 {
			logger.WithField("added", added).Info("default holidays seeded")
		}
	}

	certs, err := certstore.New(cfg.Storage.CertificatesDir)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize certificate store")
	}
	if err := os.MkdirAll(cfg.Storage.CertificatesInbox, 0o755); err != nil {
		logger.WithError(err).Fatal("failed to create certificate inbox")
	}

	cal := calendar.New(store, calendar.WithWindow(cfg.Leave.HolidayYearsBefore, cfg.Leave.HolidayYearsAfter))
	engine := leave.NewEngine(store, cal,
		leave.WithPolicy(cfg.KindPolicy()),
		leave.WithCertificateFiles(certs),
		leave.WithLogger(logger.WithField("component", "engine")),
	)

	handler := api.NewHandler(store, engine, certs, cfg.Storage.CertificatesInbox, logger.WithField("component", "api"))
	router := api.NewRouter(handler, api.RouterOptions{AccessLog: logger})

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     server.Addr,
			"database": cfg.Storage.DatabasePath,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}

	logger.Info("server stopped")
}

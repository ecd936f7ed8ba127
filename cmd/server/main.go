/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loan servicing engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Start the overdue penalty scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port              HTTP server port (default: 8080)
  -db                SQLite database path (default: loans.db)
                     Use ":memory:" for in-memory database
  -penalty-cron      Cron spec for the overdue penalty sweep
  -penalty-amount    Flat penalty per overdue installment
  -penalty-currency  Currency of the flat penalty
  -grace-days        Days past due before a penalty applies

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the penalty scheduler
  4. Close database connection
  5. Exit

ENVIRONMENT:
  LOG_LEVEL  debug | info | warn | error (default: info)

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Penalty sweep
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/sirupsen/logrus"
	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/money"
	"github.com/warp/loan-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "loans.db", "SQLite database path")
	penaltyCron := flag.String("penalty-cron", "0 1 * * *", "cron spec for the overdue penalty sweep")
	penaltyAmount := flag.String("penalty-amount", "5", "flat penalty per overdue installment")
	penaltyCurrency := flag.String("penalty-currency", "USD", "currency of the flat penalty")
	graceDays := flag.Int("grace-days", 3, "days past due before a penalty applies")
	flag.Parse()

	// Logging
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	clock := loan.SystemClock{}
	handler := api.NewHandler(store, clock, log)
	router := api.NewRouter(handler)

	// Penalty scheduler
	penalty, err := money.FromString(*penaltyAmount, money.Currency(*penaltyCurrency))
	if err != nil {
		log.WithError(err).Fatal("bad penalty amount")
	}
	scheduler := api.NewPenaltyScheduler(store, clock, log, api.PenaltyConfig{
		CronSpec:  *penaltyCron,
		GraceDays: *graceDays,
		Penalty:   penalty,
	})
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("failed to start penalty scheduler")
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", *port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	scheduler.Stop()

	log.Info("server stopped")
}

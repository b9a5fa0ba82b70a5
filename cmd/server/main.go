/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift settlement engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env / environment)
  2. Initialize the backing store (sqlite, postgres, or memory)
  3. Connect the notifier (AMQP when configured, log otherwise)
  4. Wire the lifecycle and stats engines into the HTTP handler
  5. Start the server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store and broker connections
  4. Exit

ENVIRONMENT:
  PORT, STORE_DRIVER, SQLITE_PATH, DATABASE_URL, AMQP_URL
  (see config/config.go)

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment parsing
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

	"github.com/warp/shift-engine/api"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/notify"
	"github.com/warp/shift-engine/shift"
	memstore "github.com/warp/shift-engine/shift/store"
	"github.com/warp/shift-engine/store/postgres"
	"github.com/warp/shift-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var (
		shifts       shift.ShiftStore
		appointments shift.AppointmentStore
		payConfig    shift.ConfigProvider
		closeStore   func()
	)
	switch cfg.StoreDriver {
	case "sqlite":
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize sqlite store: %v", err)
		}
		shifts, appointments, payConfig = st, st, st
		closeStore = func() { st.Close() }
	case "postgres":
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize postgres store: %v", err)
		}
		shifts, appointments, payConfig = st, st, st
		closeStore = st.Close
	case "memory":
		st := memstore.NewMemory()
		shifts, appointments, payConfig = st, st, st
		closeStore = func() {}
	}
	defer closeStore()

	var notifier shift.Notifier = notify.LogNotifier{}
	if cfg.AMQPURL != "" {
		n, err := notify.DialAMQP(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to connect to AMQP broker: %v", err)
		}
		defer n.Close()
		notifier = n
	}

	lifecycle := shift.NewLifecycle(shifts, appointments, payConfig, notifier)
	stats := shift.NewStats(shifts, payConfig)

	handler := api.NewHandler(lifecycle, stats)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Shift engine listening on :%d (store=%s)", cfg.Port, cfg.StoreDriver)
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

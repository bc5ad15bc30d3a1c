/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the progress ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize the SQLite store (events, streaks, sequences, flags)
  3. Wire ledger, streak engine, backfill reconcilers, replication surface
  4. Configure the HTTP router
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: ledger.db)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection
  4. Exit

SEE ALSO:
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/progress-ledger/api"
	"github.com/warp/progress-ledger/backfill"
	"github.com/warp/progress-ledger/ledger"
	"github.com/warp/progress-ledger/replica"
	"github.com/warp/progress-ledger/store/sqlite"
	"github.com/warp/progress-ledger/streak"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "ledger.db", "SQLite database path")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	lgr := ledger.NewLedger(store, store)
	engine := streak.NewEngine(store, store, streak.NoVacations{}, store)
	rep := replica.New(store)

	handler := &api.Handler{
		Ledger:   lgr,
		Streaks:  engine,
		Replica:  rep,
		Schedule: store,
		Backfills: []*backfill.Reconciler{
			backfill.NewReconciler(store, store.LegacySnapshotSource(), store, backfill.FlagSnapshotMigration, nil),
			backfill.NewReconciler(store, store.LegacyCounterSource(), store, backfill.FlagCounterMigration, nil),
		},
		RegisterHabit: func(ctx context.Context, id ledger.HabitID, userID ledger.UserID, name string, goal int) error {
			return store.SaveHabit(ctx, sqlite.Habit{ID: id, UserID: userID, Name: name, GoalAmount: goal})
		},
	}

	router := api.NewRouter(handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: router,
	}

	go func() {
		log.Printf("Listening on :%d (db: %s)", *port, *dbPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pixvest/backend/internal/audit"
	"github.com/pixvest/backend/internal/config"
	"github.com/pixvest/backend/internal/database"
)

// Offline repair: backfills the legacy stored balance from ledger entries
// that were never applied to it. Idempotent; safe to interrupt and re-run.
func main() {
	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Interrupt received, finishing current batch...")
		cancel()
	}()

	summary, err := audit.NewRepairer(db).Run(ctx)
	if err != nil {
		log.Fatalf("Repair failed: %v", err)
	}
	if summary.Errors > 0 {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pixvest/backend/internal/audit"
	"github.com/pixvest/backend/internal/config"
	"github.com/pixvest/backend/internal/database"
)

// Offline consistency audit: recomputes every user's ledger-derived balance,
// compares it against the stored legacy balance and flags suspected
// duplicate credits. Read-only.
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
		cancel()
	}()

	report, err := audit.NewAuditor(db).Run(ctx)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	for _, m := range report.Mismatches {
		fmt.Printf("MISMATCH user=%s stored=%s derived=%s\n",
			m.UserID, m.Stored.StringFixed(2), m.Derived.StringFixed(2))
	}
	for _, d := range report.DuplicateGroups {
		fmt.Printf("DUPLICATE user=%s kind=%s amount=%s count=%d minute=%s description=%q\n",
			d.UserID, d.Kind, d.Amount.StringFixed(2), d.Count,
			d.Minute.Format("2006-01-02 15:04"), d.Description)
	}

	if len(report.Mismatches) > 0 || len(report.DuplicateGroups) > 0 {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/chapter-points-api/internal/models"
	"github.com/noah-isme/chapter-points-api/internal/repository"
	"github.com/noah-isme/chapter-points-api/internal/service"
	"github.com/noah-isme/chapter-points-api/pkg/config"
	"github.com/noah-isme/chapter-points-api/pkg/database"
	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/logger"
)

// points-reconcile audits aggregates against the ledger once and exits 1 when
// drift remains, so it can gate deploys or run from cron.
func main() {
	var (
		users   string
		repair  bool
		timeout time.Duration
	)
	flag.StringVar(&users, "users", "", "Comma separated user IDs; empty audits everyone")
	flag.BoolVar(&repair, "repair", false, "Overwrite drifted aggregates with ledger totals")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Overall timeout")
	grace := flag.Duration("grace", 0, "Skip pairs with ledger entries newer than this; 0 uses RECONCILE_REPAIR_GRACE")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	reporter := service.NewReconciliationService(repository.NewLedgerRepository(db), repository.NewAggregateRepository(db), nil, nil, logr)
	if *grace > 0 {
		reporter.SetRepairGrace(*grace)
	} else {
		reporter.SetRepairGrace(cfg.Reconcile.RepairGrace)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	run := reporter.DetectDrift
	if repair {
		run = reporter.Repair
	}
	report, err := run(ctx, splitUsers(users))
	if err != nil {
		logr.Fatal("reconciliation failed", zap.Error(err))
	}

	printReport(os.Stdout, report)
	if err := unresolvedDrift(report); err != nil {
		logr.Error("reconciliation incomplete", zap.Error(err))
		os.Exit(1)
	}
}

// unresolvedDrift returns ErrDriftDetected when the run leaves drifted pairs behind.
func unresolvedDrift(report *models.DriftReport) error {
	if !report.Unresolved() {
		return nil
	}
	remaining := len(report.Drift)
	if report.Repaired {
		remaining = len(report.Deferred)
	}
	return appErrors.Clone(appErrors.ErrDriftDetected, fmt.Sprintf("%d drifted pairs remain", remaining))
}

func splitUsers(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func printReport(w io.Writer, report *models.DriftReport) {
	fmt.Fprintln(w, "Points Reconciliation Report")
	fmt.Fprintln(w, "============================")
	fmt.Fprintf(w, "Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	deferred := make(map[string]struct{}, len(report.Deferred))
	for _, d := range report.Deferred {
		deferred[d.UserID+"/"+d.PointKey] = struct{}{}
	}
	for _, d := range report.Drift {
		status := "DRIFT"
		if report.Repaired {
			status = "REPAIRED"
			if _, ok := deferred[d.UserID+"/"+d.PointKey]; ok {
				status = "DEFERRED"
			}
		}
		aggregate := fmt.Sprintf("%d", d.AggregateValue)
		if !d.AggregateFound {
			aggregate = "missing"
		}
		fmt.Fprintf(w, "[%s] %s %s\n", status, d.UserID, d.PointKey)
		fmt.Fprintf(w, "  Ledger: %d | Aggregate: %s | Delta: %+d\n", d.LedgerTotal, aggregate, d.Delta)
	}
	fmt.Fprintf(w, "Checked pairs: %d, Drifted pairs: %d, Deferred pairs: %d\n", report.CheckedPairs, len(report.Drift), len(report.Deferred))
}

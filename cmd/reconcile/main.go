// Command reconcile runs a single reconciliation pass over every generated bill
// and reports bills whose remote paid amount disagrees with the local ledger.
// Usage: go run ./cmd/reconcile
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"labdesk/internal/app"
	"labdesk/internal/billing"
	"labdesk/internal/config"
	"labdesk/internal/labapi"
	"labdesk/internal/ledger"
	"labdesk/internal/logger"
	"labdesk/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	store, db, err := app.OpenLedgerStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	alerts, err := app.NewAlertSender(cfg, zlog)
	if err != nil {
		return err
	}

	worker := service.NewReconcileWorker(
		labapi.NewClient(&cfg.LabAPI, zlog.Named("labapi")),
		ledger.New(store),
		billing.NewReconciler(cfg.Reconcile.DriftTolerance),
		alerts,
		service.ReconcileWorkerConfig{Concurrency: cfg.Reconcile.Concurrency},
		zlog.Named("reconcile"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	report, err := worker.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("reconcile pass: %w", err)
	}

	zlog.Info("reconcile complete",
		zap.Int("bills", report.Bills),
		zap.Int("ambiguous", report.Ambiguous),
		zap.Int("failed", report.Failed),
		zap.Duration("took", time.Since(start)),
	)
	if report.Failed > 0 {
		return fmt.Errorf("%d bills could not be reconciled", report.Failed)
	}
	return nil
}

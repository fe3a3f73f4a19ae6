package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"labdesk/internal/billing"
	"labdesk/internal/domain"
	"labdesk/internal/ledger"
	"labdesk/internal/port"
)

// DefaultReconcilePollInterval is used when no positive interval is configured.
const DefaultReconcilePollInterval = 5 * time.Minute

// ReconcileWorkerConfig holds settings for the reconciliation audit worker.
type ReconcileWorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
}

// AuditReport summarizes one reconciliation pass.
type AuditReport struct {
	Bills     int
	Ambiguous int
	Failed    int
}

// ReconcileWorker periodically reconciles every generated bill against the
// local ledger and reports mismatches. It only reads from the lab API.
type ReconcileWorker struct {
	lab        port.LabAPI
	ledger     *ledger.Ledger
	reconciler *billing.Reconciler
	alerts     port.AlertSender
	cfg        ReconcileWorkerConfig
	log        *zap.Logger
	wg         sync.WaitGroup
}

// NewReconcileWorker creates a new ReconcileWorker.
func NewReconcileWorker(
	lab port.LabAPI,
	l *ledger.Ledger,
	reconciler *billing.Reconciler,
	alerts port.AlertSender,
	cfg ReconcileWorkerConfig,
	log *zap.Logger,
) *ReconcileWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultReconcilePollInterval
	}
	return &ReconcileWorker{
		lab:        lab,
		ledger:     l,
		reconciler: reconciler,
		alerts:     alerts,
		cfg:        cfg,
		log:        log,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until the
// in-flight pass has finished.
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info("reconcile worker started",
		zap.Duration("poll", w.cfg.PollInterval),
		zap.Int("concurrency", w.cfg.Concurrency),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("reconcile worker shutting down, waiting for in-flight audits")
			w.wg.Wait()
			w.log.Info("reconcile worker shutdown complete")
			return
		case <-ticker.C:
			report, err := w.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.log.Error("reconcile pass failed", zap.Error(err))
				continue
			}
			w.log.Info("reconcile pass finished",
				zap.Int("bills", report.Bills),
				zap.Int("ambiguous", report.Ambiguous),
				zap.Int("failed", report.Failed),
			)
		}
	}
}

// RunOnce reconciles every generated bill once, with at most Concurrency
// bills in flight.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (AuditReport, error) {
	rows, err := w.lab.FetchBillingRequests(ctx)
	if err != nil {
		return AuditReport{}, err
	}

	var (
		mu     sync.Mutex
		report AuditReport
	)
	sem := make(chan struct{}, w.cfg.Concurrency)

	for i := range rows {
		row := rows[i]
		if row.Bill == nil || row.Bill.InvoiceNumber == "" {
			continue
		}

		sem <- struct{}{} // acquire
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-sem }() // release

			ambiguous, err := w.auditBill(ctx, row)

			mu.Lock()
			defer mu.Unlock()
			report.Bills++
			switch {
			case err != nil:
				report.Failed++
				w.log.Error("reconcile bill failed", zap.String("bill_id", row.ID), zap.Error(err))
			case ambiguous:
				report.Ambiguous++
			}
		}()
	}
	w.wg.Wait()
	return report, nil
}

func (w *ReconcileWorker) auditBill(ctx context.Context, row domain.TestRequestWithBilling) (bool, error) {
	events, err := w.ledger.ListPayments(ctx, row.ID)
	if err != nil {
		return false, err
	}
	state := w.reconciler.Reconcile(*row.Bill, events)
	if state.Ambiguity == nil {
		return false, nil
	}
	reportAmbiguity(ctx, w.log, w.alerts, row.ID, *state.Ambiguity)
	return true, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labdesk/internal/app"
	"labdesk/internal/billing"
	"labdesk/internal/config"
	"labdesk/internal/handler"
	"labdesk/internal/labapi"
	"labdesk/internal/ledger"
	"labdesk/internal/logger"
	"labdesk/internal/router"
	"labdesk/internal/service"
	s3storage "labdesk/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ledger store
	store, db, err := app.OpenLedgerStore(cfg)
	if err != nil {
		return err
	}
	var pinger handler.Pinger
	if db != nil {
		defer func() { _ = db.Close() }()
		pinger = db
	}
	zlog.Info("ledger store ready", zap.String("driver", cfg.Store.Driver))

	// Receipt archive
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	alerts, err := app.NewAlertSender(cfg, zlog)
	if err != nil {
		return err
	}

	// Core services
	lab := labapi.NewClient(&cfg.LabAPI, zlog.Named("labapi"))
	l := ledger.New(store)
	reconciler := billing.NewReconciler(cfg.Reconcile.DriftTolerance)

	authSvc := service.NewAuthService(cfg.JWT)
	receiptSvc := service.NewReceiptService(s3Client, &cfg.S3, &cfg.Receipt, zlog.Named("receipts"))
	billingSvc := service.NewBillingService(lab, l, receiptSvc, reconciler, alerts, cfg.Billing.Currency, zlog.Named("billing"))

	// Reconciliation audit worker
	worker := service.NewReconcileWorker(lab, l, reconciler, alerts, service.ReconcileWorkerConfig{
		PollInterval: time.Duration(cfg.Reconcile.PollIntervalSecs) * time.Second,
		Concurrency:  cfg.Reconcile.Concurrency,
	}, zlog.Named("reconcile"))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	// Handlers
	billingH := handler.NewBillingHandler(billingSvc, receiptSvc)
	paymentH := handler.NewPaymentHandler(billingSvc)
	healthH := handler.NewHealthHandler(pinger)

	r := router.Setup(router.Options{
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
		MaxMultipartMemory: cfg.Receipt.MaxBytes() + 1<<20,
		EnableSwagger:      cfg.Server.Environment != "production",
	}, zlog, authSvc, billingH, paymentH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stop()
		<-workerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown failed", zap.Error(err))
	}
	<-workerDone
	zlog.Info("shutdown complete")
	return nil
}

// Command ledgerexport writes every recorded payment event to a CSV or Excel
// file for the accounts team.
// Usage: go run ./cmd/ledgerexport -format xlsx -out payments.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"labdesk/internal/app"
	"labdesk/internal/config"
	"labdesk/internal/ledger"
	"labdesk/internal/paymentexport"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	formatFlag := flag.String("format", "csv", "output format: csv or xlsx")
	outPath := flag.String("out", "", "output file (default payments_<date>.<ext>)")
	flag.Parse()

	format, err := paymentexport.ParseFormat(*formatFlag)
	if err != nil {
		return err
	}
	if *outPath == "" {
		*outPath = paymentexport.BuildFilename(format, time.Now())
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Store.Driver == "memory" {
		return fmt.Errorf("ledgerexport needs a persistent store, got driver %q", cfg.Store.Driver)
	}

	store, db, err := app.OpenLedgerStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	entries, err := ledger.New(store).AllPayments(context.Background())
	if err != nil {
		return fmt.Errorf("loading payments: %w", err)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := paymentexport.Write(out, format, entries); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", format, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	log.Printf("wrote %d payments to %s", len(entries), *outPath)
	return nil
}

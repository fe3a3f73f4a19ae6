// Package app builds the shared infrastructure used by the labdesk commands.
package app

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"labdesk/internal/alert"
	"labdesk/internal/alert/noop"
	"labdesk/internal/alert/ses"
	"labdesk/internal/config"
	"labdesk/internal/port"
	"labdesk/internal/repository/memory"
	"labdesk/internal/repository/postgres"
)

// OpenLedgerStore returns the ledger store selected by cfg.Store.Driver. The
// returned *sqlx.DB is nil for the memory driver; callers close it when set.
func OpenLedgerStore(cfg *config.Config) (port.LedgerStore, *sqlx.DB, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memory.NewLedgerStore(), nil, nil
	case "postgres", "":
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		return postgres.NewLedgerStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewAlertSender returns the operator alert sender selected by
// cfg.Alert.Provider, deduplicated over cfg.Reconcile.AlertWindowMins.
func NewAlertSender(cfg *config.Config, log *zap.Logger) (port.AlertSender, error) {
	var sender port.AlertSender
	switch cfg.Alert.Provider {
	case "ses":
		s, err := ses.NewSESSender(cfg.Alert.Region, cfg.Alert.FromAddress, cfg.Alert.Recipients)
		if err != nil {
			return nil, fmt.Errorf("initializing SES alerts: %w", err)
		}
		sender = s
	case "noop", "":
		sender = noop.NewNoopSender(log)
	default:
		return nil, fmt.Errorf("unknown alert provider %q", cfg.Alert.Provider)
	}

	if cfg.Reconcile.AlertWindowMins <= 0 {
		return sender, nil
	}
	return alert.Deduplicated(sender, time.Duration(cfg.Reconcile.AlertWindowMins)*time.Minute), nil
}

package noop

import (
	"context"

	"go.uber.org/zap"

	"labdesk/internal/domain"
	"labdesk/internal/port"
)

type noopSender struct {
	log *zap.Logger
}

// NewNoopSender creates an AlertSender that only logs the alert.
func NewNoopSender(log *zap.Logger) port.AlertSender {
	return &noopSender{log: log}
}

func (s *noopSender) SendReconciliationAlert(_ context.Context, billID string, a domain.Ambiguity) error {
	s.log.Info("[NOOP ALERT] reconciliation mismatch",
		zap.String("bill_id", billID),
		zap.String("direction", string(a.Direction)),
		zap.String("remote_paid", a.RemotePaid.String()),
		zap.String("local_total", a.LocalTotal.String()),
		zap.String("difference", a.Difference.String()),
	)
	return nil
}

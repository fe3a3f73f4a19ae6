package port

import (
	"context"

	"labdesk/internal/domain"
)

// AlertSender notifies operators about reconciliation mismatches.
type AlertSender interface {
	SendReconciliationAlert(ctx context.Context, billID string, ambiguity domain.Ambiguity) error
}

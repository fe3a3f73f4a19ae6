// Package alert holds operator alerting helpers shared by the alert senders.
package alert

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"labdesk/internal/domain"
	"labdesk/internal/port"
)

type dedupeSender struct {
	next port.AlertSender
	seen *cache.Cache
}

// Deduplicated wraps next so that at most one alert per bill and direction is
// sent within window. A failed send is not remembered.
func Deduplicated(next port.AlertSender, window time.Duration) port.AlertSender {
	return &dedupeSender{
		next: next,
		seen: cache.New(window, 2*window),
	}
}

func (s *dedupeSender) SendReconciliationAlert(ctx context.Context, billID string, a domain.Ambiguity) error {
	key := billID + "|" + string(a.Direction)
	// Add fails when the key is already present and unexpired.
	if err := s.seen.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
		return nil
	}
	if err := s.next.SendReconciliationAlert(ctx, billID, a); err != nil {
		s.seen.Delete(key)
		return err
	}
	return nil
}

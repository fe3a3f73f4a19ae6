// Package ledger keeps the append-only, per-bill log of payment events in the
// service's durable key-value store, independent of the remote lab API.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"labdesk/internal/billing"
	"labdesk/internal/domain"
	"labdesk/internal/port"
)

const (
	paymentKeyPrefix = "partial_payment_"
	pendingKeyPrefix = "pending_remote_"
	eventIDPrefix    = "pay"
)

// PaymentKey is the store key holding the payment events of billID.
func PaymentKey(billID string) string { return paymentKeyPrefix + billID }

// PendingKey is the store key holding unconfirmed remote writes of billID.
func PendingKey(billID string) string { return pendingKeyPrefix + billID }

// Ledger records payment events. Events are never deleted; corrections are
// new events. Appends within one Ledger are serialized so a read that follows
// a write always observes it. Every list change goes through the store's
// atomic Update, so processes sharing a store never drop each other's events.
type Ledger struct {
	store port.LedgerStore
	now   func() time.Time
	newID func() string
	mu    sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides the event id generator.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// New creates a Ledger over store.
func New(store port.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return eventIDPrefix + "_" + ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordPayment appends a payment event for billID and returns it. Draft
// validation is the caller's job; the ledger stores what it is given.
func (l *Ledger) RecordPayment(ctx context.Context, billID string, draft domain.PaymentEventDraft) (*domain.PaymentEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := domain.PaymentEvent{
		ID:            l.newID(),
		BillID:        billID,
		Amount:        draft.Amount,
		Method:        draft.Method,
		TransactionID: strings.TrimSpace(draft.TransactionID),
		Timestamp:     l.now(),
		Notes:         draft.Notes,
		ReceiptRef:    draft.ReceiptRef,
		RecordedBy:    draft.RecordedBy,
		Status:        domain.PaymentRecorded,
	}
	err := modifyList(ctx, l.store, PaymentKey(billID), func(events []domain.PaymentEvent) ([]domain.PaymentEvent, error) {
		return append(events, ev), nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListPayments returns the events of billID newest first.
func (l *Ledger) ListPayments(ctx context.Context, billID string) ([]domain.PaymentEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.load(ctx, billID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(events, func(e domain.PaymentEvent) domain.PaymentEvent { return e })
	return events, nil
}

// TotalPaid sums the amounts recorded for billID.
func (l *Ledger) TotalPaid(ctx context.Context, billID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.load(ctx, billID)
	if err != nil {
		return decimal.Zero, err
	}
	return billing.SumEvents(events), nil
}

// AllPayments lists the events of every bill, newest first.
func (l *Ledger) AllPayments(ctx context.Context) ([]domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys, err := l.store.Keys(ctx, paymentKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger.AllPayments: %w", err)
	}

	var entries []domain.LedgerEntry
	for _, key := range keys {
		billID := strings.TrimPrefix(key, paymentKeyPrefix)
		events, err := l.load(ctx, billID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, lo.Map(events, func(ev domain.PaymentEvent, _ int) domain.LedgerEntry {
			return domain.LedgerEntry{BillID: billID, Event: ev}
		})...)
	}
	sortNewestFirst(entries, func(e domain.LedgerEntry) domain.PaymentEvent { return e.Event })
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return entries, nil
}

// MarkVerified moves every recorded event of billID to verified and returns
// how many changed. Status is the only event field an admin may change.
func (l *Ledger) MarkVerified(ctx context.Context, billID string) (int, error) {
	return l.update(ctx, billID, func(ev *domain.PaymentEvent) bool {
		if ev.Status == domain.PaymentVerified {
			return false
		}
		ev.Status = domain.PaymentVerified
		return true
	})
}

// MarkRemoteConfirmed flags eventID as persisted by the lab API.
func (l *Ledger) MarkRemoteConfirmed(ctx context.Context, billID, eventID string) error {
	n, err := l.update(ctx, billID, func(ev *domain.PaymentEvent) bool {
		if ev.ID != eventID || ev.RemoteConfirmed {
			return false
		}
		ev.RemoteConfirmed = true
		return true
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ledger.MarkRemoteConfirmed: event %s: %w", eventID, domain.ErrNotFound)
	}
	return nil
}

// AddPending stores a remote write that failed so it can be retried alone.
func (l *Ledger) AddPending(ctx context.Context, billID string, pw domain.PendingRemoteWrite) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return modifyList(ctx, l.store, PendingKey(billID), func(pending []domain.PendingRemoteWrite) ([]domain.PendingRemoteWrite, error) {
		return append(pending, pw), nil
	})
}

// PendingWrites returns the unconfirmed remote writes of billID, oldest first.
func (l *Ledger) PendingWrites(ctx context.Context, billID string) ([]domain.PendingRemoteWrite, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadPending(ctx, billID)
}

// ReplacePending overwrites the unconfirmed remote writes of billID.
func (l *Ledger) ReplacePending(ctx context.Context, billID string, pending []domain.PendingRemoteWrite) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pending == nil {
		pending = []domain.PendingRemoteWrite{}
	}
	return l.save(ctx, PendingKey(billID), pending)
}

func (l *Ledger) update(ctx context.Context, billID string, fn func(*domain.PaymentEvent) bool) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := 0
	err := modifyList(ctx, l.store, PaymentKey(billID), func(events []domain.PaymentEvent) ([]domain.PaymentEvent, error) {
		for i := range events {
			if fn(&events[i]) {
				changed++
			}
		}
		if changed == 0 {
			return nil, errUnchanged
		}
		return events, nil
	})
	if errors.Is(err, errUnchanged) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return changed, nil
}

var errUnchanged = errors.New("ledger: nothing to change")

// modifyList decodes the JSON list under key, applies fn and writes the
// result back in one store Update.
func modifyList[T any](ctx context.Context, store port.LedgerStore, key string, fn func([]T) ([]T, error)) error {
	err := store.Update(ctx, key, func(cur []byte, found bool) ([]byte, error) {
		items := []T{}
		if found && len(cur) > 0 {
			if err := json.Unmarshal(cur, &items); err != nil {
				return nil, fmt.Errorf("decoding: %w", err)
			}
		}
		items, err := fn(items)
		if err != nil {
			return nil, err
		}
		return json.Marshal(items)
	})
	if errors.Is(err, errUnchanged) {
		return err
	}
	if err != nil {
		return fmt.Errorf("ledger.save %s: %w", key, err)
	}
	return nil
}

func (l *Ledger) load(ctx context.Context, billID string) ([]domain.PaymentEvent, error) {
	raw, ok, err := l.store.Get(ctx, PaymentKey(billID))
	if err != nil {
		return nil, fmt.Errorf("ledger.load %s: %w", billID, err)
	}
	events := []domain.PaymentEvent{}
	if !ok || len(raw) == 0 {
		return events, nil
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("ledger.load %s: decoding: %w", billID, err)
	}
	return events, nil
}

func (l *Ledger) loadPending(ctx context.Context, billID string) ([]domain.PendingRemoteWrite, error) {
	raw, ok, err := l.store.Get(ctx, PendingKey(billID))
	if err != nil {
		return nil, fmt.Errorf("ledger.loadPending %s: %w", billID, err)
	}
	pending := []domain.PendingRemoteWrite{}
	if !ok || len(raw) == 0 {
		return pending, nil
	}
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, fmt.Errorf("ledger.loadPending %s: decoding: %w", billID, err)
	}
	return pending, nil
}

func (l *Ledger) save(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ledger.save %s: encoding: %w", key, err)
	}
	if err := l.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("ledger.save %s: %w", key, err)
	}
	return nil
}

func sortNewestFirst[T any](items []T, event func(T) domain.PaymentEvent) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := event(items[i]), event(items[j])
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
}

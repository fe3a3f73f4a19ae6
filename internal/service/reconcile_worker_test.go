package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labdesk/internal/billing"
	"labdesk/internal/domain"
	"labdesk/internal/ledger"
	"labdesk/internal/repository/memory"
	"labdesk/internal/service"
	"labdesk/mocks"
)

func newWorker(lab *mocks.MockLabAPI, l *ledger.Ledger, alerts *mocks.MockAlertSender) *service.ReconcileWorker {
	return service.NewReconcileWorker(
		lab, l,
		billing.NewReconciler(billing.DefaultDriftTolerance),
		alerts,
		service.ReconcileWorkerConfig{PollInterval: 10 * time.Millisecond, Concurrency: 2},
		zap.NewNop(),
	)
}

func TestReconcileWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	lab := new(mocks.MockLabAPI)
	alerts := new(mocks.MockAlertSender)
	l := ledger.New(memory.NewLedgerStore())

	// tr-2 matches its ledger, tr-3 is ahead remotely, tr-1 has no bill yet.
	_, err := l.RecordPayment(ctx, "tr-2", upiDraft("300"))
	require.NoError(t, err)
	lab.On("FetchBillingRequests", mock.Anything).Return([]domain.TestRequestWithBilling{
		{ID: "tr-1", Status: domain.StatusBillingPending},
		generatedRow("tr-2", "1000", "300"),
		generatedRow("tr-3", "500", "200"),
	}, nil)
	alerts.On("SendReconciliationAlert", mock.Anything, "tr-3", mock.MatchedBy(func(a domain.Ambiguity) bool {
		return a.Direction == domain.RemoteAhead
	})).Return(nil).Once()

	report, err := newWorker(lab, l, alerts).RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, service.AuditReport{Bills: 2, Ambiguous: 1}, report)
	alerts.AssertExpectations(t)
}

func TestReconcileWorker_RunOnce_FetchError(t *testing.T) {
	lab := new(mocks.MockLabAPI)
	lab.On("FetchBillingRequests", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := newWorker(lab, ledger.New(memory.NewLedgerStore()), new(mocks.MockAlertSender)).RunOnce(context.Background())

	assert.Error(t, err)
}

func TestReconcileWorker_StartStopsOnCancel(t *testing.T) {
	lab := new(mocks.MockLabAPI)
	lab.On("FetchBillingRequests", mock.Anything).Return([]domain.TestRequestWithBilling{}, nil)
	w := newWorker(lab, ledger.New(memory.NewLedgerStore()), new(mocks.MockAlertSender))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.NotEmpty(t, lab.Calls)
}

func TestReconcileWorker_NonPositivePollIntervalDoesNotPanic(t *testing.T) {
	w := service.NewReconcileWorker(
		new(mocks.MockLabAPI),
		ledger.New(memory.NewLedgerStore()),
		billing.NewReconciler(billing.DefaultDriftTolerance),
		new(mocks.MockAlertSender),
		service.ReconcileWorkerConfig{PollInterval: 0},
		zap.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() { w.Start(ctx) })
}

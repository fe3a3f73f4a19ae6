package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labdesk/internal/domain"
	"labdesk/internal/service"
)

// MockBillingService is a mock implementation of service.BillingService.
type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) PreviewInvoice(input service.InvoiceDraftInput) (*service.InvoicePreview, error) {
	args := m.Called(input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InvoicePreview), args.Error(1)
}

func (m *MockBillingService) ListBills(ctx context.Context) ([]service.BillView, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.BillView), args.Error(1)
}

func (m *MockBillingService) GetBill(ctx context.Context, testRequestID string) (*service.BillView, error) {
	args := m.Called(ctx, testRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BillView), args.Error(1)
}

func (m *MockBillingService) GenerateBill(ctx context.Context, testRequestID string, input service.InvoiceDraftInput) (*service.BillView, error) {
	args := m.Called(ctx, testRequestID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BillView), args.Error(1)
}

func (m *MockBillingService) SubmitPayment(ctx context.Context, input service.SubmitPaymentInput) (*service.PaymentResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PaymentResult), args.Error(1)
}

func (m *MockBillingService) RetryRemotePayments(ctx context.Context, testRequestID string) (*service.RetryResult, error) {
	args := m.Called(ctx, testRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RetryResult), args.Error(1)
}

func (m *MockBillingService) VerifyPayment(ctx context.Context, testRequestID string) (*service.VerifyResult, error) {
	args := m.Called(ctx, testRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VerifyResult), args.Error(1)
}

func (m *MockBillingService) DownloadInvoice(ctx context.Context, testRequestID string) (*domain.InvoiceFile, error) {
	args := m.Called(ctx, testRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InvoiceFile), args.Error(1)
}

func (m *MockBillingService) ListPayments(ctx context.Context, testRequestID string) ([]domain.PaymentEvent, error) {
	args := m.Called(ctx, testRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentEvent), args.Error(1)
}

func (m *MockBillingService) AllPayments(ctx context.Context) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labdesk/internal/domain"
)

// MockLabAPI is a mock implementation of port.LabAPI.
type MockLabAPI struct {
	mock.Mock
}

func (m *MockLabAPI) GenerateBill(ctx context.Context, testRequestID string, req domain.GenerateBillRequest) (*domain.Bill, error) {
	args := m.Called(ctx, testRequestID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bill), args.Error(1)
}

func (m *MockLabAPI) MarkPaid(ctx context.Context, testRequestID string, req domain.MarkPaidRequest, receipt *domain.ReceiptFile) (*domain.MarkPaidResult, error) {
	args := m.Called(ctx, testRequestID, req, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MarkPaidResult), args.Error(1)
}

func (m *MockLabAPI) FetchBillingRequests(ctx context.Context) ([]domain.TestRequestWithBilling, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TestRequestWithBilling), args.Error(1)
}

func (m *MockLabAPI) DownloadInvoice(ctx context.Context, testRequestID string) (*domain.InvoiceFile, error) {
	args := m.Called(ctx, testRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InvoiceFile), args.Error(1)
}

func (m *MockLabAPI) VerifyPayment(ctx context.Context, testRequestID string) (domain.BillingStatus, error) {
	args := m.Called(ctx, testRequestID)
	return args.Get(0).(domain.BillingStatus), args.Error(1)
}

package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"labdesk/internal/domain"
)

// MockReceiptService is a mock implementation of service.ReceiptService.
type MockReceiptService struct {
	mock.Mock
}

func (m *MockReceiptService) Prepare(fileName string, r io.Reader) (*domain.ReceiptFile, error) {
	args := m.Called(fileName, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReceiptFile), args.Error(1)
}

func (m *MockReceiptService) Archive(ctx context.Context, billID string, f *domain.ReceiptFile) (string, error) {
	args := m.Called(ctx, billID, f)
	return args.String(0), args.Error(1)
}

func (m *MockReceiptService) Fetch(ctx context.Context, ref string) (*domain.ReceiptFile, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReceiptFile), args.Error(1)
}

func (m *MockReceiptService) Discard(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockReceiptService) DownloadURL(ctx context.Context, ref string) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

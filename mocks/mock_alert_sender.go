package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"labdesk/internal/domain"
)

// MockAlertSender is a mock implementation of port.AlertSender.
type MockAlertSender struct {
	mock.Mock
}

func (m *MockAlertSender) SendReconciliationAlert(ctx context.Context, billID string, a domain.Ambiguity) error {
	args := m.Called(ctx, billID, a)
	return args.Error(0)
}

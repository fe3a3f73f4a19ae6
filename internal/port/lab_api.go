package port

import (
	"context"

	"labdesk/internal/domain"
)

// LabAPI is the remote lab API that owns test requests and their bills.
// Every method fails with *domain.RemoteError on network or server failure.
type LabAPI interface {
	GenerateBill(ctx context.Context, testRequestID string, req domain.GenerateBillRequest) (*domain.Bill, error)
	MarkPaid(ctx context.Context, testRequestID string, req domain.MarkPaidRequest, receipt *domain.ReceiptFile) (*domain.MarkPaidResult, error)
	FetchBillingRequests(ctx context.Context) ([]domain.TestRequestWithBilling, error)
	DownloadInvoice(ctx context.Context, testRequestID string) (*domain.InvoiceFile, error)
	VerifyPayment(ctx context.Context, testRequestID string) (domain.BillingStatus, error)
}

package handler

import (
	"github.com/shopspring/decimal"

	"labdesk/internal/domain"
)

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// InvoiceDraftRequest represents the bill generation and preview request body.
type InvoiceDraftRequest struct {
	Items     []domain.LineItem `json:"items"`
	Taxes     decimal.Decimal   `json:"taxes" swaggertype:"string" example:"18.00"`
	Discounts decimal.Decimal   `json:"discounts" swaggertype:"string" example:"50.00"`
	Notes     string            `json:"notes" example:"home collection"`
}

// SubmitPaymentRequest represents the JSON payment request body. The same
// fields are accepted as multipart form fields alongside a "receipt" file.
type SubmitPaymentRequest struct {
	Amount        string `json:"amount" form:"amount" example:"400.00"`
	Method        string `json:"method" form:"method" example:"UPI"`
	TransactionID string `json:"transaction_id" form:"transaction_id" example:"UPI-4471902"`
	Notes         string `json:"notes" form:"notes" example:"first instalment"`
}

// --- Response Types ---

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"database not reachable"`
}

// ReceiptURLResponse represents a presigned receipt download link.
type ReceiptURLResponse struct {
	PaymentID   string `json:"payment_id" example:"pay_01JABCDEF0123456789XYZ"`
	DownloadURL string `json:"download_url" example:"https://s3.amazonaws.com/labdesk-receipts/...?X-Amz-Signature=..."`
}

// --- Generic Response Wrappers ---

// Response wraps a successful response with data.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *ListMeta   `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is a single billable test on a bill.
type LineItem struct {
	Name      string          `json:"name"`
	Code      string          `json:"code,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Bill is the itemized invoice generated for one test request.
type Bill struct {
	InvoiceNumber       string          `json:"invoice_number"`
	Items               []LineItem      `json:"items"`
	Taxes               decimal.Decimal `json:"taxes"`
	Discounts           decimal.Decimal `json:"discounts"`
	Currency            string          `json:"currency"`
	Notes               string          `json:"notes,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	PaidAmountRemote    decimal.Decimal `json:"paid_amount"`
	Status              BillingStatus   `json:"status"`
	RemotePaymentStatus string          `json:"payment_status,omitempty"`
	GeneratedAt         *time.Time      `json:"generated_at,omitempty"`
}

// TestRequestWithBilling is a test request row as listed by the lab API.
type TestRequestWithBilling struct {
	ID          string        `json:"id"`
	PatientName string        `json:"patient_name"`
	CenterName  string        `json:"center_name,omitempty"`
	DoctorName  string        `json:"doctor_name,omitempty"`
	Tests       []string      `json:"tests,omitempty"`
	Status      BillingStatus `json:"status"`
	Bill        *Bill         `json:"billing,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// PaymentEventDraft is the caller-supplied part of a payment.
type PaymentEventDraft struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	TransactionID string          `json:"transaction_id"`
	Notes         string          `json:"notes,omitempty"`
	ReceiptRef    string          `json:"receipt_ref,omitempty"`
	RecordedBy    uuid.UUID       `json:"recorded_by"`
}

// PaymentEvent is an immutable ledger entry. Only Status and RemoteConfirmed
// change after it is appended.
type PaymentEvent struct {
	ID              string             `json:"id"`
	BillID          string             `json:"bill_id"`
	Amount          decimal.Decimal    `json:"amount"`
	Method          PaymentMethod      `json:"method"`
	TransactionID   string             `json:"transaction_id"`
	Timestamp       time.Time          `json:"timestamp"`
	Notes           string             `json:"notes,omitempty"`
	ReceiptRef      string             `json:"receipt_ref,omitempty"`
	RecordedBy      uuid.UUID          `json:"recorded_by"`
	Status          PaymentEventStatus `json:"status"`
	RemoteConfirmed bool               `json:"remote_confirmed"`
}

// Ambiguity describes a disagreement between the remote paid amount and the
// local ledger total that exceeds the drift tolerance.
type Ambiguity struct {
	RemotePaid decimal.Decimal    `json:"remote_paid"`
	LocalTotal decimal.Decimal    `json:"local_total"`
	Difference decimal.Decimal    `json:"difference"`
	Direction  AmbiguityDirection `json:"direction"`
}

// ReconciledState is derived on every read and never persisted.
type ReconciledState struct {
	EffectivePaid  decimal.Decimal       `json:"effective_paid"`
	Remaining      decimal.Decimal       `json:"remaining"`
	Classification PaymentClassification `json:"classification"`
	LocalTotal     decimal.Decimal       `json:"local_total"`
	RemotePaid     decimal.Decimal       `json:"remote_paid"`
	SettledByState bool                  `json:"settled_by_status"`
	Ambiguity      *Ambiguity            `json:"ambiguity,omitempty"`
}

// MarkPaidRequest carries the fields of a remote mark-paid call.
type MarkPaidRequest struct {
	PaymentEventID    string          `json:"paymentEventId"`
	PaymentMethod     PaymentMethod   `json:"paymentMethod"`
	TransactionID     string          `json:"transactionId"`
	PaymentAmount     decimal.Decimal `json:"paymentAmount"`
	IsPartialPayment  bool            `json:"isPartialPayment"`
	CurrentPaidAmount decimal.Decimal `json:"currentPaidAmount"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Notes             string          `json:"notes"`
	ReceiptRef        string          `json:"receiptRef,omitempty"`
}

// MarkPaidResult is the billing block returned by a mark-paid call.
type MarkPaidResult struct {
	PaidAmount decimal.Decimal `json:"paidAmount"`
	Status     string          `json:"status"`
}

// GenerateBillRequest carries the draft sent to the lab API.
type GenerateBillRequest struct {
	Items     []LineItem      `json:"items"`
	Taxes     decimal.Decimal `json:"taxes"`
	Discounts decimal.Decimal `json:"discounts"`
	Currency  string          `json:"currency"`
	Notes     string          `json:"notes,omitempty"`
}

// ReceiptFile is a payment receipt attached to a remote mark-paid call.
type ReceiptFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// InvoiceFile is a downloaded invoice document.
type InvoiceFile struct {
	FileName    string
	ContentType string
	Body        []byte
}

// PendingRemoteWrite is a mark-paid call that failed and awaits retry.
type PendingRemoteWrite struct {
	Request  MarkPaidRequest `json:"request"`
	Attempts int             `json:"attempts"`
	LastErr  string          `json:"last_error"`
	FailedAt time.Time       `json:"failed_at"`
}

// LedgerEntry pairs a payment event with its owning bill for cross-bill views.
type LedgerEntry struct {
	BillID string       `json:"bill_id"`
	Event  PaymentEvent `json:"event"`
}

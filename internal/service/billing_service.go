package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"labdesk/internal/billing"
	"labdesk/internal/domain"
	"labdesk/internal/ledger"
	"labdesk/internal/port"
)

// InvoiceDraftInput is the DTO for bill generation and preview requests.
type InvoiceDraftInput struct {
	Items     []domain.LineItem `json:"items"`
	Taxes     decimal.Decimal   `json:"taxes"`
	Discounts decimal.Decimal   `json:"discounts"`
	Notes     string            `json:"notes"`
}

// InvoicePreview is the computed result of an invoice draft.
type InvoicePreview struct {
	Items      []domain.LineItem `json:"items"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
	Taxes      decimal.Decimal   `json:"taxes"`
	Discounts  decimal.Decimal   `json:"discounts"`
	GrandTotal decimal.Decimal   `json:"grand_total"`
	Currency   string            `json:"currency"`
	Excluded   int               `json:"excluded_items"`
}

// BillView is a test request with its reconciled payment state and the
// actions the console should offer.
type BillView struct {
	domain.TestRequestWithBilling
	Reconciled    *domain.ReconciledState `json:"reconciled,omitempty"`
	SubStatus     domain.PaymentSubStatus `json:"payment_sub_status"`
	Actions       []domain.Action         `json:"actions"`
	PendingRemote int                     `json:"pending_remote_writes"`
}

// SubmitPaymentInput is the DTO for a payment submission.
type SubmitPaymentInput struct {
	TestRequestID string
	Draft         domain.PaymentEventDraft
	Receipt       *domain.ReceiptFile
}

// PaymentResult reports a recorded payment. RemoteConfirmed is false when
// the lab API write failed and a pending write was stored for retry.
type PaymentResult struct {
	Event           domain.PaymentEvent     `json:"event"`
	Reconciled      domain.ReconciledState  `json:"reconciled"`
	SubStatus       domain.PaymentSubStatus `json:"payment_sub_status"`
	RemoteConfirmed bool                    `json:"remote_confirmed"`
	RemoteError     string                  `json:"remote_error,omitempty"`
}

// RetryResult reports the outcome of replaying pending remote writes.
type RetryResult struct {
	Confirmed []string `json:"confirmed"`
	Remaining int      `json:"remaining"`
}

// VerifyResult reports an admin verification.
type VerifyResult struct {
	Status   domain.BillingStatus `json:"status"`
	Verified int                  `json:"verified_events"`
}

// BillingService orchestrates the billing and payment workflow.
type BillingService interface {
	PreviewInvoice(input InvoiceDraftInput) (*InvoicePreview, error)
	ListBills(ctx context.Context) ([]BillView, error)
	GetBill(ctx context.Context, testRequestID string) (*BillView, error)
	GenerateBill(ctx context.Context, testRequestID string, input InvoiceDraftInput) (*BillView, error)
	SubmitPayment(ctx context.Context, input SubmitPaymentInput) (*PaymentResult, error)
	RetryRemotePayments(ctx context.Context, testRequestID string) (*RetryResult, error)
	VerifyPayment(ctx context.Context, testRequestID string) (*VerifyResult, error)
	DownloadInvoice(ctx context.Context, testRequestID string) (*domain.InvoiceFile, error)
	ListPayments(ctx context.Context, testRequestID string) ([]domain.PaymentEvent, error)
	AllPayments(ctx context.Context) ([]domain.LedgerEntry, error)
}

type billingService struct {
	lab        port.LabAPI
	ledger     *ledger.Ledger
	receipts   ReceiptService
	reconciler *billing.Reconciler
	alerts     port.AlertSender
	currency   string
	log        *zap.Logger
}

// NewBillingService creates a new BillingService implementation.
func NewBillingService(
	lab port.LabAPI,
	l *ledger.Ledger,
	receipts ReceiptService,
	reconciler *billing.Reconciler,
	alerts port.AlertSender,
	currency string,
	log *zap.Logger,
) BillingService {
	return &billingService{
		lab:        lab,
		ledger:     l,
		receipts:   receipts,
		reconciler: reconciler,
		alerts:     alerts,
		currency:   currency,
		log:        log,
	}
}

func (s *billingService) PreviewInvoice(input InvoiceDraftInput) (*InvoicePreview, error) {
	valid, err := billing.ValidateDraft(input.Items)
	if err != nil {
		return nil, err
	}
	taxes := billing.ClampNonNegative(input.Taxes)
	discounts := billing.ClampNonNegative(input.Discounts)
	totals := billing.ComputeTotals(valid, taxes, discounts)
	return &InvoicePreview{
		Items:      valid,
		Subtotal:   totals.Subtotal,
		Taxes:      taxes,
		Discounts:  discounts,
		GrandTotal: totals.GrandTotal,
		Currency:   s.currency,
		Excluded:   len(input.Items) - len(valid),
	}, nil
}

func (s *billingService) ListBills(ctx context.Context) ([]BillView, error) {
	rows, err := s.lab.FetchBillingRequests(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]BillView, 0, len(rows))
	for _, row := range rows {
		view, err := s.buildView(ctx, row)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *billingService) GetBill(ctx context.Context, testRequestID string) (*BillView, error) {
	row, err := s.findRequest(ctx, testRequestID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, *row)
}

func (s *billingService) GenerateBill(ctx context.Context, testRequestID string, input InvoiceDraftInput) (*BillView, error) {
	row, err := s.findRequest(ctx, testRequestID)
	if err != nil {
		return nil, err
	}

	status := row.Status
	if status == domain.StatusPending {
		if status, err = billing.Next(status, domain.TriggerBillingDue); err != nil {
			return nil, err
		}
	}
	if _, err := billing.Next(status, domain.TriggerGenerateBill); err != nil {
		return nil, err
	}

	preview, err := s.PreviewInvoice(input)
	if err != nil {
		return nil, err
	}

	bill, err := s.lab.GenerateBill(ctx, testRequestID, domain.GenerateBillRequest{
		Items:     preview.Items,
		Taxes:     preview.Taxes,
		Discounts: preview.Discounts,
		Currency:  s.currency,
		Notes:     input.Notes,
	})
	if err != nil {
		s.log.Error("generate bill failed", zap.String("test_request_id", testRequestID), zap.Error(err))
		return nil, err
	}

	if bill.Amount.IsZero() && preview.GrandTotal.IsPositive() {
		bill.Amount = preview.GrandTotal
	}
	if len(bill.Items) == 0 {
		bill.Items = preview.Items
	}
	if bill.Currency == "" {
		bill.Currency = s.currency
	}
	if bill.Status == "" {
		bill.Status = domain.StatusBillingGenerated
	}
	if bill.GeneratedAt == nil {
		now := time.Now().UTC()
		bill.GeneratedAt = &now
	}

	s.log.Info("bill generated",
		zap.String("test_request_id", testRequestID),
		zap.String("invoice_number", bill.InvoiceNumber),
		zap.String("amount", bill.Amount.StringFixed(2)),
	)

	row.Status = domain.StatusBillingGenerated
	row.Bill = bill
	return s.buildView(ctx, *row)
}

func (s *billingService) SubmitPayment(ctx context.Context, input SubmitPaymentInput) (*PaymentResult, error) {
	row, err := s.findRequest(ctx, input.TestRequestID)
	if err != nil {
		return nil, err
	}
	if row.Bill == nil {
		return nil, fmt.Errorf("submit payment %s: %w", input.TestRequestID, domain.ErrBillNotGenerated)
	}
	bill := *row.Bill

	events, err := s.ledger.ListPayments(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	before := s.reconciler.Reconcile(bill, events)
	if err := billing.PaymentGuard(requestStatus(*row), before, input.Draft); err != nil {
		return nil, err
	}

	draft := input.Draft
	if input.Receipt != nil {
		ref, err := s.receipts.Archive(ctx, row.ID, input.Receipt)
		if err != nil {
			return nil, err
		}
		draft.ReceiptRef = ref
	}

	ev, err := s.ledger.RecordPayment(ctx, row.ID, draft)
	if err != nil {
		if draft.ReceiptRef != "" {
			if derr := s.receipts.Discard(context.WithoutCancel(ctx), draft.ReceiptRef); derr != nil {
				s.log.Warn("discarding orphaned receipt failed", zap.String("receipt_ref", draft.ReceiptRef), zap.Error(derr))
			}
		}
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("test_request_id", row.ID),
		zap.String("payment_event_id", ev.ID),
		zap.String("amount", ev.Amount.StringFixed(2)),
		zap.String("method", string(ev.Method)),
	)

	billAmount := billing.ClampNonNegative(bill.Amount)
	req := domain.MarkPaidRequest{
		PaymentEventID:    ev.ID,
		PaymentMethod:     ev.Method,
		TransactionID:     ev.TransactionID,
		PaymentAmount:     ev.Amount,
		IsPartialPayment:  billing.AfterPayment(before, billAmount, ev.Amount) == domain.SubStatusPartiallyPaid,
		CurrentPaidAmount: before.EffectivePaid,
		TotalAmount:       billAmount,
		Notes:             ev.Notes,
		ReceiptRef:        ev.ReceiptRef,
	}

	result := &PaymentResult{Event: *ev}
	res, remoteErr := s.lab.MarkPaid(ctx, row.ID, req, input.Receipt)
	if remoteErr != nil {
		// The local event stands; only the remote write is queued for retry.
		pending := domain.PendingRemoteWrite{
			Request:  req,
			Attempts: 1,
			LastErr:  remoteErr.Error(),
			FailedAt: time.Now().UTC(),
		}
		// The payment is recorded either way; report it as such.
		if err := s.ledger.AddPending(context.WithoutCancel(ctx), row.ID, pending); err != nil {
			s.log.Error("recording pending remote write failed",
				zap.String("test_request_id", row.ID),
				zap.String("payment_event_id", ev.ID),
				zap.Error(err),
			)
		}
		s.log.Warn("remote mark-paid failed, payment kept locally",
			zap.String("test_request_id", row.ID),
			zap.String("payment_event_id", ev.ID),
			zap.Error(remoteErr),
		)
		result.RemoteError = remoteErr.Error()
	} else {
		result.RemoteConfirmed = true
		if err := s.ledger.MarkRemoteConfirmed(context.WithoutCancel(ctx), row.ID, ev.ID); err != nil {
			s.log.Error("flagging remote-confirmed payment failed",
				zap.String("test_request_id", row.ID),
				zap.String("payment_event_id", ev.ID),
				zap.Error(err),
			)
		} else {
			result.Event.RemoteConfirmed = true
		}
		if res.PaidAmount.IsPositive() {
			bill.PaidAmountRemote = res.PaidAmount
		}
		if res.Status != "" {
			bill.RemotePaymentStatus = res.Status
		}
	}

	after := s.reconciler.Reconcile(bill, append(events, result.Event))
	result.Reconciled = after
	result.SubStatus = billing.SubStatus(domain.StatusBillingGenerated, after.Classification)
	return result, nil
}

func (s *billingService) RetryRemotePayments(ctx context.Context, testRequestID string) (*RetryResult, error) {
	pending, err := s.ledger.PendingWrites(ctx, testRequestID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, fmt.Errorf("retry %s: %w", testRequestID, domain.ErrNoPendingRemote)
	}

	result := &RetryResult{Confirmed: []string{}}
	var retryErr error
	for i := range pending {
		pw := &pending[i]
		receipt := s.fetchReceipt(ctx, pw.Request.ReceiptRef)

		if _, err := s.lab.MarkPaid(ctx, testRequestID, pw.Request, receipt); err != nil {
			pw.Attempts++
			pw.LastErr = err.Error()
			pw.FailedAt = time.Now().UTC()
			retryErr = err
			s.log.Warn("remote mark-paid retry failed",
				zap.String("test_request_id", testRequestID),
				zap.String("payment_event_id", pw.Request.PaymentEventID),
				zap.Int("attempts", pw.Attempts),
				zap.Error(err),
			)
			// Later writes carry a currentPaidAmount that assumes this one
			// landed, so they wait behind it.
			break
		}
		if err := s.ledger.MarkRemoteConfirmed(ctx, testRequestID, pw.Request.PaymentEventID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		result.Confirmed = append(result.Confirmed, pw.Request.PaymentEventID)
	}

	remaining := pending[len(result.Confirmed):]
	if err := s.ledger.ReplacePending(context.WithoutCancel(ctx), testRequestID, remaining); err != nil {
		return nil, err
	}
	result.Remaining = len(remaining)

	s.log.Info("remote payment retry finished",
		zap.String("test_request_id", testRequestID),
		zap.Int("confirmed", len(result.Confirmed)),
		zap.Int("remaining", result.Remaining),
	)
	if retryErr != nil {
		return result, retryErr
	}
	return result, nil
}

func (s *billingService) VerifyPayment(ctx context.Context, testRequestID string) (*VerifyResult, error) {
	row, err := s.findRequest(ctx, testRequestID)
	if err != nil {
		return nil, err
	}
	if row.Bill == nil {
		return nil, fmt.Errorf("verify %s: %w", testRequestID, domain.ErrBillNotGenerated)
	}

	events, err := s.ledger.ListPayments(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	state := s.reconciler.Reconcile(*row.Bill, events)
	if err := billing.VerifyGuard(requestStatus(*row), state); err != nil {
		return nil, err
	}

	status, err := s.lab.VerifyPayment(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	n, err := s.ledger.MarkVerified(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("payment verified",
		zap.String("test_request_id", row.ID),
		zap.String("status", string(status)),
		zap.Int("events", n),
	)
	return &VerifyResult{Status: status, Verified: n}, nil
}

func (s *billingService) DownloadInvoice(ctx context.Context, testRequestID string) (*domain.InvoiceFile, error) {
	return s.lab.DownloadInvoice(ctx, testRequestID)
}

func (s *billingService) ListPayments(ctx context.Context, testRequestID string) ([]domain.PaymentEvent, error) {
	return s.ledger.ListPayments(ctx, testRequestID)
}

func (s *billingService) AllPayments(ctx context.Context) ([]domain.LedgerEntry, error) {
	return s.ledger.AllPayments(ctx)
}

func (s *billingService) findRequest(ctx context.Context, testRequestID string) (*domain.TestRequestWithBilling, error) {
	rows, err := s.lab.FetchBillingRequests(ctx)
	if err != nil {
		return nil, err
	}
	row, ok := lo.Find(rows, func(r domain.TestRequestWithBilling) bool { return r.ID == testRequestID })
	if !ok {
		return nil, fmt.Errorf("test request %s: %w", testRequestID, domain.ErrNotFound)
	}
	return &row, nil
}

func (s *billingService) buildView(ctx context.Context, row domain.TestRequestWithBilling) (*BillView, error) {
	status := requestStatus(row)
	view := &BillView{TestRequestWithBilling: row, SubStatus: domain.SubStatusNone}

	if row.Bill == nil || row.Bill.InvoiceNumber == "" {
		view.Actions = billing.AvailableActions(status, false, domain.ReconciledState{})
		return view, nil
	}

	events, err := s.ledger.ListPayments(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	pending, err := s.ledger.PendingWrites(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	state := s.reconciler.Reconcile(*row.Bill, events)
	if state.Ambiguity != nil {
		reportAmbiguity(ctx, s.log, s.alerts, row.ID, *state.Ambiguity)
	}

	view.Reconciled = &state
	view.SubStatus = billing.SubStatus(status, state.Classification)
	view.Actions = billing.AvailableActions(status, true, state)
	view.PendingRemote = len(pending)
	if len(pending) > 0 {
		view.Actions = append(view.Actions, domain.ActionRetryRemotePayment)
	}
	return view, nil
}

// requestStatus prefers the test request status and falls back to the bill's.
func requestStatus(row domain.TestRequestWithBilling) domain.BillingStatus {
	if row.Status != "" || row.Bill == nil {
		return row.Status
	}
	return row.Bill.Status
}

// reportAmbiguity logs a reconciliation mismatch and forwards it to the
// operator alert sender. Alert failures are logged, never returned.
func reportAmbiguity(ctx context.Context, log *zap.Logger, alerts port.AlertSender, billID string, a domain.Ambiguity) {
	log.Warn("reconciliation ambiguity",
		zap.String("bill_id", billID),
		zap.String("direction", string(a.Direction)),
		zap.String("remote_paid", a.RemotePaid.StringFixed(2)),
		zap.String("local_total", a.LocalTotal.StringFixed(2)),
		zap.String("difference", a.Difference.StringFixed(2)),
	)
	if alerts == nil {
		return
	}
	if err := alerts.SendReconciliationAlert(ctx, billID, a); err != nil {
		log.Error("sending reconciliation alert failed", zap.String("bill_id", billID), zap.Error(err))
	}
}

func (s *billingService) fetchReceipt(ctx context.Context, ref string) *domain.ReceiptFile {
	if ref == "" || s.receipts == nil {
		return nil
	}
	f, err := s.receipts.Fetch(ctx, ref)
	if err != nil {
		s.log.Warn("receipt unavailable for retry, sending without file", zap.String("receipt_ref", ref), zap.Error(err))
		return nil
	}
	return f
}

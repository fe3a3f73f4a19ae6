package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"labdesk/internal/domain"
	"labdesk/internal/middleware"
	"labdesk/internal/service"
)

// BillingHandler handles bill generation and payment endpoints.
type BillingHandler struct {
	billingService service.BillingService
	receiptService service.ReceiptService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingService service.BillingService, receiptService service.ReceiptService) *BillingHandler {
	return &BillingHandler{billingService: billingService, receiptService: receiptService}
}

// PreviewInvoice handles POST /api/v1/invoices/preview
// @Summary Preview an invoice
// @Description Compute subtotal and grand total for a draft without contacting the lab service
// @Tags billing
// @Accept json
// @Produce json
// @Param body body InvoiceDraftRequest true "Invoice draft"
// @Success 200 {object} Response{data=service.InvoicePreview}
// @Failure 422 {object} ErrorResponseBody "No valid line items"
// @Security BearerAuth
// @Router /invoices/preview [post]
func (h *BillingHandler) PreviewInvoice(c *gin.Context) {
	var req InvoiceDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	preview, err := h.billingService.PreviewInvoice(draftInput(req))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, preview)
}

// List handles GET /api/v1/billing
// @Summary List billing requests
// @Description List test requests with their reconciled payment state and available actions
// @Tags billing
// @Produce json
// @Param status query string false "Filter by billing status"
// @Success 200 {object} Response{data=[]service.BillView,meta=ListMeta}
// @Failure 502 {object} ErrorResponseBody "Lab service unavailable"
// @Security BearerAuth
// @Router /billing [get]
func (h *BillingHandler) List(c *gin.Context) {
	views, err := h.billingService.ListBills(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	if status := domain.BillingStatus(c.Query("status")); status != "" {
		if !status.IsValid() {
			RespondError(c, http.StatusBadRequest, "INVALID_STATUS", fmt.Sprintf("unknown billing status %q", status))
			return
		}
		views = lo.Filter(views, func(v service.BillView, _ int) bool { return v.Status == status })
	}
	RespondList(c, views, len(views))
}

// GetByID handles GET /api/v1/billing/:id
// @Summary Get a billing request
// @Tags billing
// @Produce json
// @Param id path string true "Test request ID"
// @Success 200 {object} Response{data=service.BillView}
// @Failure 404 {object} ErrorResponseBody "Not found"
// @Security BearerAuth
// @Router /billing/{id} [get]
func (h *BillingHandler) GetByID(c *gin.Context) {
	view, err := h.billingService.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

// GenerateBill handles POST /api/v1/billing/:id/bill
// @Summary Generate a bill
// @Description Generate the itemized bill for a test request. Items without a name or price are dropped.
// @Tags billing
// @Accept json
// @Produce json
// @Param id path string true "Test request ID"
// @Param body body InvoiceDraftRequest true "Invoice draft"
// @Success 201 {object} Response{data=service.BillView}
// @Failure 409 {object} ErrorResponseBody "Bill cannot be generated in the current status"
// @Failure 422 {object} ErrorResponseBody "No valid line items"
// @Failure 502 {object} ErrorResponseBody "Lab service unavailable"
// @Security BearerAuth
// @Router /billing/{id}/bill [post]
func (h *BillingHandler) GenerateBill(c *gin.Context) {
	var req InvoiceDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	view, err := h.billingService.GenerateBill(c.Request.Context(), c.Param("id"), draftInput(req))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, view)
}

// SubmitPayment handles POST /api/v1/billing/:id/payments
// @Summary Record a payment
// @Description Record a full or partial payment. Accepts JSON, or multipart form fields with an optional receipt file.
// @Description Responds 202 when the payment is kept locally but the lab service has not confirmed it yet.
// @Tags payments
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Test request ID"
// @Param body body SubmitPaymentRequest false "Payment (JSON)"
// @Param receipt formData file false "Receipt (PDF or image)"
// @Success 201 {object} Response{data=service.PaymentResult} "Payment recorded and confirmed"
// @Success 202 {object} Response{data=service.PaymentResult} "Payment recorded, remote confirmation pending"
// @Failure 409 {object} ErrorResponseBody "Bill not generated or wrong status"
// @Failure 422 {object} ErrorResponseBody "Amount, method or transaction ID invalid"
// @Security BearerAuth
// @Router /billing/{id}/payments [post]
func (h *BillingHandler) SubmitPayment(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}

	var req SubmitPaymentRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		HandleError(c, domain.NewValidationError("amount", "amount must be a number"))
		return
	}

	receipt, err := h.readReceipt(c)
	if err != nil {
		HandleError(c, err)
		return
	}

	result, err := h.billingService.SubmitPayment(c.Request.Context(), service.SubmitPaymentInput{
		TestRequestID: c.Param("id"),
		Draft: domain.PaymentEventDraft{
			Amount:        amount,
			Method:        domain.PaymentMethod(strings.TrimSpace(req.Method)),
			TransactionID: req.TransactionID,
			Notes:         strings.TrimSpace(req.Notes),
			RecordedBy:    userID,
		},
		Receipt: receipt,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	if !result.RemoteConfirmed {
		RespondAccepted(c, result)
		return
	}
	RespondCreated(c, result)
}

// readReceipt returns the optional "receipt" part of a multipart request.
func (h *BillingHandler) readReceipt(c *gin.Context) (*domain.ReceiptFile, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}
	file, header, err := c.Request.FormFile("receipt")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewValidationError("receipt", "receipt could not be read")
	}
	defer func() { _ = file.Close() }()
	return h.receiptService.Prepare(header.Filename, file)
}

// ListPayments handles GET /api/v1/billing/:id/payments
// @Summary List payments for a bill
// @Description Payment events for a test request, newest first
// @Tags payments
// @Produce json
// @Param id path string true "Test request ID"
// @Success 200 {object} Response{data=[]domain.PaymentEvent,meta=ListMeta}
// @Security BearerAuth
// @Router /billing/{id}/payments [get]
func (h *BillingHandler) ListPayments(c *gin.Context) {
	events, err := h.billingService.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondList(c, events, len(events))
}

// RetryRemote handles POST /api/v1/billing/:id/payments/retry
// @Summary Retry unconfirmed payments
// @Description Replay mark-paid calls the lab service rejected, oldest first
// @Tags payments
// @Produce json
// @Param id path string true "Test request ID"
// @Success 200 {object} Response{data=service.RetryResult}
// @Failure 409 {object} ErrorResponseBody "Nothing to retry"
// @Failure 502 {object} ErrorResponseBody "Lab service still unavailable"
// @Security BearerAuth
// @Router /billing/{id}/payments/retry [post]
func (h *BillingHandler) RetryRemote(c *gin.Context) {
	result, err := h.billingService.RetryRemotePayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, body := errorResponse(c, err)
		if result != nil {
			body.Data = result
		}
		c.JSON(status, body)
		return
	}
	RespondOK(c, result)
}

// Verify handles POST /api/v1/billing/:id/verify
// @Summary Verify a fully paid bill
// @Tags billing
// @Produce json
// @Param id path string true "Test request ID"
// @Success 200 {object} Response{data=service.VerifyResult}
// @Failure 409 {object} ErrorResponseBody "Wrong billing status"
// @Failure 422 {object} ErrorResponseBody "Bill not fully paid"
// @Security BearerAuth
// @Router /billing/{id}/verify [post]
func (h *BillingHandler) Verify(c *gin.Context) {
	result, err := h.billingService.VerifyPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// DownloadInvoice handles GET /api/v1/billing/:id/invoice
// @Summary Download the invoice document
// @Tags billing
// @Produce application/pdf
// @Param id path string true "Test request ID"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponseBody "No invoice"
// @Security BearerAuth
// @Router /billing/{id}/invoice [get]
func (h *BillingHandler) DownloadInvoice(c *gin.Context) {
	inv, err := h.billingService.DownloadInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", inv.FileName))
	c.Data(http.StatusOK, inv.ContentType, inv.Body)
}

// ReceiptURL handles GET /api/v1/billing/:id/payments/:paymentId/receipt
// @Summary Get a receipt download link
// @Tags payments
// @Produce json
// @Param id path string true "Test request ID"
// @Param paymentId path string true "Payment event ID"
// @Success 200 {object} Response{data=ReceiptURLResponse}
// @Failure 404 {object} ErrorResponseBody "Payment or receipt not found"
// @Security BearerAuth
// @Router /billing/{id}/payments/{paymentId}/receipt [get]
func (h *BillingHandler) ReceiptURL(c *gin.Context) {
	events, err := h.billingService.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	ev, ok := lo.Find(events, func(e domain.PaymentEvent) bool { return e.ID == c.Param("paymentId") })
	if !ok || ev.ReceiptRef == "" {
		HandleError(c, domain.ErrNotFound)
		return
	}

	url, err := h.receiptService.DownloadURL(c.Request.Context(), ev.ReceiptRef)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, ReceiptURLResponse{PaymentID: ev.ID, DownloadURL: url})
}

func draftInput(req InvoiceDraftRequest) service.InvoiceDraftInput {
	return service.InvoiceDraftInput{
		Items:     req.Items,
		Taxes:     req.Taxes,
		Discounts: req.Discounts,
		Notes:     strings.TrimSpace(req.Notes),
	}
}

package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"labdesk/internal/paymentexport"
	"labdesk/internal/service"
)

// PaymentHandler handles cross-bill ledger endpoints for administrators.
type PaymentHandler struct {
	billingService service.BillingService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(billingService service.BillingService) *PaymentHandler {
	return &PaymentHandler{billingService: billingService}
}

// List handles GET /api/v1/payments
// @Summary List all recorded payments
// @Tags payments
// @Produce json
// @Success 200 {object} Response{data=[]domain.LedgerEntry,meta=ListMeta}
// @Failure 403 {object} ErrorResponseBody "Admin role required"
// @Security BearerAuth
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	entries, err := h.billingService.AllPayments(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondList(c, entries, len(entries))
}

// Export handles GET /api/v1/payments/export
// @Summary Export the payment ledger
// @Description Download every recorded payment as CSV (default) or XLSX
// @Tags payments
// @Produce text/csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 422 {object} ErrorResponseBody "Unsupported format"
// @Security BearerAuth
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	format, err := paymentexport.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}

	entries, err := h.billingService.AllPayments(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	// Render fully before writing headers so a failure still gets a JSON error.
	var buf bytes.Buffer
	if err := paymentexport.Write(&buf, format, entries); err != nil {
		HandleError(c, fmt.Errorf("exporting payments: %w", err))
		return
	}

	filename := paymentexport.BuildFilename(format, time.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

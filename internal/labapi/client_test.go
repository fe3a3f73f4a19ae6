package labapi_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labdesk/internal/config"
	"labdesk/internal/domain"
	"labdesk/internal/labapi"
	"labdesk/internal/port"
)

func newTestClient(t *testing.T, h http.HandlerFunc) port.LabAPI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return labapi.NewClient(&config.LabAPIConfig{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}, zap.NewNop())
}

func markPaidRequest() domain.MarkPaidRequest {
	return domain.MarkPaidRequest{
		PaymentEventID:    "pay_01",
		PaymentMethod:     domain.MethodUPI,
		TransactionID:     "UPI-9",
		PaymentAmount:     decimal.RequireFromString("400"),
		IsPartialPayment:  true,
		CurrentPaidAmount: decimal.Zero,
		TotalAmount:       decimal.RequireFromString("1000"),
		Notes:             "first instalment",
	}
}

func TestGenerateBill_PostsDraftAndDecodesEnvelope(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/test-requests/tr-1/billing", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req domain.GenerateBillRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Items, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{"invoice_number":"INV-7","amount":"270","status":"Billing_Generated"}}`)
	})

	bill, err := client.GenerateBill(t.Context(), "tr-1", domain.GenerateBillRequest{
		Items:    []domain.LineItem{{Name: "CBC", Quantity: 2, UnitPrice: decimal.RequireFromString("150")}},
		Currency: "INR",
	})

	require.NoError(t, err)
	assert.Equal(t, "INV-7", bill.InvoiceNumber)
	assert.True(t, bill.Amount.Equal(decimal.RequireFromString("270")))
	assert.Equal(t, domain.StatusBillingGenerated, bill.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateBill_ServerErrorIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.GenerateBill(t.Context(), "tr-1", domain.GenerateBillRequest{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRemote))
	var rerr *domain.RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusInternalServerError, rerr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMarkPaid_MultipartWithReceipt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/test-requests/tr-1/billing/payment", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		assert.Equal(t, "UPI", r.FormValue("paymentMethod"))
		assert.Equal(t, "UPI-9", r.FormValue("transactionId"))
		assert.Equal(t, "400", r.FormValue("paymentAmount"))
		assert.Equal(t, "true", r.FormValue("isPartialPayment"))
		assert.Equal(t, "1000", r.FormValue("totalAmount"))

		f, hdr, err := r.FormFile("receipt")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "receipt.pdf", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.4", string(data))

		_, _ = io.WriteString(w, `{"paidAmount":400,"status":"partially_paid"}`)
	})

	res, err := client.MarkPaid(t.Context(), "tr-1", markPaidRequest(), &domain.ReceiptFile{
		FileName: "receipt.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4"),
	})

	require.NoError(t, err)
	assert.True(t, res.PaidAmount.Equal(decimal.RequireFromString("400")))
	assert.Equal(t, "partially_paid", res.Status)
}

func TestMarkPaid_FallsBackToJSON(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			assert.Equal(t, int32(1), n)
			http.Error(w, "multipart not supported", http.StatusUnsupportedMediaType)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "UPI-9", body["transactionId"])
		assert.Equal(t, true, body["isPartialPayment"])

		_, _ = io.WriteString(w, `{"data":{"paidAmount":"400","status":"partially_paid"}}`)
	})

	res, err := client.MarkPaid(t.Context(), "tr-1", markPaidRequest(), nil)

	require.NoError(t, err)
	assert.Equal(t, "partially_paid", res.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMarkPaid_DecodesBillingBlock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"billing":{"paidAmount":400,"status":"partially_paid"}}`)
	})

	res, err := client.MarkPaid(t.Context(), "tr-1", markPaidRequest(), nil)

	require.NoError(t, err)
	assert.True(t, res.PaidAmount.Equal(decimal.RequireFromString("400")))
	assert.Equal(t, "partially_paid", res.Status)
}

func TestMarkPaid_DecodesEnvelopedBillingBlock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":{"billing":{"paidAmount":"1000","status":"paid"}}}`)
	})

	res, err := client.MarkPaid(t.Context(), "tr-1", markPaidRequest(), nil)

	require.NoError(t, err)
	assert.True(t, res.PaidAmount.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, "paid", res.Status)
}

func TestMarkPaid_EncodingsCarrySameFields(t *testing.T) {
	var multipartFields, jsonFields []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
				for k := range r.MultipartForm.Value {
					multipartFields = append(multipartFields, k)
				}
			}
			http.Error(w, "multipart not supported", http.StatusUnsupportedMediaType)
			return
		}
		var body map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for k := range body {
			jsonFields = append(jsonFields, k)
		}
		_, _ = io.WriteString(w, `{"paidAmount":400,"status":"partially_paid"}`)
	})

	req := markPaidRequest()
	req.ReceiptRef = "receipts/tr-1/01H.pdf"
	_, err := client.MarkPaid(t.Context(), "tr-1", req, nil)

	require.NoError(t, err)
	assert.Contains(t, jsonFields, "paymentEventId")
	assert.ElementsMatch(t, multipartFields, jsonFields)
}

func TestMarkPaid_BothEncodingsFail(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	_, err := client.MarkPaid(t.Context(), "tr-1", markPaidRequest(), nil)

	var rerr *domain.RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusServiceUnavailable, rerr.StatusCode)
	assert.Equal(t, "mark paid", rerr.Op)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchBillingRequests_RetriesTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-requests/billing", r.URL.Path)
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[{"id":"tr-1","patient_name":"Asha","status":"Billing_Generated",
			"billing":{"invoice_number":"INV-1","amount":"1000","paid_amount":"400","status":"Billing_Generated"}},
			{"id":"tr-2","patient_name":"Ravi","status":"Billing_Pending"}]`)
	})

	rows, err := client.FetchBillingRequests(t.Context())

	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Bill)
	assert.True(t, rows[0].Bill.PaidAmountRemote.Equal(decimal.RequireFromString("400")))
	assert.Nil(t, rows[1].Bill)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDownloadInvoice_FilenameFromHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="INV-7.pdf"`)
		_, _ = io.WriteString(w, "%PDF")
	})

	inv, err := client.DownloadInvoice(t.Context(), "tr-1")

	require.NoError(t, err)
	assert.Equal(t, "INV-7.pdf", inv.FileName)
	assert.Equal(t, "application/pdf", inv.ContentType)
	assert.Equal(t, []byte("%PDF"), inv.Body)
}

func TestDownloadInvoice_FilenameFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "%PDF")
	})

	inv, err := client.DownloadInvoice(t.Context(), "tr-9")

	require.NoError(t, err)
	assert.Equal(t, "invoice-tr-9.pdf", inv.FileName)
}

func TestNotFoundMapsToDomainError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.DownloadInvoice(t.Context(), "missing")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrRemote))
}

func TestVerifyPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/test-requests/tr-1/billing/verify", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"Billing_Paid"}`)
	})

	status, err := client.VerifyPayment(t.Context(), "tr-1")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusBillingPaid, status)
}

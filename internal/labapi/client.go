// Package labapi is the HTTP adapter for the remote lab API. Request
// encodings (multipart or JSON) are confined to this package.
package labapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"labdesk/internal/config"
	"labdesk/internal/domain"
	"labdesk/internal/port"
)

const maxErrorBody = 4 << 10

// Client talks to the lab API. Reads go through a retrying client; writes use
// the underlying http.Client directly and are sent exactly once.
type Client struct {
	baseURL string
	apiKey  string
	reads   *retryablehttp.Client
	writes  *http.Client
	log     *zap.Logger
}

// NewClient creates a lab API client from cfg.
func NewClient(cfg *config.LabAPIConfig, log *zap.Logger) port.LabAPI {
	return newClient(cfg, log)
}

func newClient(cfg *config.LabAPIConfig, log *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = leveledLogger{log.Sugar()}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		reads:   rc,
		writes:  rc.HTTPClient,
		log:     log,
	}
}

func (c *Client) GenerateBill(ctx context.Context, testRequestID string, req domain.GenerateBillRequest) (*domain.Bill, error) {
	const op = "generate bill"
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("labapi.GenerateBill: encoding: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, c.requestURL(testRequestID, "billing"), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, testRequestID, resp); err != nil {
		return nil, err
	}
	var bill domain.Bill
	if err := decodeBody(resp.Body, &bill); err != nil {
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return &bill, nil
}

// MarkPaid sends the payment as multipart form data, with the receipt as a
// file part when present. If that attempt fails the same fields are re-sent
// as JSON without the file.
func (c *Client) MarkPaid(ctx context.Context, testRequestID string, req domain.MarkPaidRequest, receipt *domain.ReceiptFile) (*domain.MarkPaidResult, error) {
	result, err := c.markPaidMultipart(ctx, testRequestID, req, receipt)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	c.log.Warn("multipart mark-paid failed, retrying as json",
		zap.String("test_request_id", testRequestID),
		zap.String("payment_event_id", req.PaymentEventID),
		zap.Error(err),
	)
	return c.markPaidJSON(ctx, testRequestID, req)
}

func (c *Client) markPaidMultipart(ctx context.Context, testRequestID string, req domain.MarkPaidRequest, receipt *domain.ReceiptFile) (*domain.MarkPaidResult, error) {
	const op = "mark paid (multipart)"
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range markPaidFields(req) {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("labapi.MarkPaid: writing field %s: %w", f[0], err)
		}
	}
	if receipt != nil && len(receipt.Data) > 0 {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="receipt"; filename=%q`, receipt.FileName))
		h.Set("Content-Type", receipt.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("labapi.MarkPaid: creating receipt part: %w", err)
		}
		if _, err := part.Write(receipt.Data); err != nil {
			return nil, fmt.Errorf("labapi.MarkPaid: writing receipt: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("labapi.MarkPaid: closing multipart: %w", err)
	}

	return c.doMarkPaid(ctx, op, testRequestID, w.FormDataContentType(), &buf)
}

func (c *Client) markPaidJSON(ctx context.Context, testRequestID string, req domain.MarkPaidRequest) (*domain.MarkPaidResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("labapi.MarkPaid: encoding: %w", err)
	}
	return c.doMarkPaid(ctx, "mark paid", testRequestID, "application/json", bytes.NewReader(body))
}

func (c *Client) doMarkPaid(ctx context.Context, op, testRequestID, contentType string, body io.Reader) (*domain.MarkPaidResult, error) {
	resp, err := c.send(ctx, http.MethodPut, c.requestURL(testRequestID, "billing", "payment"), contentType, body)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, testRequestID, resp); err != nil {
		return nil, err
	}
	// The lab API nests the result under "billing"; older deployments
	// return it bare.
	var out struct {
		Billing *domain.MarkPaidResult `json:"billing"`
		domain.MarkPaidResult
	}
	if err := decodeBody(resp.Body, &out); err != nil {
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if out.Billing != nil {
		return out.Billing, nil
	}
	return &out.MarkPaidResult, nil
}

func (c *Client) FetchBillingRequests(ctx context.Context) ([]domain.TestRequestWithBilling, error) {
	const op = "fetch billing requests"
	resp, err := c.get(ctx, c.baseURL+"/test-requests/billing")
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, "", resp); err != nil {
		return nil, err
	}
	rows := []domain.TestRequestWithBilling{}
	if err := decodeBody(resp.Body, &rows); err != nil {
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return rows, nil
}

func (c *Client) DownloadInvoice(ctx context.Context, testRequestID string) (*domain.InvoiceFile, error) {
	const op = "download invoice"
	resp, err := c.get(ctx, c.requestURL(testRequestID, "billing", "invoice"))
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, testRequestID, resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &domain.InvoiceFile{
		FileName:    invoiceFileName(resp.Header.Get("Content-Disposition"), testRequestID),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func (c *Client) VerifyPayment(ctx context.Context, testRequestID string) (domain.BillingStatus, error) {
	const op = "verify payment"
	resp, err := c.send(ctx, http.MethodPut, c.requestURL(testRequestID, "billing", "verify"), "application/json", http.NoBody)
	if err != nil {
		return "", &domain.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, testRequestID, resp); err != nil {
		return "", err
	}
	var out struct {
		Status domain.BillingStatus `json:"status"`
	}
	if err := decodeBody(resp.Body, &out); err != nil {
		return "", &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if out.Status == "" {
		out.Status = domain.StatusBillingPaid
	}
	return out.Status, nil
}

func (c *Client) requestURL(testRequestID string, parts ...string) string {
	u := c.baseURL + "/test-requests/" + url.PathEscape(testRequestID)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req.Header)
	req.Header.Set("Accept", "application/json, application/pdf")
	return c.reads.Do(req)
}

func (c *Client) send(ctx context.Context, method, rawURL, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	c.authorize(req.Header)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return c.writes.Do(req)
}

func (c *Client) authorize(h http.Header) {
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func markPaidFields(req domain.MarkPaidRequest) [][2]string {
	fields := [][2]string{
		{"paymentEventId", req.PaymentEventID},
		{"paymentMethod", string(req.PaymentMethod)},
		{"transactionId", req.TransactionID},
		{"paymentAmount", req.PaymentAmount.String()},
		{"isPartialPayment", strconv.FormatBool(req.IsPartialPayment)},
		{"currentPaidAmount", req.CurrentPaidAmount.String()},
		{"totalAmount", req.TotalAmount.String()},
		{"notes", req.Notes},
	}
	if req.ReceiptRef != "" {
		fields = append(fields, [2]string{"receiptRef", req.ReceiptRef})
	}
	return fields
}

// checkStatus turns a non-2xx response into an error. 404 means the test
// request does not exist upstream.
func checkStatus(op, testRequestID string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("labapi %s %s: %w", op, testRequestID, domain.ErrNotFound)
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.RemoteError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("unexpected response: %s", bytes.TrimSpace(snippet)),
	}
}

// decodeBody accepts either a bare JSON value or one wrapped in a
// {"data": ...} envelope.
func decodeBody(r io.Reader, v interface{}) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
			raw = env.Data
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

func invoiceFileName(disposition, testRequestID string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	return "invoice-" + testRequestID + ".pdf"
}

// leveledLogger adapts zap to retryablehttp's LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }

package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"labdesk/internal/domain"
	"labdesk/internal/handler"
	"labdesk/internal/router"
	"labdesk/internal/service"
	"labdesk/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(role domain.UserRole, centerID string) (*gin.Engine, *mocks.MockBillingService) {
	auth := new(mocks.MockAuthService)
	auth.On("ValidateToken", "token").Return(&service.Claims{
		UserID: uuid.New(), Role: role, CenterID: centerID,
	}, nil)
	billing := new(mocks.MockBillingService)
	receipts := new(mocks.MockReceiptService)

	r := router.Setup(
		router.Options{AllowedOrigins: []string{"http://localhost:3000"}, EnableSwagger: true},
		zap.NewNop(),
		auth,
		handler.NewBillingHandler(billing, receipts),
		handler.NewPaymentHandler(billing),
		handler.NewHealthHandler(nil),
	)
	return r, billing
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, http.NoBody)
	req.Header.Set("Authorization", "Bearer token")
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthIsPublic(t *testing.T) {
	r, _ := newEngine(domain.RoleDoctor, "c1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	r, _ := newEngine(domain.RoleReceptionist, "c1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/billing", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_VerifyNeedsAdmin(t *testing.T) {
	r, billing := newEngine(domain.RoleReceptionist, "c1")

	w := do(r, http.MethodPost, "/api/v1/billing/tr-1/verify")

	assert.Equal(t, http.StatusForbidden, w.Code)
	billing.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything)
}

func TestRouter_VerifyAsCenterAdmin(t *testing.T) {
	r, billing := newEngine(domain.RoleCenterAdmin, "c1")
	billing.On("VerifyPayment", mock.Anything, "tr-1").
		Return(&service.VerifyResult{Status: domain.StatusBillingPaid, Verified: 2}, nil)

	w := do(r, http.MethodPost, "/api/v1/billing/tr-1/verify")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_DoctorCannotRecordPayment(t *testing.T) {
	r, _ := newEngine(domain.RoleDoctor, "c1")

	w := do(r, http.MethodPost, "/api/v1/billing/tr-1/payments")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_PaymentsExportAdminOnly(t *testing.T) {
	r, _ := newEngine(domain.RoleReceptionist, "c1")

	w := do(r, http.MethodGet, "/api/v1/payments/export")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_MissingCenter(t *testing.T) {
	r, _ := newEngine(domain.RoleReceptionist, "")

	w := do(r, http.MethodGet, "/api/v1/billing")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

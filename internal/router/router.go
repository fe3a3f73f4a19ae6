package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "labdesk/docs" // registers the OpenAPI spec
	"labdesk/internal/domain"
	"labdesk/internal/handler"
	"labdesk/internal/middleware"
	"labdesk/internal/service"
)

// Options holds the router settings that come from configuration.
type Options struct {
	AllowedOrigins     []string
	MaxMultipartMemory int64
	EnableSwagger      bool
}

var (
	adminRoles   = []domain.UserRole{domain.RoleSuperAdmin, domain.RoleCenterAdmin}
	paymentRoles = []domain.UserRole{domain.RoleSuperAdmin, domain.RoleCenterAdmin, domain.RoleReceptionist}
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	opts Options,
	log *zap.Logger,
	authSvc service.AuthService,
	billingH *handler.BillingHandler,
	paymentH *handler.PaymentHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()
	if opts.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = opts.MaxMultipartMemory
	}

	// Global middleware
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	if opts.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Protected routes - require valid JWT carrying a center_id claim
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(authSvc))
	v1.Use(middleware.RequireCenterClaim())

	v1.POST("/invoices/preview", billingH.PreviewInvoice)

	bills := v1.Group("/billing")
	bills.GET("", billingH.List)
	bills.GET("/:id", billingH.GetByID)
	bills.POST("/:id/bill", middleware.RequireRole(paymentRoles...), billingH.GenerateBill)
	bills.GET("/:id/invoice", billingH.DownloadInvoice)
	bills.POST("/:id/verify", middleware.RequireRole(adminRoles...), billingH.Verify)

	bills.GET("/:id/payments", billingH.ListPayments)
	bills.POST("/:id/payments", middleware.RequireRole(paymentRoles...), billingH.SubmitPayment)
	bills.POST("/:id/payments/retry", middleware.RequireRole(paymentRoles...), billingH.RetryRemote)
	bills.GET("/:id/payments/:paymentId/receipt", billingH.ReceiptURL)

	// Ledger-wide views - admins only
	payments := v1.Group("/payments")
	payments.Use(middleware.RequireRole(adminRoles...))
	payments.GET("", paymentH.List)
	payments.GET("/export", paymentH.Export)

	return r
}

package domain

// FileType represents the allowed receipt file types for upload.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypePNG  FileType = "png"
	FileTypeGIF  FileType = "gif"
	FileTypeWebP FileType = "webp"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF:  "application/pdf",
	FileTypeJPG:  "image/jpeg",
	FileTypePNG:  "image/png",
	FileTypeGIF:  "image/gif",
	FileTypeWebP: "image/webp",
}

// AllowedContentTypes maps MIME content types back to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
	"image/gif":       FileTypeGIF,
	"image/webp":      FileTypeWebP,
}

// UserRole is the console role carried in the bearer token.
type UserRole string

const (
	RoleSuperAdmin   UserRole = "superadmin"
	RoleCenterAdmin  UserRole = "center_admin"
	RoleReceptionist UserRole = "receptionist"
	RoleDoctor       UserRole = "doctor"
	RoleLabStaff     UserRole = "lab_staff"
)

// IsValid reports whether r is a known console role.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleCenterAdmin, RoleReceptionist, RoleDoctor, RoleLabStaff:
		return true
	}
	return false
}

// BillingStatus is the lifecycle state of a test request's billing workflow.
type BillingStatus string

const (
	StatusPending          BillingStatus = "Pending"
	StatusBillingPending   BillingStatus = "Billing_Pending"
	StatusBillingGenerated BillingStatus = "Billing_Generated"
	StatusBillingPaid      BillingStatus = "Billing_Paid"
	StatusReportSent       BillingStatus = "Report_Sent"
	StatusCompleted        BillingStatus = "Completed"
)

// IsValid reports whether s is a known billing status.
func (s BillingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusBillingPending, StatusBillingGenerated,
		StatusBillingPaid, StatusReportSent, StatusCompleted:
		return true
	}
	return false
}

// PaymentMethod is the instrument used for a payment event.
type PaymentMethod string

const (
	MethodCash       PaymentMethod = "Cash"
	MethodCard       PaymentMethod = "Card"
	MethodUPI        PaymentMethod = "UPI"
	MethodNetBanking PaymentMethod = "NetBanking"
	MethodCheque     PaymentMethod = "Cheque"
	MethodInsurance  PaymentMethod = "Insurance"
	MethodOther      PaymentMethod = "Other"
)

// PaymentMethods lists every accepted payment method.
var PaymentMethods = []PaymentMethod{
	MethodCash, MethodCard, MethodUPI, MethodNetBanking,
	MethodCheque, MethodInsurance, MethodOther,
}

// IsValid reports whether m is one of PaymentMethods.
func (m PaymentMethod) IsValid() bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

// PaymentEventStatus is the verification state of a recorded payment.
type PaymentEventStatus string

const (
	PaymentRecorded PaymentEventStatus = "recorded"
	PaymentVerified PaymentEventStatus = "verified"
)

// PaymentClassification is the reconciled payment state of a bill.
type PaymentClassification string

const (
	ClassificationUnpaid  PaymentClassification = "unpaid"
	ClassificationPartial PaymentClassification = "partial"
	ClassificationFull    PaymentClassification = "full"
)

// PaymentSubStatus qualifies Billing_Generated. It is always derived from a
// PaymentClassification and never stored.
type PaymentSubStatus string

const (
	SubStatusNone            PaymentSubStatus = "none"
	SubStatusPaymentReceived PaymentSubStatus = "payment_received"
	SubStatusPartiallyPaid   PaymentSubStatus = "partially_paid"
)

// Trigger is an event that drives a billing status transition.
type Trigger string

const (
	TriggerBillingDue     Trigger = "billing_due"
	TriggerGenerateBill   Trigger = "generate_bill"
	TriggerSubmitPayment  Trigger = "submit_payment"
	TriggerVerifyPayment  Trigger = "verify_payment"
	TriggerDispatchReport Trigger = "dispatch_report"
	TriggerCloseWorkflow  Trigger = "close_workflow"
)

// Action is a user action the console may offer for a bill.
type Action string

const (
	ActionGenerateBill       Action = "generate_bill"
	ActionRecordPayment      Action = "record_payment"
	ActionVerifyPayment      Action = "verify_payment"
	ActionDownloadInvoice    Action = "download_invoice"
	ActionRetryRemotePayment Action = "retry_remote_payment"
)

// AmbiguityDirection tells which source is ahead in a reconciliation mismatch.
type AmbiguityDirection string

const (
	RemoteAhead AmbiguityDirection = "remote_ahead"
	LocalAhead  AmbiguityDirection = "local_ahead"
)

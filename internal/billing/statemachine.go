package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"labdesk/internal/domain"
)

type transitionKey struct {
	from    domain.BillingStatus
	trigger domain.Trigger
}

// transitions is the full table of legal status changes. Completed has no
// outgoing edges and nothing leads back to Pending.
var transitions = map[transitionKey]domain.BillingStatus{
	{domain.StatusPending, domain.TriggerBillingDue}:             domain.StatusBillingPending,
	{domain.StatusBillingPending, domain.TriggerGenerateBill}:    domain.StatusBillingGenerated,
	{domain.StatusBillingGenerated, domain.TriggerSubmitPayment}: domain.StatusBillingGenerated,
	{domain.StatusBillingGenerated, domain.TriggerVerifyPayment}: domain.StatusBillingPaid,
	{domain.StatusBillingPaid, domain.TriggerDispatchReport}:     domain.StatusReportSent,
	{domain.StatusReportSent, domain.TriggerCloseWorkflow}:       domain.StatusCompleted,
}

// Next returns the status reached from "from" on trigger, or
// ErrInvalidTransition. Guards are checked separately by the caller.
func Next(from domain.BillingStatus, trigger domain.Trigger) (domain.BillingStatus, error) {
	to, ok := transitions[transitionKey{from, trigger}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", domain.ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

// CanGenerate reports whether a bill may be generated from status. A request
// still in Pending is first moved to Billing_Pending by the billing_due
// trigger, so both are accepted.
func CanGenerate(status domain.BillingStatus) bool {
	return status == domain.StatusPending || status == domain.StatusBillingPending
}

// IsTerminal reports whether status has no outgoing transitions.
func IsTerminal(status domain.BillingStatus) bool {
	return status == domain.StatusCompleted
}

// SubStatus derives the Billing_Generated payment sub-status.
func SubStatus(status domain.BillingStatus, c domain.PaymentClassification) domain.PaymentSubStatus {
	if status != domain.StatusBillingGenerated {
		return domain.SubStatusNone
	}
	switch c {
	case domain.ClassificationFull:
		return domain.SubStatusPaymentReceived
	case domain.ClassificationPartial:
		return domain.SubStatusPartiallyPaid
	default:
		return domain.SubStatusNone
	}
}

// PaymentGuard validates a payment submission against the reconciled state.
// It must pass before any ledger write or remote call is attempted.
func PaymentGuard(status domain.BillingStatus, state domain.ReconciledState, draft domain.PaymentEventDraft) error {
	if _, err := Next(status, domain.TriggerSubmitPayment); err != nil {
		return err
	}
	verr := &domain.ValidationError{}
	switch {
	case !draft.Amount.IsPositive():
		verr.Add("amount", "amount must be greater than 0")
	case draft.Amount.GreaterThan(state.Remaining):
		verr.Add("amount", "amount cannot exceed remaining balance of %s", state.Remaining.StringFixed(2))
	}
	if strings.TrimSpace(string(draft.Method)) == "" {
		verr.Add("method", "payment method is required")
	} else if !draft.Method.IsValid() {
		verr.Add("method", "unsupported payment method %q", draft.Method)
	}
	if strings.TrimSpace(draft.TransactionID) == "" {
		verr.Add("transaction_id", "transaction id is required")
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

// VerifyGuard allows admin verification only for a fully paid bill.
func VerifyGuard(status domain.BillingStatus, state domain.ReconciledState) error {
	if _, err := Next(status, domain.TriggerVerifyPayment); err != nil {
		return err
	}
	if state.Classification != domain.ClassificationFull {
		return domain.NewValidationError("classification",
			"bill is not fully paid; remaining balance is %s", state.Remaining.StringFixed(2))
	}
	return nil
}

// AfterPayment reports the sub-status a payment of amount would produce.
func AfterPayment(state domain.ReconciledState, billAmount, amount decimal.Decimal) domain.PaymentSubStatus {
	paid := state.EffectivePaid.Add(amount)
	return SubStatus(domain.StatusBillingGenerated, Classify(paid, ClampNonNegative(billAmount)))
}

// AvailableActions lists the actions the console should offer for a bill in
// status with the given reconciled state. hasBill is false until an invoice
// number exists.
func AvailableActions(status domain.BillingStatus, hasBill bool, state domain.ReconciledState) []domain.Action {
	actions := make([]domain.Action, 0, 3)
	if CanGenerate(status) {
		actions = append(actions, domain.ActionGenerateBill)
	}
	if status == domain.StatusBillingGenerated && hasBill {
		if state.Remaining.IsPositive() {
			actions = append(actions, domain.ActionRecordPayment)
		}
		if state.Classification == domain.ClassificationFull {
			actions = append(actions, domain.ActionVerifyPayment)
		}
	}
	if hasBill {
		actions = append(actions, domain.ActionDownloadInvoice)
	}
	return actions
}

package billing

import (
	"strings"

	"github.com/shopspring/decimal"

	"labdesk/internal/domain"
)

// DefaultDriftTolerance is the largest remote/local difference that is not
// reported as an ambiguity.
var DefaultDriftTolerance = decimal.RequireFromString("0.01")

// settledRemoteStatuses are billing payment statuses the lab API uses for a
// bill it considers fully paid.
var settledRemoteStatuses = map[string]bool{
	"paid":       true,
	"verified":   true,
	"completed":  true,
	"fully_paid": true,
}

// Reconciler merges the remote paid amount with the local ledger total.
type Reconciler struct {
	tolerance decimal.Decimal
}

// NewReconciler creates a Reconciler. A negative tolerance is treated as zero.
func NewReconciler(tolerance decimal.Decimal) *Reconciler {
	return &Reconciler{tolerance: ClampNonNegative(tolerance)}
}

// Reconcile is Reconciler.Reconcile with DefaultDriftTolerance.
func Reconcile(bill domain.Bill, ledger []domain.PaymentEvent) domain.ReconciledState {
	return NewReconciler(DefaultDriftTolerance).Reconcile(bill, ledger)
}

// Reconcile computes the effective paid amount, remaining balance and
// classification of bill. Neither source may erase a payment the other
// recorded, so the larger of the two wins. When the remote marks the bill
// settled but still reports zero paid, the status wins over the stale amount.
func (r *Reconciler) Reconcile(bill domain.Bill, ledger []domain.PaymentEvent) domain.ReconciledState {
	amount := ClampNonNegative(bill.Amount)
	remotePaid := ClampNonNegative(bill.PaidAmountRemote)
	localTotal := SumEvents(ledger)

	state := domain.ReconciledState{
		LocalTotal: localTotal,
		RemotePaid: remotePaid,
	}

	if IsSettled(bill) && remotePaid.IsZero() {
		state.EffectivePaid = amount
		state.SettledByState = true
	} else {
		state.EffectivePaid = decimal.Max(remotePaid, localTotal)
		state.Ambiguity = r.ambiguity(remotePaid, localTotal)
	}

	state.Remaining = ClampNonNegative(amount.Sub(state.EffectivePaid))
	state.Classification = Classify(state.EffectivePaid, amount)
	return state
}

func (r *Reconciler) ambiguity(remotePaid, localTotal decimal.Decimal) *domain.Ambiguity {
	diff := remotePaid.Sub(localTotal)
	if diff.Abs().LessThanOrEqual(r.tolerance) {
		return nil
	}
	dir := domain.RemoteAhead
	if diff.IsNegative() {
		dir = domain.LocalAhead
	}
	return &domain.Ambiguity{
		RemotePaid: remotePaid,
		LocalTotal: localTotal,
		Difference: diff.Abs(),
		Direction:  dir,
	}
}

// Classify maps an effective paid amount against the bill amount.
func Classify(effectivePaid, amount decimal.Decimal) domain.PaymentClassification {
	switch {
	case effectivePaid.GreaterThanOrEqual(amount):
		return domain.ClassificationFull
	case effectivePaid.IsPositive():
		return domain.ClassificationPartial
	default:
		return domain.ClassificationUnpaid
	}
}

// IsSettled reports whether the remote considers bill fully paid.
func IsSettled(bill domain.Bill) bool {
	switch bill.Status {
	case domain.StatusBillingPaid, domain.StatusReportSent, domain.StatusCompleted:
		return true
	}
	return settledRemoteStatuses[strings.ToLower(strings.TrimSpace(bill.RemotePaymentStatus))]
}

// SumEvents totals the amounts of events, ignoring negative amounts.
func SumEvents(events []domain.PaymentEvent) decimal.Decimal {
	total := decimal.Zero
	for _, ev := range events {
		total = total.Add(ClampNonNegative(ev.Amount))
	}
	return total
}

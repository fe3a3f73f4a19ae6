// Package billing holds the pure billing core: invoice totals, reconciliation
// of remote and local payment records, and the billing status state machine.
package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"labdesk/internal/domain"
)

// Totals is the result of computing a bill draft.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// ComputeTotals returns the subtotal and grand total of items. The grand total
// is clipped at zero so discounts never drive a bill negative.
func ComputeTotals(items []domain.LineItem, taxes, discounts decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		qty := item.Quantity
		if qty < 0 {
			qty = 0
		}
		subtotal = subtotal.Add(ClampNonNegative(item.UnitPrice).Mul(decimal.NewFromInt(int64(qty))))
	}
	grand := subtotal.Add(ClampNonNegative(taxes)).Sub(ClampNonNegative(discounts))
	return Totals{Subtotal: subtotal, GrandTotal: ClampNonNegative(grand)}
}

// ValidateDraft splits items into those that may appear on a generated bill
// and rejects the draft if none qualify. An item qualifies when its name is
// non-empty, its unit price is positive and its quantity is at least one.
func ValidateDraft(items []domain.LineItem) ([]domain.LineItem, error) {
	valid := make([]domain.LineItem, 0, len(items))
	verr := &domain.ValidationError{}
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		item.Code = strings.TrimSpace(item.Code)
		item.UnitPrice = ClampNonNegative(item.UnitPrice)
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case item.Name == "":
			verr.Add(field, "name is required")
		case !item.UnitPrice.IsPositive():
			verr.Add(field, "%q must have a price greater than 0", item.Name)
		case item.Quantity < 1:
			verr.Add(field, "%q must have a quantity of at least 1", item.Name)
		default:
			valid = append(valid, item)
		}
	}
	if len(valid) == 0 {
		if verr.Empty() {
			verr.Add("items", "at least one item is required")
		} else {
			verr.Add("items", "no valid items; at least one item needs a name and a price greater than 0")
		}
		return nil, verr
	}
	return valid, nil
}

// ParseAmount parses a decimal from user input, coercing anything malformed
// or negative to zero.
func ParseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return ClampNonNegative(d)
}

// ClampNonNegative returns d, or zero when d is negative.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

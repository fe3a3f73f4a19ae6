package billing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdesk/internal/billing"
	"labdesk/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotals_ScenarioE(t *testing.T) {
	items := []domain.LineItem{{Name: "CBC", Quantity: 2, UnitPrice: d("150")}}

	totals := billing.ComputeTotals(items, d("20"), d("50"))

	assert.True(t, totals.Subtotal.Equal(d("300")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.GrandTotal.Equal(d("270")), "grand total %s", totals.GrandTotal)
}

func TestComputeTotals_DiscountClippedAtZero(t *testing.T) {
	items := []domain.LineItem{{Name: "Lipid Panel", Quantity: 1, UnitPrice: d("100")}}

	totals := billing.ComputeTotals(items, decimal.Zero, d("500"))

	assert.True(t, totals.GrandTotal.IsZero())
	assert.True(t, totals.Subtotal.Equal(d("100")))
}

func TestComputeTotals_MalformedValuesCoercedToZero(t *testing.T) {
	items := []domain.LineItem{
		{Name: "Negative", Quantity: 3, UnitPrice: d("-40")},
		{Name: "NegativeQty", Quantity: -2, UnitPrice: d("40")},
		{Name: "TSH", Quantity: 1, UnitPrice: d("250.50")},
	}

	totals := billing.ComputeTotals(items, d("-10"), d("-5"))

	assert.True(t, totals.Subtotal.Equal(d("250.50")))
	assert.True(t, totals.GrandTotal.Equal(d("250.50")))
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := billing.ComputeTotals(nil, d("10"), decimal.Zero)

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.GrandTotal.Equal(d("10")))
}

func TestComputeTotals_Monotonic(t *testing.T) {
	base := []domain.LineItem{{Name: "A", Quantity: 2, UnitPrice: d("100")}}
	baseTotal := billing.ComputeTotals(base, d("10"), d("30")).GrandTotal

	morePrice := []domain.LineItem{{Name: "A", Quantity: 2, UnitPrice: d("120")}}
	moreQty := []domain.LineItem{{Name: "A", Quantity: 3, UnitPrice: d("100")}}

	assert.True(t, billing.ComputeTotals(morePrice, d("10"), d("30")).GrandTotal.GreaterThanOrEqual(baseTotal))
	assert.True(t, billing.ComputeTotals(moreQty, d("10"), d("30")).GrandTotal.GreaterThanOrEqual(baseTotal))
	assert.True(t, billing.ComputeTotals(base, d("15"), d("30")).GrandTotal.GreaterThanOrEqual(baseTotal))
	assert.True(t, billing.ComputeTotals(base, d("10"), d("60")).GrandTotal.LessThanOrEqual(baseTotal))

	for _, disc := range []string{"0", "100", "210", "1000", "99999"} {
		total := billing.ComputeTotals(base, d("10"), d(disc)).GrandTotal
		assert.False(t, total.IsNegative(), "discount %s produced %s", disc, total)
	}
}

func TestValidateDraft_ExcludesInvalidItems(t *testing.T) {
	items := []domain.LineItem{
		{Name: "  CBC ", Quantity: 1, UnitPrice: d("300")},
		{Name: "", Quantity: 1, UnitPrice: d("100")},
		{Name: "Free consult", Quantity: 1, UnitPrice: decimal.Zero},
		{Name: "Zero qty", Quantity: 0, UnitPrice: d("50")},
	}

	valid, err := billing.ValidateDraft(items)

	require.NoError(t, err)
	require.Len(t, valid, 1)
	assert.Equal(t, "CBC", valid[0].Name)
}

func TestValidateDraft_NoValidItems(t *testing.T) {
	items := []domain.LineItem{
		{Name: "", Quantity: 1, UnitPrice: d("100")},
		{Name: "Blood sugar", Quantity: 1, UnitPrice: d("-5")},
	}

	valid, err := billing.ValidateDraft(items)

	assert.Nil(t, valid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "items[0]")
	assert.Contains(t, fields, "items[1]")
	assert.Contains(t, err.Error(), "Blood sugar")
}

func TestValidateDraft_Empty(t *testing.T) {
	_, err := billing.ValidateDraft(nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one item is required")
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"120.50", "120.5"},
		{" 42 ", "42"},
		{"abc", "0"},
		{"", "0"},
		{"-10", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, billing.ParseAmount(tt.in).Equal(d(tt.want)))
		})
	}
}
